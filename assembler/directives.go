package assembler

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

type directiveFunc func(a *Assembler, args string) error

var directives map[string]directiveFunc

func init() {
	directives = map[string]directiveFunc{
		"fit":      (*Assembler).dirFit,
		"res":      (*Assembler).dirRes,
		"gas":      func(a *Assembler, _ string) error { a.mode.PASM = false; return nil },
		"pasm":     func(a *Assembler, _ string) error { a.mode.PASM = true; return nil },
		"lmm":      func(a *Assembler, _ string) error { a.mode.LMM = true; return nil },
		"compress": (*Assembler).dirCompress,
		"long":     dataDirective(4),
		"int":      dataDirective(4),
		"word":     dataDirective(2),
		"short":    dataDirective(2),
		"byte":     dataDirective(1),
		"ascii":    stringDirective(false),
		"asciz":    stringDirective(true),
		"string":   stringDirective(true),
		"align":    (*Assembler).dirAlign,
		"balign":   (*Assembler).dirAlign,
		"p2align":  (*Assembler).dirP2Align,
		"org":      (*Assembler).dirOrg,
		"equ":      (*Assembler).dirEqu,
		"set":      (*Assembler).dirEqu,
		"global":   (*Assembler).dirGlobal,
		"globl":    (*Assembler).dirGlobal,
		"text":     ignoreDirective,
		"data":     ignoreDirective,
		"section":  ignoreDirective,
	}
}

func ignoreDirective(*Assembler, string) error { return nil }

// directive runs one dot directive. name has its dot removed.
func (a *Assembler) directive(name, args string) error {
	f, ok := directives[strings.ToLower(name)]
	if !ok {
		return syntaxError("unknown directive: .%s", name)
	}
	return f(a, strings.TrimSpace(args))
}

// absolute evaluates an expression that must be a constant now.
func (a *Assembler) absolute(s string) (int64, string, error) {
	v, rest, err := expr.Evaluate(s, a.scope())
	if err != nil {
		return 0, rest, syntaxError("%v", err)
	}
	if v.Kind != expr.Constant {
		return 0, rest, syntaxError("expected a constant expression")
	}
	return v.Value, rest, nil
}

// arguments splits a directive's arguments at top-level commas.
func arguments(s string) []string {
	var out []string
	for _, tok := range splitDcValues(s) {
		out = append(out, tok.Value)
	}
	return out
}

func (a *Assembler) fill(n int, b byte) {
	if n <= 0 {
		return
	}
	buf := make([]byte, n)
	if b != 0 {
		for i := range buf {
			buf[i] = b
		}
	}
	a.obj.Append(buf)
}

// dirFit reads its argument and otherwise does nothing.
func (a *Assembler) dirFit(args string) error {
	if args == "" {
		return nil
	}
	_, rest, err := a.absolute(args)
	if err != nil {
		return err
	}
	return junk(rest)
}

// dirRes reserves longs: ".res count[, fill]".
func (a *Assembler) dirRes(args string) error {
	n, fill, err := a.countAndFill(args)
	if err != nil {
		return err
	}
	if n < 0 {
		return rangeError("negative .res count")
	}
	a.fill(int(n)*4, fill)
	return nil
}

func (a *Assembler) countAndFill(args string) (int64, byte, error) {
	parts := arguments(args)
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, syntaxError("expected count[, fill]")
	}
	n, rest, err := a.absolute(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if err := junk(rest); err != nil {
		return 0, 0, err
	}
	var fill int64
	if len(parts) == 2 {
		fill, rest, err = a.absolute(parts[1])
		if err != nil {
			return 0, 0, err
		}
		if err := junk(rest); err != nil {
			return 0, 0, err
		}
	}
	return n, byte(fill), nil
}

// dirCompress switches compression. Turning it off aligns the location
// counter to a long with zero bytes.
func (a *Assembler) dirCompress(args string) error {
	opt, rest := nextWord(args)
	switch {
	case strings.EqualFold(opt, "on"):
		a.mode.Compress = true
	case strings.EqualFold(opt, "off"):
		a.mode.Compress = false
	case strings.HasPrefix(opt, "def"):
		a.mode.Compress = a.cfg.CMM
	default:
		return syntaxError("Unrecognized compress option \"%s\"", opt)
	}
	if !a.mode.Compress {
		a.align(4, 0)
	}
	return junk(rest)
}

func (a *Assembler) align(n int, fill byte) {
	if r := a.obj.Len() % n; r != 0 {
		a.fill(n-r, fill)
	}
}

// dirAlign is ".align bytes[, fill]".
func (a *Assembler) dirAlign(args string) error {
	n, fill, err := a.countAndFill(args)
	if err != nil {
		return err
	}
	if n <= 0 || n&(n-1) != 0 {
		return rangeError("alignment not a power of 2")
	}
	a.align(int(n), fill)
	return nil
}

func (a *Assembler) dirP2Align(args string) error {
	n, fill, err := a.countAndFill(args)
	if err != nil {
		return err
	}
	if n < 0 || n > 16 {
		return rangeError("alignment too large")
	}
	a.align(1<<n, fill)
	return nil
}

// dirOrg moves the location counter forward to an offset in the section.
func (a *Assembler) dirOrg(args string) error {
	n, fill, err := a.countAndFill(args)
	if err != nil {
		return err
	}
	if int(n) < a.obj.Len() {
		return syntaxError("attempt to move .org backwards")
	}
	a.fill(int(n)-a.obj.Len(), fill)
	return nil
}

// dirEqu is ".equ name, expr".
func (a *Assembler) dirEqu(args string) error {
	parts := arguments(args)
	if len(parts) != 2 || !expr.IsSymbolName(parts[0]) {
		return syntaxError("expected symbol name and expression")
	}
	return a.equate(parts[0], parts[1])
}

func (a *Assembler) equate(name, text string) error {
	v, rest, err := expr.Evaluate(text, a.scope())
	if err != nil {
		return syntaxError("%v", err)
	}
	if err := junk(rest); err != nil {
		return err
	}
	switch v.Kind {
	case expr.Complex:
		return syntaxError("expression too complex")
	case expr.Illegal:
		return syntaxError("bad expression")
	}
	return a.symbols.DefineEquate(name, v, a.line)
}

func (a *Assembler) dirGlobal(args string) error {
	for _, name := range arguments(args) {
		if !expr.IsSymbolName(name) {
			return syntaxError("bad symbol name '%s'", name)
		}
		a.symbols.MarkGlobal(name)
	}
	return nil
}

// dataDirective stores comma-separated values of n bytes each. A leading
// '@' stores byte addresses, '&' long addresses; without either the PASM
// dialect decides.
func dataDirective(n int) directiveFunc {
	return func(a *Assembler, args string) error {
		var buf []byte
		var fixups []reloc.Fixup
		for _, tok := range splitDcValues(args) {
			if tok.Quoted {
				if n != 1 {
					return syntaxError("string not allowed here")
				}
				buf = append(buf, tok.Value...)
				continue
			}
			v, f, err := a.dataValue(tok.Value, n)
			if err != nil {
				return err
			}
			if f != nil {
				f.Offset = a.obj.Len() + len(buf)
				fixups = append(fixups, *f)
			}
			var b [4]byte
			isa.PutLE(b[:], uint32(v), n)
			buf = append(buf, b[:n]...)
		}
		a.obj.Append(buf)
		for _, f := range fixups {
			a.obj.RecordFixup(f)
		}
		return nil
	}
}

var dataKinds = map[int][2]reloc.Kind{
	1: {reloc.Abs8, reloc.Abs8Div4},
	2: {reloc.Abs16, reloc.Abs16Div4},
	4: {reloc.Abs32, reloc.Abs32Div4},
}

// dataValue returns the value to store now and, for a symbolic value, the
// fixup that will replace it.
func (a *Assembler) dataValue(s string, n int) (int64, *reloc.Fixup, error) {
	pasm := a.mode.PASM
	switch {
	case strings.HasPrefix(s, "@"):
		s, pasm = s[1:], false
	case strings.HasPrefix(s, "&"):
		s, pasm = s[1:], true
	}
	v, rest, err := expr.Evaluate(s, a.scope())
	if err != nil {
		return 0, nil, syntaxError("%v", err)
	}
	if err := junk(rest); err != nil {
		return 0, nil, err
	}

	switch v.Kind {
	case expr.Constant, expr.Register:
		if n < 4 {
			lo, hi := int64(-1)<<(8*n-1), int64(1)<<(8*n)-1
			if v.Value < lo || v.Value > hi {
				return 0, nil, rangeError("value %d out of range for %d-byte data", v.Value, n)
			}
		}
		return v.Value, nil, nil
	case expr.Symbolic:
		k := dataKinds[n][0]
		if pasm {
			v = longAddressed(v)
			k = dataKinds[n][1]
		}
		f := reloc.New(k, 0, n, v)
		f.Line = a.line
		return 0, &f, nil
	case expr.Complex:
		return 0, nil, syntaxError("expression too complex")
	}
	return 0, nil, syntaxError("bad expression")
}

// stringDirective stores double-quoted strings, optionally zero terminated.
func stringDirective(zero bool) directiveFunc {
	return func(a *Assembler, args string) error {
		var buf []byte
		s := strings.TrimSpace(args)
		for s != "" {
			if s[0] != '"' {
				return syntaxError("expected a string")
			}
			end := closingQuote(s)
			if end < 0 {
				return syntaxError("missing end quote")
			}
			str, err := strconv.Unquote(s[:end+1])
			if err != nil {
				return syntaxError("bad string %s", s[:end+1])
			}
			buf = append(buf, str...)
			if zero {
				buf = append(buf, 0)
			}
			s = strings.TrimSpace(s[end+1:])
			if strings.HasPrefix(s, ",") {
				s = strings.TrimSpace(s[1:])
			}
		}
		a.obj.Append(buf)
		return nil
	}
}

// closingQuote finds the quote that ends the string starting at s[0].
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func junk(rest string) error {
	if strings.TrimSpace(rest) != "" {
		return syntaxError("junk at end of line, first unrecognized character is `%c'", strings.TrimSpace(rest)[0])
	}
	return nil
}

// dcToken is one comma-separated data value. Quoted values are the bytes
// of a double-quoted string.
type dcToken struct {
	Value  string
	Quoted bool
}

func splitDcValues(s string) []dcToken {
	var tokens []dcToken
	inQuote := false
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(s):
			i++
			cur.WriteByte(c)
			cur.WriteByte(s[i])
		case c == '"':
			if inQuote {
				str, err := strconv.Unquote(`"` + cur.String() + `"`)
				if err != nil {
					str = cur.String()
				}
				tokens = append(tokens, dcToken{Value: str, Quoted: true})
			} else if val := strings.TrimSpace(cur.String()); val != "" {
				tokens = append(tokens, dcToken{Value: val})
			}
			cur.Reset()
			inQuote = !inQuote
		case c == ',' && !inQuote:
			if val := strings.TrimSpace(cur.String()); val != "" {
				tokens = append(tokens, dcToken{Value: val})
			}
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if val := strings.TrimSpace(cur.String()); val != "" && !inQuote {
		tokens = append(tokens, dcToken{Value: val})
	}
	return tokens
}
