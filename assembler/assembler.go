// Package assembler turns Propeller assembly source into machine code for
// either hardware generation, optionally compressed into the compact
// byte-coded form used by CMM kernels.
package assembler

import (
	"errors"
	"strings"

	"github.com/Urethramancer/propeller/expr"
)

// Assembler holds the state for one assembly run.
type Assembler struct {
	cfg     Config
	mode    Mode
	symbols *Symbols
	obj     *Object
	line    int
}

// New creates an Assembler for a configuration.
func New(cfg Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// Assemble translates src in one pass. Fields that refer to symbols are
// patched after the last line; references to symbols that never get
// defined become relocations. The object is returned even when some lines
// failed, together with every diagnostic joined.
func (a *Assembler) Assemble(src string) (*Object, error) {
	a.mode = a.cfg.mode()
	a.symbols = NewSymbols()
	a.obj = &Object{
		Origin:     a.cfg.Origin,
		Symbols:    a.symbols,
		Generation: a.mode.Generation,
	}

	var errs []error
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for i, line := range lines {
		a.line = i + 1
		for _, stmt := range statements(stripComment(line)) {
			if err := a.statement(stmt); err != nil {
				errs = append(errs, atLine(err, a.line))
			}
		}
	}
	errs = append(errs, a.obj.resolve()...)
	return a.obj, errors.Join(errs...)
}

// stripComment drops a comment: a quote starts one anywhere outside a
// string, '#' or '/' only at the start of a line.
func stripComment(line string) string {
	t := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(t, "#") || strings.HasPrefix(t, "/") {
		return ""
	}
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '\'':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

// statements splits a line at ';' separators outside strings.
func statements(line string) []string {
	var out []string
	inString := false
	last := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ';':
			if !inString {
				out = append(out, line[last:i])
				last = i + 1
			}
		}
	}
	return append(out, line[last:])
}

// scope is what expressions see at the current location.
func (a *Assembler) scope() *lineScope {
	return &lineScope{symbols: a.symbols, mode: a.mode, here: a.obj.Len()}
}

// statement handles labels, then a directive, an equate or an instruction.
func (a *Assembler) statement(s string) error {
	s = strings.TrimSpace(s)
	for {
		i := strings.IndexByte(s, ':')
		if i <= 0 || !expr.IsSymbolName(s[:i]) {
			break
		}
		if err := a.symbols.DefineLabel(s[:i], a.obj.Len(), a.mode.Compress, a.line); err != nil {
			return err
		}
		s = strings.TrimSpace(s[i+1:])
	}
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, ".") {
		name, args := nextWord(s[1:])
		if expr.IsSymbolName(name) {
			return a.directive(name, args)
		}
	}
	if i := strings.IndexByte(s, '='); i > 0 && expr.IsSymbolName(strings.TrimSpace(s[:i])) {
		return a.equate(strings.TrimSpace(s[:i]), s[i+1:])
	}
	return a.instruction(s)
}

// instruction encodes one statement under a snapshot of the mode. Nothing
// is emitted for a line with an error.
func (a *Assembler) instruction(s string) error {
	e := newEncoder(a.mode, a.scope())
	if err := e.encode(s); err != nil {
		return err
	}
	if err := e.compress(); err != nil {
		return err
	}
	e.emit(a.obj, a.obj.Len(), a.line)
	if e.compressed {
		a.obj.Compressed = true
	}
	return nil
}
