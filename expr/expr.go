// Package expr evaluates operand expressions. An expression reduces to a
// constant, a register, or a symbol plus addend that is patched later;
// anything else is reported as complex or illegal and left to the caller.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies an evaluated expression.
type Kind int

const (
	// Constant is a fully resolved integer.
	Constant Kind = iota
	// Register is a symbol from the register section, such as r3 or par.
	Register
	// Symbolic is Symbol [- Sub] + Value, resolved once the symbols are known.
	Symbolic
	// Complex mixes symbols in a way that cannot be expressed as a fixup.
	Complex
	// Illegal means no expression could be read.
	Illegal
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Register:
		return "register"
	case Symbolic:
		return "symbolic"
	case Complex:
		return "complex"
	}
	return "illegal"
}

// Value is the result of an evaluation.
type Value struct {
	Kind Kind
	// Value is the constant, the register number, or the addend.
	Value  int64
	Symbol string
	Sub    string
}

// Const returns a constant value.
func Const(v int64) Value {
	return Value{Kind: Constant, Value: v}
}

// Sym returns a reference to a symbol with an addend.
func Sym(name string, addend int64) Value {
	return Value{Kind: Symbolic, Symbol: name, Value: addend}
}

// Reg returns a register value.
func Reg(n int64) Value {
	return Value{Kind: Register, Value: n}
}

func (v Value) String() string {
	switch v.Kind {
	case Constant, Register:
		return strconv.FormatInt(v.Value, 10)
	case Symbolic:
		var sb strings.Builder
		sb.WriteString(v.Symbol)
		if v.Sub != "" {
			sb.WriteString("-" + v.Sub)
		}
		if v.Value > 0 {
			fmt.Fprintf(&sb, "+%d", v.Value)
		} else if v.Value < 0 {
			fmt.Fprintf(&sb, "%d", v.Value)
		}
		return sb.String()
	}
	return v.Kind.String()
}

// Scope resolves names during evaluation.
type Scope interface {
	// Lookup returns what a name is bound to. Unknown names stay symbolic.
	Lookup(name string) (Value, bool)
	// Here returns the location counter.
	Here() Value
}

var (
	ErrParen      = errors.New("missing ')'")
	ErrDivZero    = errors.New("division by zero")
	ErrBadNumber  = errors.New("bad number")
	ErrBadLiteral = errors.New("bad character constant")
)

// Evaluate reads the longest expression at the start of text and returns its
// value and the unread remainder. Reading stops at the first character that
// cannot continue the expression, such as a comma or a trailing effect name.
func Evaluate(text string, scope Scope) (Value, string, error) {
	p := &parser{s: text, scope: scope}
	v, err := p.parseLevel(0)
	if err != nil {
		return Value{Kind: Illegal}, text, err
	}
	return v, p.s[p.pos:], nil
}

// Binary operators from loosest to tightest binding.
var levels = [][]string{
	{"+", "-"},
	{"|"},
	{"^"},
	{"&"},
	{"*", "/", "%", "<<", ">>"},
}

type parser struct {
	s     string
	pos   int
	scope Scope
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

// operator returns the binary operator at the cursor if it belongs to the
// given level. Increment and decrement markers are never operators.
func (p *parser) operator(level int) string {
	rest := p.s[p.pos:]
	if strings.HasPrefix(rest, "++") || strings.HasPrefix(rest, "--") {
		return ""
	}
	for _, op := range levels[level] {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	return ""
}

func (p *parser) parseLevel(level int) (Value, error) {
	if level == len(levels) {
		return p.parseUnary()
	}
	left, err := p.parseLevel(level + 1)
	if err != nil {
		return left, err
	}
	for {
		save := p.pos
		p.skipSpace()
		op := p.operator(level)
		if op == "" {
			p.pos = save
			return left, nil
		}
		p.pos += len(op)
		p.skipSpace()
		right, err := p.parseLevel(level + 1)
		if err != nil {
			return right, err
		}
		left, err = combine(op, left, right)
		if err != nil {
			return left, err
		}
	}
}

func (p *parser) parseUnary() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return Value{Kind: Illegal}, nil
	}
	c := p.s[p.pos]
	switch c {
	case '-', '~', '!', '+':
		if strings.HasPrefix(p.s[p.pos:], "--") || strings.HasPrefix(p.s[p.pos:], "++") {
			return Value{Kind: Illegal}, nil
		}
		p.pos++
		v, err := p.parseUnary()
		if err != nil || v.Kind == Illegal {
			return v, err
		}
		return unary(c, v), nil
	}
	return p.parsePrimary()
}

func unary(op byte, v Value) Value {
	if op == '+' {
		return v
	}
	if v.Kind != Constant {
		return Value{Kind: Complex}
	}
	switch op {
	case '-':
		v.Value = -v.Value
	case '~':
		v.Value = ^v.Value
	case '!':
		if v.Value == 0 {
			v.Value = 1
		} else {
			v.Value = 0
		}
	}
	return v
}

func (p *parser) parsePrimary() (Value, error) {
	rest := p.s[p.pos:]
	c := rest[0]
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseLevel(0)
		if err != nil {
			return v, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return Value{Kind: Illegal}, ErrParen
		}
		p.pos++
		return v, nil

	case c == '\'':
		return p.parseChar()

	case isDigit(c):
		return p.parseNumber()

	case c == '$':
		if len(rest) > 1 && isHexDigit(rest[1]) {
			return p.parseNumber()
		}
		p.pos++
		return p.here(), nil

	case c == '%' && len(rest) > 1 && (rest[1] == '0' || rest[1] == '1'):
		return p.parseNumber()

	case isSymbolStart(c):
		end := 1
		for end < len(rest) && isSymbolChar(rest[end]) {
			end++
		}
		name := rest[:end]
		p.pos += end
		if name == "." {
			return p.here(), nil
		}
		if p.scope != nil {
			if v, ok := p.scope.Lookup(name); ok {
				return v, nil
			}
		}
		return Sym(name, 0), nil
	}
	return Value{Kind: Illegal}, nil
}

func (p *parser) here() Value {
	if p.scope == nil {
		return Value{Kind: Illegal}
	}
	return p.scope.Here()
}

func (p *parser) parseNumber() (Value, error) {
	rest := p.s[p.pos:]
	base := 10
	skip := 0
	switch {
	case rest[0] == '$':
		base, skip = 16, 1
	case rest[0] == '%':
		base, skip = 2, 1
	case len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X'):
		base, skip = 16, 2
	case len(rest) > 2 && rest[0] == '0' && (rest[1] == 'b' || rest[1] == 'B') && (rest[2] == '0' || rest[2] == '1'):
		base, skip = 2, 2
	}
	end := skip
	for end < len(rest) && (isHexDigit(rest[end]) || rest[end] == '_') {
		if base == 10 && !isDigit(rest[end]) && rest[end] != '_' {
			break
		}
		end++
	}
	digits := strings.ReplaceAll(rest[skip:end], "_", "")
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return Value{Kind: Illegal}, fmt.Errorf("%w: %s", ErrBadNumber, rest[:end])
	}
	p.pos += end
	return Const(int64(n)), nil
}

func (p *parser) parseChar() (Value, error) {
	rest := p.s[p.pos:]
	if len(rest) < 3 {
		return Value{Kind: Illegal}, ErrBadLiteral
	}
	ch := rest[1]
	n := 2
	if ch == '\\' {
		if len(rest) < 4 {
			return Value{Kind: Illegal}, ErrBadLiteral
		}
		switch rest[2] {
		case 'n':
			ch = '\n'
		case 't':
			ch = '\t'
		case 'r':
			ch = '\r'
		case '0':
			ch = 0
		default:
			ch = rest[2]
		}
		n = 3
	}
	if rest[n] != '\'' {
		return Value{Kind: Illegal}, ErrBadLiteral
	}
	p.pos += n + 1
	return Const(int64(ch)), nil
}

func combine(op string, a, b Value) (Value, error) {
	if a.Kind == Illegal || b.Kind == Illegal {
		return Value{Kind: Illegal}, nil
	}
	if a.Kind == Constant && b.Kind == Constant {
		return constOp(op, a.Value, b.Value)
	}
	switch op {
	case "+":
		if a.Kind == Symbolic && b.Kind == Constant {
			a.Value += b.Value
			return a, nil
		}
		if a.Kind == Constant && b.Kind == Symbolic {
			b.Value += a.Value
			return b, nil
		}
	case "-":
		if a.Kind == Symbolic && b.Kind == Constant {
			a.Value -= b.Value
			return a, nil
		}
		if a.Kind == Symbolic && b.Kind == Symbolic && a.Sub == "" && b.Sub == "" {
			if a.Symbol == b.Symbol {
				return Const(a.Value - b.Value), nil
			}
			return Value{Kind: Symbolic, Symbol: a.Symbol, Sub: b.Symbol, Value: a.Value - b.Value}, nil
		}
	}
	return Value{Kind: Complex}, nil
}

func constOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return Const(a + b), nil
	case "-":
		return Const(a - b), nil
	case "|":
		return Const(a | b), nil
	case "^":
		return Const(a ^ b), nil
	case "&":
		return Const(a & b), nil
	case "*":
		return Const(a * b), nil
	case "/", "%":
		if b == 0 {
			return Value{Kind: Illegal}, ErrDivZero
		}
		if op == "/" {
			return Const(a / b), nil
		}
		return Const(a % b), nil
	case "<<":
		return Const(a << uint64(b&63)), nil
	case ">>":
		return Const(a >> uint64(b&63)), nil
	}
	return Value{Kind: Illegal}, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSymbolStart(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSymbolChar(c byte) bool {
	return isSymbolStart(c) || isDigit(c) || c == '$'
}

// IsSymbolName reports whether s is a valid symbol name.
func IsSymbolName(s string) bool {
	if s == "" || !isSymbolStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isSymbolChar(s[i]) {
			return false
		}
	}
	return true
}
