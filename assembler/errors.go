package assembler

import (
	"errors"
	"fmt"

	"github.com/Urethramancer/propeller/reloc"
)

// Diagnostic classes. Every *Error unwraps to one of them.
var (
	ErrSyntax       = errors.New("syntax error")
	ErrRange        = errors.New("range error")
	ErrIncompatible = errors.New("incompatible instruction")
	ErrOverflow     = reloc.ErrOverflow
)

// Error is a diagnostic tied to a source line.
type Error struct {
	Line int
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func syntaxError(format string, args ...any) *Error {
	return &Error{Kind: ErrSyntax, Msg: fmt.Sprintf(format, args...)}
}

func rangeError(format string, args ...any) *Error {
	return &Error{Kind: ErrRange, Msg: fmt.Sprintf(format, args...)}
}

func incompatible(format string, args ...any) *Error {
	return &Error{Kind: ErrIncompatible, Msg: fmt.Sprintf(format, args...)}
}

// atLine stamps a line number on err, converting foreign errors into
// syntax diagnostics.
func atLine(err error, line int) *Error {
	var e *Error
	if errors.As(err, &e) {
		c := *e
		c.Line = line
		return &c
	}
	if errors.Is(err, reloc.ErrOverflow) {
		return &Error{Line: line, Kind: ErrOverflow, Msg: err.Error()}
	}
	return &Error{Line: line, Kind: ErrSyntax, Msg: err.Error()}
}
