package assembler

import (
	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/reloc"
)

// Word is one native instruction or data word under construction.
type Word struct {
	Code  uint32
	Fixup *reloc.Fixup
	Err   error
}

// OperandKind tells what an operand turned out to be.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandConstant
	OperandRegister
	OperandSymbolic
	OperandPointer
	OperandIllegal
)

// Operand is a parsed operand. Its bits are merged straight into the word
// it belongs to; only a pending fixup and the first error are kept here.
type Operand struct {
	Kind  OperandKind
	Value int64
	Fixup *reloc.Fixup
	Err   error
}

func (o *Operand) fail(err *Error) {
	if o.Err == nil {
		o.Err = err
	}
	o.Kind = OperandIllegal
}

// deferTo records a field to patch once the expression is resolvable.
func (o *Operand) deferTo(k reloc.Kind, v expr.Value) {
	f := reloc.New(k, 0, 0, v)
	o.Fixup = &f
	o.Kind = OperandSymbolic
	o.Value = v.Value
}

func (o *Operand) set(v expr.Value) {
	o.Value = v.Value
	if v.Kind == expr.Register {
		o.Kind = OperandRegister
	} else {
		o.Kind = OperandConstant
	}
}

func (w *Word) deferTo(k reloc.Kind, v expr.Value) {
	f := reloc.New(k, 0, 0, v)
	w.Fixup = &f
}
