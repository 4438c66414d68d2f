package assembler

import (
	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

// Sink receives the bytes and fixups of each statement as it is emitted.
type Sink interface {
	Append(b []byte)
	RecordFixup(f reloc.Fixup)
}

// Object is the result of assembling one source unit.
type Object struct {
	// Origin is the address of Code[0].
	Origin uint32
	Code   []byte
	// Fixups are every deferred field, resolved or not.
	Fixups []reloc.Fixup
	// Relocations are the fixups left for a linker.
	Relocations []reloc.Relocation
	Symbols     *Symbols
	// Compressed is set when any compressed code was emitted.
	Compressed bool
	Generation isa.Generation
}

// Append adds bytes to the end of the section.
func (o *Object) Append(b []byte) {
	o.Code = append(o.Code, b...)
}

// RecordFixup remembers a field to patch when symbols are known.
func (o *Object) RecordFixup(f reloc.Fixup) {
	o.Fixups = append(o.Fixups, f)
}

// Len is the number of bytes emitted so far.
func (o *Object) Len() int {
	return len(o.Code)
}

// Longs returns the section as native words; a short tail is zero padded.
func (o *Object) Longs() []uint32 {
	return isa.BytesToLongs(o.Code)
}

// resolve patches every fixup whose expression is known and turns the rest
// into relocations. Errors carry the line of the statement that deferred
// the field.
func (o *Object) resolve() []error {
	var errs []error
	base := int64(o.Origin)
	o.Relocations = o.Relocations[:0]
	for _, f := range o.Fixups {
		if f.Offset < 0 || f.Offset+f.Size > len(o.Code) {
			errs = append(errs, atLine(syntaxError("fixup outside section"), f.Line))
			continue
		}
		target, ok := o.Symbols.Resolve(f.Expr, o.Origin)
		if ok {
			if err := f.Patch(o.Code, f.Value(target, base)); err != nil {
				errs = append(errs, atLine(err, f.Line))
			}
			continue
		}
		switch {
		case f.Expr.Kind != expr.Symbolic:
			errs = append(errs, atLine(syntaxError("Cannot resolve %s", f.Expr), f.Line))
		case f.Expr.Sub != "":
			errs = append(errs, atLine(syntaxError("Cannot represent difference with undefined symbol %s", f.Expr.Sub), f.Line))
		default:
			o.Relocations = append(o.Relocations, f.ToRelocation(base))
		}
	}
	return errs
}
