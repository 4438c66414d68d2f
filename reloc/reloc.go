// Package reloc describes how unresolved operand fields are patched: where
// the field lives in the word, how wide it is, how the value is scaled, and
// how negative values are folded in.
package reloc

import (
	"errors"
	"fmt"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
)

// Kind identifies a patch formula.
type Kind int

const (
	None Kind = iota
	SrcImm
	Src
	DstImm
	Dst
	Abs23
	Abs32
	Abs32Div4
	Abs16
	Abs16Div4
	Abs8
	Abs8Div4
	PCRel8
	PCRel16
	PCRel10
	RepInsCnt
	RepsRel
)

// Sign handling for negative values.
type Sign int

const (
	// SignNone treats the value as unsigned.
	SignNone Sign = iota
	// SignNarrow folds a sign-extended negative value into the field's top bit.
	SignNarrow
	// SignSubtract stores the magnitude and sets the subtract bit.
	SignSubtract
)

// Descriptor is the patch formula for one Kind.
type Descriptor struct {
	Name string
	// Mask selects the field bits in the little-endian value.
	Mask uint32
	// Shift moves the value into place after RShift scales it down.
	Shift  uint
	RShift uint
	// Bias is subtracted first; counts are stored as n-1.
	Bias    int64
	Sign    Sign
	SignBit uint32
	PCRel   bool
}

var descriptors = map[Kind]Descriptor{
	None:      {Name: "NONE"},
	SrcImm:    {Name: "SRC_IMM", Mask: 0x1FF},
	Src:       {Name: "SRC", Mask: 0x1FF, RShift: 2},
	DstImm:    {Name: "DST_IMM", Mask: 0x3FE00, Shift: 9},
	Dst:       {Name: "DST", Mask: 0x3FE00, Shift: 9, RShift: 2},
	Abs23:     {Name: "23", Mask: 0x7FFFFF},
	Abs32:     {Name: "32", Mask: 0xFFFFFFFF},
	Abs32Div4: {Name: "32_DIV4", Mask: 0xFFFFFFFF, RShift: 2},
	Abs16:     {Name: "16", Mask: 0xFFFF},
	Abs16Div4: {Name: "16_DIV4", Mask: 0xFFFF, RShift: 2},
	Abs8:      {Name: "8", Mask: 0xFF},
	Abs8Div4:  {Name: "8_DIV4", Mask: 0xFF, RShift: 2},
	PCRel8:    {Name: "8_PCREL", Mask: 0x7F, Sign: SignNarrow, SignBit: 0x80, PCRel: true},
	PCRel16:   {Name: "16_PCREL", Mask: 0x7FFF, Sign: SignNarrow, SignBit: 0x8000, PCRel: true},
	PCRel10:   {Name: "PCREL10", Mask: 0x1FF, Sign: SignSubtract, SignBit: isa.SubtractBit, PCRel: true},
	RepInsCnt: {Name: "REPINSCNT", Mask: 0x3F, Bias: 1},
	RepsRel:   {Name: "REPSREL", Mask: 0x3F, RShift: 2, Bias: 1, PCRel: true},
}

// Lookup returns the descriptor for a kind.
func Lookup(k Kind) Descriptor {
	return descriptors[k]
}

func (k Kind) String() string {
	if d, ok := descriptors[k]; ok {
		return d.Name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PCRel reports whether the kind is relative to the end of its field.
func (k Kind) PCRel() bool {
	return descriptors[k].PCRel
}

// ErrOverflow is reported when a value does not fit its field. The masked
// value is merged regardless.
var ErrOverflow = errors.New("relocation overflows")

// Canonical truncates v to 32 bits and sign-extends it back.
func Canonical(v int64) int64 {
	return int64(int32(uint32(v)))
}

// Apply merges value into field according to the kind's formula.
func Apply(k Kind, field uint32, value int64) (uint32, error) {
	d := Lookup(k)
	v := uint64(Canonical(value) - d.Bias)
	mask := d.Mask

	switch d.Sign {
	case SignNarrow:
		high := ^(d.SignBit - 1)
		if v&0x80000000 != 0 && uint32(v)&high == high {
			mask |= d.SignBit
			v &= uint64(d.SignBit<<1 - 1)
		}
	case SignSubtract:
		if v&0x80000000 != 0 {
			v = -v & 0xFFFFFFFF
			v |= uint64(d.SignBit)
			mask |= d.SignBit
		}
	}

	shifted := uint32((v >> d.RShift) << d.Shift)
	var err error
	if shifted&^mask != 0 {
		err = fmt.Errorf("%w: %s value %d", ErrOverflow, d.Name, Canonical(value))
	}
	return field&^mask | shifted&mask, err
}

// ReadField reads a little-endian field of size bytes.
func ReadField(buf []byte, size int) uint32 {
	return isa.LE(buf, size)
}

// WriteField stores a little-endian field of size bytes.
func WriteField(buf []byte, size int, v uint32) {
	isa.PutLE(buf, v, size)
}

// Fixup records a field that could not be filled in when it was encoded.
type Fixup struct {
	// Offset is the byte offset of the field within the output.
	Offset int
	Size   int
	Kind   Kind
	PCRel  bool
	Expr   expr.Value
	Line   int
}

// New returns a fixup with its pc-relative flag taken from the kind.
func New(k Kind, offset, size int, e expr.Value) Fixup {
	return Fixup{Offset: offset, Size: size, Kind: k, PCRel: k.PCRel(), Expr: e}
}

// Patch applies value to the field the fixup names inside buf.
func (f Fixup) Patch(buf []byte, value int64) error {
	field := buf[f.Offset : f.Offset+f.Size]
	code, err := Apply(f.Kind, ReadField(field, f.Size), value)
	WriteField(field, f.Size, code)
	return err
}

// Value computes what gets patched for a fixup whose target address is
// known. base is the address of output offset 0. PC-relative values are
// measured from the end of the field.
func (f Fixup) Value(target, base int64) int64 {
	if f.PCRel {
		return target - (base + int64(f.Offset) + int64(f.Size))
	}
	return target
}

// Relocation is a fixup left for the linker.
type Relocation struct {
	Address uint32
	Kind    Kind
	Symbol  string
	Addend  int64
	Line    int
}

// LinkAddend adjusts an addend for a link-time record. Linkers compute
// pc-relative values from the start of the field, so the field size is
// taken off here.
func LinkAddend(k Kind, addend int64, size int) int64 {
	if k.PCRel() {
		return addend - int64(size)
	}
	return addend
}

// ToRelocation converts an unresolved fixup into a link-time record.
func (f Fixup) ToRelocation(base int64) Relocation {
	return Relocation{
		Address: uint32(base + int64(f.Offset)),
		Kind:    f.Kind,
		Symbol:  f.Expr.Symbol,
		Addend:  LinkAddend(f.Kind, Canonical(f.Expr.Value), f.Size),
		Line:    f.Line,
	}
}

func (r Relocation) String() string {
	return fmt.Sprintf("%08x %-9s %s%+d", r.Address, r.Kind, r.Symbol, r.Addend)
}
