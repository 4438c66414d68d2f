package reloc_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/reloc"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		kind     reloc.Kind
		field    uint32
		value    int64
		want     uint32
		overflow bool
	}{
		{"src_imm", reloc.SrcImm, 0xA0FC0200, 5, 0xA0FC0205, false},
		{"src_imm_max", reloc.SrcImm, 0, 0x1FF, 0x1FF, false},
		{"src_imm_over", reloc.SrcImm, 0xA0FC0000, 0x200, 0xA0FC0000, true},
		{"src_div4", reloc.Src, 0, 0x40, 0x10, false},
		{"dst_div4", reloc.Dst, 0x1FF, 0x40, 0x10<<9 | 0x1FF, false},
		{"dst_imm", reloc.DstImm, 0, 3, 3 << 9, false},
		{"abs23", reloc.Abs23, 0, 0x123456, 0x123456, false},
		{"abs23_over", reloc.Abs23, 0, 0x800000, 0, true},
		{"abs32", reloc.Abs32, 0, -1, 0xFFFFFFFF, false},
		{"abs16_div4", reloc.Abs16Div4, 0, 0x8000, 0x2000, false},
		{"abs8", reloc.Abs8, 0xFF00, 0x12, 0xFF12, false},
		{"pcrel8_pos", reloc.PCRel8, 0, 127, 0x7F, false},
		{"pcrel8_pos_over", reloc.PCRel8, 0, 128, 0, true},
		{"pcrel8_neg", reloc.PCRel8, 0, -2, 0xFE, false},
		{"pcrel8_min", reloc.PCRel8, 0, -128, 0x80, false},
		{"pcrel8_under", reloc.PCRel8, 0, -129, 0x7F, true},
		{"pcrel16_min", reloc.PCRel16, 0, -32768, 0x8000, false},
		{"pcrel16_under", reloc.PCRel16, 0, -32769, 0x7FFF, true},
		{"pcrel10_fwd", reloc.PCRel10, 0x80FC0000, 8, 0x80FC0008, false},
		{"pcrel10_back", reloc.PCRel10, 0x80FC0000, -8, 0x84FC0008, false},
		{"pcrel10_over", reloc.PCRel10, 0, 512, 0, true},
		{"repinscnt", reloc.RepInsCnt, 0, 5, 4, false},
		{"repinscnt_over", reloc.RepInsCnt, 0, 65, 0, true},
		{"repsrel", reloc.RepsRel, 0, 17, 4, false},
	}
	for _, tc := range tests {
		got, err := reloc.Apply(tc.kind, tc.field, tc.value)
		if got != tc.want {
			t.Errorf("%s: got %08x, want %08x", tc.name, got, tc.want)
		}
		if tc.overflow != (err != nil) {
			t.Errorf("%s: overflow=%v, want %v (%v)", tc.name, err != nil, tc.overflow, err)
		}
		if err != nil && !errors.Is(err, reloc.ErrOverflow) {
			t.Errorf("%s: error %v is not ErrOverflow", tc.name, err)
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := map[int64]int64{
		5:           5,
		0xFFFFFFFF:  -1,
		0x100000005: 5,
		-1:          -1,
		0x80000000:  -0x80000000,
	}
	for in, want := range tests {
		if got := reloc.Canonical(in); got != want {
			t.Errorf("Canonical(%#x) = %d, want %d", in, got, want)
		}
	}
}

func TestPatch(t *testing.T) {
	// mov r1,#0 with a pending source field, then a compact brs.
	buf := []byte{0x00, 0x02, 0xFC, 0xA0, 0x5F, 0x00}
	f := reloc.New(reloc.SrcImm, 0, 4, expr.Sym("x", 0))
	if err := f.Patch(buf, 0x1F); err != nil {
		t.Fatal(err)
	}
	g := reloc.New(reloc.PCRel8, 5, 1, expr.Sym("loop", 0))
	if !g.PCRel {
		t.Fatal("8_PCREL not pc-relative")
	}
	if err := g.Patch(buf, g.Value(0x1000, 0x1000)); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x1F, 0x02, 0xFC, 0xA0, 0x5F, 0xFA}
	if !bytes.Equal(buf, want) {
		t.Errorf("got % x, want % x", buf, want)
	}
}

func TestLinkAddend(t *testing.T) {
	if a := reloc.LinkAddend(reloc.PCRel16, 0, 2); a != -2 {
		t.Errorf("16_PCREL addend %d", a)
	}
	if a := reloc.LinkAddend(reloc.PCRel10, 4, 4); a != 0 {
		t.Errorf("PCREL10 addend %d", a)
	}
	if a := reloc.LinkAddend(reloc.Src, 4, 4); a != 4 {
		t.Errorf("SRC addend %d", a)
	}
	f := reloc.New(reloc.PCRel8, 1, 1, expr.Sym("far", 3))
	r := f.ToRelocation(0x100)
	if r.Address != 0x101 || r.Symbol != "far" || r.Addend != 2 || r.Kind != reloc.PCRel8 {
		t.Errorf("relocation %+v", r)
	}
}

func TestKindString(t *testing.T) {
	if reloc.PCRel10.String() != "PCREL10" || reloc.Abs32Div4.String() != "32_DIV4" {
		t.Error("kind names")
	}
}
