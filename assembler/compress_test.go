package assembler

import (
	"errors"
	"testing"

	"github.com/Urethramancer/propeller/isa"
)

func xop(op, dest, src uint32, imm bool) *candidate {
	return &candidate{
		class:   isa.CompressXOP,
		xop:     op,
		dest:    dest,
		src:     src,
		imm:     imm,
		effects: isa.ExpectedEffects(op),
		cond:    0xF,
		size:    4,
	}
}

func move(dest, src uint32, imm bool) *candidate {
	return &candidate{class: isa.CompressMOV, dest: dest, src: src, imm: imm, effects: isa.EffectR, cond: 0xF, size: 4}
}

func TestCompressRules(t *testing.T) {
	tests := []struct {
		name string
		c    *candidate
		ok   bool
		code uint32
		size int
	}{
		{"Imm4_Max", xop(isa.XopAdd, 1, 15, true), true, 0xF021, 2},
		{"Imm12_Min", xop(isa.XopAdd, 1, 16, true), true, 0x001031, 3},
		{"Imm12_Max", xop(isa.XopAnd, 2, 0xFFF, true), true, 0x4FFF32, 3},
		{"Imm12_Over", xop(isa.XopAnd, 2, 0x1000, true), false, 0, 0},
		{"RegReg_Max", xop(isa.XopOr, 15, 15, false), true, 0xF71F, 2},
		{"RegReg_HighSrc", xop(isa.XopOr, 1, 16, false), false, 0, 0},
		{"Mask", xop(isa.XopAnd, 1, isa.RegMask, false), true, 0x4FFF31, 3},
		{"StackAdd_Max", xop(isa.XopAdd, isa.RegSP, 127, true), true, 0x7F0C, 2},
		{"StackAdd_Over", xop(isa.XopAdd, isa.RegSP, 128, true), false, 0, 0},
		{"StackAnd", xop(isa.XopAnd, isa.RegSP, 4, true), false, 0, 0},
		{"HighDest", xop(isa.XopAdd, isa.RegPC, 4, true), false, 0, 0},
		{"MVIB_Max", move(1, 255, true), true, 0xFF81, 2},
		{"MVIW_Min", move(1, 256, true), true, 0x010071, 3},
		{"MVIW_Max", move(1, 0xFFFF, true), true, 0xFFFF71, 3},
		{"MVI_Over", move(1, 0x10000, true), false, 0, 0},
		{"Move_HighDest", move(16, 1, false), false, 0, 0},
		{"Move_HighSrc", move(1, 16, false), false, 0, 0},
	}
	for _, tc := range tests {
		f, ok, err := runCompressRules(tc.c)
		if err != nil {
			t.Errorf("[%s] unexpected error %v", tc.name, err)
			continue
		}
		if ok != tc.ok {
			t.Errorf("[%s] compressed=%v, expected %v", tc.name, ok, tc.ok)
			continue
		}
		if ok && (f.code != tc.code || f.size != tc.size) {
			t.Errorf("[%s] got %06X/%d, expected %06X/%d", tc.name, f.code, f.size, tc.code, tc.size)
		}
	}
}

func TestCompressRefusals(t *testing.T) {
	c := xop(isa.XopAdd, 1, 2, false)
	c.effects = isa.EffectR | isa.EffectZ
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("extra effects compressed")
	}

	c = xop(isa.XopCmpu, 1, 2, false)
	c.effects = 0
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("compare without flags compressed")
	}

	c = xop(isa.XopAdd, 1, 2, false)
	c.pending = true
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("pending fixup compressed")
	}

	c = xop(isa.XopAdd, 1, 2, false)
	c.hardware = true
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("pointer operand compressed")
	}

	c = xop(isa.XopAdd, 1, 2, false)
	c.size, c.cond = 8, 0xA
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("conditional pair compressed")
	}
}

func TestCompressConditionWrap(t *testing.T) {
	c := move(1, 5, true)
	c.cond = 0xA
	f, ok, _ := runCompressRules(c)
	if !ok || f.code != 0x0581A5 || f.size != 3 {
		t.Errorf("got %06X/%d", f.code, f.size)
	}

	c = xop(isa.XopAdd, 1, 100, true)
	c.cond = 0xC
	f, ok, _ = runCompressRules(c)
	if !ok || f.code != 0x006431B3 || f.size != 4 {
		t.Errorf("got %08X/%d", f.code, f.size)
	}
}

func TestCompressXMov(t *testing.T) {
	pair := func(movDest, movSrc uint32, movImm bool, movEffects uint32) *candidate {
		c := xop(isa.XopAdd, 3, 4, false)
		c.xmov, c.size = true, 8
		c.movDest, c.movSrc, c.movImm, c.movEffects = movDest, movSrc, movImm, movEffects
		c.movByte = movDest<<4 | movSrc
		return c
	}

	f, ok, err := runCompressRules(pair(1, 2, false, isa.EffectR))
	if err != nil || !ok || f.code != 0x4012D3 || f.size != 3 {
		t.Errorf("xmov: got %06X/%d %v", f.code, f.size, err)
	}

	for name, c := range map[string]*candidate{
		"Immediate":    pair(1, 2, true, isa.EffectR),
		"Effects":      pair(1, 2, false, isa.EffectR|isa.EffectZ),
		"HighRegister": pair(16, 2, false, isa.EffectR),
	} {
		if _, _, err := runCompressRules(c); !errors.Is(err, ErrSyntax) {
			t.Errorf("[%s] expected a syntax error, got %v", name, err)
		}
	}

	c := pair(1, 2, false, isa.EffectR)
	c.src, c.imm = 100, true
	if _, ok, _ := runCompressRules(c); ok {
		t.Error("xmov with 12-bit immediate compressed")
	}
}
