package assembler

import "github.com/Urethramancer/propeller/isa"

// compactForm is a compressed encoding of at most four bytes, least
// significant byte first.
type compactForm struct {
	code uint32
	size int
}

type verdict int

const (
	// notApplicable passes the candidate to the next rule.
	notApplicable verdict = iota
	// encoded means the rule produced the compact form.
	encoded
	// refused keeps the native form.
	refused
)

// candidate is an instruction as the compression rules see it. For xmov
// the fields describe the second instruction and the move rides along in
// movByte.
type candidate struct {
	class   isa.Compress
	xop     uint32
	dest    uint32
	src     uint32
	imm     bool
	effects uint32
	cond    uint32
	size    int

	xmov       bool
	movByte    uint32
	movDest    uint32
	movSrc     uint32
	movImm     bool
	movEffects uint32

	pending  bool
	hardware bool
}

type compressRule struct {
	name string
	try  func(c *candidate) (compactForm, verdict, error)
}

// compressRules run in order; the first rule that encodes or refuses wins.
var compressRules = []compressRule{
	{"conditional pair", ruleConditionalPair},
	{"pending fixup", rulePendingFixup},
	{"hardware operand", ruleHardwareOperand},
	{"xmov pair", ruleXMovPair},
	{"stack adjust", ruleStackAdjust},
	{"register op", ruleRegisterOp},
	{"move", ruleMove},
}

func ruleConditionalPair(c *candidate) (compactForm, verdict, error) {
	if c.size > 4 && c.cond != 0xF && !c.xmov {
		return compactForm{}, refused, nil
	}
	return compactForm{}, notApplicable, nil
}

func rulePendingFixup(c *candidate) (compactForm, verdict, error) {
	if c.pending {
		return compactForm{}, refused, nil
	}
	return compactForm{}, notApplicable, nil
}

// ruleHardwareOperand keeps pointer and index register forms native; their
// update codes live in fields the compact forms do not carry.
func ruleHardwareOperand(c *candidate) (compactForm, verdict, error) {
	if c.hardware {
		return compactForm{}, refused, nil
	}
	return compactForm{}, notApplicable, nil
}

func ruleXMovPair(c *candidate) (compactForm, verdict, error) {
	if !c.xmov {
		return compactForm{}, notApplicable, nil
	}
	switch {
	case c.movImm:
		return compactForm{}, refused, syntaxError("xmov may not have immediate argument for mov")
	case c.movEffects != isa.EffectR:
		return compactForm{}, refused, syntaxError("No effects permitted in xmov")
	case c.movDest > 15 || c.movSrc > 15:
		return compactForm{}, refused, syntaxError("Illegal register in xmov")
	}
	return compactForm{}, notApplicable, nil
}

// ruleStackAdjust covers register-class instructions whose destination is
// beyond r15. Only small immediate adds to and subtracts from sp compress.
func ruleStackAdjust(c *candidate) (compactForm, verdict, error) {
	if c.class != isa.CompressXOP || c.dest <= 15 {
		return compactForm{}, notApplicable, nil
	}
	if c.effects != isa.ExpectedEffects(c.xop) || c.xmov {
		return compactForm{}, refused, nil
	}
	if c.dest != isa.RegSP || !c.imm || c.src >= 128 {
		return compactForm{}, refused, nil
	}
	switch c.xop {
	case isa.XopAdd:
		return compactForm{isa.PrefixMacro | isa.MacroAddSP | c.src<<8, 2}, encoded, nil
	case isa.XopSub:
		return compactForm{isa.PrefixMacro | isa.MacroAddSP | (-c.src&0xFF)<<8, 2}, encoded, nil
	}
	return compactForm{}, refused, nil
}

// ruleRegisterOp encodes the register/register, register/4-bit and
// register/12-bit forms.
func ruleRegisterOp(c *candidate) (compactForm, verdict, error) {
	if c.class != isa.CompressXOP {
		return compactForm{}, notApplicable, nil
	}
	if c.effects != isa.ExpectedEffects(c.xop) {
		return compactForm{}, refused, nil
	}
	src, imm := c.src, c.imm
	if !imm && src == isa.RegMask {
		src, imm = 0xFFF, true
	}

	var tag uint32
	switch {
	case imm && src > 15:
		if c.xmov || src > 0xFFF {
			return compactForm{}, refused, nil
		}
		code := isa.PrefixRegImm12 | c.dest | (src&0xFF)<<8 | ((src>>8)&0xF|c.xop<<4)<<16
		return compactForm{code, 3}, encoded, nil
	case imm:
		tag = isa.PrefixRegImm4
		if c.xmov {
			tag = isa.PrefixXMovImm
		}
	case src > 15:
		return compactForm{}, refused, nil
	default:
		tag = isa.PrefixRegReg
		if c.xmov {
			tag = isa.PrefixXMovReg
		}
	}

	xopByte := src<<4 | c.xop
	if c.xmov {
		return compactForm{tag | c.dest | c.movByte<<8 | xopByte<<16, 3}, encoded, nil
	}
	return compactForm{tag | c.dest | xopByte<<8, 2}, encoded, nil
}

// ruleMove encodes register moves and immediate loads.
func ruleMove(c *candidate) (compactForm, verdict, error) {
	if c.class != isa.CompressMOV {
		return compactForm{}, notApplicable, nil
	}
	if c.dest > 15 || c.effects != isa.EffectR {
		return compactForm{}, refused, nil
	}
	if c.imm {
		switch {
		case c.xmov:
			return compactForm{}, refused, syntaxError("mov immediate not supported in xmov")
		case c.src == 0 && c.cond == 0xF:
			return compactForm{isa.PrefixZeroReg | c.dest, 1}, encoded, nil
		case c.src <= 0xFF:
			return compactForm{isa.PrefixMVIB | c.dest | c.src<<8, 2}, encoded, nil
		case c.src <= 0xFFFF:
			return compactForm{isa.PrefixMVIW | c.dest | c.src<<8, 3}, encoded, nil
		}
		return compactForm{}, refused, nil
	}
	if c.src > 15 {
		return compactForm{}, refused, nil
	}
	pair := c.dest<<4 | c.src
	if c.xmov {
		return compactForm{isa.PrefixMacro | isa.MacroXMvReg | c.movByte<<8 | pair<<16, 3}, encoded, nil
	}
	return compactForm{isa.PrefixMacro | isa.MacroMvReg | pair<<8, 2}, encoded, nil
}

// skipPrefix wraps a compact form in a skip tag that tests the inverse of
// cond, so the body is skipped unless cond holds.
func skipPrefix(f compactForm, cond uint32) compactForm {
	tag := uint32(isa.PrefixSkip2)
	if f.size == 3 {
		tag = isa.PrefixSkip3
	}
	return compactForm{f.code<<8 | tag | ^cond&0xF, f.size + 1}
}

// runCompressRules applies the table to a candidate.
func runCompressRules(c *candidate) (compactForm, bool, error) {
	for _, r := range compressRules {
		f, v, err := r.try(c)
		if err != nil {
			return compactForm{}, false, err
		}
		switch v {
		case encoded:
			if c.cond != 0xF {
				f = skipPrefix(f, c.cond)
			}
			return f, true, nil
		case refused:
			return compactForm{}, false, nil
		}
	}
	return compactForm{}, false, nil
}

// candidate describes the encoder's words to the compression rules.
func (e *encoder) candidate() *candidate {
	c := &candidate{
		class: e.op.Compress,
		xop:   e.op.Copc,
		cond:  e.cond,
		size:  e.size,
		xmov:  e.pair,
	}
	for _, op := range e.ops {
		if op.Fixup != nil {
			c.pending = true
		}
		if op.Kind == OperandPointer {
			c.hardware = true
		}
	}
	c.hardware = c.hardware || e.ccCleared

	w := e.insn.Code
	if e.pair {
		c.movDest, c.movSrc = isa.Dst(w), isa.Src(w)
		c.movImm = isa.IsImmediate(w)
		c.movEffects = isa.Effects(w)
		c.movByte = c.movDest<<4 | c.movSrc
		w = e.insn2.Code
	}
	c.dest, c.src = isa.Dst(w), isa.Src(w)
	c.imm = isa.IsImmediate(w)
	c.effects = isa.Effects(w)
	return c
}

// compress replaces the native encoding with a compact one when compression
// is on. Instructions without a compact form are packed when they execute
// unconditionally; anything else keeps its native word behind an escape
// byte at emission.
func (e *encoder) compress() error {
	if !e.mode.Compress || e.compressed {
		return nil
	}
	if e.op.Compress != isa.CompressNone {
		f, ok, err := runCompressRules(e.candidate())
		if err != nil {
			return err
		}
		if ok {
			e.insn = Word{Code: f.code}
			e.insn2 = Word{}
			e.ops = [4]Operand{}
			e.size = f.size
			e.relocPrefix = 0
			e.has2, e.data2 = false, false
			e.compressed = true
			return nil
		}
	}
	if e.size == 4 && !e.has2 && e.cond == 0xF && isa.Cond(e.insn.Code) == 0xF {
		e.insn.Code = isa.PackNative(e.insn.Code)
		e.relocPrefix = 1
		e.compressed = true
	}
	return nil
}
