package assembler

import (
	"strings"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

// encoder holds the state of one instruction statement while it is being
// encoded. A fresh encoder is used for every statement.
type encoder struct {
	mode  Mode
	scope *lineScope
	op    *isa.Opcode

	insn  Word
	insn2 Word
	ops   [4]Operand

	// size is the byte length of the statement. Compact forms longer than
	// four bytes keep their trailing long in insn2.
	size        int
	compressed  bool
	relocPrefix int

	cond      uint32
	ccGiven   bool
	ccCleared bool

	// pair is set once xmov has parsed its second instruction into insn2.
	pair bool
	// has2 is set when insn2 is emitted; data2 when it is a data long
	// rather than an instruction.
	has2  bool
	data2 bool

	effErr error
}

func newEncoder(mode Mode, scope *lineScope) *encoder {
	return &encoder{mode: mode, scope: scope, cond: 0xF, size: 4}
}

// nextWord returns the first whitespace-delimited word of s.
func nextWord(s string) (string, string) {
	s = skipSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// lookup finds a mnemonic and explains why one that exists is unusable.
func (e *encoder) lookup(name string) (*isa.Opcode, error) {
	g := e.mode.Generation
	if op, ok := isa.LookupOpcode(name, g, e.mode.LMM); ok {
		return op, nil
	}
	if _, ok := isa.LookupOpcode(name, g, true); ok {
		return nil, incompatible("%s only supported in LMM mode", strings.ToLower(name))
	}
	other := isa.P2
	if g == isa.P2 {
		other = isa.P1
	}
	if _, ok := isa.LookupOpcode(name, other, true); ok {
		return nil, incompatible("%s is only available on %s", strings.ToLower(name), other)
	}
	return nil, syntaxError("Unknown instruction '%s'", name)
}

// encode parses one instruction statement and leaves the words, operands
// and length ready for compression and emission.
func (e *encoder) encode(text string) error {
	name, s := nextWord(text)
	if name == "" {
		return syntaxError("No instruction found")
	}
	if c, ok := isa.LookupCondition(name); ok {
		e.cond, e.ccGiven = c.Value, true
		name, s = nextWord(s)
		if name == "" {
			return syntaxError("No instruction found after condition")
		}
	}
	op, err := e.lookup(name)
	if err != nil {
		return err
	}
	e.op = op

	var code uint32
	if op.Flags&isa.FlagCC != 0 {
		code = e.condBits()
	} else if e.ccGiven {
		return incompatible("Condition code not allowed with this instruction")
	}
	e.insn.Code = code | op.Base(e.mode.Generation) | op.DefaultR()

	s = e.dispatch(s)
	s = e.effects(s)
	return e.firstError(s)
}

// dispatch drives the operand slots for the row's format.
func (e *encoder) dispatch(s string) string {
	w := &e.insn
	switch e.op.Format {
	case isa.FormatIgnore:
		e.insn.Code = 0
		if e.mode.Compress {
			e.size = 1
			e.compressed = true
		}

	case isa.FormatNoOps:

	case isa.FormatDestOnly:
		s = e.parseDest(s, &e.ops[0], w)

	case isa.FormatDestImm:
		s = e.parseDestImm(s, &e.ops[0], w, 0)

	case isa.FormatDestImmSrcImm:
		s = e.parseDestImm(s, &e.ops[0], w, 0)
		s = parseSeparator(s, &e.ops[1])
		if e.ops[1].Err == nil {
			s = e.parseSrcImm(s, &e.ops[1], w)
		}

	case isa.FormatSourceOnly, isa.FormatJmp:
		s = e.parseSrc(s, &e.ops[1], w, e.op.Format)

	case isa.FormatTwoOps, isa.FormatJmpRet, isa.FormatMovA:
		s = e.parseDest(s, &e.ops[0], w)
		s = parseSeparator(s, &e.ops[1])
		if e.ops[1].Err == nil {
			s = e.parseSrc(s, &e.ops[1], w, e.op.Format)
		}

	case isa.FormatPtrsOps:
		s = e.parseDest(s, &e.ops[0], w)
		s = parseSeparator(s, &e.ops[1])
		if e.ops[1].Err != nil {
			break
		}
		if isPointer(s) {
			s = e.parsePointer(s, &e.ops[1], w, isa.FormatPtrsOps)
		} else {
			s = e.parseSrc(s, &e.ops[1], w, isa.FormatTwoOps)
		}

	case isa.FormatPtrdOps:
		if isPointer(s) {
			s = e.parsePointer(s, &e.ops[1], w, isa.FormatPtrdOps)
		} else {
			s = e.parseDest(s, &e.ops[1], w)
		}

	case isa.FormatSetIndA:
		s = e.parseSetInd(s, &e.ops[0], w, reloc.Src)

	case isa.FormatSetIndB:
		s = e.parseSetInd(s, &e.ops[0], w, reloc.Dst)

	case isa.FormatSetIndS:
		s = e.parseSetInd(s, &e.ops[0], w, reloc.Dst)
		s = parseSeparator(s, &e.ops[1])
		if e.ops[1].Err == nil {
			s = e.parseSetInd(s, &e.ops[1], w, reloc.Src)
		}

	case isa.FormatRepD:
		s = e.repd(s)

	case isa.FormatRepS:
		s = e.reps(s)

	case isa.FormatJmpTask:
		s = e.parseDestImmImm(s, &e.ops[0], &e.ops[1], w, 0xF)

	case isa.FormatBit:
		s = e.parseDestImmImm(s, &e.ops[0], &e.ops[1], w, 0x1F)

	case isa.FormatCall:
		s = e.call(s)

	case isa.FormatLDI:
		s = e.ldi(s)
	case isa.FormatBRS:
		s = e.brs(s)
	case isa.FormatBRW:
		s = e.brw(s, false)
	case isa.FormatBRL:
		s = e.brw(s, true)
	case isa.FormatXMMIO:
		s = e.xmmio(s)
	case isa.FormatFCache:
		s = e.fcache(s)
	case isa.FormatMacro8:
		s = e.macro8(s)
	case isa.FormatLRet:
		s = e.lret(s)
	case isa.FormatMacro0:
		s = e.macro0(s)
	case isa.FormatLEASP:
		s = e.leasp(s)
	case isa.FormatXMov:
		s = e.xmov(s)
	case isa.FormatLCall:
		s = e.lcall(s)
	case isa.FormatMVI:
		s = e.mvi(s)
	}
	return s
}

// repd is "repd dest, #count": the count is stored one less.
func (e *encoder) repd(s string) string {
	s = e.parseDestImm(s, &e.ops[0], &e.insn, -1)
	s = parseSeparator(s, &e.ops[1])
	if e.ops[1].Err != nil {
		return s
	}
	if !strings.HasPrefix(skipSpace(s), "#") {
		e.ops[1].fail(syntaxError("Instruction requires immediate source"))
	}
	return e.parseSrc(s, &e.ops[1], &e.insn, isa.FormatRepD)
}

// reps is "reps #count, #range" or "reps #count, @label". Its count spills
// into the condition field, which is overwritten without checking whether
// a condition was given.
func (e *encoder) reps(s string) string {
	e.insn.Code &^= isa.CondMask

	s = skipSpace(s)
	if !strings.HasPrefix(s, "#") {
		e.ops[0].fail(syntaxError("immediate operand required for reps count"))
		return s
	}
	v, rest, ok := e.eval(skipSpace(s[1:]), &e.ops[0])
	if !ok {
		return rest
	}
	s = rest
	if v.Kind != expr.Constant {
		e.ops[0].fail(syntaxError("Repeat count must be a constant expression"))
		return s
	}
	n := v.Value - 1
	if n < 0 || n >= 1<<14 {
		e.ops[0].fail(rangeError("14-bit value out of range"))
		return s
	}
	e.ops[0].set(v)
	e.insn.Code |= uint32(n&0x1FFF)<<isa.DstShift | uint32(n&0x2000)<<(25-13)

	s = parseSeparator(s, &e.ops[1])
	if e.ops[1].Err != nil {
		return s
	}
	s = skipSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		return e.parseSrc(s[1:], &e.ops[1], &e.insn, isa.FormatRepD)
	case strings.HasPrefix(s, "@"):
		s = e.parseSrcReloc(s[1:], &e.ops[1], reloc.RepsRel, 6)
		relative(&e.ops[1], reloc.RepsRel)
		return s
	}
	e.ops[1].fail(syntaxError("immediate operand required for reps range"))
	return s
}

// effects consumes trailing effect mnemonics such as "wz, wc". The first
// word that is not an effect ends the list.
func (e *encoder) effects(s string) string {
	w := &e.insn
	if e.pair {
		w = &e.insn2
	}
	for {
		t := strings.TrimLeft(s, " \t,")
		end := strings.IndexAny(t, " \t,")
		if end < 0 {
			end = len(t)
		}
		if end == 0 {
			return t
		}
		eff, ok := isa.LookupEffect(t[:end])
		if !ok {
			return t
		}
		if e.op.Flags&eff.Flag == 0 {
			if e.effErr == nil {
				e.effErr = incompatible("Effect '%s' not allowed with this instruction", t[:end])
			}
		} else {
			w.Code = (w.Code | eff.OrMask) & eff.AndMask
		}
		s = t[end:]
	}
}

// firstError reports the first problem in slot order.
func (e *encoder) firstError(rest string) error {
	for _, err := range []error{e.insn.Err, e.ops[0].Err, e.ops[1].Err, e.insn2.Err, e.ops[2].Err, e.ops[3].Err, e.effErr} {
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(rest) != "" {
		return syntaxError("Too many operands")
	}
	return nil
}
