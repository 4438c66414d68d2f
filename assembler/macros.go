package assembler

import (
	"fmt"
	"strings"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

// Kernel helper routines and scratch registers the pseudo instructions
// expand into.
const (
	helperJmp    = "__LMM_JMP"
	helperCall   = "__LMM_CALL"
	helperFCache = "__LMM_FCACHE_LOAD"
	helperMVI    = "__LMM_MVI_"
	scratchTmp0  = "__TMP0"
	retSuffix    = "_ret"
)

// macroHelpers names the routine behind each single-operand or operand-less
// macro when it is not compressed.
var macroHelpers = map[string]string{
	"lpushm":  "__LMM_PUSHM",
	"lpopm":   "__LMM_POPM",
	"lpopret": "__LMM_POPRET",
	"lmul":    "__MULSI",
	"ludiv":   "__UDIVSI",
	"ldiv":    "__DIVSI",
}

// helperSrc makes the source an immediate reference to a helper routine.
func helperSrc(w *Word, op *Operand, name string) {
	w.Code |= isa.ImmBit
	op.deferTo(reloc.Src, expr.Sym(name, 0))
}

// helperDst makes the destination a reference to a helper's register.
func helperDst(op *Operand, name string) {
	op.deferTo(reloc.Dst, expr.Sym(name, 0))
}

// compact reports whether a macro may take its compressed form. Forms
// without a condition slot are only used unconditionally, so a condition is
// never dropped.
func (e *encoder) compact() bool {
	return e.mode.Compress && e.cond == 0xF
}

// condBits is the line's condition in place.
func (e *encoder) condBits() uint32 {
	return e.cond << isa.CondShift
}

// callWord is the jmpret that calls a helper, under the line's condition.
func (e *encoder) callWord() uint32 {
	return isa.JmpRetCode(e.mode.Generation)&^isa.CondMask | e.condBits()
}

// second installs a parsed value as the second word.
func (e *encoder) second(op Operand, data bool) {
	e.has2, e.data2 = true, data
	e.insn2 = Word{Fixup: op.Fixup, Err: op.Err}
	if op.Kind == OperandConstant || op.Kind == OperandRegister {
		e.insn2.Code = uint32(op.Value)
	}
}

// secondCall makes the second word a call to helper.
func (e *encoder) secondCall(helper string) {
	e.has2 = true
	e.insn2.Code = e.callWord()
	helperDst(&e.ops[2], helper+retSuffix)
	helperSrc(&e.insn2, &e.ops[3], helper)
	e.size = 8
}

// jumpWithData expands to a jump into helper followed by a data long.
func (e *encoder) jumpWithData(s, helper string, nbits uint) string {
	helperSrc(&e.insn, &e.ops[1], helper)
	var v Operand
	s = e.parseSrcN(s, &v, nbits)
	e.second(v, true)
	e.size = 8
	return s
}

// relative turns a constant branch target into an absolute fixup so the
// displacement is computed from where the branch lands.
func relative(op *Operand, k reloc.Kind) {
	if op.Err == nil && op.Fixup == nil {
		op.deferTo(k, expr.Const(op.Value))
	}
}

func (e *encoder) brs(s string) string {
	e.insn.Code |= isa.RegPC << isa.DstShift
	if !strings.HasPrefix(skipSpace(s), "#") {
		e.insn.Code |= isa.ImmBit
	}
	s = e.parseSrc(s, &e.ops[1], &e.insn, isa.FormatBRS)
	if e.mode.Compress && e.ops[1].Fixup != nil && e.ops[1].Err == nil {
		e.insn.Code = isa.PrefixBRS | e.cond
		e.relocPrefix = 1
		e.size = 2
		e.compressed = true
	}
	return s
}

func (e *encoder) brw(s string, long bool) string {
	if !e.mode.Compress {
		nbits := uint(32)
		if e.cond != 0xF {
			nbits = 23
		}
		return e.jumpWithData(s, helperJmp, nbits)
	}
	if long {
		if e.cond != 0xF {
			e.insn.Err = incompatible("conditional brl not allowed")
			return s
		}
		var v Operand
		s = e.parseSrcN(s, &v, 32)
		e.second(v, true)
		e.insn.Code = isa.PrefixMacro | isa.MacroLJmp
		e.size = 5
		e.compressed = true
		return s
	}
	s = strings.TrimPrefix(skipSpace(s), "#")
	s = e.parseSrcReloc(s, &e.ops[1], reloc.PCRel16, 16)
	relative(&e.ops[1], reloc.PCRel16)
	e.insn.Code = isa.PrefixBRW | e.cond
	e.relocPrefix = 1
	e.size = 3
	e.compressed = true
	return s
}

// ldi loads the long that follows the instruction through the program
// counter: rdlong rN, pc.
func (e *encoder) ldi(s string) string {
	s = e.parseDest(s, &e.ops[0], &e.insn)
	s = parseSeparator(s, &e.ops[2])
	if e.ops[2].Err != nil {
		return s
	}
	e.insn.Code |= isa.RegPC
	var v Operand
	s = e.parseSrcN(s, &v, 32)
	if v.Kind == OperandConstant {
		n := uint32(v.Value)
		if n&0x3C0000 != 0 && n&0x3800000 != 0 {
			v.fail(rangeError("value out of range"))
		}
	}
	e.second(v, true)
	e.size = 8
	return s
}

// xmmio expands "xmmio rdbyte,rA,rB" into a scratch load of the register
// pair and a call to the external memory helper.
func (e *encoder) xmmio(s string) string {
	s = skipSpace(s)
	n := 0
	for n < len(s) && isLetter(s[n]) {
		n++
	}
	helper := "__LMM_" + strings.ToUpper(s[:n]) + "I"
	s = s[n:]
	if n == 0 {
		e.ops[1].fail(syntaxError("Illegal operand in source"))
	}
	helperDst(&e.ops[0], scratchTmp0)
	e.insn.Code |= isa.ImmBit

	for i := 0; i < 2; i++ {
		s = parseSeparator(s, &e.ops[1])
		if e.ops[1].Err != nil {
			return s
		}
		r, rest, ok := e.parseRegSpec(s, &e.ops[1], false)
		s = rest
		if !ok || r >= isa.NumGeneral {
			e.ops[1].fail(rangeError("illegal register"))
			return s
		}
		e.insn.Code |= uint32(r) << (4 * (1 - i))
	}
	e.secondCall(helper)
	return s
}

func (e *encoder) fcache(s string) string {
	if !e.compact() {
		return e.jumpWithData(s, helperFCache, 32)
	}
	s = e.parseSrcN(s, &e.ops[1], 16)
	e.insn.Code = isa.PrefixMacro | isa.MacroFCache | e.constantOf(&e.ops[1])<<8
	e.relocPrefix = 1
	e.size = 3
	e.compressed = true
	return s
}

// macro8 handles lpushm, lpopm and lpopret: one byte of argument.
func (e *encoder) macro8(s string) string {
	if e.compact() {
		s = e.parseSrcN(s, &e.ops[1], 8)
		e.insn.Code = e.op.Copc | e.constantOf(&e.ops[1])<<8
		e.relocPrefix = 1
		e.size = 2
		e.compressed = true
		return s
	}
	helperDst(&e.ops[0], scratchTmp0)
	s = e.parseSrc(s, &e.ops[1], &e.insn, isa.FormatTwoOps)
	e.secondCall(macroHelpers[e.op.Name])
	return s
}

func (e *encoder) lret(s string) string {
	if e.compact() {
		e.insn.Code = e.op.Copc
		e.size = 1
		e.compressed = true
		return s
	}
	e.insn.Code |= isa.RegPC<<isa.DstShift | isa.RegLR
	return s
}

// macro0 handles the arithmetic helpers that take no operands.
func (e *encoder) macro0(s string) string {
	if e.compact() {
		e.insn.Code = e.op.Copc
		e.size = 1
		e.compressed = true
		return s
	}
	helper := macroHelpers[e.op.Name]
	helperDst(&e.ops[0], helper+retSuffix)
	helperSrc(&e.insn, &e.ops[1], helper)
	return s
}

// leasp computes a stack address: rN = sp + n.
func (e *encoder) leasp(s string) string {
	e.parseDest(s, &e.ops[0], &e.insn)
	s = e.parseDest(s, &e.ops[2], &e.insn2)
	s = parseSeparator(s, &e.ops[0])
	if e.ops[0].Err != nil {
		return s
	}
	dest := isa.Dst(e.insn.Code)
	if e.mode.Compress && e.ops[0].Fixup == nil && dest < isa.NumGeneral {
		s = e.parseSrcN(s, &e.ops[1], 8)
		e.insn.Code = isa.PrefixLEASP | dest | e.constantOf(&e.ops[1])<<8
		e.relocPrefix = 1
		e.size = 2
		if e.cond != 0xF {
			e.insn.Code = e.insn.Code<<8 | isa.PrefixSkip2 | ^e.cond&0xF
			e.relocPrefix++
			e.size++
		}
		e.compressed = true
		e.insn2 = Word{}
		e.ops[2] = Operand{}
		return s
	}

	s = e.parseSrc(s, &e.ops[1], &e.insn, isa.FormatTwoOps)
	if !isa.IsImmediate(e.insn.Code) {
		e.ops[1].fail(syntaxError("leasp only accepts 8 bit immediates"))
	}
	e.has2 = true
	e.insn2.Code |= isa.AddCode | e.condBits() | isa.RegSP
	e.size = 8
	return s
}

// xmov pairs a register move with a second two-operand instruction:
// "xmov rA,rB op rC,rD".
func (e *encoder) xmov(s string) string {
	s = e.parseDest(s, &e.ops[0], &e.insn)
	s = parseSeparator(s, &e.ops[0])
	if e.ops[0].Err != nil {
		e.ops[0].Err = syntaxError("Missing ',' in xmov")
		return s
	}
	s = e.parseSrc(s, &e.ops[1], &e.insn, isa.FormatTwoOps)

	name, rest := nextWord(s)
	if name == "" {
		e.insn.Err = syntaxError("No instruction found in xmov")
		return s
	}
	op, ok := isa.LookupOpcode(name, e.mode.Generation, e.mode.LMM)
	if !ok || op.Format != isa.FormatTwoOps {
		e.insn.Err = syntaxError("Bad or missing instruction in xmov: '%s'", name)
		return s
	}
	s = rest
	e.op = op
	e.has2 = true
	e.insn2.Code = op.Base(e.mode.Generation) | op.DefaultR() | e.condBits()

	s = e.parseDest(s, &e.ops[2], &e.insn2)
	s = parseSeparator(s, &e.ops[2])
	if e.ops[2].Err != nil {
		e.ops[2].Err = syntaxError("Missing ',' in xmov op")
		return s
	}
	s = e.parseSrc(s, &e.ops[3], &e.insn2, isa.FormatTwoOps)
	e.size = 8
	e.pair = true
	return s
}

func (e *encoder) lcall(s string) string {
	if !e.compact() {
		return e.jumpWithData(s, helperCall, 32)
	}
	s = e.parseSrcN(s, &e.ops[1], 16)
	target := e.constantOf(&e.ops[1])
	if e.mode.Generation == isa.P2 {
		if f := e.ops[1].Fixup; f != nil {
			f.Kind = reloc.Abs16Div4
		}
		target >>= 2
	}
	e.insn.Code = isa.PrefixMacro | isa.MacroLCall | target<<8
	e.relocPrefix = 1
	e.size = 3
	e.compressed = true
	return s
}

// mvi loads a register with a long (mvi) or a word (mviw).
func (e *encoder) mvi(s string) string {
	r, rest, ok := e.parseRegSpec(s, &e.ops[0], false)
	s = rest
	// the register shares a byte with the tag or helper name
	if !ok || r >= isa.NumGeneral {
		e.ops[0].fail(rangeError("illegal register"))
		return s
	}
	s = parseSeparator(s, &e.ops[1])
	if e.ops[1].Err != nil {
		return s
	}
	reg := uint32(r)

	if e.compact() {
		if e.op.Copc == isa.PrefixMVIW {
			s = e.parseSrcN(s, &e.ops[1], 16)
			e.insn.Code = e.op.Copc | reg | e.constantOf(&e.ops[1])<<8
			e.relocPrefix = 1
			e.size = 3
		} else {
			var v Operand
			s = e.parseSrcN(s, &v, 32)
			e.second(v, true)
			e.insn.Code = e.op.Copc | reg
			e.size = 5
		}
		e.compressed = true
		return s
	}

	helper := fmt.Sprintf("%sr%d", helperMVI, r)
	if r == isa.RegLR {
		helper = helperMVI + "lr"
	}
	return e.jumpWithData(s, helper, 32)
}

// call is "call #name": jump to name, saving the return in name_ret.
func (e *encoder) call(s string) string {
	s = skipSpace(s)
	if strings.HasPrefix(s, "#") {
		s = s[1:]
		e.insn.Code |= isa.ImmBit
	}
	target := skipSpace(s)
	v, rest, ok := e.eval(target, &e.ops[1])
	if !ok {
		return rest
	}
	switch v.Kind {
	case expr.Constant, expr.Register:
		if v.Value&^0x1FF != 0 {
			e.ops[1].fail(rangeError("9-bit value out of range"))
			return rest
		}
		e.ops[1].set(v)
		e.insn.Code |= uint32(v.Value)
	case expr.Illegal:
		e.ops[0].fail(syntaxError("Illegal operand in call"))
		return rest
	case expr.Complex:
		e.ops[1].fail(syntaxError("expression too complex"))
	default:
		e.ops[1].deferTo(reloc.Src, v)
	}

	name := target
	if i := strings.IndexAny(name, " \t,"); i >= 0 {
		name = name[:i]
	}
	ret, _, err := expr.Evaluate(name+retSuffix, e.scope)
	if err != nil || ret.Kind != expr.Symbolic || ret.Value != 0 || ret.Sub != "" {
		e.ops[0].fail(syntaxError("Improper call target"))
		return rest
	}
	e.ops[0].deferTo(reloc.Dst, ret)
	return rest
}

// constantOf is the operand's value when it is known now, else zero.
func (e *encoder) constantOf(op *Operand) uint32 {
	if op.Kind == OperandConstant || op.Kind == OperandRegister {
		return uint32(op.Value)
	}
	return 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
