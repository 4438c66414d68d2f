package assembler

import (
	"regexp"
	"strings"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

var (
	reRegNumber = regexp.MustCompile(`^[rR]([0-9]+)`)
	rePointer   = regexp.MustCompile(`^(\+\+|--)?\s*(ptra|ptrb|inda|indb)\b`)
	reIndexReg  = regexp.MustCompile(`^(\+\+)?\s*(inda|indb)\b`)
	reUpdate    = regexp.MustCompile(`^\s*(\+\+|--)`)
)

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t")
}

// eval reads one expression with the line's scope.
func (e *encoder) eval(s string, op *Operand) (expr.Value, string, bool) {
	v, rest, err := expr.Evaluate(s, e.scope)
	if err != nil {
		op.fail(syntaxError("Error in expression: %v", err))
		return v, s, false
	}
	return v, rest, true
}

// parseSeparator consumes the comma between two operands.
func parseSeparator(s string, op *Operand) string {
	s = skipSpace(s)
	if !strings.HasPrefix(s, ",") {
		op.fail(syntaxError("Missing ','"))
		return s
	}
	return s[1:]
}

// immediate consumes a leading '#' and an optional dialect override: '@'
// for byte addresses, '&' for long addresses.
func immediate(s string, pasm bool) (string, bool, bool) {
	s = skipSpace(s)
	if !strings.HasPrefix(s, "#") {
		return s, pasm, false
	}
	s = s[1:]
	switch {
	case strings.HasPrefix(s, "@"):
		return s[1:], false, true
	case strings.HasPrefix(s, "&"):
		return s[1:], true, true
	}
	return s, pasm, true
}

// longAddressed scales a symbolic byte address given in longs.
func longAddressed(v expr.Value) expr.Value {
	if v.Kind == expr.Symbolic {
		v.Value *= 4
	}
	return v
}

// parseSrc reads a source operand, optionally immediate. The format decides
// what kind of fixup a symbolic value gets.
func (e *encoder) parseSrc(s string, op *Operand, w *Word, format isa.Format) string {
	s = skipSpace(s)
	pasm := e.mode.PASM
	// Immediate jumps take cog long addresses; other immediates take the
	// value as is. Register sources are always long addressed.
	integerReloc := false
	if strings.HasPrefix(s, "#") {
		if format == isa.FormatPtrsOps {
			op.fail(incompatible("Immediate operand not allowed here"))
			return s
		}
		s, pasm, _ = immediate(s, pasm)
		w.Code |= isa.ImmBit
		integerReloc = pasm || (format != isa.FormatJmp && format != isa.FormatJmpRet && format != isa.FormatMovA)
	} else if e.mode.Generation == isa.P2 {
		if rest, ok := e.parseIndex(s, op, w, false); ok {
			return rest
		}
	}

	v, rest, ok := e.eval(s, op)
	if !ok {
		return rest
	}
	switch v.Kind {
	case expr.Constant, expr.Register:
		n := v.Value
		if format == isa.FormatRepD {
			n--
			if n&^0x3F != 0 {
				op.fail(rangeError("6-bit constant out of range"))
				return rest
			}
		} else if n&^0x1FF != 0 {
			op.fail(rangeError("9-bit constant out of range"))
			return rest
		}
		op.set(v)
		w.Code |= uint32(n)

	case expr.Symbolic:
		kind := reloc.Src
		switch {
		case format == isa.FormatBRS:
			kind = reloc.PCRel10
			if e.mode.Compress {
				kind = reloc.PCRel8
			}
		case format == isa.FormatRepD:
			kind = reloc.RepInsCnt
		case integerReloc:
			kind = reloc.SrcImm
		}
		if pasm && (kind == reloc.Src || kind == reloc.SrcImm) {
			v = longAddressed(v)
			kind = reloc.Src
		}
		op.deferTo(kind, v)

	case expr.Complex:
		if format == isa.FormatBRS {
			op.fail(syntaxError("Source operand too complicated for relative instruction"))
		} else {
			op.fail(syntaxError("expression too complex"))
		}

	default:
		op.fail(syntaxError("Illegal operand in source"))
	}
	return rest
}

// parseSrcOrDest reads a plain register-field operand. delta is added to
// constants of one-based counts.
func (e *encoder) parseSrcOrDest(s string, op *Operand, w *Word, kind reloc.Kind, delta int64) string {
	dest := kind == reloc.Dst || kind == reloc.DstImm
	shift := uint(0)
	if dest {
		shift = isa.DstShift
	}
	v, rest, ok := e.eval(skipSpace(s), op)
	if !ok {
		return rest
	}
	switch v.Kind {
	case expr.Constant, expr.Register:
		if v.Kind == expr.Constant {
			v.Value += delta
		}
		if v.Value&^0x1FF != 0 {
			op.fail(rangeError("9-bit destination out of range"))
			return rest
		}
		op.set(v)
		w.Code |= uint32(v.Value) << shift
	case expr.Symbolic:
		op.deferTo(kind, v)
	case expr.Complex:
		op.fail(syntaxError("expression too complex"))
	default:
		if dest {
			op.fail(syntaxError("Illegal operand in destination"))
		} else {
			op.fail(syntaxError("Illegal operand in source"))
		}
	}
	return rest
}

// parseDest reads a destination register operand.
func (e *encoder) parseDest(s string, op *Operand, w *Word) string {
	if e.mode.Generation == isa.P2 {
		if rest, ok := e.parseIndex(s, op, w, true); ok {
			return rest
		}
	}
	rest := e.parseSrcOrDest(s, op, w, reloc.Dst, 0)
	if e.mode.PASM && op.Fixup != nil {
		op.Fixup.Expr = longAddressed(op.Fixup.Expr)
	}
	return rest
}

// parseDestImm reads a destination that may be immediate.
func (e *encoder) parseDestImm(s string, op *Operand, w *Word, delta int64) string {
	s = skipSpace(s)
	if strings.HasPrefix(s, "#") {
		s = s[1:]
		w.Code |= isa.DstImmBit
	} else {
		delta = 0
	}
	return e.parseSrcOrDest(s, op, w, reloc.Dst, delta)
}

// parseSrcImm reads a source that may be immediate.
func (e *encoder) parseSrcImm(s string, op *Operand, w *Word) string {
	s = skipSpace(s)
	if strings.HasPrefix(s, "#") {
		s = s[1:]
		w.Code |= isa.ImmBit
	}
	return e.parseSrcOrDest(s, op, w, reloc.Src, 0)
}

// parseDestImmImm reads "dest, #n" where n is a small constant merged into
// the source field.
func (e *encoder) parseDestImmImm(s string, op1, op2 *Operand, w *Word, mask int64) string {
	s = e.parseDestImm(s, op1, w, 0)
	s = parseSeparator(s, op2)
	if op2.Err != nil {
		return s
	}
	s = skipSpace(s)
	if !strings.HasPrefix(s, "#") {
		op2.fail(syntaxError("immediate operand required"))
		return s
	}
	v, rest, ok := e.eval(skipSpace(s[1:]), op2)
	if !ok {
		return rest
	}
	if v.Kind != expr.Constant {
		op2.fail(syntaxError("Must be a constant expression"))
		return rest
	}
	if v.Value < 0 || v.Value > mask {
		op2.fail(rangeError("Second operand value out of range"))
		return rest
	}
	op2.set(v)
	w.Code |= uint32(v.Value & mask)
	return rest
}

// parseSetInd reads one operand of the setind family: "#addr" or "addr"
// sets the register, "++n" and "--n" step it.
func (e *encoder) parseSetInd(s string, op *Operand, w *Word, kind reloc.Kind) string {
	dest := kind == reloc.Dst
	shift, stepBit := uint(0), uint32(1)<<19
	if dest {
		shift, stepBit = isa.DstShift, 1<<21
	}
	inc, dec, fixup := false, false, false
	mask := int64(0x1FF)

	s = skipSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		s, fixup = s[1:], true
	case strings.HasPrefix(s, "++"):
		s, inc, mask = s[2:], true, 0xFF
	case strings.HasPrefix(s, "--"):
		s, dec, mask = s[2:], true, 0xFF
	}

	v, rest, ok := e.eval(skipSpace(s), op)
	if !ok {
		return rest
	}
	switch v.Kind {
	case expr.Constant:
		if v.Value&^mask != 0 {
			op.fail(rangeError("9-bit value out of range"))
			return rest
		}
		n := v.Value
		if inc || dec {
			if dec {
				n = 512 - n
			}
			w.Code |= stepBit
		}
		op.set(expr.Const(n))
		w.Code |= uint32(n) << shift
	case expr.Register:
		if inc || dec {
			op.fail(syntaxError("Must be a constant expression"))
			return rest
		}
		if v.Value&^mask != 0 {
			op.fail(rangeError("9-bit value out of range"))
			return rest
		}
		op.set(v)
		w.Code |= uint32(v.Value) << shift
	case expr.Symbolic:
		if inc || dec {
			op.fail(syntaxError("Must be a constant expression"))
			return rest
		}
		if e.mode.PASM && fixup {
			v = longAddressed(v)
		}
		op.deferTo(kind, v)
	case expr.Complex:
		op.fail(syntaxError("expression too complex"))
	default:
		if dest {
			op.fail(syntaxError("Illegal operand in destination"))
		} else {
			op.fail(syntaxError("Illegal operand in source"))
		}
	}
	return rest
}

// parseSrcReloc reads a value for a field of nbits. Constants are range
// checked and kept on the operand; anything symbolic gets kind.
func (e *encoder) parseSrcReloc(s string, op *Operand, kind reloc.Kind, nbits uint) string {
	v, rest, ok := e.eval(skipSpace(s), op)
	if !ok {
		return rest
	}
	switch v.Kind {
	case expr.Constant, expr.Register:
		if nbits < 32 && v.Value&^(1<<nbits-1) != 0 {
			op.fail(rangeError("value out of range"))
			return rest
		}
		op.set(v)
	case expr.Symbolic:
		op.deferTo(kind, v)
	case expr.Complex:
		op.fail(syntaxError("expression too complex"))
	default:
		op.fail(syntaxError("Illegal operand in source"))
	}
	return rest
}

// parseSrcN reads "#value" for an nbits-wide data field.
func (e *encoder) parseSrcN(s string, op *Operand, nbits uint) string {
	kind := reloc.Abs23
	switch nbits {
	case 32:
		kind = reloc.Abs32
	case 16:
		kind = reloc.Abs16
	case 8:
		kind = reloc.Abs8
	}
	s = skipSpace(s)
	if !strings.HasPrefix(s, "#") {
		op.fail(syntaxError("immediate operand required"))
		return s
	}
	return e.parseSrcReloc(s[1:], op, kind, nbits)
}

// parseRegSpec reads a kernel register name or rN. ok is false if the text
// is not a register; with strict set that is also an error on op.
func (e *encoder) parseRegSpec(s string, op *Operand, strict bool) (int, string, bool) {
	s = skipSpace(s)
	for _, r := range isa.KernelRegs {
		rest, ok := matchRegName(s, r.Name)
		if !ok {
			continue
		}
		if r.Num > isa.RegPC && !e.mode.Compress {
			if strict {
				op.fail(syntaxError("bad register"))
			}
			return 0, s, false
		}
		return r.Num, rest, true
	}
	m := reRegNumber.FindStringSubmatch(s)
	if m == nil {
		if strict {
			op.fail(syntaxError("expected register number"))
		}
		return 0, s, false
	}
	rest := s[len(m[0]):]
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
		if n > 99 {
			break
		}
	}
	if n >= isa.NumGeneral {
		if strict {
			op.fail(rangeError("illegal register number"))
		}
		return 0, rest, false
	}
	return n, rest, true
}

// matchRegName matches name at the start of s when it is not followed by
// another name character.
func matchRegName(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name) {
		return s, false
	}
	rest := s[len(name):]
	if rest != "" {
		c := rest[0]
		if c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return s, false
		}
	}
	return rest, true
}

// isPointer reports whether s starts a pointer operand.
func isPointer(s string) bool {
	s = skipSpace(s)
	if strings.HasPrefix(s, "++") || strings.HasPrefix(s, "--") {
		return true
	}
	return rePointer.MatchString(s)
}

// updateOp reads an optional "++" or "--".
func updateOp(s string) (string, int) {
	m := reUpdate.FindStringSubmatch(s)
	if m == nil {
		return s, 0
	}
	rest := s[len(m[0]):]
	if m[1] == "++" {
		return rest, 1
	}
	return rest, -1
}

// indexUpdate writes an inda/indb update code. The codes live in the
// condition field, so the default condition is cleared once per line and
// an explicit condition is refused.
func (e *encoder) indexUpdate(op *Operand, w *Word, code uint32, dest bool) bool {
	if e.ccGiven {
		op.fail(syntaxError("Condition can not be used with inda or indb"))
		return false
	}
	if !e.ccCleared {
		w.Code &^= isa.CondMask
		e.ccCleared = true
	}
	shift := uint(18)
	if dest {
		shift = 20
	}
	w.Code |= code << shift
	return true
}

// parsePointer reads a hub pointer operand: [++|--]ptra|ptrb[++|--][[n]],
// or an index register with its update.
func (e *encoder) parsePointer(s string, op *Operand, w *Word, format isa.Format) string {
	s = skipSpace(s)
	m := rePointer.FindStringSubmatch(s)
	if m == nil {
		op.fail(syntaxError("Can only use ++ or -- with ptra, ptrb, inda, or indb"))
		return s
	}
	s = s[len(m[0]):]
	prefix, ndx := 0, int64(0)
	switch m[1] {
	case "++":
		prefix, ndx = 1, 1
	case "--":
		prefix, ndx = -1, -1
	}
	s, suffix := updateOp(s)
	if suffix != 0 {
		ndx = int64(suffix)
	}
	if prefix != 0 && suffix != 0 {
		op.fail(syntaxError("Can't use both prefix and postfix update"))
		return s
	}

	if m[2] == "inda" || m[2] == "indb" {
		reg := uint32(isa.RegINDA)
		if m[2] == "indb" {
			reg = isa.RegINDB
		}
		var code uint32
		switch {
		case prefix < 0:
			op.fail(syntaxError("Can't use prefix -- with inda or indb"))
			return s
		case prefix > 0:
			code = 3
		case suffix > 0:
			code = 1
		case suffix < 0:
			code = 2
		}
		dest := format == isa.FormatPtrdOps
		if !e.indexUpdate(op, w, code, dest) {
			return s
		}
		op.Kind, op.Value = OperandRegister, int64(reg)
		if dest {
			w.Code |= reg << isa.DstShift
		} else {
			w.Code |= reg
		}
		return s
	}

	var field uint32
	if m[2] == "ptrb" {
		field |= 0x100
	}
	switch {
	case prefix != 0:
		field |= 0x080
	case suffix != 0:
		field |= 0x0C0
	}

	s = skipSpace(s)
	if strings.HasPrefix(s, "[") {
		v, rest, ok := e.eval(skipSpace(s[1:]), op)
		if !ok {
			return rest
		}
		if v.Kind != expr.Constant {
			op.fail(syntaxError("Index must be a constant expression"))
			return rest
		}
		if ndx < 0 {
			ndx = -v.Value
		} else {
			ndx = v.Value
		}
		s = skipSpace(rest)
		if !strings.HasPrefix(s, "]") {
			op.fail(syntaxError("Missing right bracket"))
			return s
		}
		s = s[1:]
	}
	if ndx < -32 || ndx > 31 {
		op.fail(rangeError("6-bit value out of range"))
		return s
	}
	field |= uint32(ndx) & 0x3F

	op.Kind, op.Value = OperandPointer, int64(field)
	if format == isa.FormatPtrdOps {
		w.Code |= 0x00C00000 | field<<isa.DstShift
	} else {
		w.Code |= 0x00400000 | field
	}
	return s
}

// parseIndex reads inda/indb as a plain operand with an optional update.
// ok is false when s does not name an index register.
func (e *encoder) parseIndex(s string, op *Operand, w *Word, dest bool) (string, bool) {
	s = skipSpace(s)
	m := reIndexReg.FindStringSubmatch(s)
	if m == nil {
		if strings.HasPrefix(s, "++") {
			op.fail(syntaxError("Can only use ++ with inda or indb"))
			return s, true
		}
		return s, false
	}
	reg := uint32(isa.RegINDA)
	if m[2] == "indb" {
		reg = isa.RegINDB
	}
	rest := s[len(m[0]):]
	if e.ccGiven {
		op.fail(syntaxError("Condition can not be used with inda or indb"))
		return rest, true
	}
	rest, suffix := updateOp(rest)
	prefix := m[1] != ""
	if prefix && suffix != 0 {
		op.fail(syntaxError("Can't use both prefix and postfix update"))
		return rest, true
	}
	var code uint32
	switch {
	case prefix:
		code = 3
	case suffix > 0:
		code = 1
	case suffix < 0:
		code = 2
	}
	if !e.indexUpdate(op, w, code, dest) {
		return rest, true
	}
	op.Kind, op.Value = OperandRegister, int64(reg)
	if dest {
		w.Code |= reg << isa.DstShift
	} else {
		w.Code |= reg
	}
	return rest, true
}
