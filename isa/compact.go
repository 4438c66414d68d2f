package isa

// Compact (CMM) instructions start with a tag byte. The high nibble selects
// the form; the low nibble is usually a register or a sub-opcode.
const (
	PrefixMacro      = 0x00
	PrefixRegReg     = 0x10
	PrefixRegImm4    = 0x20
	PrefixRegImm12   = 0x30
	PrefixBRW        = 0x40
	PrefixBRS        = 0x50
	PrefixMVI        = 0x60
	PrefixMVIW       = 0x70
	PrefixMVIB       = 0x80
	PrefixZeroReg    = 0x90
	PrefixSkip2      = 0xA0
	PrefixSkip3      = 0xB0
	PrefixLEASP      = 0xC0
	PrefixXMovReg    = 0xD0
	PrefixXMovImm    = 0xE0
	PrefixPackNative = 0xF0
)

// Sub-opcodes of PrefixMacro.
const (
	MacroNOP    = 0x00
	MacroBreak  = 0x01
	MacroRet    = 0x02
	MacroPushM  = 0x03
	MacroPopM   = 0x04
	MacroPopRet = 0x05
	MacroLCall  = 0x06
	MacroMul    = 0x07
	MacroUDiv   = 0x08
	MacroDiv    = 0x09
	MacroMvReg  = 0x0A
	MacroXMvReg = 0x0B
	MacroAddSP  = 0x0C
	MacroLJmp   = 0x0D
	MacroFCache = 0x0E
	MacroNative = 0x0F
)

// Extended operation codes carried by the register/immediate forms.
const (
	XopAdd  = 0
	XopSub  = 1
	XopCmps = 2
	XopCmpu = 3
	XopAnd  = 4
	XopAndn = 5
	XopNeg  = 6
	XopOr   = 7
	XopXor  = 8
	XopShl  = 9
	XopShr  = 10
	XopSar  = 11
	XopRdB  = 12
	XopRdL  = 13
	XopWrB  = 14
	XopWrL  = 15
)

// XopNames maps an extended operation code back to its native mnemonic.
var XopNames = [16]string{
	"add", "sub", "cmps", "cmp", "and", "andn", "neg", "or",
	"xor", "shl", "shr", "sar", "rdbyte", "rdlong", "wrbyte", "wrlong",
}

// MacroNames maps a PrefixMacro sub-opcode to the mnemonic it stands for.
var MacroNames = [16]string{
	"nop", "break", "lret", "lpushm", "lpopm", "lpopret", "lcall", "lmul",
	"ludiv", "ldiv", "mov", "xmov", "add", "brl", "fcache", "native",
}

// ExpectedEffects is the effect group a register-class instruction must
// carry to be compressible: compares only set flags, writes only store.
func ExpectedEffects(xop uint32) uint32 {
	switch xop {
	case XopCmpu, XopCmps:
		return EffectZ | EffectC
	case XopWrB, XopWrL:
		return 0
	default:
		return EffectR
	}
}

// PackNative repacks an "always" native word into the 4-byte compact form:
// the tag carries ZCRI, the 24-bit payload is the low 18 bits with the
// 6 instruction bits above them.
func PackNative(code uint32) uint32 {
	bottom := code & 0x3FFFF
	top := (code >> OpShift) & 0x3F
	zcri := (code >> 22) & 0xF

	bottom |= top << 18
	return PrefixPackNative | zcri | bottom<<8
}

// UnpackNative is the inverse of PackNative; the condition comes back as
// "always".
func UnpackNative(packed uint32) uint32 {
	zcri := packed & 0xF
	payload := packed >> 8
	bottom := payload & 0x3FFFF
	top := (payload >> 18) & 0x3F
	return top<<OpShift | zcri<<22 | CondAlways | bottom
}

// CompactLength returns how many bytes a compact instruction starting with
// tag occupies, not counting any native word that follows a NATIVE escape.
func CompactLength(tag byte) int {
	switch tag & 0xF0 {
	case PrefixMacro:
		switch tag & 0x0F {
		case MacroPushM, MacroPopM, MacroPopRet, MacroMvReg, MacroAddSP:
			return 2
		case MacroXMvReg, MacroLCall, MacroFCache:
			return 3
		case MacroLJmp:
			return 5
		default:
			return 1
		}
	case PrefixRegReg, PrefixRegImm4, PrefixBRS, PrefixMVIB, PrefixLEASP:
		return 2
	case PrefixRegImm12, PrefixBRW, PrefixMVIW, PrefixXMovReg, PrefixXMovImm:
		return 3
	case PrefixMVI:
		return 5
	case PrefixZeroReg, PrefixSkip2, PrefixSkip3:
		return 1
	case PrefixPackNative:
		return 4
	}
	return 1
}
