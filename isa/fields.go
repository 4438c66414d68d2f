package isa

// Native instructions are 32 bits:
//
//	oooo_ooZC RICC_CCdd dddd_ddds ssss_ssss
//
// o = instruction, Z/C/R = write zero/carry/result, I = immediate source,
// C = condition, d = destination register, s = source register or immediate.

// Field positions within a native word.
const (
	// 0..8: source register or 9-bit immediate
	SrcShift = 0
	SrcMask  = 0x000001FF

	// 9..17: destination register
	DstShift = 9
	DstMask  = 0x0003FE00

	// 18..21: condition code
	CondShift = 18
	CondMask  = 0x003C0000

	// 22: source is immediate
	ImmBit = 1 << 22

	// 23: write result (also "destination is immediate" for DESTIMM shapes)
	WRBit = 1 << 23

	// 24: write carry
	WCBit = 1 << 24

	// 25: write zero
	WZBit = 1 << 25

	// 23..25: the three effect bits as a group
	EffectShift = 23
	EffectMask  = 0x03800000

	// 26..31: instruction
	OpShift = 26
	OpMask  = 0xFC000000
)

// DstImmBit marks an immediate destination for the DESTIMM shapes.
const DstImmBit = WRBit

// SubtractBit turns an add into a sub; PC-relative 10-bit branches set it
// for backwards displacements.
const SubtractBit = 1 << 26

// CondAlways is the "always execute" condition, already shifted into place.
const CondAlways = 0xF << CondShift

// Effect values as seen in the 3-bit group at EffectShift.
const (
	EffectR = 1
	EffectC = 2
	EffectZ = 4
)

// Cond extracts the 4-bit condition code of a native word.
func Cond(code uint32) uint32 {
	return (code & CondMask) >> CondShift
}

// Dst extracts the destination field.
func Dst(code uint32) uint32 {
	return (code & DstMask) >> DstShift
}

// Src extracts the source field.
func Src(code uint32) uint32 {
	return code & SrcMask
}

// Effects extracts the Z/C/R group.
func Effects(code uint32) uint32 {
	return (code & EffectMask) >> EffectShift
}

// IsImmediate reports whether the I bit is set.
func IsImmediate(code uint32) bool {
	return code&ImmBit != 0
}
