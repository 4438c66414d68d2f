package isa

// Kernel register numbers. The LMM and CMM kernels keep r0..r15, sp and pc at
// the bottom of cog memory, so a register number is also its cog address.
const (
	RegLR   = 15
	RegSP   = 16
	RegPC   = 17
	RegCCR  = 18
	RegMask = 19 // __MASK_FFFFFFFF, holds all ones
)

// NumGeneral is the number of general registers r0..r15.
const NumGeneral = 16

// KernelReg is a named kernel register.
type KernelReg struct {
	Name string
	Num  int
	// CompactOnly names are registers only when compressing; elsewhere they
	// are ordinary symbols.
	CompactOnly bool
}

// KernelRegs are the named kernel registers, matched case-sensitively.
var KernelRegs = []KernelReg{
	{"lr", RegLR, false},
	{"LR", RegLR, false},
	{"sp", RegSP, false},
	{"pc", RegPC, false},
	{"ccr", RegCCR, true},
	{"__MASK_FFFFFFFF", RegMask, true},
}

// SpecialReg is a predefined cog register symbol.
type SpecialReg struct {
	Name  string
	Value uint32
}

// P1Regs are the first generation's I/O registers.
var P1Regs = []SpecialReg{
	{"par", 0x1F0},
	{"cnt", 0x1F1},
	{"ina", 0x1F2},
	{"inb", 0x1F3},
	{"outa", 0x1F4},
	{"outb", 0x1F5},
	{"dira", 0x1F6},
	{"dirb", 0x1F7},
	{"ctra", 0x1F8},
	{"ctrb", 0x1F9},
	{"frqa", 0x1FA},
	{"frqb", 0x1FB},
	{"phsa", 0x1FC},
	{"phsb", 0x1FD},
	{"vcfg", 0x1FE},
	{"vscl", 0x1FF},
}

// P2Regs are the second generation's index and port registers.
var P2Regs = []SpecialReg{
	{"inda", 0x1F6},
	{"indb", 0x1F7},
	{"pina", 0x1F8},
	{"pinb", 0x1F9},
	{"pinc", 0x1FA},
	{"pind", 0x1FB},
	{"dira", 0x1FC},
	{"dirb", 0x1FD},
	{"dirc", 0x1FE},
	{"dird", 0x1FF},
}

// Index register addresses on the second generation.
const (
	RegINDA = 0x1F6
	RegINDB = 0x1F7
)

// SpecialRegs returns the predefined registers of a generation.
func SpecialRegs(g Generation) []SpecialReg {
	if g == P2 {
		return P2Regs
	}
	return P1Regs
}

// SpecialRegName finds the name of a predefined register address, if any.
func SpecialRegName(g Generation, addr uint32) (string, bool) {
	for _, r := range SpecialRegs(g) {
		if r.Value == addr {
			return r.Name, true
		}
	}
	return "", false
}
