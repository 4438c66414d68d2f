package isa

// OtherCompressed marks a symbol as living in compressed code, in the
// st_other byte of an ELF-style symbol table.
const OtherCompressed = 0x80

var (
	breakP1  = []byte{0x14, 0x00, 0x7C, 0x5C}
	breakP2  = []byte{0x14, 0x00, 0x7C, 0x1C}
	breakCMM = []byte{PrefixMacro | MacroBreak}
)

// Breakpoint returns the bytes a debugger writes over an instruction.
// Compressed code takes the single-byte break macro.
func Breakpoint(compressed bool, g Generation) []byte {
	var b []byte
	switch {
	case compressed:
		b = breakCMM
	case g == P2:
		b = breakP2
	default:
		b = breakP1
	}
	return append([]byte(nil), b...)
}
