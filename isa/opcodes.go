package isa

import "strings"

// Generation selects the hardware generation.
type Generation int

const (
	// P1 is the first generation.
	P1 Generation = iota
	// P2 is the second generation.
	P2
)

func (g Generation) String() string {
	if g == P2 {
		return "p2"
	}
	return "p1"
}

// Hardware is the applicability bitmask of a table row.
type Hardware uint8

const (
	HWP1    Hardware = 1 << iota // first generation, always
	HWP1LMM                      // first generation, extended addressing only
	HWP2                         // second generation, always
	HWP2LMM                      // second generation, extended addressing only
)

// Both generations, always available.
const HWAll = HWP1 | HWP2

// Extended-addressing pseudo instructions on either generation.
const HWLMM = HWP1LMM | HWP2LMM

// Available reports whether a row applies to the given generation and mode.
func (h Hardware) Available(g Generation, lmm bool) bool {
	if g == P2 {
		return h&HWP2 != 0 || (lmm && h&HWP2LMM != 0)
	}
	return h&HWP1 != 0 || (lmm && h&HWP1LMM != 0)
}

// Flags record what a row accepts: a condition prefix, which effects, and
// the default state of the write-result bit.
type Flags uint16

const (
	FlagCC Flags = 1 << iota
	FlagWZ
	FlagWC
	FlagWR
	FlagNR
	FlagR    // the write-result bit has a per-row default
	FlagRDef // ... and that default is "write"
)

const (
	flagsEff = FlagWZ | FlagWC | FlagWR | FlagNR
	// Ordinary ALU row that writes its result.
	flagsW = FlagCC | flagsEff | FlagR | FlagRDef
	// Ordinary ALU row that only sets flags by default.
	flagsNR = FlagCC | flagsEff | FlagR
)

// Compress is the compressibility class of a row.
type Compress uint8

const (
	CompressNone Compress = iota
	CompressXOP
	CompressMOV
)

// Format is the operand-shape tag driving the encoder.
type Format uint8

const (
	FormatIgnore Format = iota
	FormatNoOps
	FormatDestOnly
	FormatSourceOnly
	FormatTwoOps
	FormatJmp
	FormatJmpRet
	FormatMovA
	FormatCall
	FormatDestImm
	FormatDestImmSrcImm
	FormatSetIndA
	FormatSetIndB
	FormatSetIndS
	FormatPtrsOps
	FormatPtrdOps
	FormatRepD
	FormatRepS
	FormatJmpTask
	FormatBit
	FormatBRS
	FormatBRW
	FormatBRL
	FormatLDI
	FormatXMMIO
	FormatFCache
	FormatMacro0
	FormatMacro8
	FormatLRet
	FormatLEASP
	FormatXMov
	FormatLCall
	FormatMVI
)

// Opcode is one row of the format table.
type Opcode struct {
	Name     string
	Code     uint32
	Format   Format
	Hardware Hardware
	Compress Compress
	Copc     uint32
	Flags    Flags
}

// Base returns the row's opcode bits for a generation. Extended-addressing
// pseudo instructions are built on jmp/jmpret, which moved on the second
// generation.
func (o *Opcode) Base(g Generation) uint32 {
	if g == P2 && o.Hardware&HWP1 == 0 && o.Code&OpMask == 0x5C000000 {
		return o.Code&^OpMask | 0x1C000000
	}
	return o.Code
}

// DefaultR returns the write-result bit this row starts with.
func (o *Opcode) DefaultR() uint32 {
	if o.Flags&FlagR != 0 && o.Flags&FlagRDef != 0 {
		return WRBit
	}
	return 0
}

// JmpRetCode is jmpret with the write-result bit set and "always".
func JmpRetCode(g Generation) uint32 {
	if g == P2 {
		return 0x1C800000 | CondAlways
	}
	return 0x5C800000 | CondAlways
}

// AddCode is add with write-result, without a condition.
const AddCode = 0x80800000

// Opcodes is the format table.
var Opcodes = []Opcode{
	{"nop", 0x00000000, FormatIgnore, HWAll, CompressNone, 0, 0},

	// hub access
	{"rdbyte", 0x00000000, FormatTwoOps, HWP1, CompressXOP, XopRdB, flagsW},
	{"wrbyte", 0x00000000, FormatTwoOps, HWP1, CompressXOP, XopWrB, flagsNR},
	{"rdword", 0x04000000, FormatTwoOps, HWP1, CompressNone, 0, flagsW},
	{"wrword", 0x04000000, FormatTwoOps, HWP1, CompressNone, 0, flagsNR},
	{"rdlong", 0x08000000, FormatTwoOps, HWP1, CompressXOP, XopRdL, flagsW},
	{"wrlong", 0x08000000, FormatTwoOps, HWP1, CompressXOP, XopWrL, flagsNR},
	{"rdbyte", 0x00000000, FormatPtrsOps, HWP2, CompressXOP, XopRdB, flagsW},
	{"wrbyte", 0x00000000, FormatPtrsOps, HWP2, CompressXOP, XopWrB, flagsNR},
	{"rdword", 0x04000000, FormatPtrsOps, HWP2, CompressNone, 0, flagsW},
	{"wrword", 0x04000000, FormatPtrsOps, HWP2, CompressNone, 0, flagsNR},
	{"rdlong", 0x08000000, FormatPtrsOps, HWP2, CompressXOP, XopRdL, flagsW},
	{"wrlong", 0x08000000, FormatPtrsOps, HWP2, CompressXOP, XopWrL, flagsNR},
	{"rdquad", 0xF4000000, FormatPtrdOps, HWP2, CompressNone, 0, flagsW},
	{"wrquad", 0xF0000000, FormatPtrdOps, HWP2, CompressNone, 0, flagsNR},

	// hub operations
	{"hubop", 0x0C000000, FormatTwoOps, HWP1, CompressNone, 0, flagsNR},
	{"clkset", 0x0C400000, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"cogid", 0x0C400001, FormatDestOnly, HWP1, CompressNone, 0, flagsW},
	{"coginit", 0x0C400002, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"cogstop", 0x0C400003, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"locknew", 0x0C400004, FormatDestOnly, HWP1, CompressNone, 0, flagsW},
	{"lockret", 0x0C400005, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"lockset", 0x0C400006, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"lockclr", 0x0C400007, FormatDestOnly, HWP1, CompressNone, 0, flagsNR},
	{"cogid", 0x0C000001, FormatDestImm, HWP2, CompressNone, 0, flagsW},
	{"clkset", 0x0C000000, FormatDestImm, HWP2, CompressNone, 0, flagsNR},
	{"cogstop", 0x0C000003, FormatDestImm, HWP2, CompressNone, 0, flagsNR},
	{"lockret", 0x0C000005, FormatDestImm, HWP2, CompressNone, 0, flagsNR},
	{"lockset", 0x0C000006, FormatDestImm, HWP2, CompressNone, 0, flagsNR},
	{"lockclr", 0x0C000007, FormatDestImm, HWP2, CompressNone, 0, flagsNR},
	{"coginit", 0x0C000002, FormatDestImmSrcImm, HWP2, CompressNone, 0, flagsNR},

	// rotates and shifts
	{"ror", 0x20000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"rol", 0x24000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"shr", 0x28000000, FormatTwoOps, HWAll, CompressXOP, XopShr, flagsW},
	{"shl", 0x2C000000, FormatTwoOps, HWAll, CompressXOP, XopShl, flagsW},
	{"rcr", 0x30000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"rcl", 0x34000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"sar", 0x38000000, FormatTwoOps, HWAll, CompressXOP, XopSar, flagsW},
	{"rev", 0x3C000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},

	// limits and field moves
	{"mins", 0x40000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"maxs", 0x44000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"min", 0x48000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"max", 0x4C000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"movs", 0x50000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"movd", 0x54000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"movi", 0x58000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},

	// jumps
	{"jmpret", 0x5C000000, FormatJmpRet, HWP1, CompressNone, 0, flagsW},
	{"jmp", 0x5C000000, FormatJmp, HWP1, CompressNone, 0, flagsNR},
	{"call", 0x5C000000, FormatCall, HWP1, CompressNone, 0, flagsW},
	{"ret", 0x5C400000, FormatNoOps, HWP1, CompressNone, 0, flagsNR},
	{"jmpret", 0x1C000000, FormatJmpRet, HWP2, CompressNone, 0, flagsW},
	{"jmp", 0x1C000000, FormatJmp, HWP2, CompressNone, 0, flagsNR},
	{"call", 0x1C000000, FormatCall, HWP2, CompressNone, 0, flagsW},
	{"ret", 0x1C400000, FormatNoOps, HWP2, CompressNone, 0, flagsNR},
	{"mova", 0x1C000000, FormatMovA, HWP2, CompressNone, 0, flagsW},

	// logic
	{"and", 0x60000000, FormatTwoOps, HWAll, CompressXOP, XopAnd, flagsW},
	{"test", 0x60000000, FormatTwoOps, HWAll, CompressNone, 0, flagsNR},
	{"andn", 0x64000000, FormatTwoOps, HWAll, CompressXOP, XopAndn, flagsW},
	{"testn", 0x64000000, FormatTwoOps, HWAll, CompressNone, 0, flagsNR},
	{"or", 0x68000000, FormatTwoOps, HWAll, CompressXOP, XopOr, flagsW},
	{"xor", 0x6C000000, FormatTwoOps, HWAll, CompressXOP, XopXor, flagsW},
	{"muxc", 0x70000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"muxnc", 0x74000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"muxz", 0x78000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"muxnz", 0x7C000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},

	// arithmetic
	{"add", 0x80000000, FormatTwoOps, HWAll, CompressXOP, XopAdd, flagsW},
	{"sub", 0x84000000, FormatTwoOps, HWAll, CompressXOP, XopSub, flagsW},
	{"cmp", 0x84000000, FormatTwoOps, HWAll, CompressXOP, XopCmpu, flagsNR},
	{"addabs", 0x88000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"subabs", 0x8C000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"sumc", 0x90000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"sumnc", 0x94000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"sumz", 0x98000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"sumnz", 0x9C000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"mov", 0xA0000000, FormatTwoOps, HWAll, CompressMOV, 0, flagsW},
	{"neg", 0xA4000000, FormatTwoOps, HWAll, CompressXOP, XopNeg, flagsW},
	{"abs", 0xA8000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"absneg", 0xAC000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"negc", 0xB0000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"negnc", 0xB4000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"negz", 0xB8000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"negnz", 0xBC000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"cmps", 0xC0000000, FormatTwoOps, HWAll, CompressXOP, XopCmps, flagsNR},
	{"cmpsx", 0xC4000000, FormatTwoOps, HWAll, CompressNone, 0, flagsNR},
	{"addx", 0xC8000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"subx", 0xCC000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"cmpx", 0xCC000000, FormatTwoOps, HWAll, CompressNone, 0, flagsNR},
	{"adds", 0xD0000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"subs", 0xD4000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"addsx", 0xD8000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"subsx", 0xDC000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"cmpsub", 0xE0000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"djnz", 0xE4000000, FormatJmpRet, HWAll, CompressNone, 0, flagsW},
	{"tjnz", 0xE8000000, FormatJmpRet, HWAll, CompressNone, 0, flagsNR},
	{"tjz", 0xEC000000, FormatJmpRet, HWAll, CompressNone, 0, flagsNR},

	// waits
	{"waitpeq", 0xF0000000, FormatTwoOps, HWP1, CompressNone, 0, flagsNR},
	{"waitpne", 0xF4000000, FormatTwoOps, HWP1, CompressNone, 0, flagsNR},
	{"waitcnt", 0xF8000000, FormatTwoOps, HWAll, CompressNone, 0, flagsW},
	{"waitvid", 0xFC000000, FormatTwoOps, HWP1, CompressNone, 0, flagsNR},

	// second generation index, repeat and task control
	{"setinda", 0xFF000000, FormatSetIndA, HWP2, CompressNone, 0, 0},
	{"setindb", 0xFF400000, FormatSetIndB, HWP2, CompressNone, 0, 0},
	{"setinds", 0xFF800000, FormatSetIndS, HWP2, CompressNone, 0, 0},
	{"repd", 0xFE400000, FormatRepD, HWP2, CompressNone, 0, FlagCC},
	{"reps", 0xFC800000, FormatRepS, HWP2, CompressNone, 0, FlagCC},
	{"jmptask", 0xFE000000, FormatJmpTask, HWP2, CompressNone, 0, FlagCC},
	{"clrb", 0xF8400000, FormatBit, HWP2, CompressNone, 0, FlagCC | FlagWZ | FlagWC},
	{"setb", 0xF8C00000, FormatBit, HWP2, CompressNone, 0, FlagCC | FlagWZ | FlagWC},
	{"notb", 0xFC400000, FormatBit, HWP2, CompressNone, 0, FlagCC | FlagWZ | FlagWC},

	// extended addressing (LMM/CMM) pseudo instructions
	{"ldi", 0x08000000, FormatLDI, HWLMM, CompressNone, 0, FlagCC | FlagR | FlagRDef},
	{"mvi", 0x5C000000, FormatMVI, HWLMM, CompressNone, PrefixMVI, FlagCC},
	{"mviw", 0x5C000000, FormatMVI, HWLMM, CompressNone, PrefixMVIW, FlagCC},
	{"brs", 0x80000000, FormatBRS, HWLMM, CompressNone, 0, FlagCC | FlagR | FlagRDef},
	{"brw", 0x5C000000, FormatBRW, HWLMM, CompressNone, 0, FlagCC},
	{"brl", 0x5C000000, FormatBRL, HWLMM, CompressNone, 0, FlagCC},
	{"lcall", 0x5C000000, FormatLCall, HWLMM, CompressNone, 0, FlagCC},
	{"fcache", 0x5C000000, FormatFCache, HWLMM, CompressNone, 0, FlagCC},
	{"lpushm", 0xA0000000, FormatMacro8, HWLMM, CompressNone, PrefixMacro | MacroPushM, FlagCC | FlagR | FlagRDef},
	{"lpopm", 0xA0000000, FormatMacro8, HWLMM, CompressNone, PrefixMacro | MacroPopM, FlagCC | FlagR | FlagRDef},
	{"lpopret", 0xA0000000, FormatMacro8, HWLMM, CompressNone, PrefixMacro | MacroPopRet, FlagCC | FlagR | FlagRDef},
	{"lret", 0xA0000000, FormatLRet, HWLMM, CompressNone, PrefixMacro | MacroRet, FlagCC | FlagR | FlagRDef},
	{"lmul", 0x5C000000, FormatMacro0, HWLMM, CompressNone, PrefixMacro | MacroMul, FlagCC | FlagR | FlagRDef},
	{"ludiv", 0x5C000000, FormatMacro0, HWLMM, CompressNone, PrefixMacro | MacroUDiv, FlagCC | FlagR | FlagRDef},
	{"ldiv", 0x5C000000, FormatMacro0, HWLMM, CompressNone, PrefixMacro | MacroDiv, FlagCC | FlagR | FlagRDef},
	{"leasp", 0xA0000000, FormatLEASP, HWLMM, CompressNone, 0, FlagCC | FlagR | FlagRDef},
	{"xmov", 0xA0000000, FormatXMov, HWLMM, CompressNone, 0, FlagCC | FlagR | FlagRDef},
	{"xmmio", 0xA0000000, FormatXMMIO, HWLMM, CompressNone, 0, FlagCC | FlagR | FlagRDef},
}

type tableKey struct {
	g   Generation
	lmm bool
}

var opTables = func() map[tableKey]map[string]*Opcode {
	tables := make(map[tableKey]map[string]*Opcode)
	for _, g := range []Generation{P1, P2} {
		for _, lmm := range []bool{false, true} {
			m := make(map[string]*Opcode)
			for i := range Opcodes {
				op := &Opcodes[i]
				if !op.Hardware.Available(g, lmm) {
					continue
				}
				if _, dup := m[op.Name]; !dup {
					m[op.Name] = op
				}
			}
			tables[tableKey{g, lmm}] = m
		}
	}
	return tables
}()

// LookupOpcode finds the row for a mnemonic, ignoring case. Rows not
// available on the generation or outside extended-addressing mode are
// invisible.
func LookupOpcode(name string, g Generation, lmm bool) (*Opcode, bool) {
	op, ok := opTables[tableKey{g, lmm}][strings.ToLower(name)]
	return op, ok
}
