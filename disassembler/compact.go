package disassembler

import (
	"fmt"

	"github.com/Urethramancer/propeller/isa"
)

// compactReg names a register of the compact forms, which only reach r0..r15.
func compactReg(n uint32) string {
	if n == isa.RegLR {
		return "lr"
	}
	return fmt.Sprintf("r%d", n&0xF)
}

// xopArgs renders an extended operation; compares always set both flags.
func xopArgs(xop, dest uint32, src string) (string, []string, []string) {
	var eff []string
	if xop == isa.XopCmps || xop == isa.XopCmpu {
		eff = []string{"wz", "wc"}
	}
	return isa.XopNames[xop&0xF], []string{compactReg(dest), src}, eff
}

// decodeCompact decodes the compact instruction at code[pc].
func decodeCompact(code []byte, pc int, opts Options) (*Instruction, bool) {
	tag := code[pc]
	size := isa.CompactLength(tag)
	if pc+size > len(code) {
		return nil, false
	}
	b := code[pc+1 : pc+size]
	in := &Instruction{Address: uint32(pc), Size: uint32(size), Target: -1}
	low := uint32(tag & 0x0F)

	switch tag & 0xF0 {
	case isa.PrefixMacro:
		return decodeMacro(code, pc, in, opts)

	case isa.PrefixRegReg:
		in.Mnemonic, in.args, in.effects = xopArgs(uint32(b[0]&0xF), low, compactReg(uint32(b[0]>>4)))
	case isa.PrefixRegImm4:
		in.Mnemonic, in.args, in.effects = xopArgs(uint32(b[0]&0xF), low, fmt.Sprintf("#%d", b[0]>>4))
	case isa.PrefixRegImm12:
		imm := uint32(b[0]) | uint32(b[1]&0xF)<<8
		src := fmt.Sprintf("#%d", imm)
		if imm == 0xFFF {
			src = "__MASK_FFFFFFFF"
		}
		in.Mnemonic, in.args, in.effects = xopArgs(uint32(b[1]>>4), low, src)

	case isa.PrefixBRW:
		rel := int16(isa.LE(b, 2))
		branch(in, low, int64(pc+size)+int64(rel), opts.Origin)
		in.Mnemonic = conditional(low, "brw")
	case isa.PrefixBRS:
		rel := int8(b[0])
		branch(in, low, int64(pc+size)+int64(rel), opts.Origin)
		in.Mnemonic = conditional(low, "brs")

	case isa.PrefixMVI:
		in.Mnemonic = "mvi"
		in.args = []string{compactReg(low), fmt.Sprintf("#0x%08x", isa.LE(b, 4))}
	case isa.PrefixMVIW:
		in.Mnemonic = "mviw"
		in.args = []string{compactReg(low), fmt.Sprintf("#%d", isa.LE(b, 2))}
	case isa.PrefixMVIB:
		in.Mnemonic = "mov"
		in.args = []string{compactReg(low), fmt.Sprintf("#%d", b[0])}
	case isa.PrefixZeroReg:
		in.Mnemonic = "mov"
		in.args = []string{compactReg(low), "#0"}

	case isa.PrefixSkip2, isa.PrefixSkip3:
		body, ok := decodeCompact(code, pc+1, opts)
		want := uint32(2)
		if tag&0xF0 == isa.PrefixSkip3 {
			want = 3
		}
		if !ok || body.Size != want {
			return nil, false
		}
		cond := ^low & 0xF
		in.Size = body.Size + 1
		in.Mnemonic = conditional(cond, body.Mnemonic)
		in.args, in.effects = body.args, body.effects
		in.Target, in.hash = body.Target, body.hash
		if body.branch != "" {
			in.branch = conditional(cond, body.branch)
		}

	case isa.PrefixLEASP:
		in.Mnemonic = "leasp"
		in.args = []string{compactReg(low), fmt.Sprintf("#%d", b[0])}

	case isa.PrefixXMovReg, isa.PrefixXMovImm:
		name, args, eff := xopArgs(uint32(b[1]&0xF), low, compactReg(uint32(b[1]>>4)))
		if tag&0xF0 == isa.PrefixXMovImm {
			args[1] = fmt.Sprintf("#%d", b[1]>>4)
		}
		in.Mnemonic = "xmov"
		in.args = []string{
			compactReg(uint32(b[0] >> 4)),
			fmt.Sprintf("%s %s %s", compactReg(uint32(b[0]&0xF)), name, args[0]),
			args[1],
		}
		in.effects = eff

	case isa.PrefixPackNative:
		w := isa.UnpackNative(isa.LE(code[pc:], 4))
		return fromNative(decodeNative(w, opts.Generation), w, code, pc, size, opts), true
	}
	return in, true
}

// decodeMacro handles the PrefixMacro sub-operations.
func decodeMacro(code []byte, pc int, in *Instruction, opts Options) (*Instruction, bool) {
	sub := code[pc] & 0x0F
	b := code[pc+1 : pc+int(in.Size)]
	in.Mnemonic = isa.MacroNames[sub]

	switch sub {
	case isa.MacroRet:
		in.Terminal = true
	case isa.MacroPushM, isa.MacroPopM, isa.MacroPopRet:
		in.args = []string{fmt.Sprintf("#0x%02x", b[0])}
		in.Terminal = sub == isa.MacroPopRet
	case isa.MacroLCall:
		addr := isa.LE(b, 2)
		if opts.Generation == isa.P2 {
			addr <<= 2
		}
		in.args = []string{fmt.Sprintf("#0x%04x", addr)}
		in.Target = int64(addr) - int64(opts.Origin)
		in.Call, in.hash = true, true
	case isa.MacroMvReg:
		in.args = []string{compactReg(uint32(b[0] >> 4)), compactReg(uint32(b[0] & 0xF))}
	case isa.MacroXMvReg:
		in.args = []string{
			compactReg(uint32(b[0] >> 4)),
			fmt.Sprintf("%s mov %s", compactReg(uint32(b[0]&0xF)), compactReg(uint32(b[1]>>4))),
			compactReg(uint32(b[1] & 0xF)),
		}
	case isa.MacroAddSP:
		n := int8(b[0])
		if n < 0 {
			in.Mnemonic = "sub"
			n = -n
		}
		in.args = []string{"sp", fmt.Sprintf("#%d", uint8(n))}
	case isa.MacroLJmp:
		addr := isa.LE(b, 4)
		in.args = []string{fmt.Sprintf("#0x%08x", addr)}
		in.Target = int64(addr) - int64(opts.Origin)
		in.Terminal, in.hash = true, true
	case isa.MacroFCache:
		in.args = []string{fmt.Sprintf("#%d", isa.LE(b, 2))}
	case isa.MacroNative:
		if pc+5 > len(code) {
			return nil, false
		}
		w := isa.LE(code[pc+1:], 4)
		return fromNative(decodeNative(w, opts.Generation), w, code, pc, 5, opts), true
	}
	return in, true
}

// conditional prefixes a mnemonic with a condition other than "always".
func conditional(cond uint32, mn string) string {
	if cond&0xF == 0xF {
		return mn
	}
	return isa.ConditionName(cond) + " " + mn
}

// branch records a relative branch; only an unconditional one ends a run.
func branch(in *Instruction, cond uint32, target int64, origin uint32) {
	in.Target = target
	in.Terminal = cond == 0xF
	in.args = []string{fmt.Sprintf("0x%x", target+int64(origin))}
}
