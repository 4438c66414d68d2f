// Package disassembler turns Propeller machine code, native or compressed,
// back into assembly source the assembler accepts.
package disassembler

import (
	"fmt"
	"strings"

	"github.com/Urethramancer/propeller/isa"
)

// LabelType defines the context of a label.
type LabelType int

const (
	// JumpTarget is for a branch or jump.
	JumpTarget LabelType = iota
	// SubroutineEntry is for a call target.
	SubroutineEntry
)

// Options describe how the code was assembled.
type Options struct {
	Generation isa.Generation
	// Compressed code is a stream of compact instructions.
	Compressed bool
	// LMM recognises the extended-addressing idioms in native code.
	LMM bool
	// Origin is the address of the first byte.
	Origin uint32
}

// Instruction represents a single decoded instruction at a specific offset.
type Instruction struct {
	Address  uint32
	Mnemonic string
	Operands string
	Size     uint32
	// Target is the offset a branch or call goes to, or -1.
	Target   int64
	Call     bool
	Terminal bool
	IsCode   bool // reachable from the entry point

	args    []string
	effects []string
	// hash writes a labelled target as "#label".
	hash bool
	// branch replaces mnemonic and operands when the target is labelled.
	branch string
}

func (in *Instruction) operands(args []string) string {
	s := strings.Join(args, ", ")
	if len(in.effects) > 0 {
		s += " " + strings.Join(in.effects, ", ")
	}
	return s
}

// Decode decodes the instruction at the start of code.
func Decode(code []byte, opts Options) (Instruction, bool) {
	if len(code) == 0 {
		return Instruction{}, false
	}
	in, ok := decode(code, 0, opts)
	if !ok {
		return Instruction{}, false
	}
	in.Operands = in.operands(in.args)
	return *in, true
}

func decode(code []byte, pc int, opts Options) (*Instruction, bool) {
	if opts.Compressed {
		return decodeCompact(code, pc, opts)
	}
	if pc+4 > len(code) {
		return nil, false
	}
	w := isa.LE(code[pc:], 4)
	return fromNative(decodeNative(w, opts.Generation), w, code, pc, 4, opts), true
}

// fromNative turns a decoded native word of size bytes at pc into an
// instruction, folding in the kernel idioms of extended-addressing code.
func fromNative(n native, w uint32, code []byte, pc, size int, opts Options) *Instruction {
	in := &Instruction{
		Address:  uint32(pc),
		Size:     uint32(size),
		Mnemonic: n.mnemonic(),
		Target:   -1,
		args:     n.args,
		effects:  n.effects,
	}
	if n.row == nil {
		return in
	}
	always := n.cond == 0xF
	dest, src, imm := isa.Dst(w), isa.Src(w), isa.IsImmediate(w)

	if opts.LMM || opts.Compressed {
		switch {
		case (n.name == "add" || n.name == "sub") && dest == isa.RegPC && imm && len(n.effects) == 0:
			disp := int64(src)
			if n.name == "sub" {
				disp = -disp
			}
			in.Target = int64(pc+size) + disp
			in.Terminal = always
			in.branch = conditional(n.cond, "brs")
		case n.name == "mov" && dest == isa.RegPC && src == isa.RegLR && !imm && len(n.effects) == 0:
			in.Mnemonic = conditional(n.cond, "lret")
			in.args = nil
			in.Terminal = always
		case n.name == "rdlong" && src == isa.RegPC && !imm && dest <= isa.RegLR && pc+size+4 <= len(code):
			in.Mnemonic = conditional(n.cond, "ldi")
			in.args = []string{regName(opts.Generation, dest), fmt.Sprintf("#0x%x", isa.LE(code[pc+size:], 4))}
			in.Size += 4
		case n.row.Format == isa.FormatJmp:
			in.Terminal = always
		}
		return in
	}

	switch n.row.Format {
	case isa.FormatJmp:
		in.Terminal = always
		if imm {
			in.Target = cogTarget(src, opts)
			in.hash = true
		}
	case isa.FormatNoOps:
		in.Terminal = always
	case isa.FormatJmpRet:
		if imm {
			in.Target = cogTarget(src, opts)
			in.hash = true
			in.Call = n.name == "jmpret"
		}
	}
	return in
}

// cogTarget converts a cog long address to a byte offset in the code.
func cogTarget(addr uint32, opts Options) int64 {
	return int64(addr)*4 - int64(opts.Origin)
}

// Disassemble performs a multi-stage disassembly: a linear sweep decodes
// every position, control flow from offset 0 marks what is code, and the
// rest is rendered as data.
func Disassemble(code []byte, opts Options) string {
	if len(code) == 0 {
		return ""
	}
	step := 4
	if opts.Compressed {
		step = 1
	}

	// Stage 1: linear sweep.
	instructions := make(map[uint32]*Instruction)
	for pc := 0; pc < len(code); pc += step {
		if in, ok := decode(code, pc, opts); ok {
			instructions[uint32(pc)] = in
		}
	}

	// Stage 2: control flow.
	labelTargets := make(map[uint32]LabelType)
	q := newQueue(uint32(step))
	q.push(0)
	for {
		addr, ok := q.pop()
		if !ok {
			break
		}
		in, exists := instructions[addr]
		if !exists || in.IsCode {
			continue
		}
		in.IsCode = true

		if !in.Terminal {
			q.push(addr + in.Size)
		}
		if in.Target < 0 || in.Target >= int64(len(code)) {
			continue
		}
		target := uint32(in.Target)
		q.push(target)
		if in.Call {
			labelTargets[target] = SubroutineEntry
		} else if _, exists := labelTargets[target]; !exists {
			labelTargets[target] = JumpTarget
		}
	}

	// Stage 3: render.
	var out strings.Builder
	data := dataWriter{out: &out, longs: !opts.Compressed}
	pc := uint32(0)
	total := uint32(len(code))
	for pc < total {
		if in, ok := instructions[pc]; !ok || !in.IsCode {
			end := pc
			for end < total {
				if in, ok := instructions[end]; ok && in.IsCode {
					break
				}
				end++
			}
			data.write(code[pc:end], opts.Origin+pc)
			pc = end
			continue
		}

		if labelType, exists := labelTargets[pc]; exists {
			fmt.Fprintf(&out, "%s:\n", labelName(opts.Origin+pc, labelType))
		}

		in := instructions[pc]
		mn, operands := in.Mnemonic, in.operands(in.args)
		if in.Target >= 0 {
			if labelType, exists := labelTargets[uint32(in.Target)]; exists && in.Target < int64(total) {
				label := labelName(opts.Origin+uint32(in.Target), labelType)
				switch {
				case in.branch != "":
					mn, operands = in.branch, label
				case in.hash:
					operands = in.operands(replaceLast(in.args, "#"+label))
				default:
					operands = in.operands(replaceLast(in.args, label))
				}
			}
		}

		if operands != "" {
			fmt.Fprintf(&out, "    %-8s %s\n", mn, operands)
		} else {
			fmt.Fprintf(&out, "    %s\n", mn)
		}
		pc += in.Size
	}
	return out.String()
}

// replaceLast returns a copy of args with the last one, the target, replaced.
func replaceLast(args []string, s string) []string {
	out := append([]string(nil), args...)
	if len(out) == 0 {
		return []string{s}
	}
	out[len(out)-1] = s
	return out
}
