package disassembler

import (
	"fmt"

	"github.com/Urethramancer/propeller/isa"
)

// decodeTable finds the row for a native word. Rows whose operand fields
// are partly fixed are tried first, under their own masks; the rest are
// keyed by the six instruction bits.
type decodeTable struct {
	fixed []fixedRow
	plain map[uint32][]*isa.Opcode
}

type fixedRow struct {
	mask uint32
	row  *isa.Opcode
}

var decodeTables = map[isa.Generation]*decodeTable{
	isa.P1: buildTable(isa.P1),
	isa.P2: buildTable(isa.P2),
}

func buildTable(g isa.Generation) *decodeTable {
	t := &decodeTable{plain: make(map[uint32][]*isa.Opcode)}
	for i := range isa.Opcodes {
		row := &isa.Opcodes[i]
		if !row.Hardware.Available(g, false) {
			continue
		}
		switch row.Format {
		case isa.FormatIgnore, isa.FormatCall:
		case isa.FormatTwoOps, isa.FormatJmp, isa.FormatJmpRet, isa.FormatMovA,
			isa.FormatPtrsOps, isa.FormatPtrdOps:
			op := row.Code >> isa.OpShift
			t.plain[op] = append(t.plain[op], row)
		default:
			t.fixed = append(t.fixed, fixedRow{fixedMask(row.Format), row})
		}
	}
	return t
}

// fixedMask is the set of bits that identify a row of format f.
func fixedMask(f isa.Format) uint32 {
	switch f {
	case isa.FormatNoOps:
		return isa.OpMask | isa.WRBit | isa.ImmBit | isa.DstMask | isa.SrcMask
	case isa.FormatSetIndA, isa.FormatSetIndB, isa.FormatSetIndS:
		return isa.OpMask | isa.WZBit | isa.WCBit | isa.WRBit | isa.ImmBit
	case isa.FormatRepD, isa.FormatJmpTask:
		return isa.OpMask | isa.WZBit | isa.WCBit | isa.ImmBit
	case isa.FormatRepS:
		return isa.OpMask | isa.ImmBit
	case isa.FormatBit:
		return isa.OpMask | isa.WRBit | isa.ImmBit
	}
	// hub operations are selected by the source field
	return isa.OpMask | isa.ImmBit | isa.SrcMask
}

func (t *decodeTable) lookup(w uint32) *isa.Opcode {
	for _, f := range t.fixed {
		if w&f.mask == f.row.Code&f.mask {
			return f.row
		}
	}
	rows := t.plain[w>>isa.OpShift]
	if len(rows) == 0 {
		return nil
	}
	// Rows sharing an opcode differ only in whether they write by default.
	wr := w&isa.WRBit != 0
	for _, r := range rows {
		if (r.DefaultR() != 0) == wr {
			return r
		}
	}
	return rows[0]
}

// native is one decoded native word.
type native struct {
	row     *isa.Opcode
	cond    uint32
	name    string
	args    []string
	effects []string
}

func (n native) mnemonic() string {
	if n.cond == 0xF {
		return n.name
	}
	return isa.ConditionName(n.cond) + " " + n.name
}

// decodeNative names a native word for generation g. Words that match no
// row come back as .long data.
func decodeNative(w uint32, g isa.Generation) native {
	n := native{cond: 0xF}
	if w == 0 {
		n.name = "nop"
		return n
	}
	row := decodeTables[g].lookup(w)
	if row == nil {
		n.name = ".long"
		n.args = []string{fmt.Sprintf("0x%08x", w)}
		return n
	}
	n.row, n.name = row, row.Name

	dest, src := isa.Dst(w), isa.Src(w)
	imm := isa.IsImmediate(w)
	destImm := w&isa.DstImmBit != 0
	if row.Flags&isa.FlagCC != 0 {
		n.cond = isa.Cond(w)
	}
	writes := row.Flags&isa.FlagR != 0
	dst := regName(g, dest)
	srcText := immOrReg(g, src, imm)

	// Index registers keep their update codes in the condition field.
	if g == isa.P2 && row.Flags&isa.FlagCC != 0 {
		srcInd := !imm && isIndex(src)
		dstInd := isIndex(dest)
		if srcInd || dstInd {
			n.cond = 0xF
			if srcInd {
				srcText = indexName(src, isa.Cond(w)&3)
			}
			if dstInd {
				dst = indexName(dest, isa.Cond(w)>>2)
			}
		}
	}

	switch row.Format {
	case isa.FormatNoOps:
	case isa.FormatJmp:
		n.args = []string{srcText}
	case isa.FormatDestOnly:
		n.args = []string{dst}
	case isa.FormatDestImm:
		n.args = []string{destImmediate(g, dest, destImm)}
		writes = false
	case isa.FormatDestImmSrcImm:
		n.args = []string{destImmediate(g, dest, destImm), srcText}
		writes = false
	case isa.FormatSetIndA:
		n.args = []string{setIndOperand(src, w&(1<<19) != 0)}
	case isa.FormatSetIndB:
		n.args = []string{setIndOperand(dest, w&(1<<21) != 0)}
	case isa.FormatSetIndS:
		n.args = []string{setIndOperand(dest, w&(1<<21) != 0), setIndOperand(src, w&(1<<19) != 0)}
	case isa.FormatRepD:
		d := dst
		if destImm {
			d = fmt.Sprintf("#%d", dest+1)
		}
		n.args = []string{d, srcText}
		writes = false
	case isa.FormatRepS:
		count := dest | (w&isa.WZBit)>>12
		n.args = []string{fmt.Sprintf("#%d", count+1), fmt.Sprintf("#%d", src)}
		n.cond = 0xF
		return n
	case isa.FormatJmpTask, isa.FormatBit:
		n.args = []string{destImmediate(g, dest, destImm), fmt.Sprintf("#%d", src)}
		writes = false
	case isa.FormatPtrsOps:
		if imm {
			srcText = pointerName(src)
		}
		n.args = []string{dst, srcText}
	case isa.FormatPtrdOps:
		if imm && destImm {
			dst = pointerName(dest)
			srcText = regName(g, src)
			writes = false
		}
		n.args = []string{dst, srcText}
	default:
		n.args = []string{dst, srcText}
	}

	if w&isa.WZBit != 0 && row.Flags&isa.FlagWZ != 0 {
		n.effects = append(n.effects, "wz")
	}
	if w&isa.WCBit != 0 && row.Flags&isa.FlagWC != 0 {
		n.effects = append(n.effects, "wc")
	}
	if writes {
		switch {
		case destImm && row.DefaultR() == 0:
			n.effects = append(n.effects, "wr")
		case !destImm && row.DefaultR() != 0:
			n.effects = append(n.effects, "nr")
		}
	}
	return n
}

// regName names a cog register the way the kernels do.
func regName(g isa.Generation, n uint32) string {
	switch {
	case n < isa.RegLR:
		return fmt.Sprintf("r%d", n)
	case n == isa.RegLR:
		return "lr"
	case n == isa.RegSP:
		return "sp"
	case n == isa.RegPC:
		return "pc"
	}
	if name, ok := isa.SpecialRegName(g, n); ok {
		return name
	}
	return fmt.Sprintf("0x%x", n)
}

func immOrReg(g isa.Generation, n uint32, imm bool) string {
	if imm {
		return fmt.Sprintf("#%d", n)
	}
	return regName(g, n)
}

func destImmediate(g isa.Generation, n uint32, imm bool) string {
	if imm {
		return fmt.Sprintf("#%d", n)
	}
	return regName(g, n)
}

func isIndex(n uint32) bool {
	return n == isa.RegINDA || n == isa.RegINDB
}

// indexName renders an index register with its update code.
func indexName(n, code uint32) string {
	name := "inda"
	if n == isa.RegINDB {
		name = "indb"
	}
	switch code {
	case 1:
		return name + "++"
	case 2:
		return name + "--"
	case 3:
		return "++" + name
	}
	return name
}

// pointerName renders a hub pointer field: ptra or ptrb, an optional pre
// or post update and a signed 6-bit index.
func pointerName(f uint32) string {
	name := "ptra"
	if f&0x100 != 0 {
		name = "ptrb"
	}
	idx := int(f & 0x3F)
	if idx >= 32 {
		idx -= 64
	}
	var pre, post string
	switch f & 0xC0 {
	case 0x80:
		pre = "++"
		if idx < 0 {
			pre, idx = "--", -idx
		}
	case 0xC0:
		post = "++"
		if idx < 0 {
			post, idx = "--", -idx
		}
	}
	if idx == 0 || (idx == 1 && (pre != "" || post != "")) {
		return pre + name + post
	}
	return fmt.Sprintf("%s%s%s[%d]", pre, name, post, idx)
}

func setIndOperand(n uint32, step bool) string {
	if !step {
		return fmt.Sprintf("#%d", n)
	}
	if n >= 256 {
		return fmt.Sprintf("--%d", 512-n)
	}
	return fmt.Sprintf("++%d", n)
}
