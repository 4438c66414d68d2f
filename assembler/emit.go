package assembler

import (
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

// length is the number of bytes the statement will occupy.
func (e *encoder) length() int {
	switch {
	case e.mode.Compress && e.compressed:
		return e.size
	case e.mode.Compress:
		n := e.size + 1
		if e.has2 && !e.data2 {
			n++
		}
		return n
	}
	return e.size
}

// emit writes the statement at offset pos of sink. Native words in
// compressed code sit behind a NATIVE escape; data longs do not.
func (e *encoder) emit(sink Sink, pos, line int) {
	buf := make([]byte, 0, e.length())
	var fixups []reloc.Fixup
	place := func(f *reloc.Fixup, at, size int) {
		if f == nil {
			return
		}
		c := *f
		c.Offset = pos + at
		c.Size = size
		c.Line = line
		fixups = append(fixups, c)
	}
	put := func(v uint32, n int) {
		var b [4]byte
		isa.PutLE(b[:], v, n)
		buf = append(buf, b[:n]...)
	}

	insn, ops := e.insn, [2]Operand{e.ops[0], e.ops[1]}
	insn2, ops2 := e.insn2, [2]Operand{e.ops[2], e.ops[3]}
	has2 := e.has2
	n := 4
	if e.compressed {
		n = e.size
	}
	if e.mode.Compress && !e.compressed {
		buf = append(buf, isa.PrefixMacro|isa.MacroNative)
	}

	// A compact tag with a trailing long: the tag bytes carry no fields,
	// the long is the second word.
	if e.compressed && n > 4 {
		put(insn.Code, n-4)
		insn, ops = insn2, ops2
		insn2, ops2 = Word{}, [2]Operand{}
		has2 = false
		n = 4
	}

	at := len(buf)
	put(insn.Code, n)
	for _, f := range []*reloc.Fixup{insn.Fixup, ops[0].Fixup, ops[1].Fixup} {
		place(f, at+e.relocPrefix, n-e.relocPrefix)
	}

	if has2 {
		if e.mode.Compress && !e.data2 {
			buf = append(buf, isa.PrefixMacro|isa.MacroNative)
		}
		at = len(buf)
		put(insn2.Code, 4)
		for _, f := range []*reloc.Fixup{insn2.Fixup, ops2[0].Fixup, ops2[1].Fixup} {
			place(f, at, 4)
		}
	}

	sink.Append(buf)
	for _, f := range fixups {
		sink.RecordFixup(f)
	}
}
