package disassembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Urethramancer/propeller/isa"
)

// minString is the shortest NUL-terminated run written as .asciz.
const minString = 4

// dataWriter renders the bytes control flow never reached. Printable runs
// become strings; native images keep whole aligned longs as .long.
type dataWriter struct {
	out   *strings.Builder
	longs bool
	count int
}

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

// textAt returns the length of the printable run at the start of data.
func textAt(data []byte) int {
	n := 0
	for n < len(data) && printable(data[n]) {
		n++
	}
	return n
}

// write renders data, which starts at addr.
func (d *dataWriter) write(data []byte, addr uint32) {
	start := 0
	for i := 0; i < len(data); {
		n := textAt(data[i:])
		directive, size := "", n
		switch {
		case n >= minString && i+n < len(data) && data[i+n] == 0:
			directive, size = ".asciz", n+1
		case n == 4 && (addr+uint32(i))%4 == 0:
			// a tag filling one long
			directive = ".ascii"
		}
		if directive == "" {
			i += max(n, 1)
			continue
		}
		d.raw(data[start:i], addr+uint32(start))
		d.count++
		label := fmt.Sprintf("string%d:", d.count)
		fmt.Fprintf(d.out, "%-8s %-7s %s\n", label, directive, strconv.Quote(string(data[i:i+n])))
		i += size
		start = i
	}
	d.raw(data[start:], addr+uint32(start))
}

// raw writes bytes that are not text.
func (d *dataWriter) raw(data []byte, addr uint32) {
	if !d.longs {
		d.bytes(data)
		return
	}
	head := min(int((4-addr%4)%4), len(data))
	d.bytes(data[:head])
	data = data[head:]
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		fmt.Fprintf(d.out, "    .long    0x%08x\n", isa.LE(data[i:], 4))
	}
	d.bytes(data[n:])
}

// bytes writes .byte lines of up to 16 values.
func (d *dataWriter) bytes(data []byte) {
	const perLine = 16
	for i := 0; i < len(data); i += perLine {
		end := min(i+perLine, len(data))
		d.out.WriteString("    .byte    ")
		for j, b := range data[i:end] {
			if j > 0 {
				d.out.WriteByte(',')
			}
			fmt.Fprintf(d.out, "0x%02x", b)
		}
		d.out.WriteByte('\n')
	}
}
