package disassembler

import "fmt"

// labelName generates a label string based on the address and its context.
func labelName(addr uint32, labelType LabelType) string {
	prefix := "loc_"
	switch labelType {
	case SubroutineEntry:
		prefix = "sub_"
	}
	return fmt.Sprintf("%s%04X", prefix, addr)
}

// addrQueue is a simple worklist queue for offsets to decode.
type addrQueue struct {
	items []uint32
	seen  map[uint32]bool
	align uint32
}

func newQueue(align uint32) *addrQueue {
	return &addrQueue{seen: make(map[uint32]bool), align: align}
}

func (q *addrQueue) push(addr uint32) {
	addr -= addr % q.align
	if !q.seen[addr] {
		q.items = append(q.items, addr)
		q.seen[addr] = true
	}
}

func (q *addrQueue) pop() (uint32, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, true
}
