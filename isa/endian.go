package isa

import "encoding/binary"

// LongsToBytes converts native words to little-endian bytes.
func LongsToBytes(longs []uint32) []byte {
	out := make([]byte, len(longs)*4)
	for i, l := range longs {
		binary.LittleEndian.PutUint32(out[i*4:], l)
	}
	return out
}

// BytesToLongs interprets bytes as little-endian words.
// A short tail is padded with zeroes.
func BytesToLongs(b []byte) []uint32 {
	if r := len(b) % 4; r != 0 {
		b = append(b[:len(b):len(b)], make([]byte, 4-r)...)
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// PutLE stores the low n bytes of v at b, least significant first.
func PutLE(b []byte, v uint32, n int) {
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// LE reads n bytes at b as a little-endian value.
func LE(b []byte, n int) uint32 {
	var v uint32
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}
