package isa

import "strings"

// Effect is a trailing flag mnemonic. The word is updated as
// code = (code | OrMask) & AndMask, provided the opcode's Flags allow it.
type Effect struct {
	Name    string
	Flag    Flags
	OrMask  uint32
	AndMask uint32
}

// EffectTable lists the effect mnemonics.
var EffectTable = []Effect{
	{"wz", FlagWZ, WZBit, 0xFFFFFFFF},
	{"wc", FlagWC, WCBit, 0xFFFFFFFF},
	{"wr", FlagWR, WRBit, 0xFFFFFFFF},
	{"nr", FlagNR, 0, ^uint32(WRBit)},
}

// LookupEffect finds an effect mnemonic, ignoring case.
func LookupEffect(name string) (Effect, bool) {
	name = strings.ToLower(name)
	for _, e := range EffectTable {
		if e.Name == name {
			return e, true
		}
	}
	return Effect{}, false
}
