package isa

import "strings"

// Condition is a named 4-bit execution predicate.
type Condition struct {
	Name  string
	Value uint32
}

// Conditions lists every condition mnemonic. Several names alias one code;
// the first name for a code is the one the disassembler prints.
var Conditions = []Condition{
	{"if_never", 0x0},
	{"if_nc_and_nz", 0x1},
	{"if_nz_and_nc", 0x1},
	{"if_a", 0x1},
	{"if_nc_and_z", 0x2},
	{"if_z_and_nc", 0x2},
	{"if_nc", 0x3},
	{"if_ae", 0x3},
	{"if_c_and_nz", 0x4},
	{"if_nz_and_c", 0x4},
	{"if_nz", 0x5},
	{"if_ne", 0x5},
	{"if_c_ne_z", 0x6},
	{"if_z_ne_c", 0x6},
	{"if_nc_or_nz", 0x7},
	{"if_nz_or_nc", 0x7},
	{"if_c_and_z", 0x8},
	{"if_z_and_c", 0x8},
	{"if_c_eq_z", 0x9},
	{"if_z_eq_c", 0x9},
	{"if_z", 0xA},
	{"if_e", 0xA},
	{"if_nc_or_z", 0xB},
	{"if_z_or_nc", 0xB},
	{"if_c", 0xC},
	{"if_b", 0xC},
	{"if_c_or_nz", 0xD},
	{"if_nz_or_c", 0xD},
	{"if_c_or_z", 0xE},
	{"if_z_or_c", 0xE},
	{"if_be", 0xE},
	{"if_always", 0xF},
}

var condByName = func() map[string]Condition {
	m := make(map[string]Condition, len(Conditions))
	for _, c := range Conditions {
		m[c.Name] = c
	}
	return m
}()

// LookupCondition finds a condition mnemonic, ignoring case.
func LookupCondition(name string) (Condition, bool) {
	c, ok := condByName[strings.ToLower(name)]
	return c, ok
}

// ConditionName returns the canonical mnemonic for a 4-bit code.
func ConditionName(code uint32) string {
	for _, c := range Conditions {
		if c.Value == code&0xF {
			return c.Name
		}
	}
	return ""
}
