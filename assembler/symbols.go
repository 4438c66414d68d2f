package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Urethramancer/propeller/expr"
	"github.com/Urethramancer/propeller/isa"
)

// SectionSymbol names the start of the output section. Labels and the
// location counter are offsets from it.
const SectionSymbol = ".text"

// Symbol is a label or an equate.
type Symbol struct {
	Name  string
	Value expr.Value
	Label bool
	// Global symbols were named by .global.
	Global bool
	// Compressed labels were defined while compression was on.
	Compressed bool
	Line       int
}

// Other returns the ELF-style st_other byte for the symbol.
func (s *Symbol) Other() byte {
	if s.Compressed {
		return isa.OtherCompressed
	}
	return 0
}

// Symbols is the symbol table of one assembly unit.
type Symbols struct {
	byName map[string]*Symbol
	global map[string]bool
}

// NewSymbols returns an empty table.
func NewSymbols() *Symbols {
	return &Symbols{
		byName: make(map[string]*Symbol),
		global: make(map[string]bool),
	}
}

// Get looks up a symbol by exact name.
func (st *Symbols) Get(name string) (*Symbol, bool) {
	s, ok := st.byName[name]
	return s, ok
}

// DefineLabel binds name to an offset in the output section.
func (st *Symbols) DefineLabel(name string, offset int, compressed bool, line int) error {
	if old, ok := st.byName[name]; ok && old.Label {
		return syntaxError("Symbol `%s' redefined", name)
	}
	st.byName[name] = &Symbol{
		Name:       name,
		Value:      expr.Sym(SectionSymbol, int64(offset)),
		Label:      true,
		Global:     st.global[name],
		Compressed: compressed,
		Line:       line,
	}
	return nil
}

// DefineEquate binds name to a value. Equates may be redefined.
func (st *Symbols) DefineEquate(name string, v expr.Value, line int) error {
	if old, ok := st.byName[name]; ok && old.Label {
		return syntaxError("Symbol `%s' redefined", name)
	}
	st.byName[name] = &Symbol{Name: name, Value: v, Global: st.global[name], Line: line}
	return nil
}

// MarkGlobal records a .global name, before or after its definition.
func (st *Symbols) MarkGlobal(name string) {
	st.global[name] = true
	if s, ok := st.byName[name]; ok {
		s.Global = true
	}
}

// List returns the symbols sorted by name.
func (st *Symbols) List() []*Symbol {
	list := make([]*Symbol, 0, len(st.byName))
	for _, s := range st.byName {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

const maxEquateDepth = 32

// Address resolves a symbol to an absolute value given the section origin.
// Undefined symbols and registers report false.
func (st *Symbols) Address(name string, origin uint32) (int64, bool) {
	return st.address(name, origin, 0)
}

func (st *Symbols) address(name string, origin uint32, depth int) (int64, bool) {
	if name == SectionSymbol {
		return int64(origin), true
	}
	s, ok := st.byName[name]
	if !ok || depth > maxEquateDepth {
		return 0, false
	}
	return st.resolve(s.Value, origin, depth+1)
}

// Resolve computes the absolute value of an expression, if every symbol in
// it is defined.
func (st *Symbols) Resolve(v expr.Value, origin uint32) (int64, bool) {
	return st.resolve(v, origin, 0)
}

func (st *Symbols) resolve(v expr.Value, origin uint32, depth int) (int64, bool) {
	switch v.Kind {
	case expr.Constant:
		return v.Value, true
	case expr.Symbolic:
		a, ok := st.address(v.Symbol, origin, depth)
		if !ok {
			return 0, false
		}
		if v.Sub != "" {
			b, ok := st.address(v.Sub, origin, depth)
			if !ok {
				return 0, false
			}
			a -= b
		}
		return a + v.Value, true
	}
	return 0, false
}

// lineScope is what expressions on one line can see.
type lineScope struct {
	symbols *Symbols
	mode    Mode
	here    int
}

func (sc *lineScope) Lookup(name string) (expr.Value, bool) {
	if n, ok := generalRegister(name); ok {
		return expr.Reg(int64(n)), true
	}
	for _, r := range isa.KernelRegs {
		if r.Name == name {
			if r.CompactOnly && !sc.mode.Compress {
				break
			}
			return expr.Reg(int64(r.Num)), true
		}
	}
	for _, r := range isa.SpecialRegs(sc.mode.Generation) {
		if strings.EqualFold(r.Name, name) {
			return expr.Reg(int64(r.Value)), true
		}
	}
	if s, ok := sc.symbols.Get(name); ok && !s.Label {
		return s.Value, true
	}
	return expr.Value{}, false
}

func (sc *lineScope) Here() expr.Value {
	return expr.Sym(SectionSymbol, int64(sc.here))
}

// generalRegister recognises r0..r15 in either case.
func generalRegister(name string) (int, bool) {
	if len(name) < 2 || len(name) > 3 || (name[0] != 'r' && name[0] != 'R') {
		return 0, false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= isa.NumGeneral || (len(name) == 3 && name[1] == '0') {
		return 0, false
	}
	return n, true
}

func (s *Symbol) String() string {
	kind := "equ"
	if s.Label {
		kind = "label"
	}
	return fmt.Sprintf("%-24s %-5s %s", s.Name, kind, s.Value)
}
