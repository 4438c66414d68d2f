package assembler

import "github.com/Urethramancer/propeller/isa"

// Config holds the command-line level choices for one assembly run.
type Config struct {
	// LMM enables the extended-addressing pseudo instructions.
	LMM bool
	// CMM makes compression the file default. It implies LMM.
	CMM bool
	// P2 selects the second hardware generation.
	P2 bool
	// PASM makes the long-addressed dialect the default.
	PASM bool
	// Origin is the address of the first output byte.
	Origin uint32
}

// Mode is the state every line is encoded under. The driver snapshots it
// before each statement; directives change it between statements only.
type Mode struct {
	Compress   bool
	Generation isa.Generation
	LMM        bool
	PASM       bool
}

// mode returns the starting mode for a configuration.
func (c Config) mode() Mode {
	m := Mode{
		Compress: c.CMM,
		LMM:      c.LMM || c.CMM,
		PASM:     c.PASM,
	}
	if c.P2 {
		m.Generation = isa.P2
	}
	return m
}
