package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Urethramancer/propeller/disassembler"
	"github.com/Urethramancer/propeller/isa"
	"github.com/grimdork/climate/arg"
	"golang.org/x/term"
)

func main() {
	opt := arg.New("propdis")
	opt.SetDefaultHelp(true)
	opt.SetOption(arg.GroupDefault, "l", "lmm", "Recognise extended-addressing idioms in native code.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "c", "cmm", "The image is compressed code.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "P", "p2", "The image is for the second hardware generation.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "O", "origin", "Address of the first byte.", "0", false, arg.VarString, nil)
	opt.SetOption(arg.GroupDefault, "o", "output", "Write the listing to this file.", "", false, arg.VarString, nil)
	opt.SetPositional("FILE", "Raw image to disassemble.", "", true, arg.VarString)
	err := opt.Parse(os.Args)
	if err != nil {
		if err == arg.ErrNoArgs {
			opt.PrintHelp()
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(2)
	}

	origin, err := strconv.ParseUint(opt.GetString("origin"), 0, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid origin %q: %v\n", opt.GetString("origin"), err)
		os.Exit(2)
	}
	opts := disassembler.Options{
		Compressed: opt.GetBool("cmm"),
		LMM:        opt.GetBool("lmm"),
		Origin:     uint32(origin),
	}
	if opt.GetBool("p2") {
		opts.Generation = isa.P2
	}

	// Read the image as is; words are little-endian.
	code, err := os.ReadFile(opt.GetPosString("FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
		os.Exit(1)
	}
	text := disassembler.Disassemble(code, opts)

	outputFile := opt.GetString("output")
	if outputFile == "" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			text = highlightLabels(text)
		}
		fmt.Print(text)
		return
	}

	if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Disassembly written to %s\n", outputFile)
}

// highlightLabels shows label lines in bold.
func highlightLabels(text string) string {
	lines := strings.SplitAfter(text, "\n")
	for i, l := range lines {
		if strings.HasSuffix(l, ":\n") {
			lines[i] = "\x1b[1m" + strings.TrimSuffix(l, "\n") + "\x1b[0m\n"
		}
	}
	return strings.Join(lines, "")
}
