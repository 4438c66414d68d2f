package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Urethramancer/propeller/assembler"
	"github.com/grimdork/climate/arg"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"
)

func main() {
	opt := arg.New("propas")
	opt.SetDefaultHelp(true)
	opt.SetOption(arg.GroupDefault, "l", "lmm", "Enable the extended-addressing pseudo instructions.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "c", "cmm", "Compress code by default. Implies --lmm.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "P", "p2", "Assemble for the second hardware generation.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "a", "pasm", "Use long addresses for symbols by default.", false, false, arg.VarBool, nil)
	opt.SetOption(arg.GroupDefault, "O", "origin", "Address of the first output byte.", "0", false, arg.VarString, nil)
	opt.SetOption(arg.GroupDefault, "o", "output", "Write the raw image to this file instead of a hex listing.", "", false, arg.VarString, nil)
	opt.SetOption(arg.GroupDefault, "d", "dump", "Print the object, fixups and relocations to stderr.", false, false, arg.VarBool, nil)
	opt.SetPositional("FILE", "Assembly source file.", "", true, arg.VarString)
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
	cfg := assembler.Config{
		LMM:    opt.GetBool("lmm"),
		CMM:    opt.GetBool("cmm"),
		P2:     opt.GetBool("p2"),
		PASM:   opt.GetBool("pasm"),
		Origin: uint32(origin),
	}

	file := opt.GetPosString("FILE")
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
		os.Exit(1)
	}

	obj, err := assembler.New(cfg).Assemble(string(data))
	if opt.GetBool("dump") {
		dump(obj)
	}
	if err != nil {
		report(file, err)
		os.Exit(1)
	}

	out := opt.GetString("output")
	if out == "" {
		printHex(obj.Code)
		return
	}
	if err := os.WriteFile(out, obj.Code, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
}

// report prints each diagnostic as file:line: message.
func report(file string, err error) {
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	for _, e := range errs {
		var ae *assembler.Error
		if errors.As(e, &ae) && ae.Line > 0 {
			fmt.Fprintf(os.Stderr, "%s:%d: %s\n", file, ae.Line, ae.Msg)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", file, e)
	}
}

// dump pretty-prints the object, in colour only on a terminal.
func dump(obj *assembler.Object) {
	printer := pp.New()
	printer.SetOutput(os.Stderr)
	printer.SetColoringEnabled(term.IsTerminal(int(os.Stderr.Fd())))
	symbols := obj.Symbols.List()
	printer.Println(symbols)
	addrs := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		if v, ok := obj.Symbols.Address(sym.Name, obj.Origin); ok {
			addrs[sym.Name] = fmt.Sprintf("0x%x", v)
		}
	}
	printer.Println(addrs)
	printer.Println(obj.Fixups)
	printer.Println(obj.Relocations)
}

// printHex lists the image 16 bytes to a line, prefixed with addresses
// relative to the start of the image.
func printHex(code []byte) {
	for i := 0; i < len(code); i += 16 {
		end := i + 16
		if end > len(code) {
			end = len(code)
		}
		fmt.Printf("%04x: % x\n", i, code[i:end])
	}
}
