package disassembler_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/Urethramancer/propeller/assembler"
	"github.com/Urethramancer/propeller/disassembler"
	"github.com/Urethramancer/propeller/isa"
)

var (
	native     = disassembler.Options{}
	lmm        = disassembler.Options{LMM: true}
	compressed = disassembler.Options{Compressed: true}
	second     = disassembler.Options{Generation: isa.P2}
)

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		t.Fatalf("invalid hex %q: %v", s, err)
	}
	return b
}

type decodeCase struct {
	name string
	hex  string
	mn   string
	ops  string
	size uint32
}

func runDecodeCases(t *testing.T, opts disassembler.Options, cases []decodeCase) {
	t.Helper()
	for _, tc := range cases {
		in, ok := disassembler.Decode(decodeHex(t, tc.hex), opts)
		if !ok {
			t.Errorf("[%s] did not decode", tc.name)
			continue
		}
		if in.Mnemonic != tc.mn || in.Operands != tc.ops || in.Size != tc.size {
			t.Errorf("[%s] got %q %q (%d bytes), want %q %q (%d bytes)",
				tc.name, in.Mnemonic, in.Operands, in.Size, tc.mn, tc.ops, tc.size)
		}
	}
}

func TestDecodeNative(t *testing.T) {
	runDecodeCases(t, native, []decodeCase{
		{"NOP", "00 00 00 00", "nop", "", 4},
		{"MOV_Imm", "05 02 FC A0", "mov", "r1, #5", 4},
		{"MOV_Conditional", "05 02 E8 A0", "if_z mov", "r1, #5", 4},
		{"MOV_Special", "01 E8 FF A0", "mov", "outa, #1", 4},
		{"CMP_Flags", "02 02 3C 87", "cmp", "r1, r2 wz, wc", 4},
		{"TEST", "02 02 3C 62", "test", "r1, r2 wz", 4},
		{"ADD_NoWrite", "02 02 3C 80", "add", "r1, r2 nr", 4},
		{"JMP", "05 00 7C 5C", "jmp", "#5", 4},
		{"RET", "00 00 7C 5C", "ret", "", 4},
		{"COGID", "01 02 FC 0C", "cogid", "r1", 4},
		{"Unknown", "00 00 7C 10", ".long", "0x107c0000", 4},
	})
}

func TestDecodeSecondGeneration(t *testing.T) {
	runDecodeCases(t, second, []decodeCase{
		{"RDLONG_PostIncrement", "C1 02 FC 08", "rdlong", "r1, ptra++", 4},
		{"RDLONG_Register", "02 02 BC 08", "rdlong", "r1, r2", 4},
	})
}

func TestDecodeCompressed(t *testing.T) {
	runDecodeCases(t, compressed, []decodeCase{
		{"MVIB", "81 05", "mov", "r1, #5", 2},
		{"ZeroReg", "93", "mov", "r3, #0", 1},
		{"MVIW", "71 34 12", "mviw", "r1, #4660", 3},
		{"MVI", "61 78 56 34 12", "mvi", "r1, #0x12345678", 5},
		{"Skip", "A5 81 05", "if_z mov", "r1, #5", 3},
		{"RegReg_Compare", "11 23", "cmp", "r1, r2 wz, wc", 2},
		{"RegImm4", "21 10", "add", "r1, #1", 2},
		{"RegImm12_Mask", "31 FF 4F", "and", "r1, __MASK_FFFFFFFF", 3},
		{"XMov", "E3 12 40", "xmov", "r1, r2 add r3, #4", 3},
		{"Packed", "F0 02 02 84", "cmp", "r1, r2", 4},
		{"Native_LDI", "0F 11 02 BC 08 34 12 00 00", "ldi", "r1, #0x1234", 9},
		{"StackAdd", "0C 7F", "add", "sp, #127", 2},
		{"StackSub", "0C 80", "sub", "sp, #128", 2},
		{"LRET", "02", "lret", "", 1},
		{"LPUSHM", "03 42", "lpushm", "#0x42", 2},
		{"LCALL", "06 34 12", "lcall", "#0x1234", 3},
		{"BRL", "0D 78 56 34 12", "brl", "#0x12345678", 5},
		{"MvReg", "0A 12", "mov", "r1, r2", 2},
		{"LEASP", "C3 08", "leasp", "r3, #8", 2},
	})
}

func TestDecodeBranches(t *testing.T) {
	in, ok := disassembler.Decode(decodeHex(t, "5F FE"), compressed)
	if !ok || in.Target != 0 || !in.Terminal {
		t.Errorf("brs: target %d terminal %v", in.Target, in.Terminal)
	}
	in, ok = disassembler.Decode(decodeHex(t, "5A FE"), compressed)
	if !ok || in.Mnemonic != "if_z brs" || in.Terminal {
		t.Errorf("conditional brs: %q terminal %v", in.Mnemonic, in.Terminal)
	}
	in, ok = disassembler.Decode(decodeHex(t, "4F FD FF"), compressed)
	if !ok || in.Target != 0 {
		t.Errorf("brw: target %d", in.Target)
	}
	in, ok = disassembler.Decode(decodeHex(t, "06 10 00"), compressed)
	if !ok || !in.Call || in.Target != 0x10 {
		t.Errorf("lcall: call %v target %d", in.Call, in.Target)
	}
	in, ok = disassembler.Decode(decodeHex(t, "04 22 FC 84"), lmm)
	if !ok || in.Target != 0 || !in.Terminal {
		t.Errorf("native brs: target %d terminal %v", in.Target, in.Terminal)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for name, tc := range map[string]struct {
		hex  string
		opts disassembler.Options
	}{
		"Native":    {"05 02 FC", native},
		"MVI":       {"61 78 56", compressed},
		"Escape":    {"0F 11 02", compressed},
		"SkipShort": {"A5 81", compressed},
	} {
		if _, ok := disassembler.Decode(decodeHex(t, tc.hex), tc.opts); ok {
			t.Errorf("[%s] decoded a truncated instruction", name)
		}
	}
}

// roundTrip assembles src, checks the disassembly and assembles that again.
func roundTrip(t *testing.T, name string, cfg assembler.Config, opts disassembler.Options, src, want string) {
	t.Helper()
	obj, err := assembler.New(cfg).Assemble(src)
	if err != nil {
		t.Fatalf("[%s] assemble: %v", name, err)
	}
	got := disassembler.Disassemble(obj.Code, opts)
	if got != want {
		t.Errorf("[%s] disassembly:\n%s\nwant:\n%s", name, got, want)
	}
	again, err := assembler.New(cfg).Assemble(got)
	if err != nil {
		t.Fatalf("[%s] reassemble: %v", name, err)
	}
	if !bytes.Equal(again.Code, obj.Code) {
		t.Errorf("[%s] reassembled % X, want % X", name, again.Code, obj.Code)
	}
}

func TestRoundTripCompressed(t *testing.T) {
	src := `
	mov r1,#5
loop:	add r1,#1
	cmp r1,r2 wz,wc
	if_nz brs loop
	lret
	.asciz "hello"
`
	want := "    mov      r1, #5\n" +
		"loc_0002:\n" +
		"    add      r1, #1\n" +
		"    cmp      r1, r2 wz, wc\n" +
		"    if_nz brs loc_0002\n" +
		"    lret\n" +
		"string1: .asciz  \"hello\"\n"
	roundTrip(t, "CMM", assembler.Config{CMM: true}, compressed, src, want)
}

func TestRoundTripExtended(t *testing.T) {
	src := `
	mov r1,#5
l:	sub r1,#1 wz
	if_nz brs l
	lret
`
	want := "    mov      r1, #5\n" +
		"loc_0004:\n" +
		"    sub      r1, #1 wz\n" +
		"    if_nz brs loc_0004\n" +
		"    lret\n"
	roundTrip(t, "LMM", assembler.Config{LMM: true}, lmm, src, want)
}

func TestRoundTripCog(t *testing.T) {
	src := `
	mov r1,#5
loop:	add r1,#1
	djnz r2,#loop
	jmp #loop
	.byte 1,2,3
`
	want := "    mov      r1, #5\n" +
		"loc_0004:\n" +
		"    add      r1, #1\n" +
		"    djnz     r2, #loc_0004\n" +
		"    jmp      #loc_0004\n" +
		"    .byte    0x01,0x02,0x03\n"
	roundTrip(t, "Cog", assembler.Config{}, native, src, want)
}

func TestDisassembleData(t *testing.T) {
	code := decodeHex(t, "02 41 42 43 44 FF")
	got := disassembler.Disassemble(code, compressed)
	want := "    lret\n" +
		"    .byte    0x41,0x42,0x43,0x44,0xff\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	if got := disassembler.Disassemble(nil, native); got != "" {
		t.Errorf("empty input gave %q", got)
	}
}

func TestDisassembleLongs(t *testing.T) {
	code := decodeHex(t, "00 00 7C 5C 01 02 03 04 05")
	got := disassembler.Disassemble(code, native)
	want := "    ret\n" +
		"    .long    0x04030201\n" +
		"    .byte    0x05\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	got = disassembler.Disassemble(decodeHex(t, "02 41 42 43 44 00 01 02 03 04"), compressed)
	want = "    lret\n" +
		"string1: .asciz  \"ABCD\"\n" +
		"    .byte    0x01,0x02,0x03,0x04\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDisassembleAlignedTag(t *testing.T) {
	code := decodeHex(t, "05 00 7C 5C 54 41 47 53")
	got := disassembler.Disassemble(code, native)
	if !strings.Contains(got, "string1: .ascii  \"TAGS\"\n") {
		t.Errorf("aligned tag not rendered as a string:\n%s", got)
	}
}

func TestDecodeBreakpoint(t *testing.T) {
	in, ok := disassembler.Decode(isa.Breakpoint(true, isa.P1), compressed)
	if !ok || in.Mnemonic != "break" || in.Size != 1 {
		t.Errorf("compact breakpoint: %q (%d bytes)", in.Mnemonic, in.Size)
	}
	in, ok = disassembler.Decode(isa.Breakpoint(false, isa.P1), native)
	if !ok || in.Mnemonic != "jmp" || in.Operands != "#20" {
		t.Errorf("native breakpoint: %q %q", in.Mnemonic, in.Operands)
	}
}
