package assembler_test

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Urethramancer/propeller/assembler"
	"github.com/Urethramancer/propeller/isa"
	"github.com/Urethramancer/propeller/reloc"
)

var (
	native = assembler.Config{}
	lmm    = assembler.Config{LMM: true}
	cmm    = assembler.Config{CMM: true}
	p2     = assembler.Config{P2: true}
	p2cmm  = assembler.Config{P2: true, CMM: true}
)

// Assembles source and checks against an expected byte sequence (in hex).
func assembleAndMatchHex(t *testing.T, cfg assembler.Config, name, src, expectedHex string) *assembler.Object {
	t.Helper()

	expectedHex = strings.ToLower(strings.Join(strings.Fields(expectedHex), ""))
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		t.Fatalf("[%s] invalid expected hex string: %v", name, err)
	}

	obj, err := assembler.New(cfg).Assemble(src)
	if err != nil {
		t.Fatalf("[%s] failed to assemble:\n%s\nerror: %v", name, src, err)
	}
	code := obj.Code
	if len(code) != len(expected) {
		t.Fatalf("[%s] expected %d bytes, got %d\nexpected: % X\ngot:      % X",
			name, len(expected), len(code), expected, code)
	}
	for i := range code {
		if code[i] != expected[i] {
			t.Errorf("[%s] mismatch at byte %d\nexpected: % X\ngot:      % X",
				name, i, expected, code)
			break
		}
	}
	return obj
}

type hexCase struct {
	name, src, hex string
}

func runHexCases(t *testing.T, cfg assembler.Config, tests []hexCase) {
	t.Helper()
	for _, tc := range tests {
		assembleAndMatchHex(t, cfg, tc.name, tc.src, tc.hex)
	}
}

func TestNativeEncodings(t *testing.T) {
	runHexCases(t, native, []hexCase{
		{"MOV_Immediate", "mov r1,#5", "05 02 FC A0"},
		{"MOV_Register", "mov r1,r2", "02 02 BC A0"},
		{"ADD_Register", "add r1, r2", "02 02 BC 80"},
		{"MOV_Special", "mov r1, par", "F0 03 BC A0"},
		{"WRLONG_NoResult", "wrlong r1,r2", "02 02 3C 08"},
		{"RDLONG", "rdlong r1,r2", "02 02 BC 08"},
		{"WAITCNT", "waitcnt r1,#10", "0A 02 FC F8"},
		{"JMP_Constant", "jmp #5", "05 00 7C 5C"},
		{"RET", "ret", "00 00 7C 5C"},
		{"NOP", "nop", "00 00 00 00"},
		{"Uppercase", "MOV R1,#5", "05 02 FC A0"},
	})
}

func TestDestinationRegisters(t *testing.T) {
	base := uint32(0xA0FC0005)
	for n := uint32(0); n < isa.NumGeneral; n++ {
		src := fmt.Sprintf("mov r%d,#5", n)
		obj, err := assembler.New(native).Assemble(src)
		if err != nil {
			t.Fatalf("[%s] failed to assemble: %v", src, err)
		}
		w := isa.LE(obj.Code, 4)
		if isa.Dst(w) != n {
			t.Errorf("[%s] destination field %d", src, isa.Dst(w))
		}
		if w&^isa.DstMask != base {
			t.Errorf("[%s] other fields changed: %08X, expected %08X", src, w&^isa.DstMask, base)
		}
	}
}

func TestSymbolicRegisterOperands(t *testing.T) {
	src := "mov r1, var\nmov var, r1\nvar: .long 0"
	assembleAndMatchHex(t, native, "LongAddressed", src, "02 02 BC A0 01 04 BC A0 00 00 00 00")
}

func TestConditionsAndEffects(t *testing.T) {
	runHexCases(t, native, []hexCase{
		{"IF_Z", "if_z mov r1,r2", "02 02 A8 A0"},
		{"IF_ALWAYS", "if_always mov r1,r2", "02 02 BC A0"},
		{"WZ", "mov r1,r2 wz", "02 02 BC A2"},
		{"NR", "mov r1,r2 nr", "02 02 3C A0"},
		{"CMP_WZ_WC", "cmp r1,r2 wz,wc", "02 02 3C 87"},
		{"CMP_WZ_WC_Spaced", "cmp r1,r2 wz, wc", "02 02 3C 87"},
	})
}

func TestCallConvention(t *testing.T) {
	src := "foo: nop\nfoo_ret: ret\n call #foo"
	assembleAndMatchHex(t, native, "CALL", src, "00 00 00 00 00 00 7C 5C 00 02 FC 5C")
}

func TestSecondGeneration(t *testing.T) {
	runHexCases(t, p2, []hexCase{
		{"SETINDA", "setinda #1", "01 00 00 FF"},
		{"RDLONG_PtraPostInc", "rdlong r1, ptra++", "C1 02 FC 08"},
		{"RDLONG_Register", "rdlong r1, r2", "02 02 BC 08"},
	})
	runHexCases(t, p2cmm, []hexCase{
		{"RDLONG_Compact", "rdlong r1, r2", "11 2D"},
		{"RDLONG_PointerStaysNative", "rdlong r1, ptra++", "F3 C1 02 08"},
		{"LCALL_LongAddressed", "lcall #0x1234", "06 8D 04"},
	})
}

func TestCompressedEncodings(t *testing.T) {
	runHexCases(t, cmm, []hexCase{
		{"MVIB", "mov r1,#5", "81 05"},
		{"MVIB_Conditional", "if_z mov r1,#5", "A5 81 05"},
		{"ZeroReg", "mov r1,#0", "91"},
		{"ZeroReg_Conditional", "if_z mov r1,#0", "A5 81 00"},
		{"MVIW", "mov r1,#300", "71 2C 01"},
		{"MVIW_Conditional", "if_z mov r1,#300", "B5 71 2C 01"},
		{"MvReg", "mov r1,r2", "0A 12"},
		{"RegReg", "add r1,r2", "11 20"},
		{"RegImm4", "add r1,#5", "21 50"},
		{"RegImm12", "add r1,#100", "31 64 00"},
		{"RegImm12_Sub", "sub r1,#100", "31 64 10"},
		{"MaskRegister", "and r1,__MASK_FFFFFFFF", "31 FF 4F"},
		{"CMP_Flags", "cmp r1,r2 wz,wc", "11 23"},
		{"CMP_NoFlags_Packed", "cmp r1,r2", "F0 02 02 84"},
		{"AddSP", "add sp,#8", "0C 08"},
		{"SubSP", "sub sp,#8", "0C F8"},
		{"HighSource_Packed", "add r1,sp", "F2 10 02 80"},
		{"Conditional_Escaped", "if_z waitcnt r1,r2", "0F 02 02 A8 F8"},
		{"XMOV_Imm", "xmov r1,r2 add r3,#4", "E3 12 40"},
		{"XMOV_Reg", "xmov r1,r2 add r3,r4", "D3 12 40"},
		{"XMOV_Mov", "xmov r1,r2 mov r3,r4", "0B 12 34"},
	})
}

func TestCompressedMacros(t *testing.T) {
	runHexCases(t, cmm, []hexCase{
		{"LRET", "lret", "02"},
		{"LMUL", "lmul", "07"},
		{"LPUSHM", "lpushm #0x42", "03 42"},
		{"LEASP", "leasp r3,#8", "C3 08"},
		{"LCALL", "lcall #0x1234", "06 34 12"},
		{"FCACHE", "fcache #0x40", "0E 40 00"},
		{"MVI", "mvi r1,#0x12345678", "61 78 56 34 12"},
		{"MVIW", "mviw r1,#0x1234", "71 34 12"},
		{"BRL", "brl #0x12345678", "0D 78 56 34 12"},
		{"LDI_DataUnescaped", "ldi r1,#0x1234", "0F 11 02 BC 08 34 12 00 00"},
		{"BRS_Self", "l: brs l", "5F FE"},
		{"BRS_Conditional", "l: if_z brs l", "5A FE"},
		{"BRW_Self", "l: brw l", "4F FD FF"},
	})
}

func TestExtendedMacros(t *testing.T) {
	runHexCases(t, lmm, []hexCase{
		{"LRET", "lret", "0F 22 BC A0"},
		{"BRS_Self", "l: brs l", "04 22 FC 84"},
		{"LDI", "ldi r1,#0x1234", "11 02 BC 08 34 12 00 00"},
		{"XMOV_Pair", "xmov r1,r2 add r3,#4", "02 02 BC A0 04 06 FC 80"},
	})

	obj := assembleAndMatchHex(t, lmm, "MVI", "mvi r1,#0x12345678", "00 00 7C 5C 78 56 34 12")
	if len(obj.Relocations) != 1 || obj.Relocations[0].Symbol != "__LMM_MVI_r1" || obj.Relocations[0].Kind != reloc.Src {
		t.Errorf("MVI helper relocation: %v", obj.Relocations)
	}

	obj = assembleAndMatchHex(t, lmm, "LMUL", "lmul", "00 00 FC 5C")
	want := map[string]reloc.Kind{"__MULSI_ret": reloc.Dst, "__MULSI": reloc.Src}
	if len(obj.Relocations) != len(want) {
		t.Fatalf("LMUL: expected %d relocations, got %v", len(want), obj.Relocations)
	}
	for _, r := range obj.Relocations {
		if want[r.Symbol] != r.Kind || r.Address != 0 {
			t.Errorf("LMUL: unexpected relocation %v", r)
		}
	}
}

func TestBranchRange(t *testing.T) {
	assembleAndMatchHex(t, cmm, "BRS_Min", "back:\n.org 126\nbrs back", strings.Repeat("00 ", 126)+"5F 80")

	_, err := assembler.New(cmm).Assemble("back:\n.org 127\nbrs back")
	if !errors.Is(err, assembler.ErrOverflow) {
		t.Errorf("BRS -129: expected overflow, got %v", err)
	}

	if _, err := assembler.New(lmm).Assemble("brs fwd\n.org 0x203\nfwd:"); err != nil {
		t.Errorf("BRS +0x1FF: %v", err)
	}
	_, err = assembler.New(lmm).Assemble("brs fwd\n.org 0x204\nfwd:")
	if !errors.Is(err, assembler.ErrOverflow) {
		t.Errorf("BRS +0x200: expected overflow, got %v", err)
	}
	var ae *assembler.Error
	if !errors.As(err, &ae) || ae.Line != 1 {
		t.Errorf("BRS +0x200: expected the error on line 1, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  assembler.Config
		src  string
		kind error
	}{
		{"UnknownInstruction", native, "bogus r1", assembler.ErrSyntax},
		{"ExtendedOnly", native, "brs x", assembler.ErrIncompatible},
		{"OtherGeneration", native, "setinda #1", assembler.ErrIncompatible},
		{"ConditionNotAllowed", p2, "if_z setinda #1", assembler.ErrIncompatible},
		{"EffectNotAllowed", native, "nop wz", assembler.ErrIncompatible},
		{"SourceRange", native, "mov r1,#600", assembler.ErrRange},
		{"MissingComma", native, "mov r1", assembler.ErrSyntax},
		{"TooManyOperands", native, "mov r1,r2 junk", assembler.ErrSyntax},
		{"ConditionalBRL", cmm, "if_z brl #0", assembler.ErrIncompatible},
		{"XMOVImmediate", cmm, "xmov r1,#2 add r3,r4", assembler.ErrSyntax},
		{"XMOVHighRegister", cmm, "xmov sp,r2 add r3,r4", assembler.ErrSyntax},
		{"CompressOption", native, ".compress maybe", assembler.ErrSyntax},
		{"Redefined", native, "l: nop\nl: nop", assembler.ErrSyntax},
		{"ByteRange", native, ".byte 256", assembler.ErrRange},
		{"LDIRange", lmm, "ldi r1,#0x12345678", assembler.ErrRange},
		{"MVIHighRegister", cmm, "mvi sp,#5", assembler.ErrRange},
		{"MVIWHighRegister", cmm, "mviw pc,#5", assembler.ErrRange},
		{"MVIMaskRegister", cmm, "mvi __MASK_FFFFFFFF,#5", assembler.ErrRange},
		{"XMMIOHighRegister", lmm, "xmmio rdbyte, sp, r2", assembler.ErrRange},
		{"UnknownDirective", native, ".bogus", assembler.ErrSyntax},
	}
	for _, tc := range tests {
		_, err := assembler.New(tc.cfg).Assemble(tc.src)
		if err == nil {
			t.Errorf("[%s] expected an error", tc.name)
			continue
		}
		if !errors.Is(err, tc.kind) {
			t.Errorf("[%s] expected %v, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		cfg  assembler.Config
		src  string
		msg  string
	}{
		{"Unknown", native, "nop\nbogus", "line 2: Unknown instruction 'bogus'"},
		{"LMMOnly", native, "brs x", "brs only supported in LMM mode"},
		{"Generation", native, "setinda #1", "setinda is only available on p2"},
		{"CompressOption", native, ".compress maybe", `Unrecognized compress option "maybe"`},
		{"XMOVOperation", cmm, "xmov r1,r2 jmp #0", "Bad or missing instruction in xmov: 'jmp'"},
	}
	for _, tc := range tests {
		_, err := assembler.New(tc.cfg).Assemble(tc.src)
		if err == nil || !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("[%s] expected %q, got %v", tc.name, tc.msg, err)
		}
	}
}

func TestFailingLineEmitsNothing(t *testing.T) {
	obj, err := assembler.New(native).Assemble("mov r1,#5\nbogus\nmov r1,#5")
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(obj.Code) != 8 {
		t.Errorf("expected 8 bytes, got % X", obj.Code)
	}
}

func TestRelocations(t *testing.T) {
	tests := []struct {
		name  string
		cfg   assembler.Config
		src   string
		hex   string
		reloc reloc.Relocation
	}{
		{"SrcImm", native, "mov r1,#ext", "00 02 FC A0",
			reloc.Relocation{Address: 0, Kind: reloc.SrcImm, Symbol: "ext"}},
		{"SrcRegister", native, "mov r1,ext", "00 02 BC A0",
			reloc.Relocation{Address: 0, Kind: reloc.Src, Symbol: "ext"}},
		{"DstRegister", native, "mov ext,r1", "01 00 BC A0",
			reloc.Relocation{Address: 0, Kind: reloc.Dst, Symbol: "ext"}},
		{"PackedNative", cmm, "mov r1,#ext", "F3 00 02 A0",
			reloc.Relocation{Address: 1, Kind: reloc.SrcImm, Symbol: "ext"}},
		{"CompactBranch", cmm, "brs ext", "5F 00",
			reloc.Relocation{Address: 1, Kind: reloc.PCRel8, Symbol: "ext", Addend: -1}},
		{"Data", native, ".long ext+4", "00 00 00 00",
			reloc.Relocation{Address: 0, Kind: reloc.Abs32, Symbol: "ext", Addend: 4}},
		{"DataLongAddressed", native, ".pasm\n.long ext+1", "00 00 00 00",
			reloc.Relocation{Address: 0, Kind: reloc.Abs32Div4, Symbol: "ext", Addend: 4}},
	}
	for _, tc := range tests {
		obj := assembleAndMatchHex(t, tc.cfg, tc.name, tc.src, tc.hex)
		if len(obj.Relocations) != 1 {
			t.Errorf("[%s] expected one relocation, got %v", tc.name, obj.Relocations)
			continue
		}
		got := obj.Relocations[0]
		got.Line = 0
		if got != tc.reloc {
			t.Errorf("[%s] expected %v, got %v", tc.name, tc.reloc, got)
		}
	}

	cfg := cmm
	cfg.Origin = 0x100
	obj := assembleAndMatchHex(t, cfg, "Origin", "mov r1,#ext", "F3 00 02 A0")
	if len(obj.Relocations) != 1 || obj.Relocations[0].Address != 0x101 {
		t.Errorf("Origin: expected relocation at 0x101, got %v", obj.Relocations)
	}
}

func TestCompressedMarker(t *testing.T) {
	obj := assembleAndMatchHex(t, cmm, "Marker", "f: mov r1,#5", "81 05")
	s, ok := obj.Symbols.Get("f")
	if !ok || !s.Compressed || s.Other() != isa.OtherCompressed {
		t.Errorf("label in compressed code is not marked: %+v", s)
	}
	if !obj.Compressed {
		t.Error("object not flagged as compressed")
	}

	obj = assembleAndMatchHex(t, native, "NoMarker", "f: mov r1,#5", "05 02 FC A0")
	if s, _ := obj.Symbols.Get("f"); s.Compressed || obj.Compressed {
		t.Error("native code marked as compressed")
	}

	obj = assembleAndMatchHex(t, lmm, "Switch", ".compress on\nf: lret\n.compress off\ng: nop",
		"02 00 00 00 00 00 00 00")
	f, _ := obj.Symbols.Get("f")
	g, _ := obj.Symbols.Get("g")
	if !f.Compressed || g.Compressed {
		t.Errorf("markers after .compress: f=%v g=%v", f.Compressed, g.Compressed)
	}
}

func TestDirectives(t *testing.T) {
	runHexCases(t, native, []hexCase{
		{"LONG", ".long 1, 0x11223344", "01 00 00 00 44 33 22 11"},
		{"WORD", ".word 0x1234, -1", "34 12 FF FF"},
		{"BYTE_String", `.byte 1, 2, "ab"`, "01 02 61 62"},
		{"BYTE_StringFirst", `.byte "ab" , 3`, "61 62 03"},
		{"ASCII", `.ascii "hi"`, "68 69"},
		{"ASCIZ", `.asciz "hi"`, "68 69 00"},
		{"STRING_Escape", `.string "a\n"`, "61 0A 00"},
		{"RES", ".res 1", "00 00 00 00"},
		{"ALIGN", ".byte 1\n.align 4", "01 00 00 00"},
		{"ORG", ".byte 1\n.org 3\n.byte 2", "01 00 00 02"},
		{"FIT", ".fit 496", ""},
		{"EQU", ".equ five, 5\nmov r1,#five", "05 02 FC A0"},
		{"Assignment", "six = 6\nmov r1,#six", "06 02 FC A0"},
		{"Separator", "mov r1,#5 ; mov r2,#6", "05 02 FC A0 06 04 FC A0"},
		{"QuoteComment", "mov r1,#5 ' load five", "05 02 FC A0"},
		{"LineComment", "# header\n// note\nmov r1,#5", "05 02 FC A0"},
		{"BackwardLabel", "nop\nl: .long l", "00 00 00 00 04 00 00 00"},
		{"ForwardLabel", ".long l\nl:", "04 00 00 00"},
		{"LongAddressed", ".pasm\nnop\nl: .long l", "00 00 00 00 01 00 00 00"},
		{"ByteAddressOverride", ".pasm\nnop\nl: .long @l", "00 00 00 00 04 00 00 00"},
		{"CompressOffAligns", ".compress on\nmov r1,#5\n.compress off", "81 05 00 00"},
	})
}

func TestAssemblerReuse(t *testing.T) {
	a := assembler.New(native)
	if _, err := a.Assemble("l: nop"); err != nil {
		t.Fatal(err)
	}
	obj, err := a.Assemble("l: nop")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(obj.Code) != 4 {
		t.Errorf("second run: expected 4 bytes, got % X", obj.Code)
	}
}
