package assembler

import (
	"errors"
	"strings"
	"testing"
)

func wordAt(t *testing.T, text []byte, idx int) uint32 {
	t.Helper()
	off := idx * 4
	if off+4 > len(text) {
		t.Fatalf("text segment too short for instruction %d: got %d bytes", idx, len(text))
	}
	return uint32(text[off]) | uint32(text[off+1])<<8 | uint32(text[off+2])<<16 | uint32(text[off+3])<<24
}

func TestAssembleAdd(t *testing.T) {
	exe, err := Assemble("add a0, a1, a2\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0x00c58533)
	if got != want {
		t.Errorf("add encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleAddiNegative(t *testing.T) {
	exe, err := Assemble("addi a0, a1, -10\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0xff658513)
	if got != want {
		t.Errorf("addi encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleStoreWord(t *testing.T) {
	exe, err := Assemble("sw a1, 32(s0)\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0x02b42023)
	if got != want {
		t.Errorf("sw encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleBranchToLabel(t *testing.T) {
	// beq sits at offset 4, loop at offset 12: an +8 displacement.
	src := "nop\n" +
		"beq a0, a1, loop\n" +
		"nop\n" +
		"loop: nop\n"
	exe, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 1)
	want := uint32(0x00b50463)
	if got != want {
		t.Errorf("beq encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleJalToLabel(t *testing.T) {
	// jal sits at offset 20 (5 nops ahead of it), target at offset 100:
	// an +80 displacement, matching the reference vector exactly.
	preNops := 5
	postNops := (100 - (preNops+1)*4) / 4
	src := strings.Repeat("nop\n", preNops) +
		"jal ra, target\n" +
		strings.Repeat("nop\n", postNops) +
		"target: nop\n"
	exe, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, preNops)
	want := uint32(0x050000ef)
	if got != want {
		t.Errorf("jal encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleLui(t *testing.T) {
	exe, err := Assemble("lui a0, 0xABCDE\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0xabcde537)
	if got != want {
		t.Errorf("lui encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleLaToDataLabel(t *testing.T) {
	src := ".text\n" +
		"nop\nnop\n" +
		"la a0, my_data\n" +
		".data\n" +
		"my_data: .word 42\n"
	exe, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(exe.Text) != 16 {
		t.Fatalf("expected 16 bytes of text (2 nops + la expansion), got %d", len(exe.Text))
	}
	auipc := wordAt(t, exe.Text, 2)
	addi := wordAt(t, exe.Text, 3)
	if auipc != 0x00000517 {
		t.Errorf("la auipc got: %#x expected: %#x", auipc, 0x00000517)
	}
	if addi != 0x00850513 {
		t.Errorf("la addi got: %#x expected: %#x", addi, 0x00850513)
	}
}

func TestAssembleEcall(t *testing.T) {
	exe, err := Assemble("ecall\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0x00000073)
	if got != want {
		t.Errorf("ecall encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleCsrrw(t *testing.T) {
	exe, err := Assemble("csrrw zero, mepc, a0\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0x34151073)
	if got != want {
		t.Errorf("csrrw encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleUnknownInstructionError(t *testing.T) {
	_, err := Assemble("fly a0\n")
	var asmErr *Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if asmErr.Kind != UnknownInstruction {
		t.Errorf("error kind got: %v expected: %v", asmErr.Kind, UnknownInstruction)
	}
}

func TestAssembleUndefinedLabelError(t *testing.T) {
	_, err := Assemble("jal ra, nonexistent_label\n")
	var asmErr *Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if asmErr.Kind != UndefinedLabel {
		t.Errorf("error kind got: %v expected: %v", asmErr.Kind, UndefinedLabel)
	}
}

func TestAssembleNopNoOperands(t *testing.T) {
	exe, err := Assemble("nop\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := wordAt(t, exe.Text, 0)
	want := uint32(0x00000013)
	if got != want {
		t.Errorf("nop encoding got: %#x expected: %#x", got, want)
	}
}

func TestAssembleLiOutOfRange(t *testing.T) {
	_, err := Assemble("li a0, 4096\n")
	var asmErr *Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if asmErr.Kind != ValueOutOfRange {
		t.Errorf("error kind got: %v expected: %v", asmErr.Kind, ValueOutOfRange)
	}
}

func TestAssemblePadsTextToEightBytesOnSectionSwitch(t *testing.T) {
	src := ".text\n" +
		"nop\n" +
		".data\n" +
		"my_data: .word 42\n"
	exe, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(exe.Text) != 8 {
		t.Fatalf("expected text padded to 8 bytes (1 nop + 1 alignment nop), got %d", len(exe.Text))
	}
	pad := wordAt(t, exe.Text, 1)
	if pad != 0x00000013 {
		t.Errorf("alignment padding got: %#x expected: %#x (nop)", pad, 0x00000013)
	}
}

func TestAssemblePadsDataToEightBytesOnSectionSwitch(t *testing.T) {
	src := ".data\n" +
		".byte 1, 2, 3\n" +
		".text\n" +
		"nop\n"
	exe, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(exe.Data) != 8 {
		t.Errorf("expected data padded to 8 bytes, got %d", len(exe.Data))
	}
}

func TestWriteAndReadContainerRoundTrip(t *testing.T) {
	exe, err := Assemble("add a0, a1, a2\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	buf := WriteContainer(exe)
	got, err := ReadContainer(buf)
	if err != nil {
		t.Fatalf("ReadContainer: %v", err)
	}
	if string(got.Text) != string(exe.Text) {
		t.Errorf("round-tripped text got: %v expected: %v", got.Text, exe.Text)
	}
	if got.EntryPoint != exe.EntryPoint {
		t.Errorf("round-tripped entry point got: %#x expected: %#x", got.EntryPoint, exe.EntryPoint)
	}
}

func TestWriteRawHasNoHeader(t *testing.T) {
	exe, err := Assemble(".data\nmy_data: .byte 1, 2, 3\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	raw := WriteRaw(exe)
	if len(raw) != len(exe.Text)+len(exe.Data) {
		t.Errorf("raw length got: %d expected: %d", len(raw), len(exe.Text)+len(exe.Data))
	}
}
