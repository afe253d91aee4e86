package assembler

import (
	"strings"
	"testing"
)

func TestEncodeRRoundTrip(t *testing.T) {
	d := InstrDesc{Mnemonic: "xr", Fmt: R, Opcode: 0b0101010, Funct3: 0b101, Funct7: 0b1010101}
	const rd, rs1, rs2 = 0b10001, 0b01110, 0b11011
	w := EncodeR(d, rd, rs1, rs2)

	fields := []struct {
		name      string
		got, want uint32
	}{
		{"opcode", w & 0x7F, uint32(d.Opcode)},
		{"rd", w >> 7 & 0x1F, rd},
		{"funct3", w >> 12 & 0x7, uint32(d.Funct3)},
		{"rs1", w >> 15 & 0x1F, rs1},
		{"rs2", w >> 20 & 0x1F, rs2},
		{"funct7", w >> 25, uint32(d.Funct7)},
	}
	for _, f := range fields {
		if f.got != f.want {
			t.Errorf("%s = %b, want %b", f.name, f.got, f.want)
		}
	}
}

// decodeB and decodeJ reassemble the scattered immediates, sign-extended.
func decodeB(w uint32) int64 {
	v := (w>>31&1)<<12 | (w>>7&1)<<11 | (w>>25&0x3F)<<5 | (w>>8&0xF)<<1
	return int64(int32(v<<19) >> 19)
}

func decodeJ(w uint32) int64 {
	v := (w>>31&1)<<20 | (w>>12&0xFF)<<12 | (w>>20&1)<<11 | (w>>21&0x3FF)<<1
	return int64(int32(v<<11) >> 11)
}

func TestEncodeBranchOffsets(t *testing.T) {
	d := InstrDesc{Fmt: B, Opcode: 0b1100011}
	for _, off := range []int64{0, 2, -2, 8, -4, 2046, 2048, -2048, 4094, -4096} {
		if got := decodeB(EncodeB(d, 0, 0, off)); got != off {
			t.Errorf("B offset %d decoded as %d", off, got)
		}
	}
}

func TestEncodeJumpOffsets(t *testing.T) {
	d := InstrDesc{Fmt: J, Opcode: 0b1101111}
	for _, off := range []int64{0, 2, -2, 2048, -4, 1<<20 - 2, -1 << 20, 0x7F00E} {
		if got := decodeJ(EncodeJ(d, 0, off)); got != off {
			t.Errorf("J offset %d decoded as %d", off, got)
		}
	}
}

func TestEncodeUTakesUpperBits(t *testing.T) {
	d := InstrDesc{Fmt: U, Opcode: 0b0110111}
	tests := []struct {
		imm  int64
		want uint32
	}{
		{0x12345000, 0x12345037},
		{0x12345FFF, 0x12345037},
		{-4096, 0xFFFFF037},
		{0xFFFFF000, 0xFFFFF037},
	}
	for _, tt := range tests {
		if got := EncodeU(d, 0, tt.imm); got != tt.want {
			t.Errorf("EncodeU(%#x) = %08X, want %08X", tt.imm, got, tt.want)
		}
	}
}

func TestSyntheticTables(t *testing.T) {
	instrs, err := LoadInstrTable(strings.NewReader("mix R 0110011 111 1111111\nldx I 0000011 011\n"))
	if err != nil {
		t.Fatalf("LoadInstrTable: %v", err)
	}
	regs, err := LoadRegTable(strings.NewReader("r0 0\nr1 1\nr31 31\n"))
	if err != nil {
		t.Fatalf("LoadRegTable: %v", err)
	}
	isa, err := NewISA(instrs, regs, nil)
	if err != nil {
		t.Fatalf("NewISA: %v", err)
	}
	prog, err := New(isa, Options{Workers: 1}).Assemble("mix r31, r1, r0\nldx r1, 4(r31)")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []uint32{
		0x7F<<25 | 0<<20 | 1<<15 | 7<<12 | 31<<7 | 0x33,
		4<<20 | 31<<15 | 3<<12 | 1<<7 | 0x03,
	}
	for i, w := range prog.Words {
		if w.Bits != want[i] {
			t.Errorf("word %d = %08X, want %08X", i, w.Bits, want[i])
		}
	}
	if _, err := New(isa, Options{Workers: 1}).Assemble("add x1, x2, x3"); err == nil {
		t.Fatal("synthetic tables accepted a mnemonic they do not define")
	}
}
