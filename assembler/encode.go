package assembler

import (
	"fmt"
	"strconv"
)

// OperandKind tags how an operand token was resolved.
type OperandKind uint8

const (
	OperandText  OperandKind = iota // register name or unresolved symbol
	OperandImm                      // numeric literal
	OperandLabel                    // label; Value is the signed word offset
)

// Operand is one resolved operand. Text always keeps the source token.
type Operand struct {
	Kind  OperandKind
	Text  string
	Value int64
}

func parseOperand(tok string) Operand {
	if v, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return Operand{Kind: OperandImm, Text: tok, Value: v}
	}
	return Operand{Kind: OperandText, Text: tok}
}

// ResolveOperand resolves a final operand at addr. Known labels become word
// offsets (labelAddr - addr) / 4.
func ResolveOperand(tok string, addr uint32, symbols SymbolTable) (Operand, error) {
	op := parseOperand(tok)
	if op.Kind == OperandImm {
		return op, nil
	}
	target, ok := symbols[tok]
	if !ok {
		return op, nil
	}
	diff := int64(target) - int64(addr)
	if diff%InstrBytes != 0 {
		return Operand{}, fmt.Errorf("%w: %s at 0x%X seen from 0x%X", ErrMisalignedLabelOffset, tok, target, addr)
	}
	return Operand{Kind: OperandLabel, Text: tok, Value: diff / InstrBytes}, nil
}

func mask(v int64, width uint) uint32 {
	return uint32(uint64(v) & (1<<width - 1))
}

// EncodeR packs funct7 rs2 rs1 funct3 rd opcode.
func EncodeR(d InstrDesc, rd, rs1, rs2 uint32) uint32 {
	return uint32(d.Funct7)<<25 | rs2<<20 | rs1<<15 | uint32(d.Funct3)<<12 | rd<<7 | uint32(d.Opcode)
}

// EncodeI packs imm[11:0] rs1 funct3 rd opcode. Shift-immediates put funct7
// in imm[11:5] and the 5-bit shamt below it.
func EncodeI(d InstrDesc, rd, rs1 uint32, imm int64) uint32 {
	v := mask(imm, 12)
	if d.HasFunct7 {
		v = uint32(d.Funct7)<<5 | mask(imm, 5)
	}
	return v<<20 | rs1<<15 | uint32(d.Funct3)<<12 | rd<<7 | uint32(d.Opcode)
}

// EncodeS packs imm[11:5] rs2 rs1 funct3 imm[4:0] opcode.
func EncodeS(d InstrDesc, rs1, rs2 uint32, imm int64) uint32 {
	v := mask(imm, 12)
	return (v>>5)<<25 | rs2<<20 | rs1<<15 | uint32(d.Funct3)<<12 | (v&0x1F)<<7 | uint32(d.Opcode)
}

// EncodeB packs imm[12|10:5] rs2 rs1 funct3 imm[4:1|11] opcode. off is a
// byte offset; bit 0 is implicit.
func EncodeB(d InstrDesc, rs1, rs2 uint32, off int64) uint32 {
	v := mask(off, 13)
	return (v>>12&1)<<31 | (v>>5&0x3F)<<25 | rs2<<20 | rs1<<15 | uint32(d.Funct3)<<12 |
		(v>>1&0xF)<<8 | (v>>11&1)<<7 | uint32(d.Opcode)
}

// EncodeU packs imm[31:12] rd opcode.
func EncodeU(d InstrDesc, rd uint32, imm int64) uint32 {
	return mask(imm>>12, 20)<<12 | rd<<7 | uint32(d.Opcode)
}

// EncodeJ packs imm[20|10:1|11|19:12] rd opcode. off is a byte offset.
func EncodeJ(d InstrDesc, rd uint32, off int64) uint32 {
	v := mask(off, 21)
	return (v>>20&1)<<31 | (v>>1&0x3FF)<<21 | (v>>11&1)<<20 | (v>>12&0xFF)<<12 | rd<<7 | uint32(d.Opcode)
}

var operandCount = [...]int{R: 3, I: 3, S: 3, B: 3, U: 2, J: 2, Pseudo: 0}

// encoder resolves operands for one instruction and keeps the first error.
type encoder struct {
	isa      *ISA
	truncate bool
	err      error
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) reg(op Operand) uint32 {
	code, err := e.isa.Reg(op.Text)
	if err != nil {
		e.fail(err)
	}
	return code
}

func (e *encoder) imm(op Operand) int64 {
	if op.Kind == OperandText {
		e.fail(fmt.Errorf("%w: %q", ErrUndefinedSymbol, op.Text))
	}
	return op.Value
}

// target is a branch or jump destination in bytes.
func (e *encoder) target(op Operand) int64 {
	v := e.imm(op)
	if op.Kind == OperandLabel {
		return v * InstrBytes
	}
	if v&1 != 0 && !e.truncate {
		e.fail(fmt.Errorf("%w: odd offset %d", ErrImmediateOverflow, v))
	}
	return v
}

func (e *encoder) check(op Operand, v, lo, hi int64) {
	if e.truncate || e.err != nil {
		return
	}
	if v < lo || v > hi {
		e.fail(fmt.Errorf("%w: %s = %d, want %d..%d", ErrImmediateOverflow, op.Text, v, lo, hi))
	}
}

func (a *Assembler) encode(tl TokenLine, symbols SymbolTable) (uint32, error) {
	d, ok := a.isa.Instrs[tl.Tokens[0]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMnemonic, tl.Tokens[0])
	}
	toks := tl.Tokens[1:]
	if len(toks) != operandCount[d.Fmt] {
		return 0, fmt.Errorf("%w: %s takes %d operands, got %d", ErrMalformedOperand, d.Mnemonic, operandCount[d.Fmt], len(toks))
	}
	ops := make([]Operand, len(toks))
	for i, tok := range toks[:len(toks)-1] {
		ops[i] = parseOperand(tok)
	}
	last, err := ResolveOperand(toks[len(toks)-1], tl.Addr, symbols)
	if err != nil {
		return 0, err
	}
	ops[len(ops)-1] = last

	e := &encoder{isa: a.isa, truncate: a.opts.Truncate}
	var bits uint32
	switch d.Fmt {
	case R:
		bits = EncodeR(d, e.reg(ops[0]), e.reg(ops[1]), e.reg(ops[2]))
	case I:
		// rd, rs1, imm  or  rd, imm(rs1)
		base, off := ops[1], ops[2]
		if tl.Mem {
			base, off = ops[2], ops[1]
		}
		rd, rs1, imm := e.reg(ops[0]), e.reg(base), e.imm(off)
		if d.HasFunct7 {
			e.check(off, imm, 0, 31)
		} else {
			e.check(off, imm, -2048, 2047)
		}
		bits = EncodeI(d, rd, rs1, imm)
	case S:
		// rs2, imm(rs1)  or  rs2, rs1, imm
		base, off := ops[1], ops[2]
		if tl.Mem {
			base, off = ops[2], ops[1]
		}
		rs2, rs1, imm := e.reg(ops[0]), e.reg(base), e.imm(off)
		e.check(off, imm, -2048, 2047)
		bits = EncodeS(d, rs1, rs2, imm)
	case B:
		rs1, rs2, off := e.reg(ops[0]), e.reg(ops[1]), e.target(ops[2])
		e.check(ops[2], off, -1<<12, 1<<12-2)
		bits = EncodeB(d, rs1, rs2, off)
	case U:
		rd, imm := e.reg(ops[0]), e.imm(ops[1])
		e.check(ops[1], imm, -1<<31, 1<<32-1)
		bits = EncodeU(d, rd, imm)
	case J:
		rd, off := e.reg(ops[0]), e.target(ops[1])
		e.check(ops[1], off, -1<<20, 1<<20-2)
		bits = EncodeJ(d, rd, off)
	default:
		return 0, fmt.Errorf("%w: %q has no encoder for %s", ErrUnknownMnemonic, d.Mnemonic, d.Fmt)
	}
	if e.err != nil {
		return 0, e.err
	}
	return bits, nil
}
