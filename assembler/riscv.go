package assembler

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const InstrBytes = 4 // every base instruction is one 32-bit word

// InstrFmt is the bit layout family of an instruction.
type InstrFmt uint8

const (
	R      InstrFmt = iota // register-register
	I                      // immediate / loads / jalr
	S                      // stores
	B                      // branches
	U                      // lui, auipc
	J                      // jumps
	Pseudo                 // expands to one or more of the above
)

var fmtNames = [...]string{R: "R", I: "I", S: "S", B: "B", U: "U", J: "J", Pseudo: "pseudo"}

func (f InstrFmt) String() string {
	if int(f) < len(fmtNames) {
		return fmtNames[f]
	}
	return fmt.Sprintf("InstrFmt(%d)", uint8(f))
}

// ParseFormat maps a descriptor format tag to an InstrFmt. Pseudo is not a
// valid tag for the instruction table; pseudos live in their own table.
func ParseFormat(tag string) (InstrFmt, error) {
	switch tag {
	case "R", "r":
		return R, nil
	case "I", "i":
		return I, nil
	case "S", "s":
		return S, nil
	case "B", "b", "SB", "sb":
		return B, nil
	case "U", "u":
		return U, nil
	case "J", "j", "UJ", "uj":
		return J, nil
	}
	return 0, fmt.Errorf("%w: unknown format tag %q", ErrBadTable, tag)
}

// InstrDesc holds the fixed fields of one base mnemonic.
type InstrDesc struct {
	Mnemonic  string
	Fmt       InstrFmt
	Opcode    uint8
	Funct3    uint8
	Funct7    uint8
	HasFunct7 bool // on I-format this marks a shift-immediate
}

// InstrTable maps mnemonic to descriptor.
type InstrTable map[string]InstrDesc

// RegTable maps register name to its 5-bit code.
type RegTable map[string]uint8

// ISA bundles the read-only tables every pass and encoder needs.
type ISA struct {
	Instrs  InstrTable
	Regs    RegTable
	Pseudos PseudoTable
}

// Classify returns the format of mnemonic.
func (isa *ISA) Classify(mnemonic string) (InstrFmt, error) {
	if d, ok := isa.Instrs[mnemonic]; ok {
		return d.Fmt, nil
	}
	if _, ok := isa.Pseudos[mnemonic]; ok {
		return Pseudo, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMnemonic, mnemonic)
}

// Reg looks up a register operand.
func (isa *ISA) Reg(name string) (uint32, error) {
	code, ok := isa.Regs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
	}
	return uint32(code), nil
}

// NewISA checks that the base and pseudo tables are disjoint.
func NewISA(instrs InstrTable, regs RegTable, pseudos PseudoTable) (*ISA, error) {
	for name, def := range pseudos {
		if _, dup := instrs[name]; dup {
			return nil, fmt.Errorf("%w: %q is both a base and a pseudo instruction", ErrBadTable, name)
		}
		// expansions must bottom out in one step
		for _, t := range def.Body {
			if _, ok := instrs[t.Op]; !ok {
				return nil, fmt.Errorf("%w: pseudo %q expands to %q, which is not a base instruction", ErrBadTable, name, t.Op)
			}
		}
	}
	if pseudos == nil {
		pseudos = PseudoTable{}
	}
	return &ISA{Instrs: instrs, Regs: regs, Pseudos: pseudos}, nil
}

//go:embed isa/*.dat
var isaFS embed.FS

// DefaultISA loads the RV32I tables shipped with the package.
func DefaultISA() (*ISA, error) {
	sub, err := fs.Sub(isaFS, "isa")
	if err != nil {
		return nil, err
	}
	return loadISA(sub)
}

// LoadISA loads instr.dat, regs.dat and pseudo.dat from dir. A missing
// pseudo.dat means no pseudo-instructions.
func LoadISA(dir string) (*ISA, error) {
	return loadISA(os.DirFS(filepath.Clean(dir)))
}

func loadISA(fsys fs.FS) (*ISA, error) {
	instrs, err := loadFile(fsys, "instr.dat", LoadInstrTable)
	if err != nil {
		return nil, err
	}
	regs, err := loadFile(fsys, "regs.dat", LoadRegTable)
	if err != nil {
		return nil, err
	}
	pseudos, err := loadFile(fsys, "pseudo.dat", LoadPseudoTable)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return NewISA(instrs, regs, pseudos)
}
