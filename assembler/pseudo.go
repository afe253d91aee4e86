package assembler

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

// ArgKind says how a template argument is filled in.
type ArgKind uint8

const (
	ArgLiteral ArgKind = iota // copied as written
	ArgParam                  // replaced by the caller's operand
	ArgHi                     // upper part of a numeric operand, for lui
	ArgLo                     // sign-extended low 12 bits, for addi
)

type TemplateArg struct {
	Kind  ArgKind
	Text  string
	Param int
}

// Template is one base instruction of an expansion.
type Template struct {
	Op   string
	Args []TemplateArg
}

type PseudoDef struct {
	Mnemonic string
	Params   []string
	Body     []Template
}

type PseudoTable map[string]PseudoDef

// pseudo.dat grammar: name params... = op args[, args] [; op args...]
type pseudoLine struct {
	Name   string           `@Ident`
	Params []string         `{ @Ident } "="`
	Body   []*templateInstr `@@ { ";" @@ }`
}

type templateInstr struct {
	Op   string         `@Ident`
	Args []*templateArg `[ @@ { "," @@ } ]`
}

type templateArg struct {
	Reloc *templateReloc `  @@`
	Token string         `| @(Ident | Int)`
}

type templateReloc struct {
	Kind  string `"%" @Ident "("`
	Param string `@Ident ")"`
}

var pseudoLexer = lexer.Must(lexer.Regexp(`(\s+)` +
	`|(?P<Int>-?(?:0[xX][0-9a-fA-F]+|0[bB][01]+|\d+))` +
	`|(?P<Ident>[a-zA-Z_.$][a-zA-Z0-9_.$]*)` +
	`|(?P<Punct>[=;,%()])`))

var pseudoParser = participle.MustBuild(&pseudoLine{}, participle.Lexer(pseudoLexer))

// LoadPseudoTable reads pseudo-instruction definitions.
func LoadPseudoTable(r io.Reader) (PseudoTable, error) {
	table := make(PseudoTable)
	err := dataLines(r, func(n int, line string) error {
		parsed := &pseudoLine{}
		if err := pseudoParser.ParseString(line, parsed); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrBadTable, n, err)
		}
		def, err := parsed.def()
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrBadTable, n, err)
		}
		if _, dup := table[def.Mnemonic]; dup {
			return fmt.Errorf("%w: line %d: %q defined twice", ErrBadTable, n, def.Mnemonic)
		}
		table[def.Mnemonic] = def
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (p *pseudoLine) def() (PseudoDef, error) {
	def := PseudoDef{Mnemonic: p.Name, Params: p.Params}
	index := make(map[string]int, len(p.Params))
	for i, name := range p.Params {
		if _, dup := index[name]; dup {
			return def, fmt.Errorf("%s: parameter %q repeated", p.Name, name)
		}
		index[name] = i
	}
	for _, ti := range p.Body {
		t := Template{Op: ti.Op}
		for _, a := range ti.Args {
			switch {
			case a.Reloc != nil:
				idx, ok := index[a.Reloc.Param]
				if !ok {
					return def, fmt.Errorf("%s: %%%s of unknown parameter %q", p.Name, a.Reloc.Kind, a.Reloc.Param)
				}
				kind := ArgHi
				switch a.Reloc.Kind {
				case "hi":
				case "lo":
					kind = ArgLo
				default:
					return def, fmt.Errorf("%s: unknown relocation %%%s", p.Name, a.Reloc.Kind)
				}
				t.Args = append(t.Args, TemplateArg{Kind: kind, Text: a.Reloc.Param, Param: idx})
			default:
				if idx, ok := index[a.Token]; ok {
					t.Args = append(t.Args, TemplateArg{Kind: ArgParam, Text: a.Token, Param: idx})
				} else {
					t.Args = append(t.Args, TemplateArg{Kind: ArgLiteral, Text: a.Token})
				}
			}
		}
		def.Body = append(def.Body, t)
	}
	return def, nil
}

// splitHiLo splits v so that hi + lo == v modulo 2^32, with lo fitting a
// signed 12-bit immediate and hi a lui operand.
func splitHiLo(v int64) (hi, lo int64) {
	lo = int64(int32(uint32(v)<<20) >> 20)
	hi = int64(uint32(v - lo))
	return hi, lo
}

// Expand rewrites a pseudo-instruction into base instruction tokens. A %hi or
// %lo operand must fit 32 bits unless truncate is set, in which case only its
// low 32 bits are used.
func (isa *ISA) Expand(tokens []string, truncate bool) ([][]string, error) {
	def, ok := isa.Pseudos[tokens[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMnemonic, tokens[0])
	}
	args := tokens[1:]
	if len(args) != len(def.Params) {
		return nil, fmt.Errorf("%w: %s takes %d operands, got %d", ErrMalformedOperand, def.Mnemonic, len(def.Params), len(args))
	}
	out := make([][]string, 0, len(def.Body))
	for _, t := range def.Body {
		line := make([]string, 0, len(t.Args)+1)
		line = append(line, t.Op)
		for _, a := range t.Args {
			switch a.Kind {
			case ArgLiteral:
				line = append(line, a.Text)
			case ArgParam:
				line = append(line, args[a.Param])
			case ArgHi, ArgLo:
				v, err := strconv.ParseInt(args[a.Param], 0, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: %s needs a number for %s, got %q", ErrMalformedOperand, def.Mnemonic, a.Text, args[a.Param])
				}
				if !truncate && (v < -1<<31 || v > 1<<32-1) {
					return nil, fmt.Errorf("%w: %s = %d, want %d..%d", ErrImmediateOverflow, a.Text, v, int64(-1<<31), int64(1<<32-1))
				}
				hi, lo := splitHiLo(v)
				if a.Kind == ArgHi {
					line = append(line, strconv.FormatInt(hi, 10))
				} else {
					line = append(line, strconv.FormatInt(lo, 10))
				}
			}
		}
		out = append(out, line)
	}
	return out, nil
}
