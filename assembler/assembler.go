package assembler

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SymbolTable maps label name to byte address.
type SymbolTable map[string]uint32

// TokenLine is one base instruction after Pass 1.
type TokenLine struct {
	Tokens []string
	Addr   uint32
	Fmt    InstrFmt
	Mem    bool // last operands came from imm(reg)
	Line   int
	Text   string
}

// Word is one encoded instruction at its address.
type Word struct {
	Addr uint32
	Bits uint32
	Line int
}

type Program struct {
	Words   []Word
	Symbols SymbolTable
	Lines   []TokenLine
}

type Options struct {
	// Truncate masks out-of-range immediates instead of rejecting them.
	Truncate bool
	// Workers bounds Pass 2 parallelism. 0 means GOMAXPROCS, 1 sequential.
	Workers int
	// Log, when set, receives one line per instruction of each pass.
	Log *log.Logger
}

type Assembler struct {
	isa  *ISA
	opts Options
}

func New(isa *ISA, opts Options) *Assembler {
	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Assembler{isa: isa, opts: opts}
}

func (a *Assembler) logf(format string, args ...any) {
	if a.opts.Log != nil {
		a.opts.Log.Printf(format, args...)
	}
}

// ReadSource returns the lines of r with line endings removed.
func ReadSource(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Assemble runs both passes over src.
func (a *Assembler) Assemble(src string) (*Program, error) {
	return a.AssembleLines(strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n"))
}

// AssembleLines runs both passes. Pass 2 starts only once every label is
// bound, so forward references resolve.
func (a *Assembler) AssembleLines(lines []string) (*Program, error) {
	tokLines, symbols, err := a.FirstPass(lines)
	if err != nil {
		return nil, err
	}
	words, err := a.SecondPass(tokLines, symbols)
	if err != nil {
		return nil, err
	}
	return &Program{Words: words, Symbols: symbols, Lines: tokLines}, nil
}

// FirstPass assigns addresses and binds labels. Operands are left alone.
func (a *Assembler) FirstPass(lines []string) ([]TokenLine, SymbolTable, error) {
	symbols := make(SymbolTable)
	out := make([]TokenLine, 0, len(lines))
	var addr uint32

	for i, raw := range lines {
		lineNum := i + 1
		lineErr := func(err error) error {
			return &LineError{Line: lineNum, Text: raw, Err: err}
		}

		kind, label, rest, err := ClassifyLine(raw)
		if err != nil {
			return nil, nil, lineErr(err)
		}
		switch kind {
		case LineSkip:
			continue
		case LineLabel:
			if prev, dup := symbols[label]; dup {
				return nil, nil, lineErr(fmt.Errorf("%w: %q first bound at 0x%X", ErrDuplicateLabel, label, prev))
			}
			symbols[label] = addr
			a.logf("(0x%X) %s:", addr, label)
			if rest == "" {
				continue
			}
		}

		tokens, mem, err := tokenize(rest, a.isa)
		if err != nil {
			return nil, nil, lineErr(err)
		}
		if len(tokens) == 0 {
			continue
		}
		f, err := a.isa.Classify(tokens[0])
		if err != nil {
			return nil, nil, lineErr(err)
		}

		expanded := [][]string{tokens}
		if f == Pseudo {
			if expanded, err = a.isa.Expand(tokens, a.opts.Truncate); err != nil {
				return nil, nil, lineErr(err)
			}
			mem = false
		}
		for _, toks := range expanded {
			out = append(out, TokenLine{
				Tokens: toks,
				Addr:   addr,
				Fmt:    a.isa.Instrs[toks[0]].Fmt,
				Mem:    mem,
				Line:   lineNum,
				Text:   raw,
			})
			a.logf("(0x%X) %s", addr, strings.Join(toks, " "))
			addr += InstrBytes
		}
	}
	return out, symbols, nil
}

// SecondPass resolves label operands and encodes every line. Lines are
// independent once symbols is complete, so they are encoded in parallel and
// written back by index.
func (a *Assembler) SecondPass(lines []TokenLine, symbols SymbolTable) ([]Word, error) {
	words := make([]Word, len(lines))
	errs := make([]error, len(lines))

	if a.opts.Workers <= 1 {
		for i, tl := range lines {
			bits, err := a.encode(tl, symbols)
			if err != nil {
				return nil, &LineError{Line: tl.Line, Text: tl.Text, Err: err}
			}
			words[i] = Word{Addr: tl.Addr, Bits: bits, Line: tl.Line}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.opts.Workers)
		for i := range lines {
			i := i
			g.Go(func() error {
				tl := lines[i]
				bits, err := a.encode(tl, symbols)
				if err != nil {
					errs[i] = &LineError{Line: tl.Line, Text: tl.Text, Err: err}
					return errs[i]
				}
				words[i] = Word{Addr: tl.Addr, Bits: bits, Line: tl.Line}
				return nil
			})
		}
		if g.Wait() != nil {
			// report the earliest failing line, not whichever finished first
			for _, err := range errs {
				if err != nil {
					return nil, err
				}
			}
		}
	}

	for _, w := range words {
		a.logf("(0x%X) %08X", w.Addr, w.Bits)
	}
	return words, nil
}
