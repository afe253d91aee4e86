package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"
	"golang.org/x/term"

	"rvasm/assembler"
)

func newAurora(mode string, w io.Writer) aurora.Aurora {
	switch mode {
	case "always":
		return aurora.NewAurora(true)
	case "never":
		return aurora.NewAurora(false)
	}
	f, ok := w.(*os.File)
	return aurora.NewAurora(ok && term.IsTerminal(int(f.Fd())))
}

func loadISA(dir string) (*assembler.ISA, error) {
	if dir == "" {
		return assembler.DefaultISA()
	}
	return assembler.LoadISA(dir)
}

func assembleFile(cfg *config, filename string, logw io.Writer) (*assembler.Program, error) {
	isa, err := loadISA(cfg.isaDir)
	if err != nil {
		return nil, err
	}
	data, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer data.Close()
	lines, err := assembler.ReadSource(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	opts := assembler.Options{Truncate: cfg.truncate, Workers: cfg.jobs}
	if cfg.verbose {
		opts.Log = log.New(logw, "", 0)
		opts.Log.Printf("Assembling %s (%d lines)...", filename, len(lines))
	}
	prog, err := assembler.New(isa, opts).AssembleLines(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if cfg.verbose {
		opts.Log.Printf("%d words, %d labels", len(prog.Words), len(prog.Symbols))
	}
	return prog, nil
}

func dumpProgram(w io.Writer, prog *assembler.Program) {
	cs := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
	cs.Fdump(w, prog.Symbols, prog.Lines)
}

// formatFor picks an output format from the output file extension.
func formatFor(output string) string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".bin":
		return "bin"
	case ".txt":
		return "text"
	}
	return "listing"
}

func run(cfg *config, filename string, stdout, stderr io.Writer) error {
	prog, err := assembleFile(cfg, filename, stderr)
	if err != nil {
		return err
	}
	if cfg.dump {
		dumpProgram(stderr, prog)
	}
	format := cfg.format
	if format == "" {
		format = formatFor(cfg.output)
	}

	if cfg.output == "" {
		return render(stdout, prog.Words, format, cfg.nibble, newAurora(cfg.color, stdout))
	}
	out, err := os.Create(cfg.output)
	if err != nil {
		return err
	}
	if err := render(out, prog.Words, format, cfg.nibble, aurora.NewAurora(false)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
