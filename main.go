package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type config struct {
	output   string
	format   string
	isaDir   string
	truncate bool
	jobs     int
	verbose  bool
	dump     bool
	color    string
	nibble   bool
}

func newRootCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rvasm [flags] source.s",
		Short: "Two-pass RV32I assembler",
		Long: `rvasm translates RISC-V assembly into 32-bit machine words.

Labels may be referenced before they are defined. Instruction, register and
pseudo-instruction tables are built in; --isa points at a directory holding
replacement instr.dat, regs.dat and pseudo.dat files.

Output goes to stdout as an address listing unless -o is given. The output
format follows the file extension (.bin raw big-endian words, .txt binary
text) unless --format overrides it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.output, "output", "o", "", "write output to `file` instead of stdout")
	f.StringVar(&cfg.format, "format", "", "output format: listing, hex, text or bin")
	f.StringVar(&cfg.isaDir, "isa", "", "load instruction tables from `dir`")
	f.BoolVar(&cfg.truncate, "truncate", false, "mask out-of-range immediates instead of failing")
	f.IntVarP(&cfg.jobs, "jobs", "j", 0, "encoder workers for the second pass (0 = one per CPU)")
	f.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every line of both passes")
	f.BoolVar(&cfg.dump, "dump", false, "dump the symbol table and token lines to stderr")
	f.StringVar(&cfg.color, "color", "auto", "colour diagnostics: auto, always or never")
	f.BoolVar(&cfg.nibble, "nibble", false, "group text output into tab separated nibbles")
	return cmd
}

func main() {
	cfg := &config{}
	if err := newRootCmd(cfg).Execute(); err != nil {
		au := newAurora(cfg.color, os.Stderr)
		fmt.Fprintf(os.Stderr, "%s %v\n", au.Bold(au.Red("error:")), err)
		os.Exit(1)
	}
}
