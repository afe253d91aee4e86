package assembler

import (
	"fmt"
	"strings"
)

// LineKind says what Pass 1 should do with a source line.
type LineKind uint8

const (
	LineSkip  LineKind = iota // blank, comment or directive
	LineLabel                 // "name:" optionally followed by an instruction
	LineInstr
)

func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx != -1 {
		return line[:idx]
	}
	return line
}

func skippable(line string) bool {
	return line == "" || line[0] == '#' || line[0] == '.'
}

// ClassifyLine splits a source line into its label (if any) and the
// instruction text that follows it.
func ClassifyLine(line string) (kind LineKind, label, rest string, err error) {
	line = strings.TrimSpace(line)
	if skippable(line) {
		return LineSkip, "", "", nil
	}
	code := strings.TrimSpace(stripComment(line))
	if code == "" {
		return LineSkip, "", "", nil
	}
	name, after, ok := strings.Cut(code, ":")
	if !ok {
		return LineInstr, "", code, nil
	}
	name = strings.TrimSpace(name)
	if !validLabel(name) {
		return LineSkip, "", "", fmt.Errorf("%w: bad label name %q", ErrMalformedOperand, name)
	}
	after = strings.TrimSpace(after)
	if skippable(after) {
		after = ""
	}
	return LineLabel, name, after, nil
}

func validLabel(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '$') {
			return false
		}
	}
	return true
}

// Tokenize turns an instruction line into [mnemonic, operands...]. For I and
// S mnemonics a trailing imm(reg) operand becomes the two tokens imm, reg.
func Tokenize(line string, isa *ISA) ([]string, error) {
	tokens, _, err := tokenize(line, isa)
	return tokens, err
}

// tokenize also reports whether the imm(reg) rewrite happened.
func tokenize(line string, isa *ISA) ([]string, bool, error) {
	tokens := strings.Fields(strings.ReplaceAll(stripComment(line), ",", " "))
	if len(tokens) < 2 {
		return tokens, false, nil
	}
	if f, err := isa.Classify(tokens[0]); err != nil || (f != I && f != S) {
		return tokens, false, nil
	}
	last := tokens[len(tokens)-1]
	open := strings.IndexByte(last, '(')
	if open == -1 {
		if strings.IndexByte(last, ')') != -1 {
			return nil, false, fmt.Errorf("%w: %q: want imm(reg)", ErrMalformedOperand, last)
		}
		return tokens, false, nil
	}
	closing := strings.IndexByte(last, ')')
	if closing != len(last)-1 || closing < open+2 {
		return nil, false, fmt.Errorf("%w: %q: want imm(reg)", ErrMalformedOperand, last)
	}
	imm, reg := last[:open], last[open+1:closing]
	if imm == "" {
		imm = "0"
	}
	out := append(tokens[:len(tokens)-1:len(tokens)-1], imm, reg)
	return out, true, nil
}
