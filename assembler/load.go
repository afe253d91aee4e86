package assembler

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

func loadFile[T any](fsys fs.FS, name string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := fsys.Open(name)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	t, err := load(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// dataLines calls fn with the fields of every non-blank, non-comment line.
func dataLines(r io.Reader, fn func(lineNum int, line string) error) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := fn(lineNum, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseField reads a fixed descriptor field. Bare digits are binary, as in
// "0110011"; 0b and 0x prefixes are also accepted.
func parseField(s string, width int) (uint8, error) {
	var v uint64
	var err error
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"),
		strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		v, err = strconv.ParseUint(s, 0, 8)
	default:
		v, err = strconv.ParseUint(s, 2, 8)
	}
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", s, err)
	}
	if v >= 1<<width {
		return 0, fmt.Errorf("field %q wider than %d bits", s, width)
	}
	return uint8(v), nil
}

// LoadInstrTable reads "mnemonic format opcode [funct3 [funct7]]" lines.
func LoadInstrTable(r io.Reader) (InstrTable, error) {
	table := make(InstrTable)
	err := dataLines(r, func(n int, line string) error {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("%w: line %d: want mnemonic, format and opcode", ErrBadTable, n)
		}
		desc := InstrDesc{Mnemonic: fields[0]}
		var err error
		if desc.Fmt, err = ParseFormat(fields[1]); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		lo, hi := 3, 3
		switch desc.Fmt {
		case R:
			lo, hi = 5, 5
		case I:
			lo, hi = 4, 5
		case S, B:
			lo, hi = 4, 4
		}
		if len(fields) < lo || len(fields) > hi {
			return fmt.Errorf("%w: line %d: %s-format %q needs %d fields, got %d",
				ErrBadTable, n, desc.Fmt, desc.Mnemonic, lo, len(fields))
		}
		if desc.Opcode, err = parseField(fields[2], 7); err != nil {
			return fmt.Errorf("%w: line %d: opcode %v", ErrBadTable, n, err)
		}
		if len(fields) > 3 {
			if desc.Funct3, err = parseField(fields[3], 3); err != nil {
				return fmt.Errorf("%w: line %d: funct3 %v", ErrBadTable, n, err)
			}
		}
		if len(fields) > 4 {
			if desc.Funct7, err = parseField(fields[4], 7); err != nil {
				return fmt.Errorf("%w: line %d: funct7 %v", ErrBadTable, n, err)
			}
			desc.HasFunct7 = true
		}
		if _, dup := table[desc.Mnemonic]; dup {
			return fmt.Errorf("%w: line %d: %q defined twice", ErrBadTable, n, desc.Mnemonic)
		}
		table[desc.Mnemonic] = desc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// LoadRegTable reads "name index" lines; index is N or xN.
func LoadRegTable(r io.Reader) (RegTable, error) {
	table := make(RegTable)
	err := dataLines(r, func(n int, line string) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("%w: line %d: want register name and index", ErrBadTable, n)
		}
		idx, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "x"), 10, 8)
		if err != nil || idx > 31 {
			return fmt.Errorf("%w: line %d: register index %q", ErrBadTable, n, fields[1])
		}
		if _, dup := table[fields[0]]; dup {
			return fmt.Errorf("%w: line %d: register %q defined twice", ErrBadTable, n, fields[0])
		}
		table[fields[0]] = uint8(idx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
