package assembler

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMnemonic       = errors.New("unknown mnemonic")
	ErrUnknownRegister       = errors.New("unknown register")
	ErrMisalignedLabelOffset = errors.New("label offset is not a multiple of 4")
	ErrMalformedOperand      = errors.New("malformed operand syntax")
	ErrImmediateOverflow     = errors.New("immediate does not fit")
	ErrDuplicateLabel        = errors.New("label already defined")
	ErrUndefinedSymbol       = errors.New("undefined symbol")
	ErrBadTable              = errors.New("bad descriptor table")
)

// LineError ties a failure to the source line that caused it.
type LineError struct {
	Line int // 1-based
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v\n\t%s", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error { return e.Err }
