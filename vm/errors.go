package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. These are sentinels, not types: callers compare with
// errors.Is (or errors.Cause, since runtime errors are wrapped with
// the failing instruction's PC and opcode before being surfaced).
var (
	ErrParse           = errors.New("parse error")
	ErrPCOutOfRange    = errors.New("PC out of range")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrMemoryFault     = errors.New("memory fault")
	ErrBadBaseRegister = errors.New("bad base register")
	ErrBadOperand      = errors.New("bad operand")
	ErrDivideByZero    = errors.New("divide by zero")
	ErrIOFormat        = errors.New("malformed integer input")
	ErrIOEnd           = errors.New("input stream closed")
)

// runtimeError wraps one of the sentinels above with the PC and opcode
// of the instruction that raised it, so the message reads
// "at instruction <pc>: <instr>: <err>" instead of a bare sentinel.
func (m *Machine) runtimeError(cause error, instr Instruction, pc int) error {
	return errors.Wrap(cause, fmt.Sprintf("at instruction %d: %s", pc, instr))
}

// ParseError reports a loader failure: malformed source, unknown
// opcode, wrong arity, or a non-integer operand. It carries the
// 1-based source line number for diagnostics.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}
