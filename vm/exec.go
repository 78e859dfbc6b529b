package vm

import (
	"io"
	"strconv"
	"strings"
)

// sentinelError is a distinct error type so errExit can be recognized
// by identity without being confused with a genuine runtime error.
type sentinelError string

func (e sentinelError) Error() string { return string(e) }

// errExit is returned internally by execute to signal a successful
// EXIT — distinguishing "halted with a result" from "halted with an
// error" without overloading the error value itself.
const errExit = sentinelError("exit")

// Step executes exactly one fetch-decode-execute cycle. It returns
// halted=true once the machine has stopped, either because EXIT ran
// (Err() is nil, Result() holds the code) or because a runtime error
// was raised (Err() is non-nil). Calling Step again after halted is a
// no-op that returns the same outcome.
func (m *Machine) Step() (halted bool, err error) {
	if m.state == StateHalted {
		return true, m.err
	}

	if m.pc < 0 || m.pc >= m.program.Len() {
		m.err = ErrPCOutOfRange
		m.state = StateHalted
		return true, m.err
	}

	pc := m.pc
	instr := m.program.At(pc)
	m.pc++
	m.state = StateRunning

	execErr := m.execute(instr)
	if execErr == errExit {
		m.state = StateHalted
		return true, nil
	}
	if execErr != nil {
		m.err = m.runtimeError(execErr, instr, pc)
		m.state = StateHalted
		return true, m.err
	}
	return false, nil
}

// Run drives Step to completion. If tracer is non-nil, it is invoked
// after every successfully executed instruction (including the
// terminal EXIT), and blocks until the tracer returns. Run returns the
// EXIT result code and a nil error on success, or a zero result and
// the halting error on failure.
func (m *Machine) Run(tracer Tracer) (int32, error) {
	for {
		pc := m.pc
		halted, err := m.Step()
		if err == nil && tracer != nil {
			instr := m.program.At(pc)
			tracer.AfterStep(m, pc, instr)
		}
		if halted {
			return m.result, err
		}
	}
}

func (m *Machine) execute(instr Instruction) error {
	switch instr.Op {
	case ISP:
		n := instr.Operands[0]
		if n < 0 {
			return ErrBadOperand
		}
		for i := int32(0); i < n; i++ {
			if err := m.push(0); err != nil {
				return err
			}
		}

	case LA:
		base, err := m.baseRegister(instr.Operands[0])
		if err != nil {
			return err
		}
		return m.push(int32(base) + instr.Operands[1])

	case LV:
		base, err := m.baseRegister(instr.Operands[0])
		if err != nil {
			return err
		}
		v, err := m.at(base + int(instr.Operands[1]))
		if err != nil {
			return err
		}
		return m.push(v)

	case LC:
		return m.push(instr.Operands[0])

	case LI:
		addr, err := m.top()
		if err != nil {
			return err
		}
		v, err := m.at(int(addr))
		if err != nil {
			return err
		}
		return m.setTop(v)

	case DUP:
		v, err := m.top()
		if err != nil {
			return err
		}
		return m.push(v)

	case SI:
		v, err := m.pop()
		if err != nil {
			return err
		}
		addr, err := m.pop()
		if err != nil {
			return err
		}
		return m.setAt(int(addr), v)

	case SV:
		base, err := m.baseRegister(instr.Operands[0])
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.setAt(base+int(instr.Operands[1]), v)

	case SB:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.setBaseRegister(instr.Operands[0], v)

	case B:
		m.pc = m.pc + int(instr.Operands[0])

	case BZ:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			m.pc = m.pc + int(instr.Operands[0])
		}

	case CALL:
		return m.execCall(instr.Operands[0])

	case RET:
		return m.execRet()

	case GETC:
		return m.execGetc()

	case GETI:
		return m.execGeti()

	case PUTC:
		return m.execPutc()

	case PUTI:
		return m.execPuti()

	case ADD:
		return m.binOp(func(b, t int32) int32 { return b + t })
	case SUB:
		return m.binOp(func(b, t int32) int32 { return b - t })
	case MUL:
		return m.binOp(func(b, t int32) int32 { return b * t })
	case DIV:
		return m.binOpErr(func(b, t int32) (int32, error) {
			if t == 0 {
				return 0, ErrDivideByZero
			}
			return b / t, nil
		})
	case MOD:
		return m.binOpErr(func(b, t int32) (int32, error) {
			if t == 0 {
				return 0, ErrDivideByZero
			}
			return b % t, nil
		})
	case INV:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(-v)

	case EQ:
		return m.binOp(boolOp(func(b, t int32) bool { return b == t }))
	case NE:
		return m.binOp(boolOp(func(b, t int32) bool { return b != t }))
	case GT:
		return m.binOp(boolOp(func(b, t int32) bool { return b > t }))
	case LT:
		return m.binOp(boolOp(func(b, t int32) bool { return b < t }))
	case GE:
		return m.binOp(boolOp(func(b, t int32) bool { return b >= t }))
	case LE:
		return m.binOp(boolOp(func(b, t int32) bool { return b <= t }))

	case EXIT:
		v, err := m.pop()
		if err != nil {
			v = 0
		}
		m.result = v
		return errExit

	default:
		return ErrParse
	}

	return nil
}

// binOp pops top then bottom and pushes f(bottom, top) — the
// "bottom op top" convention arithmetic and comparison opcodes use.
func (m *Machine) binOp(f func(b, t int32) int32) error {
	t, err := m.pop()
	if err != nil {
		return err
	}
	b, err := m.pop()
	if err != nil {
		return err
	}
	return m.push(f(b, t))
}

func (m *Machine) binOpErr(f func(b, t int32) (int32, error)) error {
	t, err := m.pop()
	if err != nil {
		return err
	}
	b, err := m.pop()
	if err != nil {
		return err
	}
	result, err := f(b, t)
	if err != nil {
		return err
	}
	return m.push(result)
}

func boolOp(cmp func(b, t int32) bool) func(b, t int32) int32 {
	return func(b, t int32) int32 {
		if cmp(b, t) {
			return 1
		}
		return 0
	}
}

// execCall builds the three-word frame header — a placeholder return
// slot, the caller's B1, and the already-advanced PC — then points B1
// at the placeholder and jumps to the target.
func (m *Machine) execCall(target int32) error {
	header := len(m.stack)
	if err := m.push(0); err != nil {
		return err
	}
	if err := m.push(int32(m.b1)); err != nil {
		return err
	}
	if err := m.push(int32(m.pc)); err != nil {
		return err
	}
	m.b1 = header
	m.pc = int(target)
	return nil
}

// execRet discards any locals above the frame header, then unwinds
// the header itself: saved PC first, then saved B1. The placeholder
// slot is left on top of the stack as the callee's return value.
func (m *Machine) execRet() error {
	header := m.b1
	if header < 0 || header+3 > len(m.stack) {
		return ErrMemoryFault
	}
	m.stack = m.stack[:header+3]

	savedPC, err := m.pop()
	if err != nil {
		return err
	}
	savedB1, err := m.pop()
	if err != nil {
		return err
	}
	m.pc = int(savedPC)
	m.b1 = int(savedB1)
	return nil
}

func (m *Machine) execGetc() error {
	b, err := m.stdin.ReadByte()
	if err != nil {
		if err == io.EOF {
			return ErrIOEnd
		}
		return err
	}
	return m.push(int32(b))
}

func (m *Machine) execGeti() error {
	line, err := m.stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if err == io.EOF && strings.TrimSpace(line) == "" {
		return ErrIOEnd
	}
	line = strings.TrimSpace(line)
	n, parseErr := strconv.ParseInt(line, 10, 32)
	if parseErr != nil {
		return ErrIOFormat
	}
	return m.push(int32(n))
}

func (m *Machine) execPutc() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if !validCodePoint(v) {
		return ErrBadOperand
	}
	_, err = io.WriteString(m.stdout, string(rune(v)))
	return err
}

func (m *Machine) execPuti() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	_, err = io.WriteString(m.stdout, strconv.FormatInt(int64(v), 10))
	return err
}

func validCodePoint(v int32) bool {
	if v < 0 || v > 0x10FFFF {
		return false
	}
	if v >= 0xD800 && v <= 0xDFFF {
		return false
	}
	return true
}
