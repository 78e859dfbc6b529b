package vm

import (
	"bufio"
	"io"
	"os"
)

// DefaultStackSize is the default operand stack capacity in 32-bit
// slots, used when no override is configured.
const DefaultStackSize = 65536

// State is one of the three lifecycle states an execution core can be in.
type State int

const (
	StateLoaded State = iota
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Machine is the execution core: program counter, operand stack, the
// two base registers, and the fetch-decode-execute loop's state. The
// stack is a preallocated slice used as a growable array with an
// implicit stack pointer (its length).
type Machine struct {
	program *Program

	stack        []int32
	maxStack     int
	maxSPReached int

	b0, b1 int
	pc     int

	state  State
	result int32
	err    error

	stdin  *bufio.Reader
	stdout io.Writer
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithStackSize overrides the default operand stack capacity.
func WithStackSize(n int) Option {
	return func(m *Machine) { m.maxStack = n }
}

// WithStdin overrides the reader used by GETC/GETI (and the trace
// facility's blocking read). Defaults to os.Stdin.
func WithStdin(r io.Reader) Option {
	return func(m *Machine) { m.stdin = bufio.NewReader(r) }
}

// WithBufferedStdin is like WithStdin but takes an already-buffered
// reader directly, without wrapping it a second time. Callers that
// also hand the same reader to a Tracer must use this instead of
// WithStdin, so GETC/GETI and the tracer's blocking read consume from
// one buffer rather than two independently-buffered readers racing
// over the same underlying stream.
func WithBufferedStdin(r *bufio.Reader) Option {
	return func(m *Machine) { m.stdin = r }
}

// WithStdout overrides the writer used by PUTC/PUTI. Defaults to
// os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(m *Machine) { m.stdout = w }
}

// NewMachine constructs a Machine in the Loaded state: empty stack,
// B0 = 0, B1 = 0, PC = 0, no result.
func NewMachine(program *Program, opts ...Option) *Machine {
	m := &Machine{
		program:  program,
		maxStack: DefaultStackSize,
		stdin:    bufio.NewReader(os.Stdin),
		stdout:   os.Stdout,
		state:    StateLoaded,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stack = make([]int32, 0, m.maxStack)
	return m
}

// Program returns the program the machine is executing.
func (m *Machine) Program() *Program { return m.program }

// PC returns the current program counter.
func (m *Machine) PC() int { return m.pc }

// B0 returns the current global base register.
func (m *Machine) B0() int { return m.b0 }

// B1 returns the current frame base register.
func (m *Machine) B1() int { return m.b1 }

// State returns the machine's current lifecycle state.
func (m *Machine) State() State { return m.state }

// Stack returns the live operand stack, bottom to top. Callers must
// not mutate the returned slice; it is exposed read-only for the
// trace facility and for tests.
func (m *Machine) Stack() []int32 { return m.stack }

// MaxStackDepthReached returns the highest stack length observed so
// far, used by the trace facility to bound which slots it displays.
func (m *Machine) MaxStackDepthReached() int { return m.maxSPReached }

// Stdin returns the buffered reader GETC/GETI read from. The trace
// facility reads its blocking per-step line from this same reader
// rather than wrapping the underlying stream a second time, so the
// two never race over one fd's bytes.
func (m *Machine) Stdin() *bufio.Reader { return m.stdin }

// Err returns the error that halted the machine, if any.
func (m *Machine) Err() error { return m.err }

// Result returns the value EXIT popped as the program's result code.
// Only meaningful once State() == StateHalted and Err() == nil.
func (m *Machine) Result() int32 { return m.result }

func (m *Machine) push(v int32) error {
	if len(m.stack) >= m.maxStack {
		return ErrMemoryFault
	}
	m.stack = append(m.stack, v)
	if len(m.stack) > m.maxSPReached {
		m.maxSPReached = len(m.stack)
	}
	return nil
}

func (m *Machine) pop() (int32, error) {
	if len(m.stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) top() (int32, error) {
	if len(m.stack) == 0 {
		return 0, ErrStackUnderflow
	}
	return m.stack[len(m.stack)-1], nil
}

func (m *Machine) setTop(v int32) error {
	if len(m.stack) == 0 {
		return ErrStackUnderflow
	}
	m.stack[len(m.stack)-1] = v
	return nil
}

func (m *Machine) at(idx int) (int32, error) {
	if idx < 0 || idx >= len(m.stack) {
		return 0, ErrMemoryFault
	}
	return m.stack[idx], nil
}

func (m *Machine) setAt(idx int, v int32) error {
	if idx < 0 || idx >= len(m.stack) {
		return ErrMemoryFault
	}
	m.stack[idx] = v
	return nil
}

// baseRegister resolves a base-register selector (0 or 1) to its
// current value. Any other selector is BadBaseRegister.
func (m *Machine) baseRegister(b int32) (int, error) {
	switch b {
	case 0:
		return m.b0, nil
	case 1:
		return m.b1, nil
	default:
		return 0, ErrBadBaseRegister
	}
}

func (m *Machine) setBaseRegister(b int32, value int32) error {
	switch b {
	case 0:
		m.b0 = int(value)
	case 1:
		m.b1 = int(value)
	default:
		return ErrBadBaseRegister
	}
	return nil
}
