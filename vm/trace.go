package vm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Tracer observes the machine after every executed instruction. It
// must never mutate machine state — tracing is purely observational.
type Tracer interface {
	AfterStep(m *Machine, pc int, instr Instruction)
}

// StdTracer is the engine's one configurable trace mode: a post-step
// dump of the PC, the instruction just executed, and the
// entire stack from top to bottom with <-B0/<-B1 markers, followed by
// a blocking read of one discarded line from in.
//
// Stack slots in [0, MaxStackDepthReached) are shown, including those
// above a shrunk stack pointer (e.g. after RET truncates locals), which
// keep the value last written there; nothing beyond the deepest reach
// is shown.
type StdTracer struct {
	out   io.Writer
	in    *bufio.Reader
	color bool
}

// NewStdTracer builds a tracer writing to out and blocking for input
// on in. in must be the same *bufio.Reader the Machine reads GETC/GETI
// from (Machine.Stdin) — sharing it keeps the tracer's blocking read
// and the machine's device reads from racing over one underlying fd.
// Output is colorized only when out is a terminal.
func NewStdTracer(out FileWriter, in *bufio.Reader) *StdTracer {
	return &StdTracer{
		out:   out,
		in:    in,
		color: isatty.IsTerminal(out.Fd()),
	}
}

// FileWriter is the subset of *os.File this package needs (Fd, plus
// io.Writer), kept narrow so tests can pass anything that satisfies it.
type FileWriter interface {
	io.Writer
	Fd() uintptr
}

func (t *StdTracer) AfterStep(m *Machine, pc int, instr Instruction) {
	text := instr.String()
	if src, ok := m.Program().SourceLine(pc); ok {
		text = src
	}
	fmt.Fprintf(t.out, "%d: %s\n", pc, text)

	b0marker := t.label("<-B0")
	b1marker := t.label("<-B1")

	// Slots in [0, max-SP-reached) are shown even above the live
	// stack, so a value that was pushed and later popped stays visible
	// for debugging — bounded by the deepest reach so it never shows
	// uninitialized memory. The stack is preallocated and never
	// reallocated, so its backing array still holds those values.
	depth := m.MaxStackDepthReached()
	stack := m.Stack()[:depth]

	for i := depth - 1; i >= 0; i-- {
		value := stack[i]
		markers := ""
		if i == m.B0() {
			markers += " " + b0marker
		}
		if i == m.B1() {
			markers += " " + b1marker
		}
		fmt.Fprintf(t.out, "  [%d] %d%s\n", i, value, markers)
	}

	// Block for one line of input; its contents are discarded.
	t.in.ReadString('\n')
}

func (t *StdTracer) label(s string) string {
	if !t.color {
		return s
	}
	return color.New(color.FgYellow).Sprint(s)
}
