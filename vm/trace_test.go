package vm

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTTY is a FileWriter backed by a strings.Builder, with an Fd()
// that never corresponds to a real terminal, so isatty.IsTerminal
// reports false and the tracer's output stays plain.
type fakeTTY struct {
	strings.Builder
}

func (f *fakeTTY) Fd() uintptr { return ^uintptr(0) }

// countingTracer wraps StdTracer to record how many times AfterStep
// ran, so a test can assert tracing fired once per instruction,
// including the terminal EXIT.
type countingTracer struct {
	*StdTracer
	steps int
}

func (c *countingTracer) AfterStep(m *Machine, pc int, instr Instruction) {
	c.steps++
	c.StdTracer.AfterStep(m, pc, instr)
}

// TestTracerSharesStdinWithGETCAndGETIWithoutCorruption exercises the
// bug the maintainer flagged: a tracer built over a second, independent
// bufio.Reader on the same stream as the machine's would steal bytes
// GETC/GETI needed. Here the tracer is built from Machine.Stdin(), the
// same buffered reader GETC/GETI read from, so the two interleave
// cleanly instead of racing.
func TestTracerSharesStdinWithGETCAndGETIWithoutCorruption(t *testing.T) {
	program := mustLoad(t, `
		GETC
		PUTC
		GETI
		PUTI
		LC 0
		EXIT
	`)

	stdin := bufio.NewReader(strings.NewReader(
		"X\n" + // GETC consumes 'X'; that step's trace read consumes the rest of this line
			"\n" + // PUTC step's trace read
			"42\n" + // GETI consumes "42" whole; that step's trace read needs its own line
			"\n" + // GETI step's trace read
			"\n" + // PUTI step's trace read
			"\n", // LC step's trace read; EXIT step's trace read hits end of input
	))

	var stdout strings.Builder
	machine := NewMachine(program, WithBufferedStdin(stdin), WithStdout(&stdout))

	var traceOut fakeTTY
	tracer := &countingTracer{StdTracer: NewStdTracer(&traceOut, machine.Stdin())}

	result, err := machine.Run(tracer)
	require.NoError(t, err)
	assert.Equal(t, int32(0), result)
	assert.Equal(t, "X42", stdout.String())
	assert.Equal(t, 6, tracer.steps)
	assert.NotContains(t, traceOut.String(), "\x1b[")
}

func TestTracerDumpsStackWithBaseRegisterMarkers(t *testing.T) {
	program := mustLoad(t, "ISP 1\nEXIT\n")
	machine := NewMachine(program, WithBufferedStdin(bufio.NewReader(strings.NewReader("\n\n"))))

	var out fakeTTY
	tracer := NewStdTracer(&out, machine.Stdin())

	_, err := machine.Run(tracer)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[0] 0 <-B0 <-B1")
}

func TestTracerShowsSlotsUpToMaxDepthReachedAfterShrinking(t *testing.T) {
	// ISP 2 reaches depth 2; SB 0 pops one word back down to depth 1.
	// The dump after SB 0 must still print index 1, since tracing is
	// bounded by MaxStackDepthReached, not the live stack length.
	program := mustLoad(t, "ISP 2\nSB 0\nEXIT\n")
	machine := NewMachine(program, WithBufferedStdin(bufio.NewReader(strings.NewReader("\n\n\n"))))

	var out fakeTTY
	tracer := NewStdTracer(&out, machine.Stdin())

	_, err := machine.Run(tracer)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[1] 0\n")
}
