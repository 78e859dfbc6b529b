// Command vsm loads and executes a stack-machine program. It is a
// thin driver, external to the engine itself: two subcommands, run
// and dump, built on top of the vm package.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"vsm/internal/config"
	"vsm/vm"
)

const (
	exitLoadFailure    = 1
	exitRuntimeFailure = 2
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&dumpCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// runCmd implements `vsm run [-trace] <path>`.
type runCmd struct {
	trace     bool
	stackSize int
	cfgErr    error
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "load and execute a program to completion" }
func (*runCmd) Usage() string {
	return "run [-trace] <path>\n  Exit status is the value EXIT popped on success.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	cfg, err := config.Load()
	if err != nil {
		c.cfgErr = err
	} else {
		c.trace = cfg.Trace
		c.stackSize = cfg.StackSize
	}

	// Flags must be registered unconditionally even when config.Load
	// failed, or the flag package rejects -trace/-stack-size as
	// undefined before Execute ever gets to report c.cfgErr.
	f.BoolVar(&c.trace, "trace", c.trace, "enable step tracing")
	f.BoolVar(&c.trace, "t", c.trace, "enable step tracing (shorthand)")
	f.IntVar(&c.stackSize, "stack-size", c.stackSize, "operand stack capacity in slots")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfgErr != nil {
		fmt.Fprintln(os.Stderr, "reading configuration:", c.cfgErr)
		return exitLoadFailure
	}

	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vsm run [-trace] <path>")
		return exitLoadFailure
	}

	program, err := vm.Load(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitLoadFailure
	}

	machine := vm.NewMachine(program, vm.WithStackSize(c.stackSize))

	var tracer vm.Tracer
	if c.trace {
		// Share the machine's own buffered stdin rather than wrapping
		// os.Stdin a second time, so GETC/GETI and the tracer's blocking
		// per-step read never race over the same underlying bytes.
		tracer = vm.NewStdTracer(os.Stdout, machine.Stdin())
	}

	result, err := machine.Run(tracer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeFailure
	}

	return subcommands.ExitStatus(int(result))
}

// dumpCmd implements `vsm dump <path>`: load a program and print its
// canonicalized instruction listing without executing it.
type dumpCmd struct{}

func (*dumpCmd) Name() string             { return "dump" }
func (*dumpCmd) Synopsis() string         { return "print a program's canonicalized instruction listing" }
func (*dumpCmd) Usage() string            { return "dump <path>\n" }
func (*dumpCmd) SetFlags(f *flag.FlagSet) {}

func (*dumpCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vsm dump <path>")
		return exitLoadFailure
	}

	program, err := vm.Load(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitLoadFailure
	}

	for i := 0; i < program.Len(); i++ {
		fmt.Printf("%d: %s\n", i, program.At(i))
	}
	return subcommands.ExitSuccess
}
