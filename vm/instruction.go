package vm

import "fmt"

// Instruction is a decoded (opcode, operands) pair. Operands holds up
// to two signed 32-bit immediates; only the first Op.Arity() slots are
// meaningful, the rest are unused zero values.
type Instruction struct {
	Op       Opcode
	Operands [2]int32
}

// String renders the instruction in canonical textual form: opcode
// first, then its declared operands in order, whitespace separated.
// Parsing this output back reproduces an equivalent Instruction.
func (i Instruction) String() string {
	switch i.Op.Arity() {
	case 0:
		return i.Op.String()
	case 1:
		return fmt.Sprintf("%s %d", i.Op, i.Operands[0])
	default:
		return fmt.Sprintf("%s %d %d", i.Op, i.Operands[0], i.Operands[1])
	}
}

// Program is the loader's output: an ordered, immutable instruction
// vector indexed from 0. Once built it is never mutated.
type Program struct {
	instructions []Instruction
	// source, when non-nil, holds the original (pre-canonicalization)
	// text for each instruction index; used only by the trace facility.
	source map[int]string
}

// Len returns the number of instructions in the program.
func (p *Program) Len() int {
	return len(p.instructions)
}

// At returns the instruction at index pc. The caller must have already
// checked 0 <= pc < Len(); At panics otherwise, mirroring a slice
// index out of range (the execution core never calls At without that
// check — see Machine.Step).
func (p *Program) At(pc int) Instruction {
	return p.instructions[pc]
}

// SourceLine returns the original source text for instruction index
// pc, if the loader retained it, and whether it was found.
func (p *Program) SourceLine(pc int) (string, bool) {
	if p.source == nil {
		return "", false
	}
	s, ok := p.source[pc]
	return s, ok
}
