package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, source string) *Program {
	t.Helper()
	p, err := LoadFromReader(strings.NewReader(source))
	require.NoError(t, err)
	return p
}

func TestLoadStripsCommentsAndBlankLines(t *testing.T) {
	p := mustLoad(t, `
		// a leading comment
		LC 1   // trailing comment

		LC 2
		ADD
	`)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, "LC 1", p.At(0).String())
	assert.Equal(t, "LC 2", p.At(1).String())
	assert.Equal(t, "ADD", p.At(2).String())
}

func TestLoadIsCaseInsensitiveOnInputAndCanonicalOnOutput(t *testing.T) {
	p := mustLoad(t, "lc 7\nputi\n")
	assert.Equal(t, "LC 7", p.At(0).String())
	assert.Equal(t, "PUTI", p.At(1).String())
}

func TestLoadUnknownOpcode(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("BOGUS 1\n"))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
}

func TestLoadWrongArity(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("LC 1 2\n"))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestLoadBadOperand(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("LC abc\n"))
	require.Error(t, err)
}

func TestLoadCallLabelIsAbsolute(t *testing.T) {
	p := mustLoad(t, `
		LC 1
		CALL target
		EXIT
	target:
		RET
	`)
	// target: instruction index 3 (LC, CALL, EXIT, then target's RET).
	assert.Equal(t, "CALL 3", p.At(1).String())
}

func TestLoadDuplicateLabelIsParseError(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
		LC 0
	loop:
		BZ loop
	loop:
		EXIT
	`))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestLoadBranchLabelIsPCRelative(t *testing.T) {
	p := mustLoad(t, `
		LC 0
	loop:
		BZ done
		B loop
	done:
		EXIT
	`)
	// BZ is instruction index 1; done is instruction index 3.
	// delta = target - (idx+1) = 3 - 2 = 1.
	assert.Equal(t, "BZ 1", p.At(1).String())
	// B is instruction index 2; loop is instruction index 1.
	// delta = 1 - 3 = -2.
	assert.Equal(t, "B -2", p.At(2).String())
}

func TestInstructionStringRoundTrips(t *testing.T) {
	source := "ISP 3\nLA 0 1\nLV 1 -1\nSV 0 2\nDUP\nADD\nEXIT\n"
	p := mustLoad(t, source)

	var rendered strings.Builder
	for i := 0; i < p.Len(); i++ {
		rendered.WriteString(p.At(i).String())
		rendered.WriteByte('\n')
	}
	assert.Equal(t, source, rendered.String())
}
