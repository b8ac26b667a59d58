package lang

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/kstephano/kayvm/asm"
	"github.com/kstephano/kayvm/constpool"
	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/hostlib"
	"github.com/kstephano/kayvm/vm"
	"github.com/stretchr/testify/require"
)

// runProgram lexes, parses, and lowers src, then executes it against a
// fresh VM wired with hostlib's print function, returning captured stdout.
func runProgram(t *testing.T, src string) string {
	t.Helper()

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	console := hostlib.NewConsole(w)
	hosts := hostfn.New()
	console.RegisterPrint(hosts)

	consts := constpool.New()
	b := asm.New()
	gen := NewGenerator(b, consts, hosts)

	stmts, err := NewParser(src).ParseProgram()
	require.NoError(t, err)
	require.NoError(t, gen.Generate(stmts))

	m := vm.FromParts(consts, hosts)
	require.NoError(t, m.EvalProgram(b.Build()))
	w.Flush()
	return buf.String()
}

func TestProgram1Codegen(t *testing.T) {
	out := runProgram(t, "x = 12\nx = x + 1\nprint(x)\n")
	require.Equal(t, "13", out)
}

func TestProgram2Codegen(t *testing.T) {
	out := runProgram(t, `print("Hello, World")`)
	require.Equal(t, "Hello, World", out)
}

func TestUnsupportedInterpolatedStringSurfacesError(t *testing.T) {
	consts := constpool.New()
	hosts := hostfn.New()
	// Register print so the failure comes from the interpolated argument,
	// not from an unregistered host function.
	hostlib.NewConsole(bufio.NewWriter(&bytes.Buffer{})).RegisterPrint(hosts)
	b := asm.New()
	gen := NewGenerator(b, consts, hosts)

	stmts, err := NewParser(`print(f"{x}")`).ParseProgram()
	require.NoError(t, err)

	err = gen.Generate(stmts)
	require.Error(t, err)
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
}
