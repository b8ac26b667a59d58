package disasm

import (
	"strings"
	"testing"

	"github.com/kstephano/kayvm/asm"
	"github.com/kstephano/kayvm/opcode"
	"github.com/kstephano/kayvm/register"
	"github.com/stretchr/testify/require"
)

func TestDisassembleAddI64(t *testing.T) {
	b := asm.New()
	b.AddI64(1, 2, 0)
	out, err := Disassemble(b.Build())
	require.NoError(t, err)
	require.Contains(t, out, "0 ADD_I64 r1, r2, r0")
	require.Contains(t, out, "pc=4")
	require.Contains(t, out, "bytecode.len()=4")
}

func TestDisassembleSoundnessOnAssemblerOutput(t *testing.T) {
	b := asm.New()
	b.LoadConstValue(3, 0)
	b.MulF64(0, 0, 1)
	b.Jmp(0)
	_, err := Disassemble(b.Build())
	require.NoError(t, err)
}

func TestDisassembleForwardJumpRendersComputedTarget(t *testing.T) {
	b := asm.New()
	b.JumpForwardIfFalseTo(0, 20)
	out, err := Disassemble(b.Build())
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "20 (offset: 16)"))
}

func TestDisassembleReportsUnknownOpcodeAsError(t *testing.T) {
	_, err := Disassemble([]byte{0xFF})
	require.Error(t, err)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, 0, malformed.PC)
}

func TestDisassembleReportsTruncatedBufferAsError(t *testing.T) {
	_, err := Disassemble([]byte{byte(opcode.LoadConstValue), 0})
	require.Error(t, err)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, 0, malformed.PC)
}

func TestDisassembleTypedAnnotatesKnownTags(t *testing.T) {
	b := asm.New()
	b.LoadConstSlice(0, 2)
	types := register.NewTypeTable()
	types.Set(2, register.SliceHead)
	types.Set(3, register.SliceLen)

	out, err := DisassembleTyped(b.Build(), types)
	require.NoError(t, err)
	require.Contains(t, out, "r2:SliceHead")
}

func TestDisassembleTypedLeavesUnknownRegistersBare(t *testing.T) {
	b := asm.New()
	b.AddI64(1, 2, 0)
	out, err := DisassembleTyped(b.Build(), register.NewTypeTable())
	require.NoError(t, err)
	require.Contains(t, out, "0 ADD_I64 r1, r2, r0")
}
