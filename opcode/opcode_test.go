package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidRecognizesDefinedOpcodes(t *testing.T) {
	op, ok := Valid(byte(AddI64))
	require.True(t, ok)
	require.Equal(t, "ADD_I64", op.String())
}

func TestValidRejectsUnknownByte(t *testing.T) {
	_, ok := Valid(0xFF)
	require.False(t, ok)
}

func TestWidthMatchesEncodingTable(t *testing.T) {
	require.Equal(t, 4, Width(AddI64))
	require.Equal(t, 3, Width(I64ToF64))
	require.Equal(t, 4, Width(LoadConstValue))
	require.Equal(t, 4, Width(JumpForwardIfFalse))
	require.Equal(t, 3, Width(Jmp))
	require.Equal(t, 3, Width(CallHost))
}

func TestUnknownOpStringer(t *testing.T) {
	var unknown Op = 200
	require.Equal(t, "UNKNOWN_OPCODE", unknown.String())
}
