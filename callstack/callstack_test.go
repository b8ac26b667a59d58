package callstack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializedWithSentinelGlobalFrame(t *testing.T) {
	s := New()
	require.Equal(t, 1, s.Depth())
	require.Equal(t, Global, s.Top().Kind)
	require.Equal(t, uint64(0), s.CurrentBase())
}

func TestPushPopHostCallFrame(t *testing.T) {
	s := New()
	s.Push(Frame{Kind: HostCall, Base: 10, Top: 12})
	require.Equal(t, uint64(10), s.CurrentBase())

	popped := s.Pop()
	require.Equal(t, HostCall, popped.Kind)
	require.Equal(t, uint64(0), s.CurrentBase())
}

func TestPopOfSentinelPanics(t *testing.T) {
	s := New()
	require.Panics(t, func() { s.Pop() })
}
