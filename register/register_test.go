package register

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroInitialization(t *testing.T) {
	f := New()
	require.Equal(t, uint64(0), f.Get(0))
	require.Equal(t, uint64(0), f.Get(Fixed+5000))
}

func TestSetGetFixedRegion(t *testing.T) {
	f := New()
	f.Set(3, 42)
	require.Equal(t, uint64(42), f.Get(3))
	require.Equal(t, uint64(0), f.Get(4))
}

func TestSetGetSpillRegion(t *testing.T) {
	f := New()
	f.Set(Fixed+10, 99)
	require.Equal(t, uint64(99), f.Get(Fixed+10))
	require.Equal(t, uint64(0), f.Get(Fixed+9))
	require.Equal(t, uint64(0), f.Get(Fixed+11))
}

func TestMonotoneGrowthDoesNotClobberOthers(t *testing.T) {
	f := New()
	f.Set(Fixed, 1)
	f.Set(Fixed+100, 2)
	require.Equal(t, uint64(1), f.Get(Fixed))
	require.Equal(t, uint64(2), f.Get(Fixed+100))
	require.Equal(t, uint64(0), f.Get(Fixed+50))
}

func TestEnsureCapacityDoesNotShrink(t *testing.T) {
	f := New()
	f.Set(Fixed+1000, 7)
	before := f.Len()
	f.EnsureCapacity(Fixed + 10)
	require.GreaterOrEqual(t, f.Len(), before)
	require.Equal(t, uint64(7), f.Get(Fixed+1000))
}

func TestTypeTableAdvisoryOnly(t *testing.T) {
	tt := NewTypeTable()
	require.Equal(t, Unknown, tt.Get(0))
	tt.Set(Fixed+3, I64)
	require.Equal(t, I64, tt.Get(Fixed+3))
	require.Equal(t, Unknown, tt.Get(Fixed+4))
}
