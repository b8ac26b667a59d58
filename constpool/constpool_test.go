package constpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexStabilityAcrossFurtherAdds(t *testing.T) {
	p := New()
	i0 := p.AddValue("a", 1, I64)
	i1 := p.AddValue("b", 2, I64)
	i2 := p.AddValue("", 3, F64)

	require.Equal(t, 0, i0)
	require.Equal(t, 1, i1)
	require.Equal(t, 2, i2)

	w, typ, err := p.ValueAt(i0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), w)
	require.Equal(t, I64, typ)
}

func TestSliceNameMapPointsAtMostRecent(t *testing.T) {
	p := New()
	first := p.AddSlice("greeting", []byte("hi"), UTF8)
	second := p.AddSlice("greeting", []byte("bye"), UTF8)
	require.NotEqual(t, first, second)

	got, _, err := p.GetSlice("greeting")
	require.NoError(t, err)
	require.Equal(t, []byte("bye"), got)

	// The earlier index is still resolvable and unchanged.
	old, _, err := p.SliceAt(first)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), old)
}

func TestSliceBytesAreCopiedNotAliased(t *testing.T) {
	p := New()
	src := []byte("mutate me")
	idx := p.AddSlice("s", src, Binary)
	src[0] = 'X'

	got, _, err := p.SliceAt(idx)
	require.NoError(t, err)
	require.Equal(t, byte('m'), got[0])
}

func TestMissingNameAndIndexErrors(t *testing.T) {
	p := New()
	_, _, err := p.GetValue("missing")
	require.ErrorIs(t, err, ErrNoSuchName)

	_, _, err = p.ValueAt(99)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}
