// Package register implements the VM's register file: a fixed-size fast
// region backed by inline storage plus an on-demand growing spill region.
package register

// Fixed is the size of the inline fast region. Indices below Fixed never
// touch the spill slice.
const Fixed = 256

// File is a linear address space of 64-bit words. Reads of never-written
// indices return zero. It never shrinks during its lifetime.
type File struct {
	fixed [Fixed]uint64
	spill []uint64
}

// New returns a zeroed register file.
func New() *File {
	return &File{}
}

// Get returns the word at index i, or 0 if i has never been written.
func (f *File) Get(i uint64) uint64 {
	if i < Fixed {
		return f.fixed[i]
	}
	off := i - Fixed
	if off >= uint64(len(f.spill)) {
		return 0
	}
	return f.spill[off]
}

// Set writes w at index i, growing the spill region as necessary.
func (f *File) Set(i uint64, w uint64) {
	if i < Fixed {
		f.fixed[i] = w
		return
	}
	off := i - Fixed
	f.growSpill(off + 1)
	f.spill[off] = w
}

// EnsureCapacity enlarges the spill region so that any index < n is in
// range without further reallocation.
func (f *File) EnsureCapacity(n uint64) {
	if n <= Fixed {
		return
	}
	f.growSpill(n - Fixed)
}

// growSpill grows the spill slice so that len(spill) >= need, zeroing the
// newly added region. It never shrinks.
func (f *File) growSpill(need uint64) {
	if uint64(len(f.spill)) >= need {
		return
	}
	grown := make([]uint64, need)
	copy(grown, f.spill)
	f.spill = grown
}

// Len reports the highest addressable index plus one, i.e. Fixed plus the
// current spill length. Used by tooling, not by the dispatcher.
func (f *File) Len() uint64 {
	return Fixed + uint64(len(f.spill))
}
