// Package constpool implements the VM's constant pool: two append-only,
// parallel tables — named scalar values and named immutable byte slices.
package constpool

import "github.com/pkg/errors"

// ValueType tags an entry in the value table.
type ValueType uint8

const (
	I64 ValueType = iota
	F64
	Bool
	HostFunc
)

// SliceType tags an entry in the slice table.
type SliceType uint8

const (
	UTF8 SliceType = iota
	Binary
)

type valueEntry struct {
	name string
	typ  ValueType
	word uint64
}

type sliceEntry struct {
	name  string
	typ   SliceType
	bytes []byte
}

// ErrNoSuchName is returned by name-keyed lookups that miss.
var ErrNoSuchName = errors.New("constpool: no such name")

// ErrIndexOutOfRange is returned by indexed lookups that miss.
var ErrIndexOutOfRange = errors.New("constpool: index out of range")

// Pool holds the value table and the slice table. Entries are append-only;
// an index, once returned, is stable for the life of the pool. Two adds
// under the same name produce two distinct entries; the name map always
// points at the most recently inserted one. The slice table's backing
// arena — a slice of byte slices owned by the pool — lives exactly as long
// as the pool, per spec.md §3/§9 "Slice lifetime": callers may hold the
// []byte returned by GetSlice for as long as the pool itself is alive.
type Pool struct {
	values      []valueEntry
	valueByName map[string]int
	slices      []sliceEntry
	sliceByName map[string]int
}

func New() *Pool {
	return &Pool{
		valueByName: make(map[string]int),
		sliceByName: make(map[string]int),
	}
}

// AddValue appends a new value entry and returns its stable index.
func (p *Pool) AddValue(name string, word uint64, typ ValueType) int {
	idx := len(p.values)
	p.values = append(p.values, valueEntry{name: name, typ: typ, word: word})
	if name != "" {
		p.valueByName[name] = idx
	}
	return idx
}

// AddSlice copies bytes into the pool's arena and returns the new entry's
// stable index.
func (p *Pool) AddSlice(name string, bytes []byte, typ SliceType) int {
	idx := len(p.slices)
	owned := make([]byte, len(bytes))
	copy(owned, bytes)
	p.slices = append(p.slices, sliceEntry{name: name, typ: typ, bytes: owned})
	if name != "" {
		p.sliceByName[name] = idx
	}
	return idx
}

// GetValue looks up a value by name.
func (p *Pool) GetValue(name string) (uint64, ValueType, error) {
	idx, ok := p.valueByName[name]
	if !ok {
		return 0, 0, errors.WithStack(ErrNoSuchName)
	}
	e := p.values[idx]
	return e.word, e.typ, nil
}

// GetSlice looks up a slice by name.
func (p *Pool) GetSlice(name string) ([]byte, SliceType, error) {
	idx, ok := p.sliceByName[name]
	if !ok {
		return nil, 0, errors.WithStack(ErrNoSuchName)
	}
	e := p.slices[idx]
	return e.bytes, e.typ, nil
}

// ValueAt returns the value-table entry at idx.
func (p *Pool) ValueAt(idx int) (uint64, ValueType, error) {
	if idx < 0 || idx >= len(p.values) {
		return 0, 0, errors.WithStack(ErrIndexOutOfRange)
	}
	e := p.values[idx]
	return e.word, e.typ, nil
}

// SliceAt returns the slice-table entry at idx.
func (p *Pool) SliceAt(idx int) ([]byte, SliceType, error) {
	if idx < 0 || idx >= len(p.slices) {
		return nil, 0, errors.WithStack(ErrIndexOutOfRange)
	}
	e := p.slices[idx]
	return e.bytes, e.typ, nil
}

// NumValues reports the number of value-table entries.
func (p *Pool) NumValues() int { return len(p.values) }

// NumSlices reports the number of slice-table entries.
func (p *Pool) NumSlices() int { return len(p.slices) }
