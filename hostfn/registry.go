// Package hostfn implements the host-function registry: an append-only,
// dense-indexed table of native callbacks the dispatcher can invoke via
// CALL_HOST.
package hostfn

import "github.com/kstephano/kayvm/register"

// Func is the host ABI: a callback receives the absolute base register of
// its call frame and a mutable reference to the VM's register file, and
// either writes its results beginning at base or returns an error.
type Func func(base uint64, regs *register.File) error

// Metadata describes a registered host function's frame shape.
type Metadata struct {
	Name      string
	NumReturn int
	NumParams int
	NumRegs   int
	Callback  Func
}

// Registry is the append-only, dense-indexed host-function table.
type Registry struct {
	entries []Metadata
	byName  map[string]int
}

func New() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register appends a new host function and returns its dense, stable
// index.
func (r *Registry) Register(name string, numReturn, numParams, numRegs int, fn Func) int {
	idx := len(r.entries)
	r.entries = append(r.entries, Metadata{
		Name:      name,
		NumReturn: numReturn,
		NumParams: numParams,
		NumRegs:   numRegs,
		Callback:  fn,
	})
	r.byName[name] = idx
	return idx
}

// Lookup returns the metadata for index idx and whether it exists.
func (r *Registry) Lookup(idx uint64) (Metadata, bool) {
	if idx >= uint64(len(r.entries)) {
		return Metadata{}, false
	}
	return r.entries[idx], true
}

// IndexOf returns the index registered under name, if any.
func (r *Registry) IndexOf(name string) (int, bool) {
	idx, ok := r.byName[name]
	return idx, ok
}

// Len reports the number of registered host functions.
func (r *Registry) Len() int { return len(r.entries) }
