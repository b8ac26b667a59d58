package hostlib

import (
	"fmt"
	"sync"

	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/register"
)

// VecHost exposes a host-owned table of growable []uint64 vectors to
// bytecode as opaque integer handles. Grounded on
// original_source/vec_host/src/lib.rs, which stores a raw
// Box::into_raw pointer in a register word; Go's GC is non-moving today,
// but storing a bare uintptr across a GC-eligible point is unsound
// regardless (the object could be collected the moment nothing else
// references it). A handle table keeps a live Go reference for as long as
// the handle exists, at the cost of one map lookup per call — negligible
// next to a host-call's own overhead.
type VecHost struct {
	mu     sync.Mutex
	vecs   map[uint64]*[]uint64
	nextID uint64
}

func NewVecHost() *VecHost {
	return &VecHost{vecs: make(map[uint64]*[]uint64)}
}

func (h *VecHost) alloc() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	v := make([]uint64, 0)
	h.vecs[id] = &v
	return id
}

func (h *VecHost) get(handle uint64) (*[]uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vecs[handle]
	if !ok {
		return nil, fmt.Errorf("vechost: invalid or dropped handle %d", handle)
	}
	return v, nil
}

func (h *VecHost) drop(handle uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vecs, handle)
}

// RegisterAll registers vec_new, vec_push, vec_get, vec_set, vec_len, and
// vec_drop, matching the original's function set and per-entry register
// counts exactly (e.g. vec_new: 1 return / 0 params / 1 register;
// vec_drop: 1 return / 1 param / 2 registers, its single return register
// always zeroed on success like the original's registers[0] = 0).
func (h *VecHost) RegisterAll(hosts *hostfn.Registry) {
	hosts.Register("vec_new", 1, 0, 1, func(base uint64, regs *register.File) error {
		regs.Set(base, h.alloc())
		return nil
	})

	hosts.Register("vec_push", 1, 2, 3, func(base uint64, regs *register.File) error {
		handle := regs.Get(base + 1)
		value := regs.Get(base + 2)
		v, err := h.get(handle)
		if err != nil {
			return err
		}
		*v = append(*v, value)
		regs.Set(base, uint64(len(*v)))
		return nil
	})

	hosts.Register("vec_get", 1, 2, 3, func(base uint64, regs *register.File) error {
		handle := regs.Get(base + 1)
		index := regs.Get(base + 2)
		v, err := h.get(handle)
		if err != nil {
			return err
		}
		if index >= uint64(len(*v)) {
			return fmt.Errorf("vechost: index %d out of range (len %d)", index, len(*v))
		}
		regs.Set(base, (*v)[index])
		return nil
	})

	hosts.Register("vec_set", 1, 3, 4, func(base uint64, regs *register.File) error {
		handle := regs.Get(base + 1)
		index := regs.Get(base + 2)
		value := regs.Get(base + 3)
		v, err := h.get(handle)
		if err != nil {
			return err
		}
		if index >= uint64(len(*v)) {
			return fmt.Errorf("vechost: index %d out of range (len %d)", index, len(*v))
		}
		(*v)[index] = value
		regs.Set(base, 0)
		return nil
	})

	hosts.Register("vec_len", 1, 1, 2, func(base uint64, regs *register.File) error {
		handle := regs.Get(base + 1)
		v, err := h.get(handle)
		if err != nil {
			return err
		}
		regs.Set(base, uint64(len(*v)))
		return nil
	})

	hosts.Register("vec_drop", 1, 1, 2, func(base uint64, regs *register.File) error {
		handle := regs.Get(base + 1)
		if _, err := h.get(handle); err != nil {
			return err
		}
		h.drop(handle)
		regs.Set(base, 0)
		return nil
	})
}
