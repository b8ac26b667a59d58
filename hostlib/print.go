// Package hostlib provides the concrete host functions this repo wires
// into a VM: a console print function matching the sentinel-dispatch
// contract in spec.md §4.7, and a small growable-vector module
// demonstrating the pointer-carrying host pattern from
// original_source/vec_host/src/lib.rs.
package hostlib

import (
	"bufio"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/register"
)

// Console wraps the destination writer the print host function writes to,
// mirroring the teacher repo's stdout *bufio.Writer field on its VM
// struct (vm/vm.go) rather than writing directly to os.Stdout on every
// call.
type Console struct {
	out *bufio.Writer
}

func NewConsole(w *bufio.Writer) *Console {
	return &Console{out: w}
}

// RegisterPrint registers the "print" host function. Per spec.md §4.7: a
// zero-length slot at base+2 marks the value at base+1 as an integer to
// format; any other length means base+1 holds a slice head pointer and
// base+2 holds a UTF-8 byte count to read from it.
func (c *Console) RegisterPrint(hosts *hostfn.Registry) int {
	return hosts.Register("print", 0, 2, 3, func(base uint64, regs *register.File) error {
		length := regs.Get(base + 2)
		if length == 0 {
			value := int64(regs.Get(base + 1))
			fmt.Fprint(c.out, strconv.FormatInt(value, 10))
			return c.out.Flush()
		}
		head := uintptr(regs.Get(base + 1))
		data := unsafe.Slice((*byte)(unsafe.Pointer(head)), length)
		if _, err := c.out.Write(data); err != nil {
			return err
		}
		return c.out.Flush()
	})
}
