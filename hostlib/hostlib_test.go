package hostlib

import (
	"bufio"
	"bytes"
	"testing"
	"unsafe"

	"github.com/kstephano/kayvm/asm"
	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/register"
	"github.com/kstephano/kayvm/vm"
	"github.com/stretchr/testify/require"
)

func TestPrintInteger(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	console := NewConsole(w)
	hosts := hostfn.New()
	idx := console.RegisterPrint(hosts)

	regs := register.New()
	regs.Set(0, uint64(idx))
	regs.Set(1, 13)
	regs.Set(2, 0) // sentinel: format as integer

	meta, ok := hosts.Lookup(uint64(idx))
	require.True(t, ok)
	require.NoError(t, meta.Callback(0, regs))
	require.Equal(t, "13", buf.String())
}

func TestPrintString(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	console := NewConsole(w)
	hosts := hostfn.New()
	idx := console.RegisterPrint(hosts)

	data := []byte("Hello, World")
	regs := register.New()
	regs.Set(0, uint64(idx))
	regs.Set(1, uint64(uintptr(unsafe.Pointer(bytePtr(data)))))
	regs.Set(2, uint64(len(data)))

	meta, ok := hosts.Lookup(uint64(idx))
	require.True(t, ok)
	require.NoError(t, meta.Callback(0, regs))
	require.Equal(t, "Hello, World", buf.String())
}

func TestVecHostLifecycle(t *testing.T) {
	h := NewVecHost()
	hosts := hostfn.New()
	h.RegisterAll(hosts)
	regs := register.New()

	newIdx, _ := hosts.IndexOf("vec_new")
	pushIdx, _ := hosts.IndexOf("vec_push")
	getIdx, _ := hosts.IndexOf("vec_get")
	dropIdx, _ := hosts.IndexOf("vec_drop")

	newMeta, _ := hosts.Lookup(uint64(newIdx))
	require.NoError(t, newMeta.Callback(0, regs))
	handle := regs.Get(0)

	pushMeta, _ := hosts.Lookup(uint64(pushIdx))
	regs.Set(1, handle)
	regs.Set(2, 99)
	require.NoError(t, pushMeta.Callback(0, regs))

	getMeta, _ := hosts.Lookup(uint64(getIdx))
	regs.Set(1, handle)
	regs.Set(2, 0)
	require.NoError(t, getMeta.Callback(0, regs))
	require.EqualValues(t, 99, regs.Get(0))

	dropMeta, _ := hosts.Lookup(uint64(dropIdx))
	regs.Set(1, handle)
	require.NoError(t, dropMeta.Callback(0, regs))

	require.Error(t, getMeta.Callback(0, regs))
}

func TestVecHostSetMutatesInPlace(t *testing.T) {
	h := NewVecHost()
	hosts := hostfn.New()
	h.RegisterAll(hosts)
	regs := register.New()

	newIdx, _ := hosts.IndexOf("vec_new")
	pushIdx, _ := hosts.IndexOf("vec_push")
	setIdx, _ := hosts.IndexOf("vec_set")
	getIdx, _ := hosts.IndexOf("vec_get")

	newMeta, _ := hosts.Lookup(uint64(newIdx))
	require.NoError(t, newMeta.Callback(0, regs))
	handle := regs.Get(0)

	pushMeta, _ := hosts.Lookup(uint64(pushIdx))
	regs.Set(1, handle)
	regs.Set(2, 7)
	require.NoError(t, pushMeta.Callback(0, regs))

	setMeta, _ := hosts.Lookup(uint64(setIdx))
	regs.Set(1, handle)
	regs.Set(2, 0)
	regs.Set(3, 42)
	require.NoError(t, setMeta.Callback(0, regs))

	getMeta, _ := hosts.Lookup(uint64(getIdx))
	regs.Set(1, handle)
	regs.Set(2, 0)
	require.NoError(t, getMeta.Callback(0, regs))
	require.EqualValues(t, 42, regs.Get(0))
}

// TestVecGetAfterDropSurfacesAsHostErrorThroughDispatch drives a
// use-after-drop vec_get through the real CALL_HOST dispatch path,
// confirming the failure reaches the caller wrapped as *vm.HostError
// rather than being asserted against the raw callback directly.
func TestVecGetAfterDropSurfacesAsHostErrorThroughDispatch(t *testing.T) {
	h := NewVecHost()
	hosts := hostfn.New()
	h.RegisterAll(hosts)

	newIdx, _ := hosts.IndexOf("vec_new")
	dropIdx, _ := hosts.IndexOf("vec_drop")
	getIdx, _ := hosts.IndexOf("vec_get")

	m := vm.New()
	m.Hosts = hosts

	m.Registers.Set(0, uint64(newIdx))
	b := asm.New()
	b.CallHost(0)
	require.NoError(t, m.EvalProgram(b.Build()))
	handle := m.Registers.Get(0)

	m.Registers.Set(10, uint64(dropIdx))
	m.Registers.Set(11, handle)
	b = asm.New()
	b.CallHost(10)
	require.NoError(t, m.EvalProgram(b.Build()))

	m.Registers.Set(20, uint64(getIdx))
	m.Registers.Set(21, handle)
	m.Registers.Set(22, 0)
	b = asm.New()
	b.CallHost(20)
	err := m.EvalProgram(b.Build())

	var hostErr *vm.HostError
	require.ErrorAs(t, err, &hostErr)
}

func bytePtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}
