// Package vm implements the instruction dispatcher: the main execution
// loop that decodes a byte stream and executes arithmetic, comparisons,
// jumps, constant loads, and host calls against a VM instance owning the
// register file, constant pool, host registry, and call stack.
//
// Grounded on the teacher repo's vm/vm.go (VM struct shape, debug output
// conventions) and on original_source/src/vm/mod.rs's execute_instruction
// match arms for exact per-opcode bounds checks and semantics.
package vm

import (
	"encoding/binary"
	"math"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kstephano/kayvm/callstack"
	"github.com/kstephano/kayvm/constpool"
	"github.com/kstephano/kayvm/hostfn"
	"github.com/kstephano/kayvm/opcode"
	"github.com/kstephano/kayvm/register"
)

// sliceHeadWord reinterprets a byte slice's backing array address as a
// register word. The backing array is owned by the constant pool's arena
// (constpool.Pool never reallocates an entry's bytes after AddSlice), so
// the address stays valid for the VM's entire lifetime — the pool is a
// field of VM and is never moved once constructed.
func sliceHeadWord(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

// timeoutCheckInterval is the instruction count between monotonic-clock
// samples when a timeout is in effect. Fixed per spec.md §4.5/§5.
const timeoutCheckInterval = 1000

// VM owns the register file, constant pool, host registry, and call
// stack. It is created with an empty constant pool, empty host registry,
// a zeroed register file, and one global frame; a bytecode buffer is
// produced independently (by an Assembler) and may be executed any number
// of times.
type VM struct {
	Registers *register.File
	Types     *register.TypeTable
	Consts    *constpool.Pool
	Hosts     *hostfn.Registry
	Frames    *callstack.Stack

	trace *logrus.Logger
}

// New returns a freshly initialized VM.
func New() *VM {
	return &VM{
		Registers: register.New(),
		Types:     register.NewTypeTable(),
		Consts:    constpool.New(),
		Hosts:     hostfn.New(),
		Frames:    callstack.New(),
	}
}

// FromParts returns a VM wired against an already-populated constant pool
// and host registry — the shape a code generator or CLI needs once it has
// finished registering constants and host functions ahead of execution.
func FromParts(consts *constpool.Pool, hosts *hostfn.Registry) *VM {
	return &VM{
		Registers: register.New(),
		Types:     register.NewTypeTable(),
		Consts:    consts,
		Hosts:     hosts,
		Frames:    callstack.New(),
	}
}

// WithTrace enables per-instruction structured-log tracing through the
// given logger. Tracing is never consulted on the hot path when nil (the
// default): the dispatcher checks a single pointer, not a log-level call.
func (v *VM) WithTrace(logger *logrus.Logger) *VM {
	v.trace = logger
	return v
}

// EvalProgram executes bytecode from pc=0 until it falls off the end or
// an error occurs.
func (v *VM) EvalProgram(bytecode []byte) error {
	return v.EvalProgramWithTimeout(bytecode, 0)
}

// EvalProgramWithTimeout is EvalProgram with a wall-clock deadline sampled
// every timeoutCheckInterval instructions. A zero timeout disables the
// check entirely — no clock read happens in the hot path.
func (v *VM) EvalProgramWithTimeout(bytecode []byte, timeout time.Duration) error {
	pc := 0
	var start time.Time
	if timeout > 0 {
		start = time.Now()
	}
	count := uint64(0)

	for pc < len(bytecode) {
		if timeout > 0 {
			count++
			if count%timeoutCheckInterval == 0 {
				if elapsed := time.Since(start); elapsed > timeout {
					return errors.WithStack(&TimeoutError{Elapsed: elapsed.String()})
				}
			}
		}

		next, err := v.step(bytecode, pc)
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

// step decodes and executes exactly one instruction starting at pc,
// returning the next pc.
func (v *VM) step(bytecode []byte, pc int) (int, error) {
	op, ok := opcode.Valid(bytecode[pc])
	if !ok {
		return 0, errors.WithStack(&InvalidOpcodeError{Byte: bytecode[pc]})
	}
	start := pc
	pc++

	if v.trace != nil {
		v.trace.WithFields(logrus.Fields{"pc": start, "op": op.String()}).Debug("kayvm: step")
	}

	switch op {
	case opcode.AddI64, opcode.SubI64, opcode.MulI64,
		opcode.GtI64, opcode.GteI64, opcode.LtI64, opcode.LteI64:
		r1, r2, dst, next, err := v.readTriOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		a := int64(v.Registers.Get(uint64(r1)))
		b := int64(v.Registers.Get(uint64(r2)))
		v.Registers.Set(uint64(dst), uint64(intArith(op, a, b)))
		return next, nil

	case opcode.AddF64, opcode.SubF64, opcode.MulF64,
		opcode.GtF64, opcode.GteF64, opcode.LtF64, opcode.LteF64:
		r1, r2, dst, next, err := v.readTriOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		a := math.Float64frombits(v.Registers.Get(uint64(r1)))
		b := math.Float64frombits(v.Registers.Get(uint64(r2)))
		v.Registers.Set(uint64(dst), floatArith(op, a, b))
		return next, nil

	case opcode.I64ToF64:
		src, dst, next, err := v.readConvOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		n := int64(v.Registers.Get(uint64(src)))
		v.Registers.Set(uint64(dst), math.Float64bits(float64(n)))
		return next, nil

	case opcode.F64ToI64:
		src, dst, next, err := v.readConvOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		f := math.Float64frombits(v.Registers.Get(uint64(src)))
		v.Registers.Set(uint64(dst), uint64(int64(math.Trunc(f))))
		return next, nil

	case opcode.LoadConstValue:
		dst, idx, next, err := v.readConstOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		word, typ, cerr := v.Consts.ValueAt(int(idx))
		if cerr != nil {
			return 0, errors.WithStack(&InvalidConstIndexError{Index: uint64(idx)})
		}
		v.Registers.Set(uint64(dst), word)
		tag := register.Unknown
		switch typ {
		case constpool.I64:
			tag = register.I64
		case constpool.F64:
			tag = register.F64
		case constpool.Bool:
			tag = register.Bool
		case constpool.HostFunc:
			tag = register.HostFunc
		}
		v.Types.Set(uint64(dst), tag)
		return next, nil

	case opcode.LoadConstSlice:
		dst, idx, next, err := v.readConstOperands(bytecode, pc)
		if err != nil {
			return 0, err
		}
		bytes, _, cerr := v.Consts.SliceAt(int(idx))
		if cerr != nil {
			return 0, errors.WithStack(&InvalidConstIndexError{Index: uint64(idx)})
		}
		v.Registers.Set(uint64(dst), sliceHeadWord(bytes))
		v.Registers.Set(uint64(dst)+1, uint64(len(bytes)))
		v.Types.Set(uint64(dst), register.SliceHead)
		v.Types.Set(uint64(dst)+1, register.SliceLen)
		return next, nil

	case opcode.JumpForwardIfFalse, opcode.JumpForwardIfTrue,
		opcode.JumpBackwardIfFalse, opcode.JumpBackwardIfTrue:
		return v.doConditionalJump(op, bytecode, pc, len(bytecode))

	case opcode.Jmp:
		target, _, err := v.readJmpOperand(bytecode, pc)
		if err != nil {
			return 0, err
		}
		if target < 0 || target > len(bytecode) {
			return 0, errors.WithStack(&InvalidJumpTargetError{Target: int64(target)})
		}
		return target, nil

	case opcode.CallHost:
		regOffset, err := v.readU16(bytecode, pc)
		if err != nil {
			return 0, err
		}
		nextPC := pc + 2
		if err := v.callHost(uint64(regOffset)); err != nil {
			return 0, err
		}
		return nextPC, nil
	}

	return 0, errors.WithStack(&InvalidOpcodeError{Byte: bytecode[start]})
}

func intArith(op opcode.Op, a, b int64) int64 {
	switch op {
	case opcode.AddI64:
		return a + b // two's-complement wrap on overflow
	case opcode.SubI64:
		return a - b
	case opcode.MulI64:
		return a * b
	case opcode.GtI64:
		return boolToI64(a > b)
	case opcode.GteI64:
		return boolToI64(a >= b)
	case opcode.LtI64:
		return boolToI64(a < b)
	case opcode.LteI64:
		return boolToI64(a <= b)
	}
	panic("vm: unreachable intArith opcode")
}

func floatArith(op opcode.Op, a, b float64) uint64 {
	switch op {
	case opcode.AddF64:
		return math.Float64bits(a + b)
	case opcode.SubF64:
		return math.Float64bits(a - b)
	case opcode.MulF64:
		return math.Float64bits(a * b)
	case opcode.GtF64:
		return uint64(boolToI64(a > b))
	case opcode.GteF64:
		return uint64(boolToI64(a >= b))
	case opcode.LtF64:
		return uint64(boolToI64(a < b))
	case opcode.LteF64:
		return uint64(boolToI64(a <= b))
	}
	panic("vm: unreachable floatArith opcode")
}

func boolToI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// readTriOperands reads the (r1, r2, dst) byte triple used by all 4-byte
// arithmetic/comparison instructions.
func (v *VM) readTriOperands(bytecode []byte, pc int) (r1, r2, dst byte, next int, err error) {
	if pc+2 >= len(bytecode) {
		return 0, 0, 0, 0, errors.WithStack(&UnexpectedEndOfProgramError{})
	}
	return bytecode[pc], bytecode[pc+1], bytecode[pc+2], pc + 3, nil
}

// readConvOperands reads the (src, dst) byte pair used by the 3-byte
// conversion instructions.
func (v *VM) readConvOperands(bytecode []byte, pc int) (src, dst byte, next int, err error) {
	if pc+1 >= len(bytecode) {
		return 0, 0, 0, errors.WithStack(&UnexpectedEndOfProgramError{})
	}
	return bytecode[pc], bytecode[pc+1], pc + 2, nil
}

// readConstOperands reads the (dst byte, idx u16) triple used by the
// 4-byte constant-load instructions.
func (v *VM) readConstOperands(bytecode []byte, pc int) (dst byte, idx uint16, next int, err error) {
	if pc+2 >= len(bytecode) {
		return 0, 0, 0, errors.WithStack(&UnexpectedEndOfProgramError{})
	}
	dst = bytecode[pc]
	idx = binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
	return dst, idx, pc + 3, nil
}

// readU16 reads a little-endian u16 at pc, used by JMP/CALL_HOST.
func (v *VM) readU16(bytecode []byte, pc int) (uint16, error) {
	if pc+1 >= len(bytecode) {
		return 0, errors.WithStack(&UnexpectedEndOfProgramError{})
	}
	return binary.LittleEndian.Uint16(bytecode[pc : pc+2]), nil
}

// readJmpOperand reads JMP's absolute u16 target.
func (v *VM) readJmpOperand(bytecode []byte, pc int) (target int, next int, err error) {
	val, err := v.readU16(bytecode, pc)
	if err != nil {
		return 0, 0, err
	}
	return int(val), pc + 2, nil
}

// doConditionalJump decodes and executes any of the four conditional jump
// opcodes, which share a (cond byte, offset u16) 4-byte encoding but
// differ in direction and in how the offset combines with the
// post-operand PC.
func (v *VM) doConditionalJump(op opcode.Op, bytecode []byte, pc, length int) (int, error) {
	if pc+2 >= len(bytecode) {
		return 0, errors.WithStack(&UnexpectedEndOfProgramError{})
	}
	condReg := bytecode[pc]
	offset := binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
	postOperandPC := pc + 3
	fallthroughPC := postOperandPC

	cond := v.Registers.Get(uint64(condReg)) != 0
	var taken bool
	switch op {
	case opcode.JumpForwardIfFalse:
		taken = !cond
	case opcode.JumpForwardIfTrue:
		taken = cond
	case opcode.JumpBackwardIfFalse:
		taken = !cond
	case opcode.JumpBackwardIfTrue:
		taken = cond
	}

	if !taken {
		return fallthroughPC, nil
	}

	var target int64
	switch op {
	case opcode.JumpForwardIfFalse, opcode.JumpForwardIfTrue:
		target = int64(postOperandPC) + int64(offset)
	case opcode.JumpBackwardIfFalse, opcode.JumpBackwardIfTrue:
		target = int64(postOperandPC) - int64(offset)
	}

	if target < 0 || target > int64(length) {
		return 0, errors.WithStack(&InvalidJumpTargetError{Target: target})
	}
	return int(target), nil
}

// callHost implements CALL_HOST: let abs = current_base + reg; read
// fn_index = registers[abs]; look up the host entry; compute
// base=abs, top=base+n_regs-1; push a host-call frame; invoke the
// callback with base; pop the frame.
func (v *VM) callHost(reg uint64) error {
	base := v.Frames.CurrentBase()
	abs := base + reg
	fnIndex := v.Registers.Get(abs)

	meta, ok := v.Hosts.Lookup(fnIndex)
	if !ok {
		return errors.WithStack(&InvalidConstIndexError{Index: fnIndex})
	}

	frameBase := abs
	top := frameBase + uint64(meta.NumRegs) - 1
	v.Registers.EnsureCapacity(top + 1)
	v.Frames.Push(callstack.Frame{Kind: callstack.HostCall, Base: frameBase, Top: top})

	if v.trace != nil {
		v.trace.WithFields(logrus.Fields{"host": meta.Name, "base": frameBase}).Debug("kayvm: call_host")
	}

	err := meta.Callback(frameBase, v.Registers)
	v.Frames.Pop()
	if err != nil {
		return errors.WithStack(&HostError{Message: err.Error()})
	}
	return nil
}
