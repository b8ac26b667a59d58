// Package disasm implements a pure function from bytecode bytes to a
// human-readable multi-line string, or an error describing the first
// malformed instruction. Grounded on
// original_source/src/vm/print_bytecode.rs's line-format conventions, but
// diverging deliberately where spec.md requires it: unknown or truncated
// opcodes are reported as errors, not printed as "UNKNOWN_OPCODE" while
// scanning continues.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/kstephano/kayvm/opcode"
	"github.com/kstephano/kayvm/register"
)

// MalformedError names the first instruction the disassembler could not
// render, either because its opcode byte is unrecognized or because the
// buffer ends before its operands do.
type MalformedError struct {
	PC     int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("disasm: malformed instruction at pc=%d: %s", e.PC, e.Reason)
}

// Disassemble renders bytecode as a stable, human-readable string. Each
// line starts with the instruction's starting pc and mnemonic, followed
// by its decoded operands; conditional jumps additionally render the
// computed target pc. The trailing two lines report the final pc and the
// buffer length.
func Disassemble(bytecode []byte) (string, error) {
	return disassemble(bytecode, nil)
}

// DisassembleTyped is Disassemble, additionally annotating every register
// operand with its advisory tag from types (e.g. "r5:I64") wherever that
// tag is not register.Unknown. types is typically the TypeTable of a VM
// that has already executed this bytecode; per spec.md §9, the type table
// is consulted only here and by tests, never by arithmetic or jump
// opcodes.
func DisassembleTyped(bytecode []byte, types *register.TypeTable) (string, error) {
	return disassemble(bytecode, types)
}

func disassemble(bytecode []byte, types *register.TypeTable) (string, error) {
	var out strings.Builder
	pc := 0

	for pc < len(bytecode) {
		startPC := pc
		op, ok := opcode.Valid(bytecode[pc])
		if !ok {
			return "", &MalformedError{PC: startPC, Reason: fmt.Sprintf("unknown opcode 0x%02X", bytecode[pc])}
		}
		pc++

		line, next, err := renderInstruction(op, bytecode, pc, startPC, types)
		if err != nil {
			return "", err
		}
		out.WriteString(line)
		out.WriteByte('\n')
		pc = next
	}

	fmt.Fprintf(&out, "pc=%d\n", pc)
	fmt.Fprintf(&out, "bytecode.len()=%d\n", len(bytecode))
	return out.String(), nil
}

// regStr renders a register operand, appending ":TAG" when types is
// non-nil and holds a known (non-Unknown) tag for idx.
func regStr(types *register.TypeTable, idx byte) string {
	if types == nil {
		return fmt.Sprintf("r%d", idx)
	}
	tag := types.Get(uint64(idx))
	if tag == register.Unknown {
		return fmt.Sprintf("r%d", idx)
	}
	return fmt.Sprintf("r%d:%s", idx, tag)
}

func renderInstruction(op opcode.Op, bytecode []byte, pc, startPC int, types *register.TypeTable) (string, int, error) {
	switch op {
	case opcode.AddI64, opcode.SubI64, opcode.MulI64, opcode.AddF64, opcode.SubF64, opcode.MulF64,
		opcode.GtI64, opcode.GteI64, opcode.LtI64, opcode.LteI64, opcode.GtF64, opcode.GteF64, opcode.LtF64, opcode.LteF64:
		if pc+2 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		r1, r2, dst := bytecode[pc], bytecode[pc+1], bytecode[pc+2]
		return fmt.Sprintf("%d %s %s, %s, %s", startPC, op, regStr(types, r1), regStr(types, r2), regStr(types, dst)), pc + 3, nil

	case opcode.I64ToF64, opcode.F64ToI64:
		if pc+1 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		src, dst := bytecode[pc], bytecode[pc+1]
		return fmt.Sprintf("%d %s %s, %s", startPC, op, regStr(types, src), regStr(types, dst)), pc + 2, nil

	case opcode.LoadConstValue, opcode.LoadConstSlice:
		if pc+2 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		dst := bytecode[pc]
		idx := binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
		return fmt.Sprintf("%d %s %s, %d", startPC, op, regStr(types, dst), idx), pc + 3, nil

	case opcode.JumpForwardIfFalse, opcode.JumpForwardIfTrue:
		if pc+2 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		cond := bytecode[pc]
		offset := binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
		next := pc + 3
		target := next + int(offset)
		return fmt.Sprintf("%d %s %s, %d (offset: %d)", startPC, op, regStr(types, cond), target, offset), next, nil

	case opcode.JumpBackwardIfFalse, opcode.JumpBackwardIfTrue:
		if pc+2 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		cond := bytecode[pc]
		offset := binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
		next := pc + 3
		target := int64(next) - int64(offset)
		return fmt.Sprintf("%d %s %s, %d (offset: %d)", startPC, op, regStr(types, cond), target, offset), next, nil

	case opcode.Jmp:
		if pc+1 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		target := binary.LittleEndian.Uint16(bytecode[pc : pc+2])
		return fmt.Sprintf("%d %s %d", startPC, op, target), pc + 2, nil

	case opcode.CallHost:
		if pc+1 >= len(bytecode) {
			return "", 0, truncated(startPC, op)
		}
		reg := binary.LittleEndian.Uint16(bytecode[pc : pc+2])
		return fmt.Sprintf("%d %s %d", startPC, op, reg), pc + 2, nil
	}

	return "", 0, &MalformedError{PC: startPC, Reason: "unhandled opcode in disassembler"}
}

func truncated(pc int, op opcode.Op) error {
	return &MalformedError{PC: pc, Reason: fmt.Sprintf("truncated %s operands", op)}
}
