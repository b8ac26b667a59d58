// Package asm implements the bytecode assembler: a streaming encoder with
// symbolic labels, forward-reference resolution, and both target-relative
// and label-based jump emission. Grounded on the teacher repo's own
// instruction-emitting style (vm/compile.go) and on the label/patch
// algorithm of the original Kayton bytecode builder.
package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/kstephano/kayvm/opcode"
)

type jumpKind uint8

const (
	jumpAbsolute jumpKind = iota
	jumpForwardIfFalse
	jumpForwardIfTrue
	jumpBackwardIfFalse
	jumpBackwardIfTrue
)

// pendingJump records a forward reference awaiting resolution at Build
// time: a two-byte field at patchPos that must be filled in once label
// labelID is placed.
type pendingJump struct {
	labelID  int
	patchPos int
	kind     jumpKind
}

// Builder streams bytes into an instruction buffer and tracks symbolic
// labels for forward jumps.
type Builder struct {
	buf         []byte
	labels      map[int]int // label id -> placed byte position
	nextLabelID int
	pending     []pendingJump
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{labels: make(map[int]int)}
}

// CurrentPos returns the next byte position that will be written.
func (b *Builder) CurrentPos() int { return len(b.buf) }

func (b *Builder) emitByte(v byte)    { b.buf = append(b.buf, v) }
func (b *Builder) emitU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[0], tmp[1])
}

// PatchTarget overwrites the two-byte field at byte position pos with the
// little-endian encoding of v. Used both internally by Build and exposed
// for callers that patch a forward jump's offset themselves, at the
// position returned by JumpForwardIfFalse/JumpForwardIfTrue.
func (b *Builder) PatchTarget(pos int, v uint16) {
	binary.LittleEndian.PutUint16(b.buf[pos:pos+2], v)
}

// --- Arithmetic / comparison / conversion emitters ---

func (b *Builder) triOp(op opcode.Op, src1, src2, dst byte) {
	b.emitByte(byte(op))
	b.emitByte(src1)
	b.emitByte(src2)
	b.emitByte(dst)
}

func (b *Builder) AddI64(src1, src2, dst byte)  { b.triOp(opcode.AddI64, src1, src2, dst) }
func (b *Builder) SubI64(src1, src2, dst byte)  { b.triOp(opcode.SubI64, src1, src2, dst) }
func (b *Builder) MulI64(src1, src2, dst byte)  { b.triOp(opcode.MulI64, src1, src2, dst) }
func (b *Builder) AddF64(src1, src2, dst byte)  { b.triOp(opcode.AddF64, src1, src2, dst) }
func (b *Builder) SubF64(src1, src2, dst byte)  { b.triOp(opcode.SubF64, src1, src2, dst) }
func (b *Builder) MulF64(src1, src2, dst byte)  { b.triOp(opcode.MulF64, src1, src2, dst) }

func (b *Builder) GtI64(src1, src2, dst byte)  { b.triOp(opcode.GtI64, src1, src2, dst) }
func (b *Builder) GteI64(src1, src2, dst byte) { b.triOp(opcode.GteI64, src1, src2, dst) }
func (b *Builder) LtI64(src1, src2, dst byte)  { b.triOp(opcode.LtI64, src1, src2, dst) }
func (b *Builder) LteI64(src1, src2, dst byte) { b.triOp(opcode.LteI64, src1, src2, dst) }
func (b *Builder) GtF64(src1, src2, dst byte)  { b.triOp(opcode.GtF64, src1, src2, dst) }
func (b *Builder) GteF64(src1, src2, dst byte) { b.triOp(opcode.GteF64, src1, src2, dst) }
func (b *Builder) LtF64(src1, src2, dst byte)  { b.triOp(opcode.LtF64, src1, src2, dst) }
func (b *Builder) LteF64(src1, src2, dst byte) { b.triOp(opcode.LteF64, src1, src2, dst) }

// I64ToF64 converts the i64 in src to f64 in dst; truncation does not
// apply here: the dispatcher rounds per IEEE-754 when inexact.
func (b *Builder) I64ToF64(src, dst byte) {
	b.emitByte(byte(opcode.I64ToF64))
	b.emitByte(src)
	b.emitByte(dst)
}

// F64ToI64 converts src to i64 in dst, truncating toward zero.
func (b *Builder) F64ToI64(src, dst byte) {
	b.emitByte(byte(opcode.F64ToI64))
	b.emitByte(src)
	b.emitByte(dst)
}

// --- Constant loads ---

// LoadConstValue emits a load of value-table entry idx into dst.
func (b *Builder) LoadConstValue(idx uint16, dst byte) {
	b.emitByte(byte(opcode.LoadConstValue))
	b.emitByte(dst)
	b.emitU16(idx)
}

// LoadConstSlice emits a load of slice-table entry idx: writes the
// slice's raw pointer into dst and its length into dst+1.
func (b *Builder) LoadConstSlice(idx uint16, dst byte) {
	b.emitByte(byte(opcode.LoadConstSlice))
	b.emitByte(dst)
	b.emitU16(idx)
}

// --- Host call ---

// CallHost emits a host call; the register at the current frame's
// base+reg must already hold the host-function index to invoke.
func (b *Builder) CallHost(reg uint16) {
	b.emitByte(byte(opcode.CallHost))
	b.emitU16(reg)
}

// --- Unconditional jump ---

// Jmp emits an unconditional absolute jump.
func (b *Builder) Jmp(absoluteTarget uint16) {
	b.emitByte(byte(opcode.Jmp))
	b.emitU16(absoluteTarget)
}

// --- Forward conditional jumps with deferred patch ---

// JumpForwardIfFalse emits a forward conditional jump whose two-byte
// offset is initially zero, returning the offset field's byte position
// for later PatchTarget.
func (b *Builder) JumpForwardIfFalse(cond byte) (offsetPos int) {
	return b.emitForward(opcode.JumpForwardIfFalse, cond)
}

// JumpForwardIfTrue is the _if_true mirror of JumpForwardIfFalse.
func (b *Builder) JumpForwardIfTrue(cond byte) (offsetPos int) {
	return b.emitForward(opcode.JumpForwardIfTrue, cond)
}

func (b *Builder) emitForward(op opcode.Op, cond byte) int {
	b.emitByte(byte(op))
	b.emitByte(cond)
	pos := b.CurrentPos()
	b.emitU16(0)
	return pos
}

// --- Backward conditional jumps with precomputed offset ---

// JumpBackwardIfFalse emits a backward conditional jump with a
// precomputed positive offset, subtracted from the post-operand PC when
// taken.
func (b *Builder) JumpBackwardIfFalse(cond byte, offset uint16) {
	b.emitByte(byte(opcode.JumpBackwardIfFalse))
	b.emitByte(cond)
	b.emitU16(offset)
}

// JumpBackwardIfTrue is the _if_true mirror of JumpBackwardIfFalse.
func (b *Builder) JumpBackwardIfTrue(cond byte, offset uint16) {
	b.emitByte(byte(opcode.JumpBackwardIfTrue))
	b.emitByte(cond)
	b.emitU16(offset)
}

// --- Target-based jump helpers ---

// directionError is a programmer error: the requested target does not lie
// in the direction implied by the opcode. The assembler signals such bugs
// by panicking, per spec.md §7/§9 — never by returning an error value.
func directionError(msg string) {
	panic("asm: " + msg)
}

// JumpForwardIfFalseTo computes and encodes the correct relative offset
// for a forward jump to an already-known absolute target. Panics if
// target is not after the current position.
func (b *Builder) JumpForwardIfFalseTo(cond byte, absoluteTarget int) {
	pos := b.emitForward(opcode.JumpForwardIfFalse, cond)
	if absoluteTarget <= pos+2 {
		directionError("forward jump target must be after current position")
	}
	b.PatchTarget(pos, uint16(absoluteTarget-(pos+2)))
}

// JumpForwardIfTrueTo is the _if_true mirror of JumpForwardIfFalseTo.
func (b *Builder) JumpForwardIfTrueTo(cond byte, absoluteTarget int) {
	pos := b.emitForward(opcode.JumpForwardIfTrue, cond)
	if absoluteTarget <= pos+2 {
		directionError("forward jump target must be after current position")
	}
	b.PatchTarget(pos, uint16(absoluteTarget-(pos+2)))
}

// JumpBackwardIfFalseTo computes and encodes the correct relative offset
// for a backward jump to an already-known absolute target. Panics if
// target is not before the current position.
func (b *Builder) JumpBackwardIfFalseTo(cond byte, absoluteTarget int) {
	postOperandPC := b.CurrentPos() + 4
	if absoluteTarget >= postOperandPC {
		directionError("backward jump target must be before current position")
	}
	b.JumpBackwardIfFalse(cond, uint16(postOperandPC-absoluteTarget))
}

// JumpBackwardIfTrueTo is the _if_true mirror of JumpBackwardIfFalseTo.
func (b *Builder) JumpBackwardIfTrueTo(cond byte, absoluteTarget int) {
	postOperandPC := b.CurrentPos() + 4
	if absoluteTarget >= postOperandPC {
		directionError("backward jump target must be before current position")
	}
	b.JumpBackwardIfTrue(cond, uint16(postOperandPC-absoluteTarget))
}

// --- Labels ---

// CreateLabel allocates a new, as-yet-unplaced label id.
func (b *Builder) CreateLabel() int {
	id := b.nextLabelID
	b.nextLabelID++
	return id
}

// PlaceLabel binds id to the current byte position.
func (b *Builder) PlaceLabel(id int) {
	b.labels[id] = b.CurrentPos()
}

// JmpToLabel emits an unconditional jump to id. If id is already placed,
// it resolves immediately; otherwise a pending patch is recorded for
// Build.
func (b *Builder) JmpToLabel(id int) {
	b.emitByte(byte(opcode.Jmp))
	pos := b.CurrentPos()
	b.emitU16(0)
	if target, ok := b.labels[id]; ok {
		b.PatchTarget(pos, uint16(target))
		return
	}
	b.pending = append(b.pending, pendingJump{labelID: id, patchPos: pos, kind: jumpAbsolute})
}

// JumpIfFalseToLabel emits a forward-shaped conditional jump to id. If id
// is already placed, the offset is resolved immediately against whichever
// direction the label actually lies in; otherwise a pending forward-style
// patch is recorded for Build (the common case: labels representing loop
// exits are usually placed after the jump that references them).
func (b *Builder) JumpIfFalseToLabel(cond byte, id int) {
	b.labelJump(opcode.JumpForwardIfFalse, jumpForwardIfFalse, cond, id)
}

// JumpIfTrueToLabel is the _if_true mirror of JumpIfFalseToLabel.
func (b *Builder) JumpIfTrueToLabel(cond byte, id int) {
	b.labelJump(opcode.JumpForwardIfTrue, jumpForwardIfTrue, cond, id)
}

func (b *Builder) labelJump(op opcode.Op, kind jumpKind, cond byte, id int) {
	if target, ok := b.labels[id]; ok {
		// Label already placed: it lies behind us, so this resolves as
		// a backward jump regardless of which helper was called.
		postOperandPC := b.CurrentPos() + 4
		backOp := opcode.JumpBackwardIfFalse
		if op == opcode.JumpForwardIfTrue {
			backOp = opcode.JumpBackwardIfTrue
		}
		b.emitByte(byte(backOp))
		b.emitByte(cond)
		if uint64(target) >= uint64(postOperandPC) {
			directionError("jump_if_to_label: already-placed label must lie before current position")
		}
		b.emitU16(uint16(postOperandPC - target))
		return
	}
	b.emitByte(byte(op))
	b.emitByte(cond)
	pos := b.CurrentPos()
	b.emitU16(0)
	b.pending = append(b.pending, pendingJump{labelID: id, patchPos: pos, kind: kind})
}

// Build resolves all pending label patches and returns the finished byte
// sequence. It panics if any label remains unresolved — an unrecoverable
// programmer error per spec.md §7/§9, not a runtime condition.
func (b *Builder) Build() []byte {
	for _, p := range b.pending {
		target, ok := b.labels[p.labelID]
		if !ok {
			panic(fmt.Sprintf("asm: unresolved label: %d", p.labelID))
		}
		switch p.kind {
		case jumpAbsolute:
			b.PatchTarget(p.patchPos, uint16(target))
		case jumpForwardIfFalse, jumpForwardIfTrue:
			postOperandPC := p.patchPos + 2
			if target < postOperandPC {
				panic("asm: forward jump target must be after current position")
			}
			b.PatchTarget(p.patchPos, uint16(target-postOperandPC))
		case jumpBackwardIfFalse, jumpBackwardIfTrue:
			postOperandPC := p.patchPos + 2
			if target >= postOperandPC {
				panic("asm: backward jump target must be before current position")
			}
			b.PatchTarget(p.patchPos, uint16(postOperandPC-target))
		}
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
