// Package asmfixture builds insts.Program values directly from Go literals.
// It is not an assembler: it never tokenizes mnemonics or parses source
// text, it only gives tests and the demo CLI a terser way to write down the
// instruction lists and label tables that a real assembler would otherwise
// produce.
package asmfixture

import "github.com/sarchlab/rv32pipe/insts"

// Builder accumulates instructions at consecutive PCs and the labels
// attached to them.
type Builder struct {
	pc    uint32
	insts []*insts.Instruction
	labs  insts.LabelTable
}

// New creates a Builder whose first instruction lands at PC 0.
func New() *Builder {
	return &Builder{labs: insts.LabelTable{}}
}

// Label attaches name to the next instruction emitted.
func (b *Builder) Label(name string) *Builder {
	b.labs[name] = b.pc
	return b
}

// emit appends inst at the builder's current PC and advances it by 4.
func (b *Builder) emit(inst insts.Instruction) *Builder {
	inst.PC = b.pc
	b.insts = append(b.insts, &inst)
	b.pc += 4
	return b
}

// R emits a register-register op: dst = src1 <op> src2.
func (b *Builder) R(op insts.Op, rd, rs1, rs2 uint8) *Builder {
	return b.emit(insts.Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// I emits a register-immediate op: dst = src <op> imm.
func (b *Builder) I(op insts.Op, rd, rs1 uint8, imm int32) *Builder {
	return b.emit(insts.Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm})
}

// Load emits a load: dst = mem[src + imm].
func (b *Builder) Load(op insts.Op, rd, rs1 uint8, imm int32) *Builder {
	return b.emit(insts.Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm})
}

// Store emits a store: mem[base + imm] = src.
func (b *Builder) Store(op insts.Op, rs2, rs1 uint8, imm int32) *Builder {
	return b.emit(insts.Instruction{Op: op, Rd: insts.NoReg, Rs1: rs1, Rs2: rs2, Imm: imm})
}

// Branch emits a conditional branch to label.
func (b *Builder) Branch(op insts.Op, rs1, rs2 uint8, label string) *Builder {
	return b.emit(insts.Instruction{Op: op, Rd: insts.NoReg, Rs1: rs1, Rs2: rs2, Label: label})
}

// Jal emits a direct unconditional jump-with-link to label. It reads no
// registers, so Rs1/Rs2 are marked absent rather than left at their Go
// zero value.
func (b *Builder) Jal(rd uint8, label string) *Builder {
	return b.emit(insts.Instruction{Op: insts.OpJAL, Rd: rd, Rs1: insts.NoReg, Rs2: insts.NoReg, Label: label})
}

// Jalr emits a register-indirect jump-with-link.
func (b *Builder) Jalr(rd, rs1 uint8, imm int32) *Builder {
	return b.emit(insts.Instruction{Op: insts.OpJALR, Rd: rd, Rs1: rs1, Imm: imm})
}

// Nop emits a no-op.
func (b *Builder) Nop() *Builder {
	return b.emit(insts.Instruction{Op: insts.OpNOP, Rd: insts.NoReg})
}

// Build finalizes the instruction list and label table into a Program.
func (b *Builder) Build() *insts.Program {
	return &insts.Program{Instructions: b.insts, Labels: b.labs}
}
