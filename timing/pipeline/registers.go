// Package pipeline provides a 5-stage, single-issue, in-order RV32I
// pipeline model for cycle-accurate timing simulation.
package pipeline

import (
	"github.com/sarchlab/rv32pipe/insts"
)

// IFIDRegister holds state latched between Fetch and Decode.
type IFIDRegister struct {
	// Valid indicates this register contains a fetched instruction.
	Valid bool

	// PC of the fetched instruction.
	PC uint32

	// Inst is the fetched instruction record.
	Inst *insts.Instruction
}

// IDEXRegister holds state latched between Decode and Execute.
type IDEXRegister struct {
	// Valid indicates this register contains valid data.
	Valid bool

	// PC of this instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Rs1Value and Rs2Value are the operand values read during decode,
	// before any forwarding is applied.
	Rs1Value uint32
	Rs2Value uint32

	// Rd, Rs1, Rs2 are the register operands, for hazard/forwarding detection.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Control signals.
	MemRead  bool // load
	MemWrite bool // store
	RegWrite bool // writes Rd (Rd != insts.NoReg and Rd != 0)
	MemToReg bool // result comes from memory (load)
	IsBranch bool // conditional branch
	IsTrap   bool // ecall/ebreak

	// Width and Signed describe a load/store access.
	Width  uint8
	Signed bool
}

// EXMEMRegister holds state latched between Execute and Memory.
type EXMEMRegister struct {
	// Valid indicates this register contains valid data.
	Valid bool

	// PC of this instruction.
	PC uint32

	// Inst is the instruction record, read for store-value forwarding and
	// for the BPU's fwd_mem_wb input.
	Inst *insts.Instruction

	// ALUResult is the ALU result or computed memory address.
	ALUResult uint32

	// StoreValue is the value to store, for a store instruction.
	StoreValue uint32

	// Rd is the destination register.
	Rd uint8

	// Control signals.
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool

	// Width and Signed describe a load/store access.
	Width  uint8
	Signed bool
}

// MEMWBRegister holds state latched between Memory and Writeback.
type MEMWBRegister struct {
	// Valid indicates this register contains valid data.
	Valid bool

	// PC of this instruction.
	PC uint32

	// Inst is the instruction record carried along with the result.
	Inst *insts.Instruction

	// ALUResult holds the result for non-memory instructions.
	ALUResult uint32

	// MemData holds the memory read result for a load.
	MemData uint32

	// Rd is the destination register.
	Rd uint8

	// Control signals.
	RegWrite bool
	MemToReg bool
}

// Clear resets the IFID register to its empty (bubble) state.
func (r *IFIDRegister) Clear() {
	r.Valid = false
	r.PC = 0
	r.Inst = nil
}

// Clear resets the IDEX register to its empty (bubble) state.
func (r *IDEXRegister) Clear() {
	r.Valid = false
	r.PC = 0
	r.Inst = nil
	r.Rs1Value = 0
	r.Rs2Value = 0
	r.Rd = 0
	r.Rs1 = 0
	r.Rs2 = 0
	r.MemRead = false
	r.MemWrite = false
	r.RegWrite = false
	r.MemToReg = false
	r.IsBranch = false
	r.IsTrap = false
	r.Width = 0
	r.Signed = false
}

// EXMEMRegister and MEMWBRegister have no Clear method: the controller
// never clears either in place, it always replaces them wholesale via
// buildEXMEM/buildMEMWB, which produce a fresh bubble value directly.
