package pipeline

import (
	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
)

// FetchStage fetches the instruction at a given PC from the program.
type FetchStage struct {
	program *insts.Program
}

// NewFetchStage creates a new fetch stage over program.
func NewFetchStage(program *insts.Program) *FetchStage {
	return &FetchStage{program: program}
}

// Fetch returns the instruction at pc, or nil if pc falls outside the
// program (the controller treats this as end-of-program).
func (s *FetchStage) Fetch(pc uint32) *insts.Instruction {
	return s.program.At(pc)
}

// DecodeStage reads operand values from the register file for the
// instruction in the ID latch and derives its control signals.
type DecodeStage struct {
	regFile *emu.RegFile
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{regFile: regFile}
}

// Decode reads rs1/rs2 into the ID/EX register and sets its control signals.
// No hazard check happens here; the controller inspects ID/EX pairs
// separately.
func (s *DecodeStage) Decode(inst *insts.Instruction) IDEXRegister {
	if inst == nil {
		return IDEXRegister{}
	}

	result := IDEXRegister{
		Valid:    true,
		PC:       inst.PC,
		Inst:     inst,
		Rs1Value: s.regFile.Read(inst.Rs1),
		Rs2Value: s.regFile.Read(inst.Rs2),
		Rs1:      inst.Rs1,
		Rs2:      inst.Rs2,
	}

	if rd, ok := inst.DestReg(); ok {
		result.Rd = rd
		result.RegWrite = rd != 0
	}

	switch {
	case inst.Op.IsLoad():
		result.MemRead = true
		result.MemToReg = true
		result.Width, result.Signed = inst.Op.LoadStoreWidth()
	case inst.Op.IsStore():
		result.MemWrite = true
		result.Width, _ = inst.Op.LoadStoreWidth()
	case inst.Op.IsBranch():
		result.IsBranch = true
	case inst.Op == insts.OpECALL || inst.Op == insts.OpEBREAK:
		result.IsTrap = true
	}

	return result
}

// ExecuteStage invokes the ALU for the instruction in the EX latch, using
// whatever operand values the forwarding selector has already resolved.
type ExecuteStage struct{}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	ALUResult uint32
}

// Execute computes the ALU result (or effective address, or link value) for
// the instruction in idex, given its (possibly forwarded) operand values.
func (s *ExecuteStage) Execute(idex *IDEXRegister, rs1Value, rs2Value uint32) ExecuteResult {
	if !idex.Valid || idex.Inst == nil {
		return ExecuteResult{}
	}

	return ExecuteResult{
		ALUResult: emu.Execute(idex.Inst.Op, idex.PC, rs1Value, rs2Value, idex.Inst.Imm),
	}
}

// MemoryStage performs the data memory access for the instruction in MEM.
type MemoryStage struct {
	memory *emu.Memory
}

// NewMemoryStage creates a new memory stage over memory.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{memory: memory}
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	MemData uint32
}

// Access performs a load or store for exmem. storeValue is the (possibly
// forwarded) value to write for a store; it is ignored for loads.
func (s *MemoryStage) Access(exmem *EXMEMRegister, storeValue uint32) MemoryResult {
	if !exmem.Valid {
		return MemoryResult{}
	}

	switch {
	case exmem.MemRead:
		return MemoryResult{MemData: s.memory.Load(exmem.ALUResult, exmem.Width, exmem.Signed)}
	case exmem.MemWrite:
		s.memory.Store(exmem.ALUResult, storeValue, exmem.Width)
	}

	return MemoryResult{}
}

// WritebackStage writes the instruction in MEM/WB's result to the register
// file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage over regFile.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits memwb's result, if any, to the register file.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) {
	if !memwb.Valid || !memwb.RegWrite {
		return
	}

	if memwb.MemToReg {
		s.regFile.Write(memwb.Rd, memwb.MemData)
		return
	}

	s.regFile.Write(memwb.Rd, memwb.ALUResult)
}
