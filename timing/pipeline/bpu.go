package pipeline

import (
	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
)

// Directive is the BPU's verdict for the current PC: either override fetch
// with Target, or let it advance normally.
type Directive struct {
	Taken  bool
	Target uint32
}

// ForwardValue is one of the BPU's three forwarding inputs: the optional
// (register, value) pair produced by precomputing a pipeline-stage
// instruction's ALU result.
type ForwardValue struct {
	Valid bool
	Reg   uint8
	Value uint32
}

// forwardEligible reports whether inst writes a register that the BPU's
// forwarding network could ever usefully supply: stores, branches, jumps,
// traps and no-ops don't (jumps' link writes are resolved directly by the
// BPU itself, not through this network), and neither does a write to x0.
func forwardEligible(inst *insts.Instruction) (uint8, bool) {
	if inst == nil {
		return 0, false
	}

	switch {
	case inst.Op.IsStore(), inst.Op.IsBranch(),
		inst.Op == insts.OpJAL, inst.Op == insts.OpJALR,
		inst.Op == insts.OpECALL, inst.Op == insts.OpEBREAK, inst.Op == insts.OpNOP:
		return 0, false
	}

	rd, ok := inst.DestReg()
	if !ok || rd == 0 {
		return 0, false
	}

	return rd, true
}

// ForwardValueFor builds a BPU forwarding entry from a completed-stage
// instruction and its already-computed ALU result. Used for fwd_id_ex and
// fwd_ex_mem, where a load never qualifies: its address is known but its
// data isn't until MEM completes.
func ForwardValueFor(inst *insts.Instruction, result uint32) ForwardValue {
	if inst != nil && inst.Op.IsLoad() {
		return ForwardValue{}
	}

	rd, ok := forwardEligible(inst)
	if !ok {
		return ForwardValue{}
	}

	return ForwardValue{Valid: true, Reg: rd, Value: result}
}

// ForwardValueForMEMWB builds the fwd_mem_wb entry for an instruction that
// just completed the MEM stage. Unlike the other two forwarding inputs, a
// load does qualify here: by the time MEM has completed, its data has
// already been read from memory.
func ForwardValueForMEMWB(inst *insts.Instruction, aluResult, memData uint32, memToReg bool) ForwardValue {
	rd, ok := forwardEligible(inst)
	if !ok {
		return ForwardValue{}
	}

	value := aluResult
	if memToReg {
		value = memData
	}

	return ForwardValue{Valid: true, Reg: rd, Value: value}
}

// BPUResult is the outcome of one BPU invocation: either a stall request or
// a (possibly not-taken) directive.
type BPUResult struct {
	Stall     bool
	Directive Directive
}

// branchCandidate is a conditional branch or register-indirect jump queued
// by S1 for resolution in S2. target is meaningless for OpJALR, whose target
// depends on a register value only S2 can resolve.
type branchCandidate struct {
	inst   *insts.Instruction
	target uint32
}

// BPU is the Branch Precomputation Unit: it inspects the instructions at the
// current fetch address and fetch+4 before they reach EX, resolving direct
// jumps immediately and queuing conditional branches and register-indirect
// jumps for a second sub-stage that consults its own small forwarding
// network. See stage1 and stage2.
type BPU struct {
	program *insts.Program
	regFile *emu.RegFile

	fwdIDEX  ForwardValue
	fwdEXMEM ForwardValue
	fwdMEMWB ForwardValue

	haveLastPC bool
	lastPC     uint32
	queued     []branchCandidate
}

// NewBPU creates a BPU over program, using regFile as S2's fallback operand
// source and as the destination for S1's direct-jump link writes.
func NewBPU(program *insts.Program, regFile *emu.RegFile) *BPU {
	return &BPU{program: program, regFile: regFile}
}

// SetForwarding installs the three forwarding inputs the controller
// computed from the stages that just ran this cycle (idEX from the
// instruction that just completed ID, exMEM from EX, memWB from MEM).
func (b *BPU) SetForwarding(idEX, exMEM, memWB ForwardValue) {
	b.fwdIDEX = idEX
	b.fwdEXMEM = exMEM
	b.fwdMEMWB = memWB
}

// Invalidate clears memoization, forcing the next Run to redo S1 regardless
// of pc. The controller calls this whenever it requests a stall on the
// BPU's behalf or applies a directive (spec's PC-changes-or-BPU-stalls
// invalidation rule).
func (b *BPU) Invalidate() {
	b.haveLastPC = false
	b.queued = nil
}

// Run analyzes the instructions at pc and pc+4 and returns a stall request
// or a directive. idStage and exStage are the instructions currently
// completing ID and EX this cycle, consulted only for S1's load-use hazard
// check against the BPU's own candidates.
//
// If pc matches the last pc analyzed, S1 is skipped and S2 re-runs against
// whatever forwarding inputs are current — the memoization described in the
// BPU's sub-stage 1.
func (b *BPU) Run(pc uint32, idStage, exStage *insts.Instruction) BPUResult {
	var candidates []branchCandidate

	if !b.haveLastPC || b.lastPC != pc {
		stalled, taken, directive, next := b.stage1(pc, idStage, exStage)
		b.lastPC = pc
		b.haveLastPC = true

		if stalled {
			b.queued = nil
			return BPUResult{Stall: true}
		}

		if taken {
			b.queued = nil
			return BPUResult{Directive: directive}
		}

		candidates = next
		b.queued = next
	} else {
		candidates = b.queued
	}

	return b.stage2(candidates)
}

// stage1 classifies the instructions at pc and pc+4 from their opcodes and
// the label table alone. Only the pc slot may be a direct unconditional
// jump (jal, resolved immediately including its link write) or a
// register-indirect jump (jalr, queued for stage2); the pc+4 slot is only
// ever queued as a conditional branch — a jal/jalr can only be the first
// instruction of the fetch window, matching _run_bpu_stage1's decoded1 vs.
// decoded2 split. A load-use hazard against either candidate's source
// operand aborts classification and requests a stall instead.
func (b *BPU) stage1(pc uint32, idStage, exStage *insts.Instruction) (stalled, taken bool, directive Directive, queued []branchCandidate) {
	addrs := [2]uint32{pc, pc + 4}

	for i, addr := range addrs {
		inst := b.program.At(addr)
		if inst == nil {
			continue
		}

		isPCSlot := i == 0

		switch {
		case isPCSlot && inst.Op == insts.OpJAL:
			target, ok := b.program.Labels.Resolve(inst.Label)
			if !ok {
				continue
			}

			if rd, ok := inst.DestReg(); ok {
				b.regFile.Write(rd, inst.PC+4)
			}

			return false, true, Directive{Taken: true, Target: target}, nil

		case isPCSlot && inst.Op == insts.OpJALR:
			if b.loadUseHazard(inst, idStage, exStage) {
				return true, false, Directive{}, nil
			}

			queued = append(queued, branchCandidate{inst: inst})

		case inst.Op.IsBranch():
			if b.loadUseHazard(inst, idStage, exStage) {
				return true, false, Directive{}, nil
			}

			target, ok := b.program.Labels.Resolve(inst.Label)
			if !ok {
				continue
			}

			queued = append(queued, branchCandidate{inst: inst, target: target})
		}
	}

	return false, false, Directive{}, queued
}

// stage2 resolves queued candidates in order using the BPU's own forwarding
// network, stopping at the first one that resolves taken. Any remaining
// candidate (e.g. a second branch at pc+4) is discarded once one is taken.
func (b *BPU) stage2(candidates []branchCandidate) BPUResult {
	for _, c := range candidates {
		if c.inst.Op == insts.OpJALR {
			rs1 := b.resolve(c.inst.Rs1)
			target := (rs1 + uint32(c.inst.Imm)) &^ 1

			if rd, ok := c.inst.DestReg(); ok {
				b.regFile.Write(rd, c.inst.PC+4)
			}

			b.queued = nil

			return BPUResult{Directive: Directive{Taken: true, Target: target}}
		}

		rs1 := b.resolve(c.inst.Rs1)
		rs2 := b.resolve(c.inst.Rs2)

		if branchTaken(c.inst.Op, rs1, rs2) {
			b.queued = nil
			return BPUResult{Directive: Directive{Taken: true, Target: c.target}}
		}
	}

	return BPUResult{}
}

// resolve reads a branch operand through the BPU's forwarding precedence:
// fwd_id_ex, then fwd_ex_mem, then fwd_mem_wb, then the register file.
// Register 0 always short-circuits to 0.
func (b *BPU) resolve(reg uint8) uint32 {
	if reg == 0 || reg == insts.NoReg {
		return 0
	}

	switch {
	case b.fwdIDEX.Valid && b.fwdIDEX.Reg == reg:
		return b.fwdIDEX.Value
	case b.fwdEXMEM.Valid && b.fwdEXMEM.Reg == reg:
		return b.fwdEXMEM.Value
	case b.fwdMEMWB.Valid && b.fwdMEMWB.Reg == reg:
		return b.fwdMEMWB.Value
	default:
		return b.regFile.Read(reg)
	}
}

// loadUseHazard reports whether idStage or exStage is a load whose
// destination feeds one of inst's source operands.
func (b *BPU) loadUseHazard(inst, idStage, exStage *insts.Instruction) bool {
	for _, src := range sourceRegs(inst) {
		if src == 0 || src == insts.NoReg {
			continue
		}

		if loadFeeds(idStage, src) || loadFeeds(exStage, src) {
			return true
		}
	}

	return false
}

// sourceRegs returns the register operands the BPU needs to resolve inst.
// jalr reads only rs1; conditional branches read rs1 and rs2.
func sourceRegs(inst *insts.Instruction) []uint8 {
	if inst.Op == insts.OpJALR {
		return []uint8{inst.Rs1}
	}

	return []uint8{inst.Rs1, inst.Rs2}
}

func loadFeeds(inst *insts.Instruction, src uint8) bool {
	if inst == nil || !inst.Op.IsLoad() {
		return false
	}

	rd, ok := inst.DestReg()
	return ok && rd != 0 && rd == src
}

// branchTaken evaluates a conditional branch's comparator.
func branchTaken(op insts.Op, rs1, rs2 uint32) bool {
	switch op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return int32(rs1) < int32(rs2)
	case insts.OpBGE:
		return int32(rs1) >= int32(rs2)
	case insts.OpBLTU:
		return rs1 < rs2
	case insts.OpBGEU:
		return rs1 >= rs2
	default:
		return false
	}
}
