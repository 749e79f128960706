package pipeline

import (
	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
)

// Pipeline is a 5-stage, single-issue, in-order RV32I pipeline with a BPU
// that resolves branches ahead of EX. See Tick for the per-cycle order.
type Pipeline struct {
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	hazardUnit *HazardUnit
	bpu        *BPU

	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	program *insts.Program
	regFile *emu.RegFile
	memory  *emu.Memory
	pc      uint32

	cycleCount       uint64
	instructionCount uint64
	stallCount       uint64
	branchCount      uint64

	halted bool

	trace *Trace
}

// PipelineOption configures a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithTrace attaches a per-cycle trace sink. The default is no tracing.
func WithTrace(t *Trace) PipelineOption {
	return func(p *Pipeline) {
		p.trace = t
	}
}

// NewPipeline creates a pipeline over program, regFile, and memory.
func NewPipeline(program *insts.Program, regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetchStage:     NewFetchStage(program),
		decodeStage:    NewDecodeStage(regFile),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),
		bpu:            NewBPU(program, regFile),
		program:        program,
		regFile:        regFile,
		memory:         memory,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetPC sets the initial fetch address and fetches the instruction there
// into IF, as if step 9 of a "cycle 0" had already run. Call before the
// first Tick; Tick's own fetch step only ever populates IF for the cycle
// after the one it just ran.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.ifid = p.fetchIFID(pc)
}

// PC returns the current fetch address.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// Halted reports whether the pipeline has drained: all five latches are
// bubbles and there is no instruction left to fetch.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Stats summarizes pipeline performance counters.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	Stalls       uint64
	Branches     uint64
	CPI          float64
}

// Stats returns a snapshot of the pipeline's performance counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Cycles:       p.cycleCount,
		Instructions: p.instructionCount,
		Stalls:       p.stallCount,
		Branches:     p.branchCount,
	}

	if s.Instructions > 0 {
		s.CPI = float64(s.Cycles) / float64(s.Instructions)
	}

	return s
}

// GetIFID returns the current IF/ID latch contents.
func (p *Pipeline) GetIFID() IFIDRegister { return p.ifid }

// GetIDEX returns the current ID/EX latch contents.
func (p *Pipeline) GetIDEX() IDEXRegister { return p.idex }

// GetEXMEM returns the current EX/MEM latch contents.
func (p *Pipeline) GetEXMEM() EXMEMRegister { return p.exmem }

// GetMEMWB returns the current MEM/WB latch contents.
func (p *Pipeline) GetMEMWB() MEMWBRegister { return p.memwb }

// Run ticks the pipeline until it halts.
func (p *Pipeline) Run() {
	for !p.halted {
		p.Tick()
	}
}

// RunCycles ticks the pipeline at most n times, stopping early if it halts.
func (p *Pipeline) RunCycles(n int) {
	for i := 0; i < n && !p.halted; i++ {
		p.Tick()
	}
}

// Tick advances the pipeline by one cycle:
//
//  1. Run WB, MEM, EX, and ID against the current latches.
//  2. Check the ID-stage load-use hazard: the instruction that just
//     finished EX is a load whose destination the instruction now in ID
//     needs. If so, stall one cycle — MEM and WB still advance normally,
//     EX receives a bubble, ID and IF hold, and the BPU is never consulted.
//  3. Otherwise, update the BPU's forwarding inputs and invoke it for the
//     current PC against the instructions completing ID and EX.
//  4. If the BPU requests a stall, EX takes ID's output, ID takes a bubble,
//     PC holds, and memoization is invalidated.
//  5. Otherwise every latch advances and the BPU's directive drives PC:
//     taken overrides it and flushes ID; not-taken advances it by 4 and
//     fetches. Either way memoization is invalidated.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.cycleCount++

	p.writebackStage.Writeback(&p.memwb)

	storeValue := p.resolveStoreValue()
	memResult := p.memoryStage.Access(&p.exmem, storeValue)

	forwarding := p.hazardUnit.DetectForwarding(&p.idex, &p.exmem, &p.memwb)
	rs1 := p.hazardUnit.GetForwardedValue(forwarding.ForwardRs1, p.idex.Rs1Value, &p.exmem, &p.memwb)
	rs2 := p.hazardUnit.GetForwardedValue(forwarding.ForwardRs2, p.idex.Rs2Value, &p.exmem, &p.memwb)
	exResult := p.executeStage.Execute(&p.idex, rs1, rs2)

	var fetched *insts.Instruction
	if p.ifid.Valid {
		fetched = p.ifid.Inst
	}
	idResult := p.decodeStage.Decode(fetched)

	if p.memwb.Valid {
		p.instructionCount++
	}

	exCompletedInst := p.idex.Inst

	loadUseHazard := p.idex.Valid && p.idex.MemRead &&
		p.hazardUnit.DetectLoadUseHazardDecoded(p.idex.Rd, idResult.Rs1, idResult.Rs2, true, true)

	nextExmem := buildEXMEM(&p.idex, exResult, rs2)
	nextMemwb := buildMEMWB(&p.exmem, memResult)

	if loadUseHazard {
		p.exmem = nextExmem
		p.memwb = nextMemwb
		p.idex.Clear()
		p.stallCount++
		p.trace.logf("cycle %d pc=%#x: main-pipeline stall (load-use)", p.cycleCount, p.pc)

		return
	}

	fwdEX := ForwardValueFor(exCompletedInst, exResult.ALUResult)
	fwdMEM := ForwardValueForMEMWB(p.exmem.Inst, p.exmem.ALUResult, memResult.MemData, p.exmem.MemToReg)

	idPrecompute := uint32(0)
	if idResult.Valid && idResult.Inst != nil {
		// ID read the register file before the two instructions ahead of it
		// wrote back, so take their results the way EX forwarding would.
		operand := func(reg uint8, read uint32) uint32 {
			switch {
			case fwdEX.Valid && fwdEX.Reg == reg:
				return fwdEX.Value
			case fwdMEM.Valid && fwdMEM.Reg == reg:
				return fwdMEM.Value
			}
			return read
		}
		idPrecompute = emu.Execute(idResult.Inst.Op, idResult.PC,
			operand(idResult.Rs1, idResult.Rs1Value), operand(idResult.Rs2, idResult.Rs2Value), idResult.Inst.Imm)
	}

	p.bpu.SetForwarding(
		ForwardValueFor(idResult.Inst, idPrecompute),
		fwdEX,
		fwdMEM,
	)

	bpuResult := p.bpu.Run(p.pc, idResult.Inst, exCompletedInst)

	if bpuResult.Stall {
		p.exmem = nextExmem
		p.memwb = nextMemwb
		p.idex = idResult
		p.ifid.Clear()
		p.stallCount++
		p.bpu.Invalidate()
		p.trace.logf("cycle %d pc=%#x: BPU stall", p.cycleCount, p.pc)

		return
	}

	p.exmem = nextExmem
	p.memwb = nextMemwb
	p.idex = idResult

	if bpuResult.Directive.Taken {
		p.branchCount++
		p.pc = bpuResult.Directive.Target
		p.trace.logf("cycle %d pc=%#x: BPU directive taken, target=%#x", p.cycleCount, p.pc, bpuResult.Directive.Target)
	} else {
		p.pc += 4
		p.trace.logf("cycle %d pc=%#x: advance", p.cycleCount, p.pc)
	}

	// Step 9: fetch from the (possibly redirected) new PC either way. On a
	// taken directive this replaces whatever speculative fetch the old PC
	// would have produced with the correct-path instruction.
	p.ifid = p.fetchIFID(p.pc)

	p.bpu.Invalidate()

	p.halted = !p.ifid.Valid && !p.idex.Valid && !p.exmem.Valid && !p.memwb.Valid
}

func buildEXMEM(idex *IDEXRegister, exResult ExecuteResult, rs2 uint32) EXMEMRegister {
	if !idex.Valid {
		return EXMEMRegister{}
	}

	return EXMEMRegister{
		Valid:      true,
		PC:         idex.PC,
		Inst:       idex.Inst,
		ALUResult:  exResult.ALUResult,
		StoreValue: rs2,
		Rd:         idex.Rd,
		MemRead:    idex.MemRead,
		MemWrite:   idex.MemWrite,
		RegWrite:   idex.RegWrite,
		MemToReg:   idex.MemToReg,
		Width:      idex.Width,
		Signed:     idex.Signed,
	}
}

func buildMEMWB(exmem *EXMEMRegister, memResult MemoryResult) MEMWBRegister {
	if !exmem.Valid {
		return MEMWBRegister{}
	}

	return MEMWBRegister{
		Valid:     true,
		PC:        exmem.PC,
		Inst:      exmem.Inst,
		ALUResult: exmem.ALUResult,
		MemData:   memResult.MemData,
		Rd:        exmem.Rd,
		RegWrite:  exmem.RegWrite,
		MemToReg:  exmem.MemToReg,
	}
}

// resolveStoreValue produces the value a store in exmem writes to memory.
// Its rs2 was already forwarded once, at EX time, into exmem.StoreValue;
// this re-consults forwarding against the MEM/WB latch (WB has already run
// this very cycle) for a value newer than what EX saw, defaulting to the
// value already captured.
func (p *Pipeline) resolveStoreValue() uint32 {
	if !p.exmem.Valid || !p.exmem.MemWrite || p.exmem.Inst == nil {
		return p.exmem.StoreValue
	}

	rs2 := p.exmem.Inst.Rs2
	if rs2 != 0 && p.memwb.Valid && p.memwb.RegWrite && p.memwb.Rd == rs2 {
		if p.memwb.MemToReg {
			return p.memwb.MemData
		}

		return p.memwb.ALUResult
	}

	return p.exmem.StoreValue
}

func (p *Pipeline) fetchIFID(pc uint32) IFIDRegister {
	inst := p.fetchStage.Fetch(pc)
	if inst == nil {
		return IFIDRegister{}
	}

	return IFIDRegister{Valid: true, PC: pc, Inst: inst}
}
