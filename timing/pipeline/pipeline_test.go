package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
	"github.com/sarchlab/rv32pipe/internal/asmfixture"
	"github.com/sarchlab/rv32pipe/timing/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
	})

	newPipe := func(program *insts.Program) *pipeline.Pipeline {
		p := pipeline.NewPipeline(program, regFile, memory)
		p.SetPC(0)
		return p
	}

	Describe("NewPipeline", func() {
		It("creates a pipeline that starts unhalted", func() {
			p := newPipe(asmfixture.New().Nop().Build())
			Expect(p).NotTo(BeNil())
			Expect(p.Halted()).To(BeFalse())
		})
	})

	Describe("scenario: fall-through conditional, not taken", func() {
		It("runs the fall-through path and skips the flush", func() {
			// addi r5, r0, 5; addi r6, r0, 7; beq r5, r6, L;
			// addi r7, r0, 1; nop; L: addi r8, r0, 2
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 5).
				I(insts.OpADDI, 6, 0, 7).
				Branch(insts.OpBEQ, 5, 6, "L").
				I(insts.OpADDI, 7, 0, 1).
				Nop().
				Label("L").
				I(insts.OpADDI, 8, 0, 2).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(7)).To(Equal(uint32(1)))
			Expect(regFile.Read(8)).To(Equal(uint32(2)))
			Expect(p.Stats().Branches).To(Equal(uint64(0)))
		})
	})

	Describe("scenario: conditional taken, resolved early by BPU", func() {
		It("skips the fall-through instruction and flushes ID exactly once", func() {
			// addi r5, r0, 5; addi r6, r0, 5; beq r5, r6, L;
			// addi r7, r0, 99; L: addi r8, r0, 2
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 5).
				I(insts.OpADDI, 6, 0, 5).
				Branch(insts.OpBEQ, 5, 6, "L").
				I(insts.OpADDI, 7, 0, 99).
				Label("L").
				I(insts.OpADDI, 8, 0, 2).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(7)).To(Equal(uint32(0)))
			Expect(regFile.Read(8)).To(Equal(uint32(2)))
			Expect(p.Stats().Branches).To(Equal(uint64(1)))
		})
	})

	Describe("scenario: direct unconditional with link and register-indirect return", func() {
		It("links through rd and returns via jalr", func() {
			// addi r5, r0, 5; jal r1, F; addi r6, r0, 10; j END;
			// F: addi r7, r0, 20; jalr r0, r1, 0; END: nop
			const jalPC = uint32(4)
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 5).
				Jal(1, "F").
				I(insts.OpADDI, 6, 0, 10).
				Jal(0, "END").
				Label("F").
				I(insts.OpADDI, 7, 0, 20).
				Jalr(0, 1, 0).
				Label("END").
				Nop().
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(5)).To(Equal(uint32(5)))
			Expect(regFile.Read(7)).To(Equal(uint32(20)))
			Expect(regFile.Read(1)).To(Equal(jalPC + 4))
			// jalr returns to r1, which holds the instruction right after
			// jal — so addi r6 does run, as part of the trampoline's
			// fall-through back into the caller.
			Expect(regFile.Read(6)).To(Equal(uint32(10)))
		})
	})

	Describe("scenario: load-use hazard induces exactly one stall", func() {
		It("stalls once and produces the correct result", func() {
			memory.Store(0, 42, 4)

			// lw r5, 0(r0); addi r6, r5, 1; nop
			prog := asmfixture.New().
				Load(insts.OpLW, 5, 0, 0).
				I(insts.OpADDI, 6, 5, 1).
				Nop().
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(6)).To(Equal(uint32(43)))
			Expect(p.Stats().Stalls).To(Equal(uint64(1)))
		})
	})

	Describe("scenario: forwarding across two back-to-back ALU ops", func() {
		It("produces correct results with zero stalls", func() {
			// addi r5, r0, 1; addi r6, r5, 2; addi r7, r6, 3
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 1).
				I(insts.OpADDI, 6, 5, 2).
				I(insts.OpADDI, 7, 6, 3).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(5)).To(Equal(uint32(1)))
			Expect(regFile.Read(6)).To(Equal(uint32(3)))
			Expect(regFile.Read(7)).To(Equal(uint32(6)))
			Expect(p.Stats().Stalls).To(Equal(uint64(0)))
		})
	})

	Describe("scenario: dual-branch fetch window, first taken discards second", func() {
		It("resolves only the first branch and never the second", func() {
			// beq r0, r0, L1; beq r0, r0, L2; L1: addi r5, r0, 1; L2: addi r6, r0, 2
			prog := asmfixture.New().
				Branch(insts.OpBEQ, 0, 0, "L1").
				Branch(insts.OpBEQ, 0, 0, "L2").
				Label("L1").
				I(insts.OpADDI, 5, 0, 1).
				Label("L2").
				I(insts.OpADDI, 6, 0, 2).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(p.Stats().Branches).To(Equal(uint64(1)))
			Expect(regFile.Read(5)).To(Equal(uint32(1)))
			Expect(regFile.Read(6)).To(Equal(uint32(2)))
		})
	})

	Describe("scenario: taken branch at pc wins over a jal sitting at pc+4", func() {
		It("jumps to the branch's target and never executes the jal", func() {
			// beq r0, r0, BLOCK; jal r9, OTHER; nop;
			// BLOCK: addi r20, r0, 999; jal r0, END; OTHER: addi r21, r0, 888; END: nop
			prog := asmfixture.New().
				Branch(insts.OpBEQ, 0, 0, "BLOCK").
				Jal(9, "OTHER").
				Nop().
				Label("BLOCK").
				I(insts.OpADDI, 20, 0, 999).
				Jal(0, "END").
				Label("OTHER").
				I(insts.OpADDI, 21, 0, 888).
				Label("END").
				Nop().
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(20)).To(Equal(uint32(999)))
			Expect(regFile.Read(21)).To(Equal(uint32(0)))
			Expect(regFile.Read(9)).To(Equal(uint32(0)))
		})
	})

	Describe("invariant: register 0 always reads 0", func() {
		It("discards writes aimed at x0", func() {
			prog := asmfixture.New().
				I(insts.OpADDI, 0, 0, 99).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(0)).To(Equal(uint32(0)))
		})
	})

	Describe("invariant: at most one of stall or flush per cycle", func() {
		It("never counts both a stall and a branch for the same instruction pair", func() {
			memory.Store(0, 1, 4)

			// A load-use stall, followed later by an unrelated taken branch.
			prog := asmfixture.New().
				Load(insts.OpLW, 5, 0, 0).
				I(insts.OpADDI, 6, 5, 1).
				Branch(insts.OpBEQ, 0, 0, "L").
				I(insts.OpADDI, 7, 0, 99).
				Label("L").
				I(insts.OpADDI, 8, 0, 1).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(p.Stats().Stalls).To(Equal(uint64(1)))
			Expect(p.Stats().Branches).To(Equal(uint64(1)))
			Expect(regFile.Read(6)).To(Equal(uint32(2)))
			Expect(regFile.Read(7)).To(Equal(uint32(0)))
			Expect(regFile.Read(8)).To(Equal(uint32(1)))
		})
	})

	Describe("round-trip: store then load at the same address", func() {
		It("returns the stored value with sign-extension applied", func() {
			prog := asmfixture.New().
				I(insts.OpADDI, 1, 0, -1).
				Store(insts.OpSB, 1, 0, 0).
				Nop().
				Nop().
				Load(insts.OpLB, 2, 0, 0).
				Load(insts.OpLBU, 3, 0, 0).
				Build()

			p := newPipe(prog)
			p.Run()

			Expect(regFile.Read(2)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(regFile.Read(3)).To(Equal(uint32(0xFF)))
		})
	})

	Describe("Halted", func() {
		It("stops ticking once the pipeline has drained", func() {
			p := newPipe(asmfixture.New().I(insts.OpADDI, 5, 0, 1).Build())
			p.Run()
			Expect(p.Halted()).To(BeTrue())

			before := p.Stats().Cycles
			p.Tick()
			p.Tick()
			Expect(p.Stats().Cycles).To(Equal(before))
		})
	})

	Describe("Stats", func() {
		It("tracks cycles, instructions and CPI", func() {
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 1).
				I(insts.OpADDI, 6, 0, 2).
				I(insts.OpADDI, 7, 0, 3).
				Build()

			p := newPipe(prog)
			p.Run()

			stats := p.Stats()
			Expect(stats.Instructions).To(Equal(uint64(3)))
			Expect(stats.Cycles).To(BeNumerically(">=", stats.Instructions))
			Expect(stats.CPI).To(BeNumerically(">", 0))
		})
	})

	Describe("Pipeline register inspection", func() {
		It("exposes each latch as its single instruction advances through it", func() {
			prog := asmfixture.New().
				I(insts.OpADDI, 5, 0, 1).
				Build()

			p := newPipe(prog)
			Expect(p.GetIFID().Valid).To(BeTrue()) // SetPC pre-fetches IF

			p.Tick()
			Expect(p.GetIDEX().Valid).To(BeTrue())
			p.Tick()
			Expect(p.GetEXMEM().Valid).To(BeTrue())
			p.Tick()
			Expect(p.GetMEMWB().Valid).To(BeTrue())
		})
	})
})
