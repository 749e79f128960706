package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
	"github.com/sarchlab/rv32pipe/internal/asmfixture"
	"github.com/sarchlab/rv32pipe/timing/core"
)

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
	})

	newCore := func(program *insts.Program) *core.Core {
		c := core.NewCore(program, regFile, memory)
		c.SetPC(0)
		return c
	}

	It("creates a core with a pipeline", func() {
		c := newCore(asmfixture.New().Nop().Build())
		Expect(c).NotTo(BeNil())
		Expect(c.Pipeline).NotTo(BeNil())
	})

	It("sets and gets PC", func() {
		prog := asmfixture.New().Nop().Build()
		c := core.NewCore(prog, regFile, memory)
		c.SetPC(0x100)
		Expect(c.PC()).To(Equal(uint32(0x100)))
	})

	It("is not halted initially", func() {
		c := newCore(asmfixture.New().Nop().Build())
		Expect(c.Halted()).To(BeFalse())
	})

	It("executes instructions through Tick", func() {
		prog := asmfixture.New().
			I(insts.OpADDI, 1, 0, 42).
			Nop().
			Nop().
			Nop().
			Nop().
			Build()

		c := newCore(prog)
		for i := 0; i < 10; i++ {
			c.Tick()
		}

		Expect(regFile.Read(1)).To(Equal(uint32(42)))
	})

	It("returns stats as it ticks", func() {
		prog := asmfixture.New().
			I(insts.OpADDI, 1, 0, 42).
			Nop().
			Build()

		c := newCore(prog)
		c.Tick()
		c.Tick()

		stats := c.Stats()
		Expect(stats.Cycles).To(Equal(uint64(2)))
	})

	It("runs until halt", func() {
		prog := asmfixture.New().
			I(insts.OpADDI, 5, 0, 10).
			Build()

		c := newCore(prog)
		c.Run()

		Expect(c.Halted()).To(BeTrue())
		Expect(regFile.Read(5)).To(Equal(uint32(10)))
	})

	It("runs for a specified number of cycles and reports whether it is still running", func() {
		prog := asmfixture.New().
			I(insts.OpADDI, 1, 1, 1).
			Nop().
			Nop().
			Nop().
			Nop().
			Nop().
			Nop().
			Nop().
			Nop().
			Build()

		c := newCore(prog)
		running := c.RunCycles(5)

		Expect(running).To(BeTrue())
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("stops reporting running once RunCycles drains the pipeline", func() {
		prog := asmfixture.New().
			I(insts.OpADDI, 5, 0, 1).
			Build()

		c := newCore(prog)
		running := c.RunCycles(100)

		Expect(running).To(BeFalse())
		Expect(c.Halted()).To(BeTrue())
	})
})
