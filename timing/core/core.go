// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/insts"
	"github.com/sarchlab/rv32pipe/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Branches is the number of taken-branch directives the BPU issued.
	Branches uint64
	// CPI is Cycles/Instructions, 0 if no instruction has retired yet.
	CPI float64
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 5-stage pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core over program, running against regFile and
// memory. opts are forwarded to the underlying pipeline (e.g. WithTrace).
func NewCore(program *insts.Program, regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(program, regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// SetPC sets the initial fetch address.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// PC returns the current fetch address.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true once the pipeline has drained: every latch is a
// bubble and there is no instruction left to fetch.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Branches:     pipeStats.Branches,
		CPI:          pipeStats.CPI,
	}
}

// Run executes the core until it halts.
func (c *Core) Run() {
	c.Pipeline.Run()
}

// RunCycles executes the core for at most n cycles, stopping early if it
// halts. Returns true if the core is still running afterward.
func (c *Core) RunCycles(n int) bool {
	c.Pipeline.RunCycles(n)
	return !c.Pipeline.Halted()
}
