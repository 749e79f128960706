// Package main provides the demo CLI for rv32pipe.
//
// There is no textual assembler or ELF loader in this build (both are
// explicitly out of scope); the CLI instead runs one of a small set of
// named demo programs built with internal/asmfixture, to exercise the
// pipeline and print its performance counters.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rv32pipe/emu"
	"github.com/sarchlab/rv32pipe/internal/asmfixture"
	"github.com/sarchlab/rv32pipe/insts"
	"github.com/sarchlab/rv32pipe/timing/pipeline"
)

var (
	demo    = flag.String("demo", "forward", "demo program to run: forward, load-use, branch")
	verbose = flag.Bool("v", false, "print a per-cycle trace")
)

func main() {
	flag.Parse()

	prog, ok := demoPrograms[*demo]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown demo %q\n\navailable demos:\n", *demo)
		for name := range demoPrograms {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		os.Exit(1)
	}

	regFile := emu.NewRegFile()
	memory := emu.NewMemory()

	var opts []pipeline.PipelineOption
	if *verbose {
		opts = append(opts, pipeline.WithTrace(pipeline.NewTrace(os.Stdout)))
	}

	pipe := pipeline.NewPipeline(prog(), regFile, memory, opts...)
	pipe.SetPC(0)
	pipe.Run()

	stats := pipe.Stats()
	fmt.Printf("cycles:       %d\n", stats.Cycles)
	fmt.Printf("instructions: %d\n", stats.Instructions)
	fmt.Printf("stalls:       %d\n", stats.Stalls)
	fmt.Printf("branches:     %d\n", stats.Branches)
	fmt.Printf("CPI:          %.2f\n", stats.CPI)
}

// demoPrograms maps a -demo name to a builder for the program it runs.
var demoPrograms = map[string]func() *insts.Program{
	"forward": func() *insts.Program {
		// Back-to-back ALU ops: every RAW hazard resolves by forwarding,
		// zero stalls.
		return asmfixture.New().
			I(insts.OpADDI, 5, 0, 1).
			I(insts.OpADDI, 6, 5, 2).
			I(insts.OpADDI, 7, 6, 3).
			Build()
	},
	"load-use": func() *insts.Program {
		// A load whose result the very next instruction consumes: exactly
		// one stall cycle.
		return asmfixture.New().
			Load(insts.OpLW, 5, 0, 0).
			I(insts.OpADDI, 6, 5, 1).
			Nop().
			Build()
	},
	"branch": func() *insts.Program {
		// A taken conditional branch, resolved by the BPU before the
		// fall-through instruction is ever fetched.
		return asmfixture.New().
			I(insts.OpADDI, 5, 0, 5).
			I(insts.OpADDI, 6, 0, 5).
			Branch(insts.OpBEQ, 5, 6, "L").
			I(insts.OpADDI, 7, 0, 99).
			Label("L").
			I(insts.OpADDI, 8, 0, 2).
			Build()
	},
}
