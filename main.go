// Package main provides the entry point for rv32pipe, a cycle-accurate
// five-stage RV32I pipeline simulator with a branch precomputation unit.
//
// For the full CLI, use: go run ./cmd/rv32pipe
package main

import "fmt"

func main() {
	fmt.Println("rv32pipe - five-stage RV32I pipeline simulator")
	fmt.Println("Run 'go run ./cmd/rv32pipe' for the demo CLI.")
}
