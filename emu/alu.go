package emu

import "github.com/sarchlab/rv32pipe/insts"

// Execute computes the result of an ALU-class, load/store-address, or
// jump/upper-immediate instruction. It is pure and stateless: callers pass
// in whatever operand values they want (already forwarded or not), and no
// register file or memory is touched. The Branch Precomputation Unit
// depends on this purity to speculatively evaluate instructions at pc and
// pc+4 before they would ordinarily reach EX, with no risk of corrupting
// architectural state if a guess turns out to be wrong.
func Execute(op insts.Op, pc, rs1Val, rs2Val uint32, imm int32) uint32 {
	switch op {
	case insts.OpADD:
		return rs1Val + rs2Val
	case insts.OpSUB:
		return rs1Val - rs2Val
	case insts.OpXOR:
		return rs1Val ^ rs2Val
	case insts.OpOR:
		return rs1Val | rs2Val
	case insts.OpAND:
		return rs1Val & rs2Val
	case insts.OpSLL:
		return rs1Val << (rs2Val & 0x1f)
	case insts.OpSRL:
		return rs1Val >> (rs2Val & 0x1f)
	case insts.OpSRA:
		return uint32(int32(rs1Val) >> (rs2Val & 0x1f))
	case insts.OpSLT:
		return boolToUint32(int32(rs1Val) < int32(rs2Val))
	case insts.OpSLTU:
		return boolToUint32(rs1Val < rs2Val)

	case insts.OpADDI:
		return rs1Val + uint32(imm)
	case insts.OpXORI:
		return rs1Val ^ uint32(imm)
	case insts.OpORI:
		return rs1Val | uint32(imm)
	case insts.OpANDI:
		return rs1Val & uint32(imm)
	case insts.OpSLLI:
		return rs1Val << (uint32(imm) & 0x1f)
	case insts.OpSRLI:
		return rs1Val >> (uint32(imm) & 0x1f)
	case insts.OpSRAI:
		return uint32(int32(rs1Val) >> (uint32(imm) & 0x1f))
	case insts.OpSLTI:
		return boolToUint32(int32(rs1Val) < imm)
	case insts.OpSLTIU:
		return boolToUint32(rs1Val < uint32(imm))

	case insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU,
		insts.OpSB, insts.OpSH, insts.OpSW:
		return rs1Val + uint32(imm)

	case insts.OpJAL:
		return pc + 4

	case insts.OpJALR:
		return (rs1Val + uint32(imm)) &^ 1

	case insts.OpLUI:
		return uint32(imm) << 12

	case insts.OpAUIPC:
		return pc + uint32(imm)<<12

	case insts.OpNOP, insts.OpECALL, insts.OpEBREAK:
		return 0

	default:
		return 0
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
