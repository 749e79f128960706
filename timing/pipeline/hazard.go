package pipeline

// HazardUnit detects data hazards and computes forwarding/stalling decisions
// for the main pipeline (the BPU keeps its own, separate forwarding state).
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// ForwardingSource indicates where an EX-stage operand's value comes from.
type ForwardingSource uint8

const (
	// ForwardNone means no forwarding; use the value read in ID.
	ForwardNone ForwardingSource = iota
	// ForwardFromEXMEM is "near" forwarding: the instruction one cycle ahead
	// of EX (currently in MEM) supplies the value. Never set for a load.
	ForwardFromEXMEM
	// ForwardFromMEMWB is "far" forwarding: the instruction two cycles ahead
	// of EX (currently in WB) supplies the value.
	ForwardFromMEMWB
)

// ForwardingResult carries the forwarding decision for both operands of the
// instruction in EX.
type ForwardingResult struct {
	ForwardRs1 ForwardingSource
	ForwardRs2 ForwardingSource
}

// DetectForwarding resolves RAW hazards for the instruction in idex against
// the instructions currently in exmem ("near") and memwb ("far"). Ties
// resolve to near — the most recent writer wins. Register 0 is never a
// forwarding source, and a load in exmem never forwards as near (its result
// isn't known until after MEM; that case is caught upstream as a stall).
func (h *HazardUnit) DetectForwarding(idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardingResult {
	result := ForwardingResult{}

	if !idex.Valid {
		return result
	}

	exmemWrites := exmem.Valid && exmem.RegWrite && exmem.Rd != 0 && !exmem.MemRead
	memwbWrites := memwb.Valid && memwb.RegWrite && memwb.Rd != 0

	if idex.Rs1 != 0 {
		switch {
		case exmemWrites && exmem.Rd == idex.Rs1:
			result.ForwardRs1 = ForwardFromEXMEM
		case memwbWrites && memwb.Rd == idex.Rs1:
			result.ForwardRs1 = ForwardFromMEMWB
		}
	}

	if idex.Rs2 != 0 {
		switch {
		case exmemWrites && exmem.Rd == idex.Rs2:
			result.ForwardRs2 = ForwardFromEXMEM
		case memwbWrites && memwb.Rd == idex.Rs2:
			result.ForwardRs2 = ForwardFromMEMWB
		}
	}

	return result
}

// DetectLoadUseHazardDecoded reports whether a load sitting in EX with
// destination loadRd feeds an operand the instruction now in ID will need,
// which forwarding cannot cover and must instead stall one cycle.
func (h *HazardUnit) DetectLoadUseHazardDecoded(loadRd, nextRs1, nextRs2 uint8, nextUsesRs1, nextUsesRs2 bool) bool {
	if loadRd == 0 {
		return false
	}

	if nextUsesRs1 && nextRs1 == loadRd {
		return true
	}

	if nextUsesRs2 && nextRs2 == loadRd {
		return true
	}

	return false
}

// GetForwardedValue resolves a forwarding decision to a concrete word.
func (h *HazardUnit) GetForwardedValue(source ForwardingSource, originalValue uint32, exmem *EXMEMRegister, memwb *MEMWBRegister) uint32 {
	switch source {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		if memwb.MemToReg {
			return memwb.MemData
		}
		return memwb.ALUResult
	default:
		return originalValue
	}
}

// StallResult indicates what latch actions the controller must take for a
// main-pipeline (as opposed to BPU) hazard.
type StallResult struct {
	// StallIF means the IF stage should not advance (refetch the same PC).
	StallIF bool
	// StallID means the ID latch should hold its current contents.
	StallID bool
	// InsertBubbleEX means EX receives a bubble instead of ID's output.
	InsertBubbleEX bool
}

// ComputeStalls turns a load-use hazard verdict into latch actions.
func (h *HazardUnit) ComputeStalls(loadUseHazard bool) StallResult {
	if !loadUseHazard {
		return StallResult{}
	}

	return StallResult{
		StallIF:        true,
		StallID:        true,
		InsertBubbleEX: true,
	}
}
