package m6502

import m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"

// Interrupt vector locations and the stack page of the 6502.
const (
	NMIVector   = uint16(m6502.NMIAddress)
	ResetVector = uint16(m6502.ResetAddress)
	IRQVector   = uint16(m6502.IrqAddress)

	StackBase = uint16(m6502.StackBase)
)
