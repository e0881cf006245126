package m6502

import m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"

// AddressingMode defines how an instruction locates its operand.
type AddressingMode uint8

// Addressing modes, Implied is the zero value.
const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndirectX
	IndirectY
)

// addressingModes maps the reference table addressing modes of the NMOS 6502.
var addressingModes = map[m6502.AddressingMode]AddressingMode{
	m6502.ImpliedAddressing:     Implied,
	m6502.AccumulatorAddressing: Accumulator,
	m6502.ImmediateAddressing:   Immediate,
	m6502.ZeroPageAddressing:    ZeroPage,
	m6502.ZeroPageXAddressing:   ZeroPageX,
	m6502.ZeroPageYAddressing:   ZeroPageY,
	m6502.RelativeAddressing:    Relative,
	m6502.AbsoluteAddressing:    Absolute,
	m6502.AbsoluteXAddressing:   AbsoluteX,
	m6502.AbsoluteYAddressing:   AbsoluteY,
	m6502.IndirectAddressing:    Indirect,
	m6502.IndirectXAddressing:   IndirectX,
	m6502.IndirectYAddressing:   IndirectY,
}

var modeNames = [...]string{
	Implied:     "implied",
	Accumulator: "accumulator",
	Immediate:   "immediate",
	ZeroPage:    "zeropage",
	ZeroPageX:   "zeropage,x",
	ZeroPageY:   "zeropage,y",
	Relative:    "relative",
	Absolute:    "absolute",
	AbsoluteX:   "absolute,x",
	AbsoluteY:   "absolute,y",
	Indirect:    "indirect",
	IndirectX:   "(indirect,x)",
	IndirectY:   "(indirect),y",
}

func (m AddressingMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Size returns the total instruction size in bytes for the addressing mode,
// including the opcode byte.
func (m AddressingMode) Size() int {
	switch m {
	case Implied, Accumulator:
		return 1
	case Absolute, AbsoluteX, AbsoluteY, Indirect:
		return 3
	default:
		return 2
	}
}

// HasMemoryOperand returns whether the operand is read from or written to memory.
func (m AddressingMode) HasMemoryOperand() bool {
	switch m {
	case Implied, Accumulator, Immediate, Relative:
		return false
	default:
		return true
	}
}
