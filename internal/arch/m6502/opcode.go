// Package m6502 contains the opcode table of the documented 6502 instruction set
// that the interpreter, the control-flow recovery and the code generator share.
package m6502

import (
	"strings"

	m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"
)

// Op is a documented 6502 operation. Illegal is used for every opcode value that
// is not part of the documented instruction set.
type Op uint8

// Operations in mnemonic order.
const (
	Illegal Op = iota
	ADC
	AND
	ASL
	BCC
	BCS
	BEQ
	BIT
	BMI
	BNE
	BPL
	BRK
	BVC
	BVS
	CLC
	CLD
	CLI
	CLV
	CMP
	CPX
	CPY
	DEC
	DEX
	DEY
	EOR
	INC
	INX
	INY
	JMP
	JSR
	LDA
	LDX
	LDY
	LSR
	NOP
	ORA
	PHA
	PHP
	PLA
	PLP
	ROL
	ROR
	RTI
	RTS
	SBC
	SEC
	SED
	SEI
	STA
	STX
	STY
	TAX
	TAY
	TSX
	TXA
	TXS
	TYA
)

var opNames = [...]string{
	Illegal: "???",
	ADC:     "ADC", AND: "AND", ASL: "ASL", BCC: "BCC", BCS: "BCS", BEQ: "BEQ", BIT: "BIT",
	BMI: "BMI", BNE: "BNE", BPL: "BPL", BRK: "BRK", BVC: "BVC", BVS: "BVS", CLC: "CLC",
	CLD: "CLD", CLI: "CLI", CLV: "CLV", CMP: "CMP", CPX: "CPX", CPY: "CPY", DEC: "DEC",
	DEX: "DEX", DEY: "DEY", EOR: "EOR", INC: "INC", INX: "INX", INY: "INY", JMP: "JMP",
	JSR: "JSR", LDA: "LDA", LDX: "LDX", LDY: "LDY", LSR: "LSR", NOP: "NOP", ORA: "ORA",
	PHA: "PHA", PHP: "PHP", PLA: "PLA", PLP: "PLP", ROL: "ROL", ROR: "ROR", RTI: "RTI",
	RTS: "RTS", SBC: "SBC", SEC: "SEC", SED: "SED", SEI: "SEI", STA: "STA", STX: "STX",
	STY: "STY", TAX: "TAX", TAY: "TAY", TSX: "TSX", TXA: "TXA", TXS: "TXS", TYA: "TYA",
}

// String returns the upper case mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return opNames[Illegal]
}

// IsBranch returns whether the operation transfers control to an operand
// target while also continuing with the following instruction, which is true
// for the conditional branches and for JSR.
func (o Op) IsBranch() bool {
	return o == JSR || o.IsConditionalBranch()
}

// IsConditionalBranch returns whether the operation is a flag based relative branch.
func (o Op) IsConditionalBranch() bool {
	switch o {
	case BCC, BCS, BEQ, BMI, BNE, BPL, BVC, BVS:
		return true
	default:
		return false
	}
}

// EndsBlock returns whether execution never continues with the instruction
// that directly follows in memory.
func (o Op) EndsBlock() bool {
	switch o {
	case JMP, RTS, RTI, BRK, Illegal:
		return true
	default:
		return false
	}
}

// WritesMemory returns whether the operation stores to its memory operand.
func (o Op) WritesMemory() bool {
	switch o {
	case STA, STX, STY, ASL, LSR, ROL, ROR, INC, DEC:
		return true
	default:
		return false
	}
}

// Entry is a single opcode table entry.
type Entry struct {
	Op   Op
	Mode AddressingMode
}

// Legal returns whether the entry describes a documented instruction.
func (e Entry) Legal() bool {
	return e.Op != Illegal
}

// Size returns the encoded instruction size in bytes.
func (e Entry) Size() int {
	return e.Mode.Size()
}

// IsJumpAbsolute returns whether the entry is the unconditional absolute JMP,
// the only instruction that ends a block while having a static target.
func (e Entry) IsJumpAbsolute() bool {
	return e.Op == JMP && e.Mode == Absolute
}

// Lookup returns the table entry for the opcode byte. Unknown values return
// an Illegal entry with implied addressing.
func Lookup(b byte) Entry {
	return Opcodes[b]
}

// LegalCount returns the number of documented opcodes in the table.
func LegalCount() int {
	var n int
	for _, e := range Opcodes {
		if e.Legal() {
			n++
		}
	}
	return n
}

// Opcodes maps every opcode byte to its operation and addressing mode. The
// documented instructions of the reference table are used, the unofficial
// opcodes and the KIL opcodes that jam the processor stay Illegal.
var Opcodes = buildOpcodes()

func buildOpcodes() [256]Entry {
	ops := make(map[string]Op, len(opNames))
	for op := ADC; op <= TYA; op++ {
		ops[strings.ToLower(op.String())] = op
	}

	var table [256]Entry
	for b, opcode := range m6502.Opcodes {
		ins := opcode.Instruction
		if ins == nil || ins.Unofficial || ins.Name == m6502.KilName {
			continue
		}
		op, ok := ops[ins.Name]
		if !ok {
			continue
		}
		mode, ok := addressingModes[opcode.Addressing]
		if !ok {
			continue
		}
		table[b] = Entry{Op: op, Mode: mode}
	}
	return table
}
