package m6502

import (
	"strings"
	"testing"

	m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/assert"
)

func TestLegalCount(t *testing.T) {
	assert.Equal(t, 151, LegalCount())
}

func TestLookup(t *testing.T) {
	tests := []struct {
		opcode byte
		op     Op
		mode   AddressingMode
	}{
		{0x00, BRK, Implied},
		{0x02, Illegal, Implied}, // kil
		{0x0A, ASL, Accumulator},
		{0x1A, Illegal, Implied}, // unofficial nop
		{0x6C, JMP, Indirect},
		{0x91, STA, IndirectY},
		{0xA1, LDA, IndirectX},
		{0xA7, Illegal, Implied}, // lax
		{0xB6, LDX, ZeroPageY},
		{0xBE, LDX, AbsoluteY},
		{0xD0, BNE, Relative},
		{0xEA, NOP, Implied},
		{0xEB, Illegal, Implied}, // unofficial sbc
		{0xFE, INC, AbsoluteX},
	}

	for _, tt := range tests {
		entry := Lookup(tt.opcode)
		assert.Equal(t, tt.op, entry.Op, "opcode $%02X", tt.opcode)
		assert.Equal(t, tt.mode, entry.Mode, "opcode $%02X", tt.opcode)
	}
}

func TestOpcodesMatchReferenceTable(t *testing.T) {
	for i := range 256 {
		b := byte(i)
		entry := Lookup(b)
		ref := m6502.Opcodes[b]
		official := ref.Instruction != nil && !ref.Instruction.Unofficial &&
			ref.Instruction.Name != m6502.KilName

		assert.Equal(t, official, entry.Legal(), "opcode $%02X legality", b)
		if !official {
			assert.Equal(t, Implied, entry.Mode)
			continue
		}

		assert.True(t, strings.EqualFold(ref.Instruction.Name, entry.Op.String()), "opcode $%02X mnemonic", b)
		assert.Equal(t, entry.Mode, addressingModes[ref.Addressing])
	}
}

func TestEntrySize(t *testing.T) {
	tests := []struct {
		opcode byte
		size   int
	}{
		{0xEA, 1},
		{0x0A, 1},
		{0xA9, 2},
		{0xD0, 2},
		{0xB1, 2},
		{0x4C, 3},
		{0x6C, 3},
		{0xBD, 3},
		{0x02, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.size, Lookup(tt.opcode).Size())
	}
}

func TestOpClassification(t *testing.T) {
	assert.True(t, BNE.IsBranch())
	assert.True(t, JSR.IsBranch())
	assert.False(t, JMP.IsBranch())
	assert.False(t, JSR.IsConditionalBranch())

	assert.True(t, Lookup(0x4C).IsJumpAbsolute())
	assert.False(t, Lookup(0x6C).IsJumpAbsolute())

	for _, op := range []Op{JMP, RTS, RTI, BRK, Illegal} {
		assert.True(t, op.EndsBlock())
	}
	assert.False(t, JSR.EndsBlock())
	assert.False(t, BEQ.EndsBlock())

	assert.True(t, STA.WritesMemory())
	assert.True(t, INC.WritesMemory())
	assert.False(t, LDA.WritesMemory())
	assert.False(t, CMP.WritesMemory())
}

func TestIllegalLookup(t *testing.T) {
	entry := Lookup(0xFF)
	assert.False(t, entry.Legal())
	assert.Equal(t, "???", entry.Op.String())
}
