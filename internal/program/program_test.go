package program

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
)

func TestAddLabelDeduplicates(t *testing.T) {
	p := New(0x8000, 0x8000)

	reset := p.AddLabel(0x8000, "Reset")
	other := p.AddLabel(0x8000, "_label_8000")
	assert.Equal(t, reset.ID, other.ID)
	assert.Equal(t, "Reset", other.Name)

	loop := p.AddLabel(0x8002, "_label_8002")
	assert.Equal(t, LabelID(1), loop.ID)

	byID, ok := p.LabelByID(loop.ID)
	assert.True(t, ok)
	assert.Equal(t, uint16(0x8002), byID.Address)

	_, ok = p.LabelByID(5)
	assert.False(t, ok)
}

func TestLabelsSorted(t *testing.T) {
	p := New(0x8000, 0x8000)
	p.AddLabel(0x9000, "b")
	p.AddLabel(0x8000, "a")

	labels := p.Labels()
	assert.Equal(t, 2, len(labels))
	assert.Equal(t, "a", labels[0].Name)
	assert.Equal(t, "b", labels[1].Name)
}

func TestInstructionsSorted(t *testing.T) {
	p := New(0x8000, 0x8000)
	p.AddInstruction(&Instruction{Offset: 0x8004, Op: m6502.NOP})
	p.AddInstruction(&Instruction{Offset: 0x8000, Op: m6502.LDY})
	p.Sort()

	assert.Equal(t, uint16(0x8000), p.Instructions[0].Offset)
	ins, ok := p.InstructionAt(0x8004)
	assert.True(t, ok)
	assert.Equal(t, m6502.NOP, ins.Op)
}

func TestTargetLabel(t *testing.T) {
	p := New(0x8000, 0x8000)
	label := p.AddLabel(0x8000, "Reset")

	got, err := p.TargetLabel(&Instruction{Offset: 0x8004, Target: label.ID, HasTarget: true})
	assert.NoError(t, err)
	assert.Equal(t, "Reset", got.Name)

	_, err = p.TargetLabel(&Instruction{Offset: 0x8004})
	assert.Error(t, err)
}
