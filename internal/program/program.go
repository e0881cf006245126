// Package program contains the recovered program representation that is
// produced by the control-flow recovery and consumed by the code generator.
package program

import (
	"fmt"
	"slices"

	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/symbols"
)

// LabelID identifies a label within a program.
type LabelID int

// Label is a named jump target.
type Label struct {
	ID      LabelID
	Address uint16
	Name    string
}

// Instruction is a single decoded instruction.
type Instruction struct {
	Offset   uint16
	Opcode   byte
	Op       m6502.Op
	Mode     m6502.AddressingMode
	Size     uint8
	Argument uint16 // operand value, 0 for instructions without operand

	IsBranch  bool    // conditional branch or JSR
	Target    LabelID // valid if HasTarget is set
	HasTarget bool

	Exits bool // static store to a host exit address, execution ends here
}

// Program is the ordered list of reachable instructions and the labels that
// reference them.
type Program struct {
	Base  uint16 // address the image was loaded at
	Reset uint16 // entry point read from the reset vector

	Instructions []*Instruction // sorted by offset
	Coverage     *Coverage

	labels       *symbols.Manager[*Label]
	labelByID    []*Label
	instructions map[uint16]*Instruction
}

// New returns an empty program.
func New(base, reset uint16) *Program {
	return &Program{
		Base:         base,
		Reset:        reset,
		Coverage:     &Coverage{},
		labels:       symbols.New[*Label](),
		instructions: make(map[uint16]*Instruction),
	}
}

// AddLabel returns the label at the address, creating it with the given name
// if no label exists yet. Labels are unique per address.
func (p *Program) AddLabel(address uint16, name string) *Label {
	if label, ok := p.labels.Get(address); ok {
		return label
	}
	label := &Label{
		ID:      LabelID(len(p.labelByID)),
		Address: address,
		Name:    name,
	}
	p.labels.Set(address, label)
	p.labelByID = append(p.labelByID, label)
	return label
}

// Label returns the label at the given address.
func (p *Program) Label(address uint16) (*Label, bool) {
	return p.labels.Get(address)
}

// LabelByID returns the label with the given ID.
func (p *Program) LabelByID(id LabelID) (*Label, bool) {
	if id < 0 || int(id) >= len(p.labelByID) {
		return nil, false
	}
	return p.labelByID[id], true
}

// Labels returns all labels sorted by address.
func (p *Program) Labels() []*Label {
	return p.labels.Sorted()
}

// MarkReferenced records that an instruction references the label address.
func (p *Program) MarkReferenced(address uint16) {
	p.labels.MarkUsed(address)
}

// IsReferenced returns whether any instruction references the label address.
func (p *Program) IsReferenced(address uint16) bool {
	return p.labels.IsUsed(address)
}

// AddInstruction adds a decoded instruction. Instructions are sorted by
// calling Sort once all instructions are added.
func (p *Program) AddInstruction(ins *Instruction) {
	p.Instructions = append(p.Instructions, ins)
	p.instructions[ins.Offset] = ins
}

// InstructionAt returns the instruction starting at the address.
func (p *Program) InstructionAt(address uint16) (*Instruction, bool) {
	ins, ok := p.instructions[address]
	return ins, ok
}

// Sort orders the instructions by address.
func (p *Program) Sort() {
	slices.SortFunc(p.Instructions, func(a, b *Instruction) int {
		return int(a.Offset) - int(b.Offset)
	})
}

// TargetLabel returns the label an instruction references.
func (p *Program) TargetLabel(ins *Instruction) (*Label, error) {
	if !ins.HasTarget {
		return nil, fmt.Errorf("instruction at $%04X has no target", ins.Offset)
	}
	label, ok := p.LabelByID(ins.Target)
	if !ok {
		return nil, fmt.Errorf("instruction at $%04X references unknown label %d", ins.Offset, ins.Target)
	}
	return label, nil
}
