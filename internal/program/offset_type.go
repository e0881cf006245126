package program

// OffsetType defines the type of a byte in the address space as discovered by
// the control-flow recovery.
type OffsetType uint8

// offset types.
const (
	UnknownOffset     OffsetType = 0
	CodeOffset        OffsetType = 1 << iota // first byte of an instruction
	OperandOffset                            // operand byte of an instruction
	BranchDestination                        // target of a branch or jump
	CallDestination                          // target of a jsr call, indicating a subroutine
)

// Coverage records the offset type of every byte of the address space.
type Coverage [0x10000]OffsetType

// IsType returns whether the offset at the address has any of the given types.
func (c *Coverage) IsType(address uint16, typ OffsetType) bool {
	return c[address]&typ != 0
}

// SetType sets the type of the offset.
func (c *Coverage) SetType(address uint16, typ OffsetType) {
	c[address] |= typ
}

// ClearType unsets the type of the offset.
func (c *Coverage) ClearType(address uint16, typ OffsetType) {
	c[address] &^= typ
}

// IsCode returns whether the byte belongs to a decoded instruction.
func (c *Coverage) IsCode(address uint16) bool {
	return c.IsType(address, CodeOffset|OperandOffset)
}
