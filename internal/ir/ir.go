// Package ir defines the intermediate representation that recompiled 6502
// code is generated into. A function consists of basic blocks, every block
// ends with exactly one terminator. Values are 16 bit unsigned integers that
// are defined once and are only visible inside the block defining them,
// machine state that crosses blocks is kept in storage slots.
package ir

import (
	"fmt"
	"maps"
	"slices"
)

// Slot is a storage location for a part of the emulated machine state.
type Slot uint8

// Storage slots. Flag slots hold 0 or 1.
const (
	SlotA Slot = iota
	SlotX
	SlotY
	SlotSP
	SlotC
	SlotZ
	SlotI
	SlotD
	SlotB
	SlotU
	SlotV
	SlotN

	NumSlots
)

var slotNames = [NumSlots]string{"a", "x", "y", "sp", "c", "z", "i", "d", "b", "u", "v", "n"}

func (s Slot) String() string {
	if s < NumSlots {
		return slotNames[s]
	}
	return fmt.Sprintf("slot%d", s)
}

// Value references the result of an instruction.
type Value int32

// NoValue is used for instructions that do not produce a value.
const NoValue Value = -1

func (v Value) String() string {
	return fmt.Sprintf("%%%d", v)
}

// Opcode is an IR operation.
type Opcode uint8

// IR operations.
const (
	OpConst     Opcode = iota // Imm
	OpLoadSlot                // Slot
	OpStoreSlot               // Slot, Args[0]
	OpLoad                    // read byte at Args[0]
	OpStore                   // write low byte of Args[1] to Args[0]
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq  // 1 if equal, 0 otherwise
	OpNe  // 1 if not equal, 0 otherwise
	OpUge // 1 if Args[0] >= Args[1] unsigned, 0 otherwise
	OpCall

	// terminators
	OpBr       // Targets[0]
	OpCondBr   // Targets[0] if Args[0] != 0, else Targets[1]
	OpDispatch // block registered for address Args[0] in the dispatch table
	OpRet      // return Args[0]
)

var opcodeNames = map[Opcode]string{
	OpConst: "const", OpLoadSlot: "load.slot", OpStoreSlot: "store.slot", OpLoad: "load",
	OpStore: "store", OpAdd: "add", OpSub: "sub", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpShr: "shr", OpEq: "eq", OpNe: "ne", OpUge: "uge", OpCall: "call",
	OpBr: "br", OpCondBr: "condbr", OpDispatch: "dispatch", OpRet: "ret",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op%d", o)
}

// IsTerminator returns whether the operation ends a block.
func (o Opcode) IsTerminator() bool {
	return o >= OpBr
}

// IsBinary returns whether the operation combines two values into a result.
func (o Opcode) IsBinary() bool {
	return o >= OpAdd && o <= OpUge
}

// HasResult returns whether the operation defines a value.
func (o Opcode) HasResult() bool {
	switch o {
	case OpConst, OpLoadSlot, OpLoad:
		return true
	default:
		return o.IsBinary()
	}
}

// argCount returns the number of value arguments the operation takes.
func (o Opcode) argCount() int {
	switch {
	case o.IsBinary(), o == OpStore:
		return 2
	case o == OpStoreSlot, o == OpLoad, o == OpCall, o == OpCondBr, o == OpDispatch, o == OpRet:
		return 1
	default:
		return 0
	}
}

// Instr is a single IR instruction.
type Instr struct {
	Op      Opcode
	Dst     Value
	Args    []Value
	Imm     uint16
	Slot    Slot
	Callee  string
	Targets []*Block
}

// Block is a basic block.
type Block struct {
	Name   string
	Index  int
	Instrs []*Instr
}

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Function is a compilation unit with a single entry block.
type Function struct {
	Name   string
	Blocks []*Block

	dispatch  map[uint16]*Block
	names     map[string]int
	numValues int
}

// NewFunction returns an empty function.
func NewFunction(name string) *Function {
	return &Function{
		Name:     name,
		dispatch: make(map[uint16]*Block),
		names:    make(map[string]int),
	}
}

// NewBlock appends a new block. Duplicate names get a numeric suffix.
func (f *Function) NewBlock(name string) *Block {
	unique := name
	if n, ok := f.names[name]; ok {
		unique = fmt.Sprintf("%s.%d", name, n)
	}
	f.names[name]++

	b := &Block{
		Name:  unique,
		Index: len(f.Blocks),
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Entry returns the entry block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AddDispatchEntry registers the block that a dispatch to the address continues at.
func (f *Function) AddDispatchEntry(address uint16, b *Block) {
	f.dispatch[address] = b
}

// DispatchTarget returns the block registered for the address.
func (f *Function) DispatchTarget(address uint16) (*Block, bool) {
	b, ok := f.dispatch[address]
	return b, ok
}

// DispatchAddresses returns all registered dispatch addresses in ascending order.
func (f *Function) DispatchAddresses() []uint16 {
	return slices.Sorted(maps.Keys(f.dispatch))
}

// NumValues returns the number of values allocated in the function.
func (f *Function) NumValues() int {
	return f.numValues
}

func (f *Function) newValue() Value {
	v := Value(f.numValues)
	f.numValues++
	return v
}

// InstructionCount returns the number of instructions over all blocks.
func (f *Function) InstructionCount() int {
	var n int
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}
