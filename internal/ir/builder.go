package ir

// Builder appends instructions to the block at its insertion point.
type Builder struct {
	fn    *Function
	block *Block
}

// NewBuilder returns a builder for the function without insertion point.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// SetInsertPoint sets the block that following instructions are appended to.
func (b *Builder) SetInsertPoint(block *Block) {
	b.block = block
}

// InsertBlock returns the current insertion block.
func (b *Builder) InsertBlock() *Block {
	return b.block
}

// Terminated returns whether the insertion block already ends with a terminator.
func (b *Builder) Terminated() bool {
	return b.block == nil || b.block.Terminator() != nil
}

func (b *Builder) emit(ins *Instr) Value {
	if ins.Op.HasResult() {
		ins.Dst = b.fn.newValue()
	} else {
		ins.Dst = NoValue
	}
	b.block.Instrs = append(b.block.Instrs, ins)
	return ins.Dst
}

// Const returns a constant value.
func (b *Builder) Const(v uint16) Value {
	return b.emit(&Instr{Op: OpConst, Imm: v})
}

// LoadSlot reads a storage slot.
func (b *Builder) LoadSlot(s Slot) Value {
	return b.emit(&Instr{Op: OpLoadSlot, Slot: s})
}

// StoreSlot writes a storage slot.
func (b *Builder) StoreSlot(s Slot, v Value) {
	b.emit(&Instr{Op: OpStoreSlot, Slot: s, Args: []Value{v}})
}

// Load reads a byte from emulated memory.
func (b *Builder) Load(address Value) Value {
	return b.emit(&Instr{Op: OpLoad, Args: []Value{address}})
}

// Store writes the low byte of a value to emulated memory.
func (b *Builder) Store(address, v Value) {
	b.emit(&Instr{Op: OpStore, Args: []Value{address, v}})
}

func (b *Builder) binary(op Opcode, x, y Value) Value {
	return b.emit(&Instr{Op: op, Args: []Value{x, y}})
}

// Add returns x + y.
func (b *Builder) Add(x, y Value) Value { return b.binary(OpAdd, x, y) }

// Sub returns x - y.
func (b *Builder) Sub(x, y Value) Value { return b.binary(OpSub, x, y) }

// And returns x & y.
func (b *Builder) And(x, y Value) Value { return b.binary(OpAnd, x, y) }

// Or returns x | y.
func (b *Builder) Or(x, y Value) Value { return b.binary(OpOr, x, y) }

// Xor returns x ^ y.
func (b *Builder) Xor(x, y Value) Value { return b.binary(OpXor, x, y) }

// Shl returns x << y.
func (b *Builder) Shl(x, y Value) Value { return b.binary(OpShl, x, y) }

// Shr returns x >> y.
func (b *Builder) Shr(x, y Value) Value { return b.binary(OpShr, x, y) }

// Eq returns 1 if x == y.
func (b *Builder) Eq(x, y Value) Value { return b.binary(OpEq, x, y) }

// Ne returns 1 if x != y.
func (b *Builder) Ne(x, y Value) Value { return b.binary(OpNe, x, y) }

// Uge returns 1 if x >= y.
func (b *Builder) Uge(x, y Value) Value { return b.binary(OpUge, x, y) }

// Call invokes a named host function with an address immediate and the low
// byte of the argument value.
func (b *Builder) Call(callee string, address uint16, arg Value) {
	b.emit(&Instr{Op: OpCall, Callee: callee, Imm: address, Args: []Value{arg}})
}

// Br jumps to the target block.
func (b *Builder) Br(target *Block) {
	b.emit(&Instr{Op: OpBr, Targets: []*Block{target}})
}

// CondBr jumps to then if the condition is non zero, otherwise to els.
func (b *Builder) CondBr(cond Value, then, els *Block) {
	b.emit(&Instr{Op: OpCondBr, Args: []Value{cond}, Targets: []*Block{then, els}})
}

// Dispatch jumps to the block registered for the computed address.
func (b *Builder) Dispatch(address Value) {
	b.emit(&Instr{Op: OpDispatch, Args: []Value{address}})
}

// Ret returns from the function with the value as exit code.
func (b *Builder) Ret(v Value) {
	b.emit(&Instr{Op: OpRet, Args: []Value{v}})
}
