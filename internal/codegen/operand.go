package codegen

import (
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/program"
)

func (g *Generator) c(v uint16) ir.Value {
	return g.b.Const(v)
}

// staticAddress returns the effective address of instructions whose address
// does not depend on registers or memory.
func staticAddress(ins *program.Instruction) (uint16, bool) {
	switch ins.Mode {
	case m6502.ZeroPage, m6502.Absolute:
		return ins.Argument, true
	default:
		return 0, false
	}
}

// address emits the effective address computation of a memory operand.
func (g *Generator) address(ins *program.Instruction) ir.Value {
	b := g.b
	arg := ins.Argument

	switch ins.Mode {
	case m6502.ZeroPageX:
		return b.And(b.Add(g.c(arg), b.LoadSlot(ir.SlotX)), g.c(0xFF))
	case m6502.ZeroPageY:
		return b.And(b.Add(g.c(arg), b.LoadSlot(ir.SlotY)), g.c(0xFF))
	case m6502.AbsoluteX:
		return b.Add(g.c(arg), b.LoadSlot(ir.SlotX))
	case m6502.AbsoluteY:
		return b.Add(g.c(arg), b.LoadSlot(ir.SlotY))
	case m6502.Indirect:
		// the high byte is read from the same page as the low byte
		high := arg&0xFF00 | uint16(byte(arg)+1)
		return g.word(g.c(arg), g.c(high))
	case m6502.IndirectX:
		zp := b.And(b.Add(g.c(arg), b.LoadSlot(ir.SlotX)), g.c(0xFF))
		return g.word(zp, b.And(b.Add(zp, g.c(1)), g.c(0xFF)))
	case m6502.IndirectY:
		base := g.word(g.c(arg), g.c(uint16(byte(arg)+1)))
		return b.Add(base, b.LoadSlot(ir.SlotY))
	default:
		return g.c(arg)
	}
}

// word reads a little endian pointer from the two addresses.
func (g *Generator) word(low, high ir.Value) ir.Value {
	b := g.b
	lo := b.Load(low)
	hi := b.Load(high)
	return b.Or(b.Shl(hi, g.c(8)), lo)
}

func (g *Generator) readOperand(ins *program.Instruction) ir.Value {
	if ins.Mode == m6502.Immediate {
		return g.c(ins.Argument)
	}
	return g.b.Load(g.address(ins))
}

// writeOperand stores the value to the operand address. Static stores to host
// addresses are emitted as host calls.
func (g *Generator) writeOperand(ins *program.Instruction, value ir.Value) {
	if address, ok := staticAddress(ins); ok {
		g.write(address, value)
		return
	}
	g.b.Store(g.address(ins), value)
}

func (g *Generator) write(address uint16, value ir.Value) {
	if g.options.HostAddresses.Contains(address) {
		g.b.Call(g.options.HostCall, address, value)
		return
	}
	g.b.Store(g.c(address), value)
}

// modify emits a read-modify-write operation on the accumulator or memory
// and sets the zero and negative flags from the result.
func (g *Generator) modify(ins *program.Instruction, op func(ir.Value) ir.Value) {
	b := g.b
	if ins.Mode == m6502.Accumulator {
		g.setRegister(ir.SlotA, op(b.LoadSlot(ir.SlotA)))
		return
	}

	if address, ok := staticAddress(ins); ok {
		result := op(b.Load(g.c(address)))
		g.write(address, result)
		g.setZN(result)
		return
	}

	address := g.address(ins)
	result := op(b.Load(address))
	b.Store(address, result)
	g.setZN(result)
}

func (g *Generator) setA(v ir.Value) {
	g.setRegister(ir.SlotA, v)
}

func (g *Generator) setRegister(slot ir.Slot, v ir.Value) {
	g.b.StoreSlot(slot, v)
	g.setZN(v)
}

// setZN sets the zero and negative flags for a byte value.
func (g *Generator) setZN(v ir.Value) {
	b := g.b
	b.StoreSlot(ir.SlotZ, b.Eq(v, g.c(0)))
	b.StoreSlot(ir.SlotN, b.Shr(v, g.c(7)))
}

// addWithCarry emits binary ADC, SBC passes the inverted operand.
func (g *Generator) addWithCarry(value ir.Value) {
	b := g.b
	a := b.LoadSlot(ir.SlotA)
	sum := b.Add(b.Add(a, value), b.LoadSlot(ir.SlotC))
	result := b.And(sum, g.c(0xFF))

	b.StoreSlot(ir.SlotC, b.Shr(sum, g.c(8)))
	sameSign := b.Xor(b.Xor(a, value), g.c(0xFF))
	signChanged := b.Xor(a, result)
	b.StoreSlot(ir.SlotV, b.Shr(b.And(b.And(sameSign, signChanged), g.c(0x80)), g.c(7)))
	g.setA(result)
}

func (g *Generator) compare(slot ir.Slot, value ir.Value) {
	b := g.b
	register := b.LoadSlot(slot)
	b.StoreSlot(ir.SlotC, b.Uge(register, value))
	g.setZN(b.And(b.Sub(register, value), g.c(0xFF)))
}
