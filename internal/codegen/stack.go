package codegen

import (
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/ir"
)

var statusBits = [...]struct {
	slot  ir.Slot
	shift uint16
}{
	{ir.SlotC, 0},
	{ir.SlotZ, 1},
	{ir.SlotI, 2},
	{ir.SlotD, 3},
	{ir.SlotB, 4},
	{ir.SlotU, 5},
	{ir.SlotV, 6},
	{ir.SlotN, 7},
}

func (g *Generator) push(value ir.Value) {
	b := g.b
	sp := b.LoadSlot(ir.SlotSP)
	b.Store(b.Or(g.c(m6502.StackBase), sp), value)
	b.StoreSlot(ir.SlotSP, b.And(b.Sub(sp, g.c(1)), g.c(0xFF)))
}

func (g *Generator) pull() ir.Value {
	b := g.b
	sp := b.And(b.Add(b.LoadSlot(ir.SlotSP), g.c(1)), g.c(0xFF))
	b.StoreSlot(ir.SlotSP, sp)
	return b.Load(b.Or(g.c(m6502.StackBase), sp))
}

// push16 pushes a return address, high byte first.
func (g *Generator) push16(value uint16) {
	g.push(g.c(value >> 8))
	g.push(g.c(value & 0xFF))
}

func (g *Generator) pull16() ir.Value {
	b := g.b
	low := g.pull()
	high := g.pull()
	return b.Or(b.Shl(high, g.c(8)), low)
}

// status combines the flag slots into the status register value.
func (g *Generator) status() ir.Value {
	b := g.b
	value := b.LoadSlot(ir.SlotC)
	for _, bit := range statusBits[1:] {
		value = b.Or(value, b.Shl(b.LoadSlot(bit.slot), g.c(bit.shift)))
	}
	return value
}

// pullStatus restores the flag slots from the stack, the break and unused
// flags are not changed.
func (g *Generator) pullStatus() {
	b := g.b
	value := g.pull()
	for _, bit := range statusBits {
		if bit.slot == ir.SlotB || bit.slot == ir.SlotU {
			continue
		}
		b.StoreSlot(bit.slot, b.And(b.Shr(value, g.c(bit.shift)), g.c(1)))
	}
}
