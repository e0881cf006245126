package codegen

import (
	"fmt"

	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/program"
)

// breakUnused are the status bits set when the status is pushed by PHP or BRK.
const breakUnused = 0x30

//nolint:funlen,cyclop
func (g *Generator) translate(ins *program.Instruction) error {
	b := g.b

	switch ins.Op {
	case m6502.ADC:
		g.addWithCarry(g.readOperand(ins))
	case m6502.SBC:
		g.addWithCarry(b.Xor(g.readOperand(ins), g.c(0xFF)))

	case m6502.AND:
		g.setA(b.And(b.LoadSlot(ir.SlotA), g.readOperand(ins)))
	case m6502.ORA:
		g.setA(b.Or(b.LoadSlot(ir.SlotA), g.readOperand(ins)))
	case m6502.EOR:
		g.setA(b.Xor(b.LoadSlot(ir.SlotA), g.readOperand(ins)))

	case m6502.ASL:
		g.modify(ins, func(v ir.Value) ir.Value {
			b.StoreSlot(ir.SlotC, b.Shr(v, g.c(7)))
			return b.And(b.Shl(v, g.c(1)), g.c(0xFF))
		})
	case m6502.LSR:
		g.modify(ins, func(v ir.Value) ir.Value {
			b.StoreSlot(ir.SlotC, b.And(v, g.c(1)))
			return b.Shr(v, g.c(1))
		})
	case m6502.ROL:
		g.modify(ins, func(v ir.Value) ir.Value {
			carry := b.LoadSlot(ir.SlotC)
			b.StoreSlot(ir.SlotC, b.Shr(v, g.c(7)))
			return b.And(b.Or(b.Shl(v, g.c(1)), carry), g.c(0xFF))
		})
	case m6502.ROR:
		g.modify(ins, func(v ir.Value) ir.Value {
			carry := b.LoadSlot(ir.SlotC)
			b.StoreSlot(ir.SlotC, b.And(v, g.c(1)))
			return b.Or(b.Shr(v, g.c(1)), b.Shl(carry, g.c(7)))
		})

	case m6502.BIT:
		value := g.readOperand(ins)
		b.StoreSlot(ir.SlotZ, b.Eq(b.And(b.LoadSlot(ir.SlotA), value), g.c(0)))
		b.StoreSlot(ir.SlotN, b.Shr(value, g.c(7)))
		b.StoreSlot(ir.SlotV, b.And(b.Shr(value, g.c(6)), g.c(1)))

	case m6502.BCC:
		return g.branch(ins, ir.SlotC, false)
	case m6502.BCS:
		return g.branch(ins, ir.SlotC, true)
	case m6502.BEQ:
		return g.branch(ins, ir.SlotZ, true)
	case m6502.BNE:
		return g.branch(ins, ir.SlotZ, false)
	case m6502.BMI:
		return g.branch(ins, ir.SlotN, true)
	case m6502.BPL:
		return g.branch(ins, ir.SlotN, false)
	case m6502.BVS:
		return g.branch(ins, ir.SlotV, true)
	case m6502.BVC:
		return g.branch(ins, ir.SlotV, false)

	case m6502.BRK:
		target, err := g.target(ins)
		if err != nil {
			return err
		}
		g.push16(ins.Offset + 2)
		g.push(b.Or(g.status(), g.c(breakUnused)))
		b.StoreSlot(ir.SlotI, g.c(1))
		b.Br(target)

	case m6502.CLC:
		b.StoreSlot(ir.SlotC, g.c(0))
	case m6502.CLD:
		b.StoreSlot(ir.SlotD, g.c(0))
	case m6502.CLI:
		b.StoreSlot(ir.SlotI, g.c(0))
	case m6502.CLV:
		b.StoreSlot(ir.SlotV, g.c(0))
	case m6502.SEC:
		b.StoreSlot(ir.SlotC, g.c(1))
	case m6502.SED:
		b.StoreSlot(ir.SlotD, g.c(1))
	case m6502.SEI:
		b.StoreSlot(ir.SlotI, g.c(1))

	case m6502.CMP:
		g.compare(ir.SlotA, g.readOperand(ins))
	case m6502.CPX:
		g.compare(ir.SlotX, g.readOperand(ins))
	case m6502.CPY:
		g.compare(ir.SlotY, g.readOperand(ins))

	case m6502.DEC:
		g.modify(ins, func(v ir.Value) ir.Value { return b.And(b.Sub(v, g.c(1)), g.c(0xFF)) })
	case m6502.INC:
		g.modify(ins, func(v ir.Value) ir.Value { return b.And(b.Add(v, g.c(1)), g.c(0xFF)) })
	case m6502.DEX:
		g.setRegister(ir.SlotX, b.And(b.Sub(b.LoadSlot(ir.SlotX), g.c(1)), g.c(0xFF)))
	case m6502.DEY:
		g.setRegister(ir.SlotY, b.And(b.Sub(b.LoadSlot(ir.SlotY), g.c(1)), g.c(0xFF)))
	case m6502.INX:
		g.setRegister(ir.SlotX, b.And(b.Add(b.LoadSlot(ir.SlotX), g.c(1)), g.c(0xFF)))
	case m6502.INY:
		g.setRegister(ir.SlotY, b.And(b.Add(b.LoadSlot(ir.SlotY), g.c(1)), g.c(0xFF)))

	case m6502.JMP:
		if ins.Mode == m6502.Indirect {
			b.Dispatch(g.address(ins))
			return nil
		}
		target, err := g.target(ins)
		if err != nil {
			return err
		}
		b.Br(target)

	case m6502.JSR:
		target, err := g.target(ins)
		if err != nil {
			return err
		}
		g.push16(ins.Offset + 2)
		b.Br(target)

	case m6502.RTS:
		b.Dispatch(b.Add(g.pull16(), g.c(1)))

	case m6502.RTI:
		g.pullStatus()
		b.Dispatch(g.pull16())

	case m6502.LDA:
		g.setRegister(ir.SlotA, g.readOperand(ins))
	case m6502.LDX:
		g.setRegister(ir.SlotX, g.readOperand(ins))
	case m6502.LDY:
		g.setRegister(ir.SlotY, g.readOperand(ins))

	case m6502.STA:
		g.writeOperand(ins, b.LoadSlot(ir.SlotA))
	case m6502.STX:
		g.writeOperand(ins, b.LoadSlot(ir.SlotX))
	case m6502.STY:
		g.writeOperand(ins, b.LoadSlot(ir.SlotY))

	case m6502.PHA:
		g.push(b.LoadSlot(ir.SlotA))
	case m6502.PHP:
		g.push(b.Or(g.status(), g.c(breakUnused)))
	case m6502.PLA:
		g.setRegister(ir.SlotA, g.pull())
	case m6502.PLP:
		g.pullStatus()

	case m6502.TAX:
		g.setRegister(ir.SlotX, b.LoadSlot(ir.SlotA))
	case m6502.TAY:
		g.setRegister(ir.SlotY, b.LoadSlot(ir.SlotA))
	case m6502.TSX:
		g.setRegister(ir.SlotX, b.LoadSlot(ir.SlotSP))
	case m6502.TXA:
		g.setRegister(ir.SlotA, b.LoadSlot(ir.SlotX))
	case m6502.TXS:
		b.StoreSlot(ir.SlotSP, b.LoadSlot(ir.SlotX))
	case m6502.TYA:
		g.setRegister(ir.SlotA, b.LoadSlot(ir.SlotY))

	case m6502.NOP:

	default:
		return &UnsupportedOpcodeError{Address: ins.Offset, Opcode: ins.Opcode}
	}
	return nil
}

// branch ends the current block with a conditional branch on the flag and
// continues in a new block for the not taken path.
func (g *Generator) branch(ins *program.Instruction, flag ir.Slot, whenSet bool) error {
	target, err := g.target(ins)
	if err != nil {
		return fmt.Errorf("translating %s at $%04X: %w", ins.Op, ins.Offset, err)
	}

	next := g.fn.NewBlock(fmt.Sprintf("_br_%04x_next", ins.Offset))
	cond := g.b.LoadSlot(flag)
	if whenSet {
		g.b.CondBr(cond, target, next)
	} else {
		g.b.CondBr(cond, next, target)
	}
	g.b.SetInsertPoint(next)
	return nil
}
