package cpu

import "github.com/retroenv/retrorecomp/internal/arch/m6502"

// operandAddress advances the program counter over the operand and returns
// the effective address. For immediate addressing the address of the operand
// byte itself is returned, for relative addressing the branch target.
func (c *CPU) operandAddress(mode m6502.AddressingMode) uint16 {
	switch mode {
	case m6502.Immediate:
		address := c.regs.PC
		c.regs.PC++
		return address
	case m6502.ZeroPage:
		return uint16(c.fetch())
	case m6502.ZeroPageX:
		return uint16(c.fetch() + c.regs.X)
	case m6502.ZeroPageY:
		return uint16(c.fetch() + c.regs.Y)
	case m6502.Relative:
		offset := int8(c.fetch())
		return c.regs.PC + uint16(offset)
	case m6502.Absolute:
		return c.fetchWord()
	case m6502.AbsoluteX:
		return c.fetchWord() + uint16(c.regs.X)
	case m6502.AbsoluteY:
		return c.fetchWord() + uint16(c.regs.Y)
	case m6502.Indirect:
		return c.readWordPageWrapped(c.fetchWord())
	case m6502.IndirectX:
		return c.readZeroPageWord(c.fetch() + c.regs.X)
	case m6502.IndirectY:
		return c.readZeroPageWord(c.fetch()) + uint16(c.regs.Y)
	default:
		return 0
	}
}

//nolint:funlen,cyclop
func (c *CPU) execute(entry m6502.Entry, address uint16) {
	r := &c.regs

	switch entry.Op {
	case m6502.ADC:
		c.addWithCarry(c.read(address))
	case m6502.SBC:
		c.addWithCarry(^c.read(address))

	case m6502.AND:
		r.A &= c.read(address)
		r.P.setZN(r.A)
	case m6502.ORA:
		r.A |= c.read(address)
		r.P.setZN(r.A)
	case m6502.EOR:
		r.A ^= c.read(address)
		r.P.setZN(r.A)

	case m6502.ASL:
		c.modify(entry.Mode, address, func(v byte) byte {
			r.P.Set(FlagC, v&0x80 != 0)
			return v << 1
		})
	case m6502.LSR:
		c.modify(entry.Mode, address, func(v byte) byte {
			r.P.Set(FlagC, v&0x01 != 0)
			return v >> 1
		})
	case m6502.ROL:
		c.modify(entry.Mode, address, func(v byte) byte {
			carry := byte(r.P & FlagC)
			r.P.Set(FlagC, v&0x80 != 0)
			return v<<1 | carry
		})
	case m6502.ROR:
		c.modify(entry.Mode, address, func(v byte) byte {
			carry := byte(r.P&FlagC) << 7
			r.P.Set(FlagC, v&0x01 != 0)
			return v>>1 | carry
		})

	case m6502.BIT:
		value := c.read(address)
		r.P.Set(FlagZ, r.A&value == 0)
		r.P.Set(FlagN, value&0x80 != 0)
		r.P.Set(FlagV, value&0x40 != 0)

	case m6502.BCC:
		c.branch(!r.P.Has(FlagC), address)
	case m6502.BCS:
		c.branch(r.P.Has(FlagC), address)
	case m6502.BEQ:
		c.branch(r.P.Has(FlagZ), address)
	case m6502.BNE:
		c.branch(!r.P.Has(FlagZ), address)
	case m6502.BMI:
		c.branch(r.P.Has(FlagN), address)
	case m6502.BPL:
		c.branch(!r.P.Has(FlagN), address)
	case m6502.BVS:
		c.branch(r.P.Has(FlagV), address)
	case m6502.BVC:
		c.branch(!r.P.Has(FlagV), address)

	case m6502.BRK:
		r.PC++ // padding byte
		c.push16(r.PC)
		c.push(byte(r.P | FlagB | FlagU))
		r.P.Set(FlagI, true)
		r.PC = c.readWord(m6502.IRQVector)

	case m6502.CLC:
		r.P.Set(FlagC, false)
	case m6502.CLD:
		r.P.Set(FlagD, false)
	case m6502.CLI:
		r.P.Set(FlagI, false)
	case m6502.CLV:
		r.P.Set(FlagV, false)
	case m6502.SEC:
		r.P.Set(FlagC, true)
	case m6502.SED:
		r.P.Set(FlagD, true)
	case m6502.SEI:
		r.P.Set(FlagI, true)

	case m6502.CMP:
		c.compare(r.A, c.read(address))
	case m6502.CPX:
		c.compare(r.X, c.read(address))
	case m6502.CPY:
		c.compare(r.Y, c.read(address))

	case m6502.DEC:
		c.modify(entry.Mode, address, func(v byte) byte { return v - 1 })
	case m6502.INC:
		c.modify(entry.Mode, address, func(v byte) byte { return v + 1 })
	case m6502.DEX:
		r.X--
		r.P.setZN(r.X)
	case m6502.DEY:
		r.Y--
		r.P.setZN(r.Y)
	case m6502.INX:
		r.X++
		r.P.setZN(r.X)
	case m6502.INY:
		r.Y++
		r.P.setZN(r.Y)

	case m6502.JMP:
		r.PC = address
	case m6502.JSR:
		c.push16(r.PC - 1)
		r.PC = address
	case m6502.RTS:
		r.PC = c.pull16() + 1
	case m6502.RTI:
		c.pullStatus()
		r.PC = c.pull16()

	case m6502.LDA:
		r.A = c.read(address)
		r.P.setZN(r.A)
	case m6502.LDX:
		r.X = c.read(address)
		r.P.setZN(r.X)
	case m6502.LDY:
		r.Y = c.read(address)
		r.P.setZN(r.Y)

	case m6502.STA:
		c.write(address, r.A)
	case m6502.STX:
		c.write(address, r.X)
	case m6502.STY:
		c.write(address, r.Y)

	case m6502.PHA:
		c.push(r.A)
	case m6502.PHP:
		c.push(byte(r.P | FlagB | FlagU))
	case m6502.PLA:
		r.A = c.pull()
		r.P.setZN(r.A)
	case m6502.PLP:
		c.pullStatus()

	case m6502.TAX:
		r.X = r.A
		r.P.setZN(r.X)
	case m6502.TAY:
		r.Y = r.A
		r.P.setZN(r.Y)
	case m6502.TSX:
		r.X = r.SP
		r.P.setZN(r.X)
	case m6502.TXA:
		r.A = r.X
		r.P.setZN(r.A)
	case m6502.TXS:
		r.SP = r.X
	case m6502.TYA:
		r.A = r.Y
		r.P.setZN(r.A)

	case m6502.NOP:
	}
}

// addWithCarry implements binary ADC, SBC passes the inverted operand.
// The decimal flag is ignored.
func (c *CPU) addWithCarry(value byte) {
	r := &c.regs
	sum := uint16(r.A) + uint16(value) + uint16(r.P&FlagC)
	result := byte(sum)

	r.P.Set(FlagC, sum > 0xFF)
	r.P.Set(FlagV, ^(r.A^value)&(r.A^result)&0x80 != 0)
	r.A = result
	r.P.setZN(result)
}

func (c *CPU) compare(register, value byte) {
	c.regs.P.Set(FlagC, register >= value)
	c.regs.P.setZN(register - value)
}

func (c *CPU) branch(condition bool, target uint16) {
	if condition {
		c.regs.PC = target
	}
}

// modify applies a read-modify-write operation to the accumulator or memory
// and updates the zero and negative flags from the result.
func (c *CPU) modify(mode m6502.AddressingMode, address uint16, op func(byte) byte) {
	if mode == m6502.Accumulator {
		c.regs.A = op(c.regs.A)
		c.regs.P.setZN(c.regs.A)
		return
	}
	value := op(c.read(address))
	c.write(address, value)
	c.regs.P.setZN(value)
}

// pullStatus restores the status register from the stack, the break and
// unused bits keep their current value.
func (c *CPU) pullStatus() {
	const keep = FlagB | FlagU
	value := Status(c.pull())
	c.regs.P = value&^keep | c.regs.P&keep
}
