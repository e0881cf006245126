package engine

import (
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/ir"
)

// Machine is the state of the emulated processor while compiled code runs.
type Machine struct {
	slots  [ir.NumSlots]uint16
	values []uint16
	bus    Bus

	halted   bool
	exitCode int32
	err      error
}

var flagSlots = [...]struct {
	slot ir.Slot
	flag cpu.Status
}{
	{ir.SlotC, cpu.FlagC},
	{ir.SlotZ, cpu.FlagZ},
	{ir.SlotI, cpu.FlagI},
	{ir.SlotD, cpu.FlagD},
	{ir.SlotB, cpu.FlagB},
	{ir.SlotU, cpu.FlagU},
	{ir.SlotV, cpu.FlagV},
	{ir.SlotN, cpu.FlagN},
}

// Registers returns the register state held in the storage slots. The
// program counter is not tracked by compiled code and is always 0.
func (m *Machine) Registers() cpu.Registers {
	regs := cpu.Registers{
		A:  byte(m.slots[ir.SlotA]),
		X:  byte(m.slots[ir.SlotX]),
		Y:  byte(m.slots[ir.SlotY]),
		SP: byte(m.slots[ir.SlotSP]),
	}
	for _, fs := range flagSlots {
		regs.P.Set(fs.flag, m.slots[fs.slot] != 0)
	}
	return regs
}

// SetRegisters loads the register state into the storage slots.
func (m *Machine) SetRegisters(regs cpu.Registers) {
	m.slots[ir.SlotA] = uint16(regs.A)
	m.slots[ir.SlotX] = uint16(regs.X)
	m.slots[ir.SlotY] = uint16(regs.Y)
	m.slots[ir.SlotSP] = uint16(regs.SP)
	for _, fs := range flagSlots {
		var v uint16
		if regs.P.Has(fs.flag) {
			v = 1
		}
		m.slots[fs.slot] = v
	}
}

// Halt stops execution after the current instruction with the exit code.
func (m *Machine) Halt(code int32) {
	m.halted = true
	m.exitCode = code
}

func (m *Machine) fail(err error) {
	m.err = err
	m.halted = true
}
