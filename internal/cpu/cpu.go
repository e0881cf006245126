// Package cpu implements a 6502 interpreter that executes one instruction per
// step against injected memory access functions.
package cpu

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
)

// Register values after a reset.
const (
	InitialSP     = 0xFD
	InitialStatus = FlagI | FlagB | FlagU
)

// ReadFunc reads a byte from the address space.
type ReadFunc func(address uint16) byte

// WriteFunc writes a byte to the address space.
type WriteFunc func(address uint16, value byte)

// HaltReason describes why the interpreter stopped executing.
type HaltReason int

// Halt reasons.
const (
	Running HaltReason = iota
	HaltIllegalOpcode
	HaltExit
	HaltStopped
	HaltError
)

func (r HaltReason) String() string {
	switch r {
	case Running:
		return "running"
	case HaltIllegalOpcode:
		return "illegal opcode"
	case HaltExit:
		return "exit"
	case HaltStopped:
		return "stopped"
	case HaltError:
		return "error"
	default:
		return "unknown"
	}
}

// Result describes the state of a halted interpreter.
type Result struct {
	Reason   HaltReason
	ExitCode int32
	Address  uint16 // address of the illegal opcode
	Opcode   byte
	Steps    uint64
	Err      error // set for HaltError
	Registers
}

// CPU is a 6502 interpreter. Except for TriggerNMI, TriggerIRQ, Stop and
// Halted, the methods must be called from a single goroutine.
type CPU struct {
	regs   Registers
	read   ReadFunc
	write  WriteFunc
	logger *log.Logger

	nmi    atomic.Bool
	irq    atomic.Bool
	stop   atomic.Bool
	halted atomic.Bool

	result Result
	steps  uint64
}

// Option configures a CPU.
type Option func(*CPU)

// WithLogger sets the logger that reports halt events.
func WithLogger(logger *log.Logger) Option {
	return func(c *CPU) {
		c.logger = logger
	}
}

// New returns a new interpreter that accesses memory through the given functions.
// Reset has to be called before the first step.
func New(read ReadFunc, write WriteFunc, options ...Option) *CPU {
	c := &CPU{
		read:  read,
		write: write,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Reset sets the registers to their power on state and loads the program
// counter from the reset vector.
func (c *CPU) Reset() {
	c.regs = Registers{
		SP: InitialSP,
		P:  InitialStatus,
		PC: c.readWord(m6502.ResetVector),
	}
	c.result = Result{}
	c.steps = 0
	c.stop.Store(false)
	c.halted.Store(false)
}

// Registers returns a copy of the current register state.
func (c *CPU) Registers() Registers {
	return c.regs
}

// SetRegisters replaces the register state.
func (c *CPU) SetRegisters(regs Registers) {
	c.regs = regs
}

// TriggerNMI latches a non maskable interrupt that is serviced before the next instruction.
func (c *CPU) TriggerNMI() {
	c.nmi.Store(true)
}

// TriggerIRQ latches an interrupt request that is serviced before the next
// instruction once the interrupt disable flag is clear.
func (c *CPU) TriggerIRQ() {
	c.irq.Store(true)
}

// Stop requests the interpreter to halt before the next instruction.
func (c *CPU) Stop() {
	c.stop.Store(true)
}

// Halted returns whether the interpreter stopped executing.
func (c *CPU) Halted() bool {
	return c.halted.Load()
}

// Halt stops execution with the given exit code. It is meant to be called by
// memory write handlers while an instruction executes.
func (c *CPU) Halt(code int32) {
	c.halt(Result{Reason: HaltExit, ExitCode: code})
}

// Fail stops execution because a memory handler failed.
func (c *CPU) Fail(err error) {
	c.halt(Result{Reason: HaltError, Err: err})
}

// Result returns the halt result including the current registers.
func (c *CPU) Result() Result {
	res := c.result
	res.Steps = c.steps
	res.Registers = c.regs
	return res
}

// Run executes instructions until the interpreter halts or the context is
// cancelled. The context is checked after every instruction.
func (c *CPU) Run(ctx context.Context) (Result, error) {
	for !c.halted.Load() {
		if err := ctx.Err(); err != nil {
			return c.Result(), fmt.Errorf("running interpreter: %w", err)
		}
		c.Step()
	}

	res := c.Result()
	if res.Err != nil {
		return res, fmt.Errorf("running interpreter: %w", res.Err)
	}
	return res, nil
}

// Step services a pending interrupt or executes a single instruction.
func (c *CPU) Step() {
	if c.halted.Load() {
		return
	}
	if c.stop.Swap(false) {
		c.halt(Result{Reason: HaltStopped})
		return
	}

	if c.nmi.Swap(false) {
		c.interrupt(m6502.NMIVector)
		return
	}
	if !c.regs.P.Has(FlagI) && c.irq.Swap(false) {
		c.interrupt(m6502.IRQVector)
		return
	}

	pc := c.regs.PC
	opcode := c.read(pc)
	entry := m6502.Lookup(opcode)
	if !entry.Legal() {
		c.halt(Result{Reason: HaltIllegalOpcode, Address: pc, Opcode: opcode})
		return
	}

	c.steps++
	c.regs.PC = pc + 1
	address := c.operandAddress(entry.Mode)
	c.execute(entry, address)
}

func (c *CPU) halt(res Result) {
	c.result = res
	c.halted.Store(true)

	if c.logger != nil {
		c.logger.Debug("Interpreter halted",
			log.Stringer("reason", res.Reason),
			log.Hex("pc", c.regs.PC),
			log.Int("exit_code", int(res.ExitCode)))
	}
}

func (c *CPU) interrupt(vector uint16) {
	c.push16(c.regs.PC)
	c.push(byte(c.regs.P&^FlagB | FlagU))
	c.regs.P.Set(FlagI, true)
	c.regs.PC = c.readWord(vector)
}

func (c *CPU) fetch() byte {
	b := c.read(c.regs.PC)
	c.regs.PC++
	return b
}

func (c *CPU) fetchWord() uint16 {
	low := uint16(c.fetch())
	high := uint16(c.fetch())
	return high<<8 | low
}

func (c *CPU) readWord(address uint16) uint16 {
	low := uint16(c.read(address))
	high := uint16(c.read(address + 1))
	return high<<8 | low
}

// readWordPageWrapped reads a pointer whose high byte is fetched from the
// start of the same page when the low byte is at a page end.
func (c *CPU) readWordPageWrapped(address uint16) uint16 {
	low := uint16(c.read(address))
	high := uint16(c.read(address&0xFF00 | uint16(byte(address)+1)))
	return high<<8 | low
}

func (c *CPU) readZeroPageWord(zp byte) uint16 {
	low := uint16(c.read(uint16(zp)))
	high := uint16(c.read(uint16(zp + 1)))
	return high<<8 | low
}

func (c *CPU) push(value byte) {
	c.write(m6502.StackBase|uint16(c.regs.SP), value)
	c.regs.SP--
}

func (c *CPU) pull() byte {
	c.regs.SP++
	return c.read(m6502.StackBase | uint16(c.regs.SP))
}

func (c *CPU) push16(value uint16) {
	c.push(byte(value >> 8))
	c.push(byte(value))
}

func (c *CPU) pull16() uint16 {
	low := uint16(c.pull())
	high := uint16(c.pull())
	return high<<8 | low
}
