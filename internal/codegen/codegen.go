// Package codegen translates a recovered 6502 program into an IR function.
// Code generation runs in two passes: the first creates a block for every
// label and subroutine return address, the second walks the instructions in
// address order and emits their semantics into the current block.
package codegen

import (
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/disasm"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/program"
)

// DefaultHostCall is the host function name used for stores to host addresses.
const DefaultHostCall = "abi"

// Options controls the code generation.
type Options struct {
	FunctionName  string
	Optimize      bool
	HostAddresses set.Set[uint16] // static stores to these addresses become host calls
	HostCall      string
	Dump          io.Writer // receives the final IR if set
}

// UnsupportedOpcodeError is returned for instructions that can not be translated.
type UnsupportedOpcodeError struct {
	Address uint16
	Opcode  byte
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode $%02X at $%04X", e.Opcode, e.Address)
}

// Generator holds the state of a single code generation.
type Generator struct {
	logger  *log.Logger
	options Options
	prog    *program.Program

	fn *ir.Function
	b  *ir.Builder

	labelBlocks  map[program.LabelID]*ir.Block
	returnBlocks map[uint16]*ir.Block
	stats        ir.Stats

	overlapBlocks     map[uint16]*ir.Block // fallthrough targets without label
	fallthroughBlocks map[int]*ir.Block    // by instruction index
}

// Generate translates the program into a verified IR function.
func Generate(logger *log.Logger, prog *program.Program, options Options) (*ir.Function, error) {
	if options.FunctionName == "" {
		options.FunctionName = "main"
	}
	if options.HostCall == "" {
		options.HostCall = DefaultHostCall
	}
	if options.HostAddresses == nil {
		options.HostAddresses = set.New[uint16]()
	}

	g := &Generator{
		logger:       logger,
		options:      options,
		prog:         prog,
		fn:           ir.NewFunction(options.FunctionName),
		labelBlocks:  make(map[program.LabelID]*ir.Block),
		returnBlocks: make(map[uint16]*ir.Block),

		overlapBlocks:     make(map[uint16]*ir.Block),
		fallthroughBlocks: make(map[int]*ir.Block),
	}
	g.b = ir.NewBuilder(g.fn)

	if err := g.generate(); err != nil {
		return nil, err
	}

	if err := ir.Verify(g.fn); err != nil {
		return nil, fmt.Errorf("verifying generated code: %w", err)
	}
	if options.Optimize {
		g.stats = ir.Optimize(g.fn)
		if err := ir.Verify(g.fn); err != nil {
			return nil, fmt.Errorf("verifying optimized code: %w", err)
		}
		logger.Debug("Optimized generated code",
			log.Int("folded", g.stats.Folded+g.stats.FoldedBranches),
			log.Int("forwarded", g.stats.Forwarded),
			log.Int("dead_stores", g.stats.DeadStores),
			log.Int("dead_values", g.stats.DeadValues))
	}

	if options.Dump != nil {
		if err := g.fn.Write(options.Dump); err != nil {
			return nil, fmt.Errorf("dumping generated code: %w", err)
		}
	}
	return g.fn, nil
}

func (g *Generator) generate() error {
	entry := g.fn.NewBlock("entry")
	if err := g.createBlocks(); err != nil {
		return err
	}

	resetLabel, ok := g.prog.Label(g.prog.Reset)
	if !ok {
		return fmt.Errorf("missing %s label at $%04X", disasm.ResetLabel, g.prog.Reset)
	}
	g.b.SetInsertPoint(entry)
	g.b.Br(g.labelBlocks[resetLabel.ID])

	for i, ins := range g.prog.Instructions {
		g.switchBlock(ins.Offset)
		if err := g.translate(ins); err != nil {
			return err
		}
		if ins.Exits && !g.b.Terminated() {
			g.b.Ret(g.b.LoadSlot(storedRegister(ins.Op)))
		}
		if block, ok := g.fallthroughBlocks[i]; ok && !g.b.Terminated() {
			g.b.Br(block)
		}
	}

	if !g.b.Terminated() {
		g.b.Ret(g.b.Const(0))
	}
	return nil
}

// createBlocks creates a block for every label and for every address that a
// subroutine returns to, and registers them as dispatch targets. Fallthrough
// targets of overlapping instructions get a block that is not dispatchable.
func (g *Generator) createBlocks() error {
	for _, label := range g.prog.Labels() {
		block := g.fn.NewBlock(label.Name)
		g.labelBlocks[label.ID] = block
		g.fn.AddDispatchEntry(label.Address, block)
	}

	for _, ins := range g.prog.Instructions {
		if ins.Op != m6502.JSR {
			continue
		}
		ret := ins.Offset + uint16(ins.Size)
		if _, ok := g.prog.Label(ret); ok {
			continue
		}
		if _, ok := g.returnBlocks[ret]; ok {
			continue
		}
		if _, ok := g.prog.InstructionAt(ret); !ok {
			return fmt.Errorf("no instruction at return address $%04X of call at $%04X", ret, ins.Offset)
		}
		block := g.fn.NewBlock(fmt.Sprintf("_ret_%04x", ret))
		g.returnBlocks[ret] = block
		g.fn.AddDispatchEntry(ret, block)
	}

	for i, ins := range g.prog.Instructions {
		if err := g.createFallthroughBlock(i, ins); err != nil {
			return err
		}
	}
	return nil
}

// createFallthroughBlock creates the block that an instruction continues
// with if its fallthrough address is not the start of the next instruction
// in address order. This happens for instructions that overlap another one.
func (g *Generator) createFallthroughBlock(index int, ins *program.Instruction) error {
	if ins.Exits || ins.Op.EndsBlock() || ins.Op == m6502.JSR {
		return nil
	}
	next := ins.Offset + uint16(ins.Size)
	instructions := g.prog.Instructions
	if index+1 < len(instructions) && instructions[index+1].Offset == next {
		return nil
	}
	if _, ok := g.prog.InstructionAt(next); !ok {
		return fmt.Errorf("no instruction at fallthrough address $%04X of instruction at $%04X", next, ins.Offset)
	}

	block := g.blockAt(next)
	if block == nil {
		block = g.fn.NewBlock(fmt.Sprintf("_fallthrough_%04x", next))
		g.overlapBlocks[next] = block
	}
	g.fallthroughBlocks[index] = block
	return nil
}

// switchBlock moves the insertion point to the block that starts at the
// address, adding a fallthrough branch from the current block.
func (g *Generator) switchBlock(address uint16) {
	block := g.blockAt(address)
	if block == nil {
		if !g.b.Terminated() {
			return
		}
		// not reachable by fallthrough and not a jump target
		block = g.fn.NewBlock(fmt.Sprintf("_unreachable_%04x", address))
	}

	if !g.b.Terminated() {
		g.b.Br(block)
	}
	g.b.SetInsertPoint(block)
}

func (g *Generator) blockAt(address uint16) *ir.Block {
	if label, ok := g.prog.Label(address); ok {
		return g.labelBlocks[label.ID]
	}
	if block, ok := g.returnBlocks[address]; ok {
		return block
	}
	return g.overlapBlocks[address]
}

func (g *Generator) target(ins *program.Instruction) (*ir.Block, error) {
	if !ins.HasTarget {
		return nil, fmt.Errorf("%w at $%04X", ErrNoTarget, ins.Offset)
	}
	label, err := g.prog.TargetLabel(ins)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	block, ok := g.labelBlocks[label.ID]
	if !ok {
		return nil, fmt.Errorf("no block for label %s", label.Name)
	}
	return block, nil
}

// storedRegister returns the register slot that a store operation writes.
func storedRegister(op m6502.Op) ir.Slot {
	switch op {
	case m6502.STX:
		return ir.SlotX
	case m6502.STY:
		return ir.SlotY
	default:
		return ir.SlotA
	}
}

// ErrNoTarget is returned for a control flow instruction without target label.
var ErrNoTarget = errors.New("control flow instruction without target")
