// Package disasm recovers the reachable instructions of a 6502 image by
// following the execution flow from the reset vector.
package disasm

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/memory"
	"github.com/retroenv/retrorecomp/internal/program"
)

// Label names used for the interrupt handlers.
const (
	ResetLabel = "Reset"
	NMILabel   = "NMI"
	IRQLabel   = "IRQ"
)

// Options controls which entry points are followed.
type Options struct {
	FollowVectors bool     // also follow the NMI and IRQ vectors
	EntryPoints   []uint16 // additional addresses to follow
	ExitAddresses []uint16 // static stores to these addresses end the program
}

// Disasm follows the execution flow of an image.
type Disasm struct {
	logger  *log.Logger
	options Options
	memory  *memory.RAM
	base    uint16

	prog *program.Program

	offsetsToParse      []uint16
	offsetsToParseAdded set.Set[uint16]
	exitAddresses       set.Set[uint16]
}

// New creates a disassembler for the image loaded at the base address. The
// image is copied into a private 64KB buffer.
func New(logger *log.Logger, image []byte, base uint16, options Options) (*Disasm, error) {
	mem := memory.New()
	if err := mem.Load(image, base); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	return &Disasm{
		logger:              logger,
		options:             options,
		memory:              mem,
		base:                base,
		offsetsToParseAdded: set.New[uint16](),
		exitAddresses:       set.NewFromSlice(options.ExitAddresses),
	}, nil
}

// Process follows all reachable execution paths starting at the reset vector
// and returns the program with its instructions sorted by address.
// No partial program is returned on error.
func (dis *Disasm) Process(ctx context.Context) (*program.Program, error) {
	reset := dis.memory.ReadWord(m6502.ResetVector)
	dis.prog = program.New(dis.base, reset)

	dis.logger.Debug("Reset handler", log.Hex("address", reset))
	dis.addEntryPoint(reset, ResetLabel)

	if dis.options.FollowVectors {
		if nmi := dis.memory.ReadWord(m6502.NMIVector); nmi != 0 {
			dis.addEntryPoint(nmi, NMILabel)
		}
		if irq := dis.memory.ReadWord(m6502.IRQVector); irq != 0 {
			dis.addEntryPoint(irq, IRQLabel)
		}
	}
	for _, address := range dis.options.EntryPoints {
		dis.addEntryPoint(address, fmt.Sprintf("_entry_%04x", address))
	}

	if err := dis.followExecutionFlow(ctx); err != nil {
		return nil, err
	}
	if err := dis.verifyLabels(); err != nil {
		return nil, err
	}

	dis.prog.Sort()
	dis.logger.Debug("Execution flow processed",
		log.Int("instructions", len(dis.prog.Instructions)),
		log.Int("labels", len(dis.prog.Labels())))
	return dis.prog, nil
}

func (dis *Disasm) addEntryPoint(address uint16, name string) {
	dis.prog.AddLabel(address, name)
	dis.prog.Coverage.SetType(address, program.CallDestination)
	dis.addAddressToParse(address)
}

// addAddressToParse queues an address for parsing once.
func (dis *Disasm) addAddressToParse(address uint16) {
	if dis.offsetsToParseAdded.Contains(address) {
		return
	}
	dis.offsetsToParseAdded.Add(address)
	dis.offsetsToParse = append(dis.offsetsToParse, address)
}

// followExecutionFlow processes the queued addresses in FIFO order.
func (dis *Disasm) followExecutionFlow(ctx context.Context) error {
	for len(dis.offsetsToParse) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("following execution flow: %w", err)
		}

		address := dis.offsetsToParse[0]
		dis.offsetsToParse = dis.offsetsToParse[1:]

		if err := dis.parseChain(address); err != nil {
			return err
		}
	}
	return nil
}

// parseChain decodes sequential instructions until an instruction without
// fallthrough, a store that exits the program or an already decoded
// instruction is reached.
func (dis *Disasm) parseChain(address uint16) error {
	coverage := dis.prog.Coverage

	for {
		if coverage.IsType(address, program.CodeOffset) {
			return nil
		}

		ins, err := dis.decode(address)
		if err != nil {
			return err
		}

		dis.checkInstructionOverlap(ins)
		coverage.SetType(address, program.CodeOffset)
		for i := uint16(1); i < uint16(ins.Size); i++ {
			coverage.SetType(address+i, program.OperandOffset)
		}

		dis.processTarget(ins)
		ins.Exits = dis.isExitStore(ins)
		dis.prog.AddInstruction(ins)

		if ins.Op.EndsBlock() || ins.Exits {
			return nil
		}
		address += uint16(ins.Size)
	}
}

// checkInstructionOverlap logs instructions that share bytes with an already
// decoded instruction, like a branch into the operand of a BIT that is used
// to skip the following instruction. Both instructions are kept, execution
// continues at their own fallthrough addresses.
func (dis *Disasm) checkInstructionOverlap(ins *program.Instruction) {
	for i := range uint16(ins.Size) {
		if dis.prog.Coverage.IsCode(ins.Offset + i) {
			dis.logger.Debug("Branch into instruction detected",
				log.Hex("address", ins.Offset), log.Hex("overlap", ins.Offset+i))
			return
		}
	}
}

// decode reads the instruction at the address.
func (dis *Disasm) decode(address uint16) (*program.Instruction, error) {
	opcode := dis.memory.Read(address)
	entry := m6502.Lookup(opcode)
	size := entry.Size()

	if int(address)+size > memory.Size {
		return nil, &ParseError{Address: address, Opcode: opcode, Err: ErrTruncatedInstruction}
	}

	ins := &program.Instruction{
		Offset: address,
		Opcode: opcode,
		Op:     entry.Op,
		Mode:   entry.Mode,
		Size:   uint8(size),
	}
	switch size {
	case 2:
		ins.Argument = uint16(dis.memory.Read(address + 1))
	case 3:
		ins.Argument = dis.memory.ReadWord(address + 1)
	}

	if !entry.Legal() {
		dis.logger.Debug("Illegal opcode ends execution path",
			log.Hex("address", address), log.Hex("opcode", opcode))
	}
	return ins, nil
}

// isExitStore returns whether the instruction stores a register to a host
// exit address that is known at decode time.
func (dis *Disasm) isExitStore(ins *program.Instruction) bool {
	switch ins.Op {
	case m6502.STA, m6502.STX, m6502.STY:
	default:
		return false
	}
	if ins.Mode != m6502.ZeroPage && ins.Mode != m6502.Absolute {
		return false
	}
	return dis.exitAddresses.Contains(ins.Argument)
}

// processTarget creates the label for the control flow target of an
// instruction and queues the target for parsing.
func (dis *Disasm) processTarget(ins *program.Instruction) {
	var (
		target uint16
		name   string
		typ    = program.BranchDestination
	)

	switch {
	case ins.Op.IsConditionalBranch():
		target = ins.Offset + uint16(ins.Size) + uint16(int8(ins.Argument))
		name = fmt.Sprintf("_label_%04x", target)
	case ins.Op == m6502.JSR:
		target = ins.Argument
		name = fmt.Sprintf("_func_%04x", target)
		typ = program.CallDestination
	case m6502.Entry{Op: ins.Op, Mode: ins.Mode}.IsJumpAbsolute():
		target = ins.Argument
		name = fmt.Sprintf("_label_%04x", target)
	case ins.Op == m6502.BRK:
		target = dis.memory.ReadWord(m6502.IRQVector)
		name = IRQLabel
	default:
		return
	}

	label := dis.prog.AddLabel(target, name)
	ins.IsBranch = ins.Op.IsBranch()
	ins.Target = label.ID
	ins.HasTarget = true

	dis.prog.MarkReferenced(target)
	dis.prog.Coverage.SetType(target, typ)
	dis.addAddressToParse(target)
}

// verifyLabels ensures that every label points to the start of an instruction.
func (dis *Disasm) verifyLabels() error {
	for _, label := range dis.prog.Labels() {
		if _, ok := dis.prog.InstructionAt(label.Address); !ok {
			return &ParseError{
				Address: label.Address,
				Opcode:  dis.memory.Read(label.Address),
				Err:     fmt.Errorf("%w: %s", ErrLabelWithoutInstruction, label.Name),
			}
		}
	}
	return nil
}

// Errors returned wrapped in a ParseError.
var (
	ErrTruncatedInstruction    = errors.New("instruction operand exceeds address space")
	ErrLabelWithoutInstruction = errors.New("label does not point to the start of an instruction")
)

// ParseError describes a failure to recover the control flow at an address.
type ParseError struct {
	Address uint16
	Opcode  byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing instruction $%02X at $%04X: %v", e.Opcode, e.Address, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
