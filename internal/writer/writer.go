// Package writer outputs the recovered program as a disassembly listing.
package writer

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/consts"
	"github.com/retroenv/retrorecomp/internal/memory"
	"github.com/retroenv/retrorecomp/internal/program"
	"github.com/retroenv/retrorecomp/internal/vars"
)

const (
	dataBytesPerLine = 16
	// maxDataGap is the largest gap between instructions that is output as
	// data bytes, larger gaps start a new .org block.
	maxDataGap = 256
)

type lineWriterFunc func(line string, byteCount int) error

// Writer writes a disassembly listing.
type Writer struct {
	app     *program.Program
	image   []byte
	consts  *consts.Consts
	vars    *vars.Vars
	options Options
	writer  io.Writer
}

// Options of the writer.
type Options struct {
	HexComments    bool
	OffsetComments bool
}

// New creates a new writer for the program recovered from the address
// space image. The constants and variables managers are optional.
func New(app *program.Program, image []byte, constants *consts.Consts, variables *vars.Vars,
	writer io.Writer, options Options) *Writer {

	return &Writer{
		app:     app,
		image:   image,
		consts:  constants,
		vars:    variables,
		options: options,
		writer:  writer,
	}
}

// Write outputs the header, the used host constants and variables and all
// instructions with their labels.
func (w Writer) Write() error {
	body := &strings.Builder{}
	bodyWriter := w
	bodyWriter.writer = body
	if err := bodyWriter.writeInstructions(); err != nil {
		return err
	}

	// constants are known after the instructions were formatted
	if err := w.WriteCommentHeader(); err != nil {
		return err
	}
	if err := w.OutputAliasMap(w.aliases()); err != nil {
		return err
	}
	if _, err := io.WriteString(w.writer, body.String()); err != nil {
		return fmt.Errorf("writing instructions: %w", err)
	}
	return nil
}

// WriteCommentHeader writes the code base address and reset vector as comments.
func (w Writer) WriteCommentHeader() error {
	if _, err := fmt.Fprintf(w.writer, "; Code base address: $%04x\n", w.app.Base); err != nil {
		return fmt.Errorf("writing code base address: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; Reset vector: $%04x\n", w.app.Reset); err != nil {
		return fmt.Errorf("writing reset vector: %w", err)
	}
	return nil
}

// OutputAliasMap outputs an alias map for constants.
func (w Writer) OutputAliasMap(aliases map[string]uint16) error {
	if len(aliases) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}

	// sort the aliases by name before outputting to avoid random map order
	names := make([]string, 0, len(aliases))
	for constant := range aliases {
		names = append(names, constant)
	}
	slices.Sort(names)

	for _, constant := range names {
		address := aliases[constant]
		if _, err := fmt.Fprintf(w.writer, "%s = $%04X\n", constant, address); err != nil {
			return fmt.Errorf("writing alias: %w", err)
		}
	}
	return nil
}

// BundleDataWrites bundles writes of data bytes to print dataBytesPerLine bytes per line.
func (w Writer) BundleDataWrites(data []byte, lineWriter lineWriterFunc) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		buf.WriteString(".byte ")
		for j := range toWrite {
			if _, err := fmt.Fprintf(buf, "$%02x, ", data[i+j]); err != nil {
				return fmt.Errorf("writing data byte: %w", err)
			}
		}

		line := strings.TrimRight(buf.String(), ", ")

		if lineWriter != nil {
			if err := lineWriter(line, toWrite); err != nil {
				return fmt.Errorf("writing data line using custom writer: %w", err)
			}
		} else {
			if _, err := fmt.Fprintf(w.writer, "  %s\n", line); err != nil {
				return fmt.Errorf("writing data line: %w", err)
			}
		}

		i += toWrite
		remaining -= toWrite
	}

	return nil
}

func (w Writer) writeInstructions() error {
	var next int // address following the previous instruction, 0 before the first
	for i, ins := range w.app.Instructions {
		address := int(ins.Offset)

		if err := w.writeGap(i, next, address); err != nil {
			return err
		}
		if err := w.writeLabel(i, ins.Offset); err != nil {
			return err
		}
		end := address + int(ins.Size)
		if i+1 < len(w.app.Instructions) && int(w.app.Instructions[i+1].Offset) < end {
			end = int(w.app.Instructions[i+1].Offset)
			if err := w.writeOverlappedLine(ins, end); err != nil {
				return err
			}
		} else if err := w.writeCodeLine(ins); err != nil {
			return err
		}
		next = end
	}
	return nil
}

// writeOverlappedLine outputs the bytes of an instruction up to the start of
// the instruction that a branch leads into as data, keeping the listing byte
// exact.
func (w Writer) writeOverlappedLine(ins *program.Instruction, end int) error {
	code, err := w.formatInstruction(ins)
	if err != nil {
		return err
	}

	hex := make([]string, 0, end-int(ins.Offset))
	for _, b := range w.image[ins.Offset:end] {
		hex = append(hex, fmt.Sprintf("$%02x", b))
	}
	line := ".byte " + strings.Join(hex, ", ")
	if _, err := fmt.Fprintf(w.writer, "  %-30s ; branch into instruction detected: %s\n", line, code); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// writeGap outputs the bytes between two instructions as data or starts a
// new block for large gaps.
func (w Writer) writeGap(index, next, address int) error {
	gap := address - next
	if index > 0 && gap == 0 {
		return nil
	}

	if index == 0 || gap < 0 || gap > maxDataGap {
		if _, err := fmt.Fprintf(w.writer, "\n.org $%04X\n", address); err != nil {
			return fmt.Errorf("writing org directive: %w", err)
		}
		return nil
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}

	current := next
	lineWriter := func(line string, byteCount int) error {
		var err error
		if w.options.OffsetComments {
			_, err = fmt.Fprintf(w.writer, "  %-30s ; $%04X\n", line, current)
		} else {
			_, err = fmt.Fprintf(w.writer, "  %s\n", line)
		}
		if err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}
		current += byteCount
		return nil
	}
	if err := w.BundleDataWrites(w.image[next:address], lineWriter); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

func (w Writer) writeLabel(index int, address uint16) error {
	label, ok := w.app.Label(address)
	if !ok {
		return nil
	}

	if index > 0 {
		if _, err := fmt.Fprintln(w.writer); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w.writer, "%s:\n", label.Name); err != nil {
		return fmt.Errorf("writing label: %w", err)
	}
	return nil
}

func (w Writer) writeCodeLine(ins *program.Instruction) error {
	code, err := w.formatInstruction(ins)
	if err != nil {
		return err
	}

	comment := w.comment(ins)
	if comment == "" {
		_, err = fmt.Fprintf(w.writer, "  %s\n", code)
	} else {
		_, err = fmt.Fprintf(w.writer, "  %-30s ; %s\n", code, comment)
	}
	if err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

func (w Writer) comment(ins *program.Instruction) string {
	var parts []string
	if w.options.OffsetComments {
		parts = append(parts, fmt.Sprintf("$%04X", ins.Offset))
	}
	if w.options.HexComments {
		end := min(int(ins.Offset)+int(ins.Size), memory.Size)
		hex := make([]string, 0, ins.Size)
		for _, b := range w.image[ins.Offset:end] {
			hex = append(hex, fmt.Sprintf("%02X", b))
		}
		parts = append(parts, strings.Join(hex, " "))
	}
	return strings.Join(parts, "  ")
}

// formatInstruction returns the assembly text of the instruction using
// label names for control flow targets and constant names for host
// function stores.
func (w Writer) formatInstruction(ins *program.Instruction) (string, error) {
	if ins.Op == m6502.Illegal {
		return fmt.Sprintf(".byte $%02x", ins.Opcode), nil
	}

	name := strings.ToLower(ins.Op.String())
	param, err := w.parameter(ins)
	if err != nil {
		return "", err
	}
	if param == "" {
		return name, nil
	}
	return name + " " + param, nil
}

func (w Writer) parameter(ins *program.Instruction) (string, error) {
	if ins.HasTarget {
		label, err := w.app.TargetLabel(ins)
		if err != nil {
			return "", fmt.Errorf("formatting instruction at $%04X: %w", ins.Offset, err)
		}
		return label.Name, nil
	}

	arg := ins.Argument
	switch ins.Mode {
	case m6502.Implied:
		return "", nil
	case m6502.Accumulator:
		return "a", nil
	case m6502.Immediate:
		return fmt.Sprintf("#$%02x", arg), nil
	case m6502.ZeroPage:
		return w.constant(ins, fmt.Sprintf("$%02x", arg)), nil
	case m6502.ZeroPageX:
		return w.constant(ins, fmt.Sprintf("$%02x,x", arg)), nil
	case m6502.ZeroPageY:
		return w.constant(ins, fmt.Sprintf("$%02x,y", arg)), nil
	case m6502.Relative:
		return fmt.Sprintf("$%04x", arg), nil
	case m6502.Absolute:
		return w.constant(ins, fmt.Sprintf("$%04x", arg)), nil
	case m6502.AbsoluteX:
		return w.constant(ins, fmt.Sprintf("$%04x,x", arg)), nil
	case m6502.AbsoluteY:
		return w.constant(ins, fmt.Sprintf("$%04x,y", arg)), nil
	case m6502.Indirect:
		return fmt.Sprintf("($%04x)", arg), nil
	case m6502.IndirectX:
		return fmt.Sprintf("($%02x,x)", arg), nil
	case m6502.IndirectY:
		return fmt.Sprintf("($%02x),y", arg), nil
	default:
		return "", fmt.Errorf("unsupported addressing mode %s at $%04X", ins.Mode, ins.Offset)
	}
}

// constant replaces the address in the parameter by a host constant or
// variable name.
func (w Writer) constant(ins *program.Instruction, param string) string {
	if w.consts != nil {
		replaced, ok := w.consts.ReplaceParameter(ins.Argument, ins.Op, param)
		if ok {
			return replaced
		}
	}
	if w.vars == nil {
		return param
	}

	name, ok := w.vars.Name(ins.Argument)
	if !ok {
		return param
	}
	parts := strings.Split(param, ",")
	parts[0] = name
	return strings.Join(parts, ",")
}

func (w Writer) aliases() map[string]uint16 {
	aliases := make(map[string]uint16)
	if w.consts != nil {
		maps.Copy(aliases, w.consts.Used())
	}
	if w.vars != nil {
		maps.Copy(aliases, w.vars.Used())
	}
	return aliases
}
