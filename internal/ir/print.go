package ir

import (
	"fmt"
	"io"
	"strings"
)

// String returns a textual dump of the function.
func (f *Function) String() string {
	var sb strings.Builder
	_ = f.Write(&sb)
	return sb.String()
}

// Write writes a textual dump of the function.
func (f *Function) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "function %s {\n", f.Name); err != nil {
		return fmt.Errorf("writing function header: %w", err)
	}
	for _, b := range f.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", b.Name); err != nil {
			return fmt.Errorf("writing block label: %w", err)
		}
		for _, ins := range b.Instrs {
			if _, err := fmt.Fprintf(w, "    %s\n", ins); err != nil {
				return fmt.Errorf("writing instruction: %w", err)
			}
		}
	}
	if _, err := fmt.Fprintln(w, "}"); err != nil {
		return fmt.Errorf("writing function end: %w", err)
	}

	addresses := f.DispatchAddresses()
	if len(addresses) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "dispatch {"); err != nil {
		return fmt.Errorf("writing dispatch header: %w", err)
	}
	for _, address := range addresses {
		if _, err := fmt.Fprintf(w, "    $%04X -> %s\n", address, f.dispatch[address].Name); err != nil {
			return fmt.Errorf("writing dispatch entry: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w, "}"); err != nil {
		return fmt.Errorf("writing dispatch end: %w", err)
	}
	return nil
}

func (ins *Instr) String() string {
	var sb strings.Builder
	if ins.Dst != NoValue {
		fmt.Fprintf(&sb, "%s = ", ins.Dst)
	}
	sb.WriteString(ins.Op.String())

	var operands []string
	switch ins.Op {
	case OpConst:
		operands = append(operands, fmt.Sprintf("$%04X", ins.Imm))
	case OpLoadSlot, OpStoreSlot:
		operands = append(operands, ins.Slot.String())
	case OpCall:
		operands = append(operands, ins.Callee, fmt.Sprintf("$%04X", ins.Imm))
	}
	for _, arg := range ins.Args {
		operands = append(operands, arg.String())
	}
	for _, target := range ins.Targets {
		operands = append(operands, target.Name)
	}

	if len(operands) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(operands, ", "))
	}
	return sb.String()
}
