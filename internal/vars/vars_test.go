package vars

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/program"
)

func testProgram() *program.Program {
	prog := program.New(0x8000, 0x8000)
	add := func(offset uint16, op m6502.Op, mode m6502.AddressingMode, size uint8, arg uint16) {
		prog.AddInstruction(&program.Instruction{
			Offset:   offset,
			Op:       op,
			Mode:     mode,
			Size:     size,
			Argument: arg,
		})
		for i := range uint16(size) {
			if i == 0 {
				prog.Coverage.SetType(offset, program.CodeOffset)
			} else {
				prog.Coverage.SetType(offset+i, program.OperandOffset)
			}
		}
	}

	add(0x8000, m6502.LDA, m6502.ZeroPage, 2, 0x10)   // read and written
	add(0x8002, m6502.STA, m6502.ZeroPage, 2, 0x10)   //
	add(0x8004, m6502.STA, m6502.ZeroPage, 2, 0x20)   // single write
	add(0x8006, m6502.INC, m6502.ZeroPage, 2, 0x21)   // read-modify-write
	add(0x8008, m6502.LDA, m6502.AbsoluteY, 3, 0x300) // indexed
	add(0x800B, m6502.STA, m6502.Absolute, 3, 0x2008) // excluded
	add(0x800E, m6502.LDA, m6502.Absolute, 3, 0x8020) // data
	add(0x8011, m6502.LDA, m6502.Absolute, 3, 0x800F) // middle of instruction
	add(0x8014, m6502.LDA, m6502.Absolute, 3, 0x8000) // label
	add(0x8017, m6502.LDA, m6502.IndirectY, 2, 0x30)  // not a direct access
	prog.Sort()
	prog.AddLabel(0x8000, "Reset")
	return prog
}

//nolint:funlen
func TestProcess(t *testing.T) {
	prog := testProgram()
	v := New(prog, func(address uint16) bool {
		return address == 0x2008
	})
	v.Process()

	tests := []struct {
		address uint16
		name    string
		named   bool
	}{
		{address: 0x10, name: "_var_0010", named: true},
		{address: 0x20},
		{address: 0x21, name: "_var_0021", named: true},
		{address: 0x300, name: "_var_0300_indexed", named: true},
		{address: 0x2008},
		{address: 0x8020, name: "_data_8020", named: true},
		{address: 0x800F},
		{address: 0x8000, name: "Reset", named: true},
		{address: 0x30},
	}

	for _, tt := range tests {
		name, ok := v.Name(tt.address)
		assert.Equal(t, tt.named, ok)
		assert.Equal(t, tt.name, name)
	}

	used := v.Used()
	assert.Equal(t, 4, len(used))
	assert.Equal(t, uint16(0x10), used["_var_0010"])
	assert.Equal(t, uint16(0x21), used["_var_0021"])
	assert.Equal(t, uint16(0x300), used["_var_0300_indexed"])
	assert.Equal(t, uint16(0x8020), used["_data_8020"])
}

func TestReadModifyWrite(t *testing.T) {
	prog := program.New(0x8000, 0x8000)
	prog.AddInstruction(&program.Instruction{Offset: 0x8000, Op: m6502.INC, Mode: m6502.ZeroPage, Size: 2, Argument: 0x40})
	prog.AddInstruction(&program.Instruction{Offset: 0x8002, Op: m6502.INC, Mode: m6502.ZeroPage, Size: 2, Argument: 0x40})

	v := New(prog, nil)
	v.Process()

	name, ok := v.Name(0x40)
	assert.True(t, ok)
	assert.Equal(t, "_var_0040", name)
}

func TestEmptyProgram(t *testing.T) {
	v := New(program.New(0, 0), nil)
	v.Process()
	assert.Equal(t, 0, len(v.Used()))
}
