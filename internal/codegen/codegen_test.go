package codegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/disasm"
	"github.com/retroenv/retrorecomp/internal/engine"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/memory"
	"github.com/retroenv/retrorecomp/internal/program"
)

func testImage(code []byte) []byte {
	image := make([]byte, memory.Size)
	copy(image[0x8000:], code)
	image[0xFFFC] = 0x00
	image[0xFFFD] = 0x80
	return image
}

func disassemble(t *testing.T, image []byte) *program.Program {
	t.Helper()
	dis, err := disasm.New(log.NewTestLogger(t), image, 0, disasm.Options{
		ExitAddresses: abi.DefaultConfig().ExitAddresses(),
	})
	assert.NoError(t, err)
	prog, err := dis.Process(context.Background())
	assert.NoError(t, err)
	return prog
}

type result struct {
	code   int32
	regs   cpu.Registers
	output string
	ram    *memory.RAM
}

// run generates, compiles and runs the program with the default host
// addresses.
func run(t *testing.T, code []byte, optimize bool) result {
	t.Helper()
	logger := log.NewTestLogger(t)
	image := testImage(code)
	prog := disassemble(t, image)

	var out bytes.Buffer
	host := abi.NewHost(logger, &out, abi.DefaultConfig())

	fn, err := Generate(logger, prog, Options{
		Optimize:      optimize,
		HostAddresses: host.Addresses(),
		HostCall:      abi.CallName,
	})
	assert.NoError(t, err)

	ram := memory.New()
	assert.NoError(t, ram.Load(image, 0))

	exe, err := engine.Compile(fn, host.EngineOptions(ram))
	assert.NoError(t, err)

	exitCode, err := exe.Run(context.Background())
	assert.NoError(t, err)
	return result{
		code:   exitCode,
		regs:   exe.Machine().Registers(),
		output: out.String(),
		ram:    ram,
	}
}

func TestCountdownLoop(t *testing.T) {
	// LDY #10; loop: INX; DEY; BNE loop; STX $200F
	code := []byte{0xA0, 0x0A, 0xE8, 0x88, 0xD0, 0xFC, 0x8E, 0x0F, 0x20}

	for _, optimize := range []bool{false, true} {
		res := run(t, code, optimize)
		assert.Equal(t, int32(10), res.code)
		assert.Equal(t, byte(10), res.regs.X)
		assert.Equal(t, byte(0), res.regs.Y)
		assert.True(t, res.regs.P.Has(cpu.FlagZ))
	}
}

func TestSubroutineReturn(t *testing.T) {
	// JSR sub; STA $2008; STA $200F; sub: LDA #$41; RTS
	code := []byte{
		0x20, 0x09, 0x80,
		0x8D, 0x08, 0x20,
		0x8D, 0x0F, 0x20,
		0xA9, 0x41,
		0x60,
	}

	res := run(t, code, true)
	assert.Equal(t, int32(0x41), res.code)
	assert.Equal(t, "A=$41\n", res.output)
	assert.Equal(t, byte(cpu.InitialSP), res.regs.SP)
	// return address $8002 was pushed high byte first
	assert.Equal(t, byte(0x80), res.ram.Read(0x01FD))
	assert.Equal(t, byte(0x02), res.ram.Read(0x01FC))
}

//nolint:funlen
func TestArithmetic(t *testing.T) {
	tests := []struct {
		name  string
		code  []byte
		a     byte
		flags cpu.Status
		clear cpu.Status
	}{
		{
			name:  "adc overflow",
			code:  []byte{0x18, 0xA9, 0x7F, 0x69, 0x01},
			a:     0x80,
			flags: cpu.FlagV | cpu.FlagN,
			clear: cpu.FlagC | cpu.FlagZ,
		},
		{
			name:  "adc carry",
			code:  []byte{0x38, 0xA9, 0xFF, 0x69, 0x00},
			a:     0x00,
			flags: cpu.FlagC | cpu.FlagZ,
			clear: cpu.FlagV | cpu.FlagN,
		},
		{
			name:  "sbc borrow",
			code:  []byte{0x38, 0xA9, 0x00, 0xE9, 0x01},
			a:     0xFF,
			flags: cpu.FlagN,
			clear: cpu.FlagC | cpu.FlagZ | cpu.FlagV,
		},
		{
			name:  "asl accumulator",
			code:  []byte{0xA9, 0x81, 0x0A},
			a:     0x02,
			flags: cpu.FlagC,
			clear: cpu.FlagZ | cpu.FlagN,
		},
		{
			name:  "ror through carry",
			code:  []byte{0x38, 0xA9, 0x02, 0x6A},
			a:     0x81,
			flags: cpu.FlagN,
			clear: cpu.FlagC | cpu.FlagZ,
		},
		{
			name:  "cmp equal",
			code:  []byte{0xA9, 0x10, 0xC9, 0x10},
			a:     0x10,
			flags: cpu.FlagC | cpu.FlagZ,
			clear: cpu.FlagN,
		},
		{
			name:  "indexed indirect load",
			code:  []byte{0xA9, 0x34, 0x85, 0x12, 0xA9, 0x02, 0x85, 0x13, 0xA9, 0x99, 0x8D, 0x34, 0x02, 0xA2, 0x02, 0xA9, 0x00, 0xA1, 0x10},
			a:     0x99,
			flags: cpu.FlagN,
			clear: cpu.FlagZ,
		},
		{
			name:  "php pla",
			code:  []byte{0x38, 0x08, 0x68},
			a:     0x35,
			clear: cpu.FlagZ | cpu.FlagN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// append STA $200F to exit with A
			code := append(append([]byte{}, tt.code...), 0x8D, 0x0F, 0x20)
			res := run(t, code, true)

			assert.Equal(t, int32(tt.a), res.code)
			assert.Equal(t, tt.a, res.regs.A)
			for _, flag := range []cpu.Status{cpu.FlagC, cpu.FlagZ, cpu.FlagV, cpu.FlagN} {
				if tt.flags&flag != 0 {
					assert.True(t, res.regs.P.Has(flag), flag.String())
				}
				if tt.clear&flag != 0 {
					assert.False(t, res.regs.P.Has(flag), flag.String())
				}
			}
		})
	}
}

func TestIndirectJump(t *testing.T) {
	// JMP ($0300) through a pointer written at runtime to $800E
	code := []byte{
		0xA9, 0x0E, 0x8D, 0x00, 0x03, // LDA #$0E; STA $0300
		0xA9, 0x80, 0x8D, 0x01, 0x03, // LDA #$80; STA $0301
		0x6C, 0x00, 0x03, // JMP ($0300)
		0x00,       // BRK
		0xA9, 0x07, // target: LDA #7
		0x8D, 0x0F, 0x20, // STA $200F
	}
	image := testImage(code)
	logger := log.NewTestLogger(t)

	// the indirect target is not discoverable statically
	dis, err := disasm.New(logger, image, 0, disasm.Options{EntryPoints: []uint16{0x800E}})
	assert.NoError(t, err)
	prog, err := dis.Process(context.Background())
	assert.NoError(t, err)

	host := abi.NewHost(logger, &bytes.Buffer{}, abi.DefaultConfig())
	fn, err := Generate(logger, prog, Options{HostAddresses: host.Addresses()})
	assert.NoError(t, err)

	ram := memory.New()
	assert.NoError(t, ram.Load(image, 0))
	exe, err := engine.Compile(fn, host.EngineOptions(ram))
	assert.NoError(t, err)

	code32, err := exe.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(7), code32)
}

func TestUnresolvedDispatch(t *testing.T) {
	// JMP ($0300) with an empty pointer
	code := []byte{0x6C, 0x00, 0x03}
	logger := log.NewTestLogger(t)
	image := testImage(code)
	prog := disassemble(t, image)

	fn, err := Generate(logger, prog, Options{})
	assert.NoError(t, err)

	ram := memory.New()
	assert.NoError(t, ram.Load(image, 0))
	exe, err := engine.Compile(fn, engine.Options{Bus: ram})
	assert.NoError(t, err)

	_, err = exe.Run(context.Background())
	var dispatchErr *engine.DispatchError
	assert.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, uint16(0), dispatchErr.Address)
}

func TestUnsupportedOpcode(t *testing.T) {
	prog := program.New(0x8000, 0x8000)
	prog.AddLabel(0x8000, disasm.ResetLabel)
	prog.AddInstruction(&program.Instruction{Offset: 0x8000, Opcode: 0x02, Size: 1})

	_, err := Generate(log.NewTestLogger(t), prog, Options{})
	var unsupported *UnsupportedOpcodeError
	assert.True(t, errors.As(err, &unsupported))
	assert.Equal(t, byte(0x02), unsupported.Opcode)
	assert.Equal(t, uint16(0x8000), unsupported.Address)
}

func TestHostCallsAndDump(t *testing.T) {
	// LDA #$41; STA $2008; LDX #0; STA $2008,X; STA $200F
	code := []byte{0xA9, 0x41, 0x8D, 0x08, 0x20, 0xA2, 0x00, 0x9D, 0x08, 0x20, 0x8D, 0x0F, 0x20}
	logger := log.NewTestLogger(t)
	prog := disassemble(t, testImage(code))

	var dump bytes.Buffer
	host := abi.NewHost(logger, &bytes.Buffer{}, abi.DefaultConfig())
	fn, err := Generate(logger, prog, Options{
		HostAddresses: host.Addresses(),
		Dump:          &dump,
	})
	assert.NoError(t, err)

	calls := 0
	stores := 0
	for _, block := range fn.Blocks {
		for _, ins := range block.Instrs {
			switch ins.Op {
			case ir.OpCall:
				calls++
			case ir.OpStore:
				stores++
			default:
			}
		}
	}
	// the indexed store is only known at runtime
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, stores)

	assert.Contains(t, dump.String(), "call abi, $2008")
	assert.Contains(t, dump.String(), "Reset:")
}

func TestExitStoreEndsBlock(t *testing.T) {
	// LDA #7; STA $200F followed by bytes that do not decode
	code := []byte{0xA9, 0x07, 0x8D, 0x0F, 0x20, 0xFF, 0x00}

	for _, optimize := range []bool{false, true} {
		res := run(t, code, optimize)
		assert.Equal(t, int32(7), res.code)
		assert.Equal(t, byte(7), res.regs.A)
	}
}

func TestBranchIntoInstruction(t *testing.T) {
	tests := []struct {
		name string
		flag byte // clc or sec
		exit int32
		bitZ bool
	}{
		{"branch into operand", 0x18, 2, false},
		{"skip by bit", 0x38, 1, true},
	}

	for _, tt := range tests {
		// flag; BCC $8006; LDA #1; BIT $02A9 hiding LDA #2 at $8006; STA $200F
		code := []byte{tt.flag, 0x90, 0x03, 0xA9, 0x01, 0x2C, 0xA9, 0x02, 0x8D, 0x0F, 0x20}
		for _, optimize := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/optimize=%t", tt.name, optimize), func(t *testing.T) {
				res := run(t, code, optimize)
				assert.Equal(t, tt.exit, res.code)
				// BIT of the zero byte at $02A9 sets Z, LDA #2 clears it
				assert.Equal(t, tt.bitZ, res.regs.P.Has(cpu.FlagZ))
			})
		}
	}
}
