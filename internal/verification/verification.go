// Package verification runs a program through the interpreter and through
// the compiled code and verifies that both produce the same machine state.
package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/codegen"
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/disasm"
	"github.com/retroenv/retrorecomp/internal/engine"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/memory"
	"golang.org/x/sync/errgroup"
)

// maxLoggedDiffs limits the memory differences that are logged.
const maxLoggedDiffs = 10

// SetupFunc prepares the host of one execution path. The returned function
// is called after the execution finished.
type SetupFunc func(h *abi.Host) (func(), error)

// Options controls the comparison.
type Options struct {
	Base     uint16 // load address of the image
	Disasm   disasm.Options
	ABI      abi.Config
	Optimize bool
	Setup    SetupFunc
}

// Outcome is the final state of one execution path.
type Outcome struct {
	ExitCode  int32
	Registers cpu.Registers
	Output    []byte
	RAM       *memory.RAM
	Duration  time.Duration
}

// Report contains the outcomes of both execution paths.
type Report struct {
	Interpreter Outcome
	Compiled    Outcome
	Steps       uint64 // instructions executed by the interpreter
}

// Mismatch describes a differing part of the machine state.
type Mismatch struct {
	Field       string
	Interpreter string
	Compiled    string
}

// MismatchError is returned when the execution paths disagree.
type MismatchError struct {
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	fields := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		fields = append(fields, fmt.Sprintf("%s: interpreter %s, compiled %s", m.Field, m.Interpreter, m.Compiled))
	}
	return "execution mismatch: " + strings.Join(fields, "; ")
}

// Compare disassembles and compiles the image, then runs the interpreter and
// the compiled code concurrently on separate copies of the initial memory.
// The report is returned together with a *MismatchError if they disagree.
func Compare(ctx context.Context, logger *log.Logger, image []byte, options Options) (*Report, error) {
	if options.ABI == nil {
		options.ABI = abi.DefaultConfig()
	}
	if options.Disasm.ExitAddresses == nil {
		options.Disasm.ExitAddresses = options.ABI.ExitAddresses()
	}

	initial := memory.New()
	if err := initial.Load(image, options.Base); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	dis, err := disasm.New(logger, image, options.Base, options.Disasm)
	if err != nil {
		return nil, fmt.Errorf("creating disassembler: %w", err)
	}
	prog, err := dis.Process(ctx)
	if err != nil {
		return nil, fmt.Errorf("disassembling: %w", err)
	}

	host, _, cleanup, err := newHost(logger, options)
	if err != nil {
		return nil, err
	}
	addresses := host.Addresses()
	cleanup()

	fn, err := codegen.Generate(logger, prog, codegen.Options{
		Optimize:      options.Optimize,
		HostAddresses: addresses,
		HostCall:      abi.CallName,
	})
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	report := &Report{}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		out, steps, err := interpret(ctx, logger, initial.Clone(), options)
		report.Interpreter = out
		report.Steps = steps
		return err
	})
	group.Go(func() error {
		out, err := runCompiled(ctx, logger, fn, initial.Clone(), options)
		report.Compiled = out
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if mismatches := compareOutcomes(logger, report.Interpreter, report.Compiled); len(mismatches) > 0 {
		return report, &MismatchError{Mismatches: mismatches}
	}
	return report, nil
}

func newHost(logger *log.Logger, options Options) (*abi.Host, *bytes.Buffer, func(), error) {
	buf := &bytes.Buffer{}
	host := abi.NewHost(logger, buf, options.ABI)
	cleanup := func() {}
	if options.Setup != nil {
		c, err := options.Setup(host)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("setting up host: %w", err)
		}
		if c != nil {
			cleanup = c
		}
	}
	return host, buf, cleanup, nil
}

func interpret(ctx context.Context, logger *log.Logger, ram *memory.RAM, options Options) (Outcome, uint64, error) {
	host, buf, cleanup, err := newHost(logger, options)
	if err != nil {
		return Outcome{}, 0, err
	}
	defer cleanup()

	c := host.NewCPU(ram, cpu.WithLogger(logger))
	c.Reset()

	start := time.Now()
	res, err := c.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		return Outcome{}, 0, fmt.Errorf("interpreter: %w", err)
	}
	if res.Reason == cpu.HaltIllegalOpcode {
		return Outcome{}, 0, fmt.Errorf("interpreter: illegal opcode $%02X at $%04X", res.Opcode, res.Address)
	}

	return Outcome{
		ExitCode:  res.ExitCode,
		Registers: res.Registers,
		Output:    buf.Bytes(),
		RAM:       ram,
		Duration:  duration,
	}, res.Steps, nil
}

func runCompiled(ctx context.Context, logger *log.Logger, fn *ir.Function, ram *memory.RAM, options Options) (Outcome, error) {
	host, buf, cleanup, err := newHost(logger, options)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	exe, err := engine.Compile(fn, host.EngineOptions(ram))
	if err != nil {
		return Outcome{}, fmt.Errorf("compiling: %w", err)
	}

	start := time.Now()
	code, err := exe.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		return Outcome{}, fmt.Errorf("compiled code: %w", err)
	}

	return Outcome{
		ExitCode:  code,
		Registers: exe.Machine().Registers(),
		Output:    buf.Bytes(),
		RAM:       ram,
		Duration:  duration,
	}, nil
}

func compareOutcomes(logger *log.Logger, interpreted, compiled Outcome) []Mismatch {
	var mismatches []Mismatch
	add := func(field, format string, a, b any) {
		mismatches = append(mismatches, Mismatch{
			Field:       field,
			Interpreter: fmt.Sprintf(format, a),
			Compiled:    fmt.Sprintf(format, b),
		})
	}

	if interpreted.ExitCode != compiled.ExitCode {
		add("exit code", "%d", interpreted.ExitCode, compiled.ExitCode)
	}

	ri, rc := interpreted.Registers, compiled.Registers
	if ri.A != rc.A {
		add("A", "$%02X", ri.A, rc.A)
	}
	if ri.X != rc.X {
		add("X", "$%02X", ri.X, rc.X)
	}
	if ri.Y != rc.Y {
		add("Y", "$%02X", ri.Y, rc.Y)
	}
	if ri.SP != rc.SP {
		add("SP", "$%02X", ri.SP, rc.SP)
	}
	if ri.P != rc.P {
		add("P", "%s", ri.P, rc.P)
	}

	if !bytes.Equal(interpreted.Output, compiled.Output) {
		add("output", "%q", string(interpreted.Output), string(compiled.Output))
	}

	if err := checkBufferEqual(logger, interpreted.RAM.Bytes(), compiled.RAM.Bytes()); err != nil {
		mismatches = append(mismatches, Mismatch{
			Field:       "memory",
			Interpreter: "reference",
			Compiled:    err.Error(),
		})
	}
	return mismatches
}

func checkBufferEqual(logger *log.Logger, expected, got []byte) error {
	if len(expected) != len(got) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(expected), len(got))
	}

	var diffs uint64
	for i := range expected {
		if expected[i] == got[i] {
			continue
		}

		diffs++
		if diffs <= maxLoggedDiffs {
			logger.Error("Memory mismatch",
				log.Hex("address", i),
				log.Hex("interpreter", expected[i]),
				log.Hex("compiled", got[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d differing bytes", diffs)
}

// IsMismatch returns whether the error reports differing execution results.
func IsMismatch(err error) bool {
	var mismatch *MismatchError
	return errors.As(err, &mismatch)
}
