// Package engine lowers IR functions to Go closures and executes them
// in-process against an emulated memory bus.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/ir"
)

// ErrUnknownHostFunction is returned when a call references a host function
// that was not registered.
var ErrUnknownHostFunction = errors.New("unknown host function")

// Bus is the emulated memory.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// HostFunc implements a named host function. It receives the address
// immediate and the argument byte of the call instruction and may halt the
// machine.
type HostFunc func(m *Machine, address uint16, value byte) error

// StoreHook is consulted for every memory store with a computed address.
// Returning true skips the bus write.
type StoreHook func(m *Machine, address uint16, value byte) (bool, error)

// Options configures the compilation of a function.
type Options struct {
	Bus       Bus
	HostFuncs map[string]HostFunc
	StoreHook StoreHook
	Logger    *log.Logger
}

// DispatchError is returned when a computed jump targets an address that has
// no block in the dispatch table.
type DispatchError struct {
	Function string
	Block    string
	Address  uint16
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("function %s, block %s: no code for computed jump to $%04X", e.Function, e.Block, e.Address)
}

type step func(m *Machine)

// terminator returns the index of the next block or -1 to stop.
type terminator func(m *Machine) int

type compiledBlock struct {
	name  string
	steps []step
	term  terminator
}

// Executable is a compiled function bound to its bus and host functions.
type Executable struct {
	name     string
	blocks   []compiledBlock
	dispatch map[uint16]int
	machine  *Machine
	logger   *log.Logger
	lastErr  error
}

// Compile verifies the function and lowers it to an executable.
func Compile(fn *ir.Function, opts Options) (*Executable, error) {
	if err := ir.Verify(fn); err != nil {
		return nil, fmt.Errorf("verifying function: %w", err)
	}
	if opts.Bus == nil {
		return nil, errors.New("no memory bus configured")
	}

	e := &Executable{
		name:     fn.Name,
		blocks:   make([]compiledBlock, len(fn.Blocks)),
		dispatch: make(map[uint16]int),
		machine: &Machine{
			values: make([]uint16, fn.NumValues()),
			bus:    opts.Bus,
		},
		logger: opts.Logger,
	}
	e.machine.SetRegisters(cpu.Registers{SP: cpu.InitialSP, P: cpu.InitialStatus})

	for _, address := range fn.DispatchAddresses() {
		b, _ := fn.DispatchTarget(address)
		e.dispatch[address] = b.Index
	}

	l := lowering{exe: e, opts: opts}
	for i, b := range fn.Blocks {
		compiled, err := l.block(b)
		if err != nil {
			return nil, fmt.Errorf("lowering block %s: %w", b.Name, err)
		}
		e.blocks[i] = compiled
	}

	if e.logger != nil {
		e.logger.Debug("Function compiled",
			log.String("function", fn.Name),
			log.Int("blocks", len(fn.Blocks)),
			log.Int("instructions", fn.InstructionCount()))
	}
	return e, nil
}

// Machine returns the machine state used by the executable.
func (e *Executable) Machine() *Machine {
	return e.machine
}

// Run executes the function from its entry block until it returns, a host
// function halts the machine or the context is cancelled. The context is
// checked at every block transition.
func (e *Executable) Run(ctx context.Context) (int32, error) {
	m := e.machine
	m.halted = false
	m.exitCode = 0
	m.err = nil

	done := ctx.Done()
	index := 0
	for {
		select {
		case <-done:
			return 0, fmt.Errorf("running compiled code: %w", ctx.Err())
		default:
		}

		b := &e.blocks[index]
		for _, s := range b.steps {
			s(m)
			if m.halted {
				return m.exitCode, m.err
			}
		}

		index = b.term(m)
		if m.halted {
			return m.exitCode, m.err
		}
	}
}

// Main returns a zero argument entry point that runs the function and returns
// its exit code. Errors are reported as exit code -1 and are available from Err.
func (e *Executable) Main() func() int32 {
	return func() int32 {
		code, err := e.Run(context.Background())
		e.lastErr = err
		if err != nil {
			return -1
		}
		return code
	}
}

// Err returns the error of the last run started through Main.
func (e *Executable) Err() error {
	return e.lastErr
}
