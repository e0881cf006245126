// Package abi implements the host callback interface: stores to configured
// addresses invoke host functions instead of writing memory, for both the
// interpreter and the compiled code.
package abi

import (
	"fmt"
	"io"
	"sync"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrorecomp/internal/cpu"
)

// Result is returned by a handler.
type Result struct {
	Halt     bool
	ExitCode int32
}

// Handler implements a host function. It receives the stored value and the
// register state at the time of the store.
type Handler func(value byte, regs cpu.Registers) (Result, error)

type binding struct {
	name    string
	handler Handler
}

// Host dispatches stores to host functions. Handlers registered on a host
// are called sequentially from the goroutine that executes the program.
type Host struct {
	logger *log.Logger
	out    io.Writer

	mu       sync.RWMutex
	bindings map[uint16]binding
	calls    uint64
}

// NewHost returns a host that serves the built in functions of the config
// and writes their output to out.
func NewHost(logger *log.Logger, out io.Writer, cfg Config) *Host {
	h := &Host{
		logger:   logger,
		out:      out,
		bindings: make(map[uint16]binding),
	}
	for _, address := range cfg.Addresses() {
		fn := cfg[address]
		h.Handle(address, fn.String(), h.builtin(fn))
	}
	return h
}

// Output returns the writer that host functions print to.
func (h *Host) Output() io.Writer {
	return h.out
}

// Handle registers a handler for stores to the address, replacing any
// previous handler.
func (h *Host) Handle(address uint16, name string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bindings[address] = binding{name: name, handler: handler}
}

// Lookup returns whether stores to the address are handled by the host.
func (h *Host) Lookup(address uint16) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.bindings[address]
	return ok
}

// Addresses returns the set of handled addresses.
func (h *Host) Addresses() set.Set[uint16] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	addresses := set.New[uint16]()
	for address := range h.bindings {
		addresses.Add(address)
	}
	return addresses
}

// Names returns the handler names by address.
func (h *Host) Names() map[uint16]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make(map[uint16]string, len(h.bindings))
	for address, b := range h.bindings {
		names[address] = b.name
	}
	return names
}

// Calls returns the number of handled stores.
func (h *Host) Calls() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.calls
}

// Invoke calls the handler for the address.
func (h *Host) Invoke(address uint16, value byte, regs cpu.Registers) (Result, error) {
	h.mu.Lock()
	b, ok := h.bindings[address]
	h.calls++
	h.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("no host function at $%04X", address)
	}

	res, err := b.handler(value, regs)
	if err != nil {
		return Result{}, fmt.Errorf("host function %s: %w", b.name, err)
	}
	if res.Halt {
		h.logger.Debug("Host function halted execution",
			log.String("function", b.name),
			log.Int("exit_code", int(res.ExitCode)))
	}
	return res, nil
}

func (h *Host) builtin(fn Function) Handler {
	switch fn {
	case Exit:
		return func(value byte, _ cpu.Registers) (Result, error) {
			return Result{Halt: true, ExitCode: int32(value)}, nil
		}
	case PutChar:
		return func(value byte, _ cpu.Registers) (Result, error) {
			_, err := h.out.Write([]byte{value})
			return Result{}, err
		}
	default:
		return func(_ byte, regs cpu.Registers) (Result, error) {
			_, err := io.WriteString(h.out, formatRegisters(fn, regs))
			return Result{}, err
		}
	}
}

func formatRegisters(fn Function, regs cpu.Registers) string {
	switch fn {
	case PrintA:
		return fmt.Sprintf("A=$%02X\n", regs.A)
	case PrintX:
		return fmt.Sprintf("X=$%02X\n", regs.X)
	case PrintY:
		return fmt.Sprintf("Y=$%02X\n", regs.Y)
	case PrintStatus:
		return fmt.Sprintf("P=$%02X\n", byte(regs.P))
	case PrintSP:
		return fmt.Sprintf("SP=$%02X\n", regs.SP)
	default:
		return fmt.Sprintf("A=$%02X X=$%02X Y=$%02X SP=$%02X P=%s\n", regs.A, regs.X, regs.Y, regs.SP, regs.P)
	}
}
