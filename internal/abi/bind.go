package abi

import (
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/engine"
	"github.com/retroenv/retrorecomp/internal/memory"
)

// CallName is the host function name that compiled code uses for static
// stores to handled addresses.
const CallName = "abi"

// NewCPU returns an interpreter on the memory whose stores to handled
// addresses invoke the host instead of writing memory.
func (h *Host) NewCPU(ram *memory.RAM, options ...cpu.Option) *cpu.CPU {
	var c *cpu.CPU
	write := func(address uint16, value byte) {
		if !h.Lookup(address) {
			ram.Write(address, value)
			return
		}

		res, err := h.Invoke(address, value, c.Registers())
		switch {
		case err != nil:
			c.Fail(err)
		case res.Halt:
			c.Halt(res.ExitCode)
		}
	}

	c = cpu.New(ram.Read, write, options...)
	return c
}

// EngineOptions returns the engine options that route static host calls and
// computed stores to handled addresses to the host.
func (h *Host) EngineOptions(ram *memory.RAM) engine.Options {
	return engine.Options{
		Bus: ram,
		HostFuncs: map[string]engine.HostFunc{
			CallName: h.engineCall,
		},
		StoreHook: func(m *engine.Machine, address uint16, value byte) (bool, error) {
			if !h.Lookup(address) {
				return false, nil
			}
			return true, h.engineCall(m, address, value)
		},
		Logger: h.logger,
	}
}

func (h *Host) engineCall(m *engine.Machine, address uint16, value byte) error {
	res, err := h.Invoke(address, value, m.Registers())
	if err != nil {
		return err
	}
	if res.Halt {
		m.Halt(res.ExitCode)
	}
	return nil
}
