// Package hostscript lets Lua scripts provide host functions. A script
// registers handlers with register(address, function[, name]); a handler is
// called as fn(value, a, x, y, sp, p) and halts execution with an exit code
// by returning a number.
package hostscript

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/cpu"
	lua "github.com/yuin/gopher-lua"
)

// ErrNoOutput is returned when a script writes before it was installed on a host.
var ErrNoOutput = errors.New("script output is not connected")

type handler struct {
	address uint16
	name    string
	fn      *lua.LFunction
}

// Script is a loaded Lua host script. A Lua state is not safe for
// concurrent use, calls into the script are serialized.
type Script struct {
	logger *log.Logger

	mu       sync.Mutex
	state    *lua.LState
	out      io.Writer
	handlers []handler
}

// New returns a script with an empty Lua state that has the host API
// functions registered.
func New(logger *log.Logger) *Script {
	s := &Script{
		logger: logger,
		state:  lua.NewState(),
	}
	s.state.SetGlobal("register", s.state.NewFunction(s.register))
	s.state.SetGlobal("write", s.state.NewFunction(s.write))
	return s
}

// Load returns a script that executed the Lua file.
func Load(logger *log.Logger, path string) (*Script, error) {
	s := New(logger)
	if err := s.state.DoFile(path); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading script '%s': %w", path, err)
	}
	return s, nil
}

// LoadString returns a script that executed the Lua source.
func LoadString(logger *log.Logger, source string) (*Script, error) {
	s := New(logger)
	if err := s.state.DoString(source); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading script: %w", err)
	}
	return s, nil
}

// Close releases the Lua state.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Close()
}

// Handlers returns the number of registered handlers.
func (s *Script) Handlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Install registers the script handlers on the host, replacing built in
// functions at the same addresses. Script output goes to the host output.
func (s *Script) Install(h *abi.Host) {
	s.mu.Lock()
	s.out = h.Output()
	handlers := s.handlers
	s.mu.Unlock()

	for _, hd := range handlers {
		h.Handle(hd.address, hd.name, s.handler(hd))
		s.logger.Debug("Installed script host function",
			log.String("name", hd.name),
			log.Hex("address", hd.address))
	}
}

func (s *Script) handler(hd handler) abi.Handler {
	return func(value byte, regs cpu.Registers) (abi.Result, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		L := s.state
		err := L.CallByParam(lua.P{
			Fn:      hd.fn,
			NRet:    1,
			Protect: true,
		},
			lua.LNumber(value),
			lua.LNumber(regs.A),
			lua.LNumber(regs.X),
			lua.LNumber(regs.Y),
			lua.LNumber(regs.SP),
			lua.LNumber(regs.P),
		)
		if err != nil {
			return abi.Result{}, fmt.Errorf("calling script function: %w", err)
		}

		ret := L.Get(-1)
		L.Pop(1)
		if code, ok := ret.(lua.LNumber); ok {
			return abi.Result{Halt: true, ExitCode: int32(code)}, nil
		}
		return abi.Result{}, nil
	}
}

// register implements register(address, function[, name]). The address is
// a number or a string in decimal, 0x or $ notation.
func (s *Script) register(L *lua.LState) int {
	var address uint16
	switch arg := L.CheckAny(1).(type) {
	case lua.LNumber:
		if arg < 0 || arg > 0xFFFF {
			L.ArgError(1, "address out of range")
			return 0
		}
		address = uint16(arg)
	case lua.LString:
		a, err := abi.ParseAddress(string(arg))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		address = a
	default:
		L.TypeError(1, lua.LTNumber)
		return 0
	}

	fn := L.CheckFunction(2)
	name := L.OptString(3, fmt.Sprintf("script_%04x", address))

	s.handlers = append(s.handlers, handler{address: address, name: name, fn: fn})
	return 0
}

// write implements write(string).
func (s *Script) write(L *lua.LState) int {
	str := L.CheckString(1)
	if s.out == nil {
		L.RaiseError("%s", ErrNoOutput)
		return 0
	}
	if _, err := io.WriteString(s.out, str); err != nil {
		L.RaiseError("writing output: %s", err)
	}
	return 0
}
