package abi

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Function is a built in host function.
type Function uint8

// Built in host functions.
const (
	PrintA Function = iota
	PrintX
	PrintY
	PrintStatus
	PrintSP
	PutChar
	PrintState
	Exit
)

var functionNames = map[Function]string{
	PrintA:      "print_a",
	PrintX:      "print_x",
	PrintY:      "print_y",
	PrintStatus: "print_status",
	PrintSP:     "print_sp",
	PutChar:     "putchar",
	PrintState:  "print_state",
	Exit:        "exit",
}

func (f Function) String() string {
	if name, ok := functionNames[f]; ok {
		return name
	}
	return fmt.Sprintf("function%d", f)
}

// FunctionFromString returns the function for the given name.
func FunctionFromString(name string) (Function, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range functionNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Config maps store addresses to host functions.
type Config map[uint16]Function

// DefaultConfig returns the default address map at $2008-$200F.
func DefaultConfig() Config {
	return Config{
		0x2008: PrintA,
		0x2009: PrintX,
		0x200A: PrintY,
		0x200B: PrintStatus,
		0x200C: PrintSP,
		0x200D: PutChar,
		0x200E: PrintState,
		0x200F: Exit,
	}
}

// Addresses returns the configured addresses in ascending order.
func (c Config) Addresses() []uint16 {
	return slices.Sorted(maps.Keys(c))
}

// ExitAddresses returns the addresses of the exit function in ascending order.
func (c Config) ExitAddresses() []uint16 {
	var addresses []uint16
	for _, address := range c.Addresses() {
		if c[address] == Exit {
			addresses = append(addresses, address)
		}
	}
	return addresses
}

// ErrInvalidConfig is returned for malformed address map overrides.
var ErrInvalidConfig = errors.New("invalid ABI configuration")

// ParseConfig applies a comma separated list of name=address overrides like
// "exit=0x2010,putchar=$2011" to a copy of the base config. A function that
// is overridden is removed from its previous address.
func ParseConfig(s string, base Config) (Config, error) {
	cfg := maps.Clone(base)
	if cfg == nil {
		cfg = Config{}
	}
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}

	for _, entry := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: entry '%s' is not in name=address format", ErrInvalidConfig, entry)
		}
		fn, ok := FunctionFromString(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown function '%s'", ErrInvalidConfig, name)
		}
		address, err := ParseAddress(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		maps.DeleteFunc(cfg, func(_ uint16, f Function) bool { return f == fn })
		cfg[address] = fn
	}
	return cfg, nil
}

// ParseAddress parses a 16 bit address in decimal, 0x or $ prefixed hex notation.
func ParseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		s = "0x" + rest
	}
	value, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing address '%s': %w", s, err)
	}
	return uint16(value), nil
}
