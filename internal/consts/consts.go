// Package consts manages the names of host function addresses in listings.
package consts

import (
	"strings"

	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/symbols"
)

// Prefix is prepended to the upper case host function name.
const Prefix = "HOST_"

// Constant names an address.
type Constant struct {
	Address uint16
	Name    string
}

// Consts manages constants in the listing.
type Consts struct {
	constants *symbols.Manager[Constant]
}

// New creates a constants manager for the host functions of the config.
func New(cfg abi.Config) *Consts {
	c := &Consts{
		constants: symbols.New[Constant](),
	}
	for _, address := range cfg.Addresses() {
		c.constants.Set(address, Constant{
			Address: address,
			Name:    Prefix + strings.ToUpper(cfg[address].String()),
		})
	}
	return c
}

// Get returns the constant at the address.
func (c *Consts) Get(address uint16) (Constant, bool) {
	return c.constants.Get(address)
}

// ReplaceParameter replaces the address in the parameter of an instruction by
// the constant name. Host functions are triggered by stores, so only
// operations that write memory are replaced. The second return value
// reports whether a constant exists at the address.
func (c *Consts) ReplaceParameter(address uint16, op m6502.Op, param string) (string, bool) {
	constant, ok := c.constants.Get(address)
	if !ok {
		return param, false
	}
	if !op.WritesMemory() {
		return param, true
	}

	// split parameter string in case of x/y indexing, only the first part will be replaced by a const name
	parts := strings.Split(param, ",")
	parts[0] = constant.Name
	c.constants.MarkUsed(address)
	return strings.Join(parts, ","), true
}

// IsUsed returns whether the constant at the address was used in the listing.
func (c *Consts) IsUsed(address uint16) bool {
	return c.constants.IsUsed(address)
}

// Used returns the used constants as name to address map.
func (c *Consts) Used() map[string]uint16 {
	used := make(map[string]uint16)
	for _, constant := range c.constants.Sorted() {
		if c.constants.IsUsed(constant.Address) {
			used[constant.Name] = constant.Address
		}
	}
	return used
}

// All returns all constants as name to address map.
func (c *Consts) All() map[string]uint16 {
	all := make(map[string]uint16, c.constants.Len())
	for _, constant := range c.constants.InsertionOrder() {
		all[constant.Name] = constant.Address
	}
	return all
}
