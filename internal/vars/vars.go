// Package vars names the memory addresses that the recovered program
// accesses directly.
package vars

import (
	"fmt"

	"github.com/retroenv/retrorecomp/internal/arch/m6502"
	"github.com/retroenv/retrorecomp/internal/program"
	"github.com/retroenv/retrorecomp/internal/symbols"
)

const (
	dataNaming            = "_data_%04x"
	dataNamingIndexed     = "_data_%04x_indexed"
	variableNaming        = "_var_%04x"
	variableNamingIndexed = "_var_%04x_indexed"
)

// Vars manages variables of the recovered program.
type Vars struct {
	prog      *program.Program
	variables *symbols.Manager[*variable]
	exclude   func(address uint16) bool
}

type variable struct {
	reads  bool
	writes bool

	address      uint16
	name         string
	indexedUsage bool     // access with X/Y registers indicates table
	usageAt      []uint16 // addresses of all instructions that use this address
}

// New creates a new variables manager for the program. Addresses for which
// exclude returns true are never named.
func New(prog *program.Program, exclude func(address uint16) bool) *Vars {
	if exclude == nil {
		exclude = func(uint16) bool { return false }
	}
	return &Vars{
		prog:      prog,
		variables: symbols.New[*variable](),
		exclude:   exclude,
	}
}

// AddReference adds a variable reference if the instruction accesses the
// operand address directly.
func (v *Vars) AddReference(ins *program.Instruction) {
	indexed := false
	switch ins.Mode {
	case m6502.ZeroPage, m6502.Absolute:
	case m6502.ZeroPageX, m6502.ZeroPageY, m6502.AbsoluteX, m6502.AbsoluteY:
		indexed = true
	default:
		return
	}
	if ins.HasTarget || v.exclude(ins.Argument) {
		return
	}

	writes := ins.Op.WritesMemory()
	reads := !writes || (ins.Op != m6502.STA && ins.Op != m6502.STX && ins.Op != m6502.STY)

	varInfo, ok := v.variables.Get(ins.Argument)
	if !ok {
		varInfo = &variable{
			address: ins.Argument,
		}
		v.variables.Set(ins.Argument, varInfo)
	}
	varInfo.usageAt = append(varInfo.usageAt, ins.Offset)
	varInfo.reads = varInfo.reads || reads
	varInfo.writes = varInfo.writes || writes
	varInfo.indexedUsage = varInfo.indexedUsage || indexed
}

// Process adds the references of all program instructions and names the
// variables. Addresses below the first instruction are variables, addresses
// inside the program are data or existing labels. Variables that are only
// used once and not both read and written stay unnamed.
func (v *Vars) Process() {
	for _, ins := range v.prog.Instructions {
		v.AddReference(ins)
	}
	if len(v.prog.Instructions) == 0 {
		return
	}
	codeBaseAddress := v.prog.Instructions[0].Offset

	for _, varInfo := range v.variables.Sorted() {
		if varInfo.address < codeBaseAddress {
			if len(varInfo.usageAt) == 1 && !varInfo.indexedUsage && (!varInfo.reads || !varInfo.writes) {
				continue
			}
			varInfo.name = variableName(varInfo)
			v.variables.MarkUsed(varInfo.address)
			continue
		}

		if label, ok := v.prog.Label(varInfo.address); ok {
			varInfo.name = label.Name
			continue
		}
		if v.prog.Coverage.IsCode(varInfo.address) {
			continue // references into the middle of instructions keep their address
		}
		varInfo.name = dataName(varInfo)
		v.variables.MarkUsed(varInfo.address)
	}
}

// Name returns the name of the variable at the address.
func (v *Vars) Name(address uint16) (string, bool) {
	varInfo, ok := v.variables.Get(address)
	if !ok || varInfo.name == "" {
		return "", false
	}
	return varInfo.name, true
}

// Used returns the named variables and data addresses that need an alias
// definition in the listing.
func (v *Vars) Used() map[string]uint16 {
	used := make(map[string]uint16)
	for _, address := range v.variables.Addresses() {
		if !v.variables.IsUsed(address) {
			continue
		}
		varInfo, _ := v.variables.Get(address)
		used[varInfo.name] = address
	}
	return used
}

func variableName(varInfo *variable) string {
	if varInfo.indexedUsage {
		return fmt.Sprintf(variableNamingIndexed, varInfo.address)
	}
	return fmt.Sprintf(variableNaming, varInfo.address)
}

func dataName(varInfo *variable) string {
	if varInfo.indexedUsage {
		return fmt.Sprintf(dataNamingIndexed, varInfo.address)
	}
	return fmt.Sprintf(dataNaming, varInfo.address)
}
