// Package options contains the program options.
package options

import (
	"github.com/retroenv/retrorecomp/internal/abi"
)

// Execution modes.
const (
	ModeCompile   = "compile"
	ModeInterpret = "interpret"
	ModeCompare   = "compare"
)

// Time units of the phase timing report.
const (
	TimeNone         = "none"
	TimeSeconds      = "s"
	TimeMilliseconds = "ms"
	TimeMicroseconds = "us"
)

// DefaultBase is the load address of raw binary images.
const DefaultBase = 0x8000

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"input program file"`
	Output string `flag:"o" usage:"output file for listings and IR dumps (default: stdout)"`
	Save   string `flag:"save" usage:"save the final memory to a file"`
	Script string `flag:"script" usage:"Lua script providing additional host functions"`
	CDL    string `flag:"cdl" usage:"Code/Data log file (.cdl) of an iNES cartridge"`
	Batch  string `flag:"batch" usage:"batch process files matching pattern (e.g. *.bin)"`
}

// Flags contains behavior options.
type Flags struct {
	Mode    string `flag:"mode" usage:"execution mode: compile, interpret, compare" default:"compile"`
	Base    string `flag:"base" usage:"load address of raw binary files" default:"$8000"`
	Entry   string `flag:"entry" usage:"override the reset vector"`
	ABI     string `flag:"abi" usage:"host function addresses, e.g. exit=$200F,putchar=$200D"`
	Time    string `flag:"time" usage:"phase timing unit: none, s, ms, us" default:"none"`
	NoOpt   bool   `flag:"noopt" usage:"disable IR optimization"`
	IR      bool   `flag:"ir" usage:"dump the generated IR"`
	Disasm  bool   `flag:"disasm" usage:"output the recovered disassembly"`
	Vectors bool   `flag:"vectors" usage:"also follow the NMI and IRQ vectors"`
	Debug   bool   `flag:"debug" usage:"enable debug logging"`
	Quiet   bool   `flag:"q" usage:"quiet mode"`
}

// OutputFlags contains listing formatting options.
type OutputFlags struct {
	NoHexComments bool `flag:"nohexcomments" usage:"omit hex opcode bytes in comments"`
	NoOffsets     bool `flag:"nooffsets" usage:"omit addresses in comments"`
}

// Program options of the recompiler.
type Program struct {
	Parameters
	Flags
	OutputFlags
}

// Compiler defines the validated options that control a run.
type Compiler struct {
	Mode     string
	Base     uint16
	Entry    uint16
	HasEntry bool
	ABI      abi.Config
	TimeUnit string

	CodeDataLog string // path of a Code/Data log providing additional entry points

	Optimize       bool
	DumpIR         bool
	Disasm         bool
	FollowVectors  bool
	HexComments    bool
	OffsetComments bool
}

// NewCompiler returns a new options instance with default options.
func NewCompiler() Compiler {
	return Compiler{
		Mode:     ModeCompile,
		Base:     DefaultBase,
		ABI:      abi.DefaultConfig(),
		TimeUnit: TimeNone,

		Optimize:       true,
		HexComments:    true,
		OffsetComments: true,
	}
}
