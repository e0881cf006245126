// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/options"
)

var (
	validModes     = []string{options.ModeCompile, options.ModeInterpret, options.ModeCompare}
	validTimeUnits = []string{options.TimeNone, options.TimeSeconds, options.TimeMilliseconds, options.TimeMicroseconds}
)

// ParseFlags parses command line flags and returns program and compiler options
func ParseFlags() (options.Program, options.Compiler, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Batch == "") {
		return opts, options.Compiler{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Compiler{}, err
	}

	if opts.Batch == "" {
		opts.Input = args[0]
	}

	compilerOptions, err := createCompilerOptions(opts)
	if err != nil {
		return opts, options.Compiler{}, err
	}
	return opts, compilerOptions, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrorecomp [options] <program file>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after program file, please pass the program file as last argument", arg),
			}
		}
	}
	return nil
}

// createCompilerOptions validates the program options and converts them
// into compiler options.
func createCompilerOptions(opts options.Program) (options.Compiler, error) {
	c := options.NewCompiler()

	c.Mode = strings.ToLower(opts.Mode)
	if !slices.Contains(validModes, c.Mode) {
		return c, fmt.Errorf("unsupported mode: %s. Valid options: %s",
			opts.Mode, strings.Join(validModes, ", "))
	}

	c.TimeUnit = strings.ToLower(opts.Time)
	if !slices.Contains(validTimeUnits, c.TimeUnit) {
		return c, fmt.Errorf("unsupported time unit: %s. Valid options: %s",
			opts.Time, strings.Join(validTimeUnits, ", "))
	}

	base, err := abi.ParseAddress(opts.Base)
	if err != nil {
		return c, fmt.Errorf("parsing base address: %w", err)
	}
	c.Base = base

	if opts.Entry != "" {
		entry, err := abi.ParseAddress(opts.Entry)
		if err != nil {
			return c, fmt.Errorf("parsing entry address: %w", err)
		}
		c.Entry = entry
		c.HasEntry = true
	}

	if opts.ABI != "" {
		cfg, err := abi.ParseConfig(opts.ABI, c.ABI)
		if err != nil {
			return c, fmt.Errorf("parsing host function addresses: %w", err)
		}
		c.ABI = cfg
	}

	c.CodeDataLog = opts.CDL
	c.Optimize = !opts.NoOpt
	c.DumpIR = opts.IR
	c.Disasm = opts.Disasm
	c.FollowVectors = opts.Vectors
	c.HexComments = !opts.NoHexComments
	c.OffsetComments = !opts.NoOffsets
	return c, nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input program file")
	flags.StringVar(&opts.Output, "o", "", "name of the output file for listings and IR dumps, printed on console if no name given")
	flags.StringVar(&opts.Save, "save", "", "name of the file to save the final memory to")
	flags.StringVar(&opts.Script, "script", "", "name of a Lua script that registers additional host functions")
	flags.StringVar(&opts.CDL, "cdl", "", "name of the .cdl Code/Data log file to load for iNES cartridges")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask, for example *.bin")
	flags.StringVar(&opts.Mode, "mode", options.ModeCompile, "execution mode (compile/interpret/compare)")
	flags.StringVar(&opts.Base, "base", "$8000", "load address of raw binary files")
	flags.StringVar(&opts.Entry, "entry", "", "address to start execution at instead of the reset vector")
	flags.StringVar(&opts.ABI, "abi", "", "host function addresses as name=address list, for example exit=$200F,putchar=$200D")
	flags.StringVar(&opts.Time, "time", options.TimeNone, "report the duration of each phase in the given unit (none/s/ms/us)")
	flags.BoolVar(&opts.NoOpt, "noopt", false, "disable the optimization of the generated code")
	flags.BoolVar(&opts.IR, "ir", false, "output the generated intermediate representation")
	flags.BoolVar(&opts.Disasm, "disasm", false, "output the recovered disassembly")
	flags.BoolVar(&opts.Vectors, "vectors", false, "also follow the NMI and IRQ vectors when recovering code")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.NoHexComments, "nohexcomments", false, "do not output opcode bytes as hex values in comments")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in comments")
}
