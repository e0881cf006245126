// Package pipeline orchestrates the load, recovery, code generation and
// execution stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/abi"
	"github.com/retroenv/retrorecomp/internal/codegen"
	"github.com/retroenv/retrorecomp/internal/consts"
	"github.com/retroenv/retrorecomp/internal/cpu"
	"github.com/retroenv/retrorecomp/internal/detector"
	"github.com/retroenv/retrorecomp/internal/disasm"
	"github.com/retroenv/retrorecomp/internal/engine"
	"github.com/retroenv/retrorecomp/internal/hostscript"
	"github.com/retroenv/retrorecomp/internal/ir"
	"github.com/retroenv/retrorecomp/internal/loader"
	"github.com/retroenv/retrorecomp/internal/memory"
	"github.com/retroenv/retrorecomp/internal/options"
	"github.com/retroenv/retrorecomp/internal/program"
	"github.com/retroenv/retrorecomp/internal/runner"
	"github.com/retroenv/retrorecomp/internal/vars"
	"github.com/retroenv/retrorecomp/internal/verification"
	"github.com/retroenv/retrorecomp/internal/writer"
)

// Phase names of the timing report.
const (
	PhaseLoad      = "load"
	PhaseRecover   = "recover"
	PhaseGenerate  = "generate"
	PhaseCompile   = "compile"
	PhaseRun       = "run"
	PhaseInterpret = "interpret"
	PhaseCompare   = "compare"
)

// Timing is the duration of a pipeline phase.
type Timing struct {
	Phase    string
	Duration time.Duration
}

// Result is the outcome of a pipeline execution.
type Result struct {
	Program   *program.Program
	Function  *ir.Function
	ExitCode  int32
	Registers cpu.Registers
	Report    *verification.Report // set in compare mode
	Timings   []Timing
}

// Pipeline orchestrates the complete workflow.
type Pipeline struct {
	logger *log.Logger
	loader *loader.Loader
	stdout io.Writer // receives the host function output of the program
}

// New creates a new pipeline that writes the program output to stdout.
func New(logger *log.Logger, stdout io.Writer) *Pipeline {
	return &Pipeline{
		logger: logger,
		loader: loader.New(logger),
		stdout: stdout,
	}
}

// Execute loads the input file and runs the pipeline on it. Listings and IR
// dumps are written to the writer.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, compilerOpts options.Compiler,
	writer io.Writer) (*Result, error) {

	start := time.Now()
	img, err := p.loader.Load(opts.Input, compilerOpts)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	loadTime := time.Since(start)

	p.printInfo(opts, img)

	res, err := p.ExecuteWithImage(ctx, img, opts, compilerOpts, writer)
	if err != nil {
		return nil, err
	}
	res.Timings = append([]Timing{{Phase: PhaseLoad, Duration: loadTime}}, res.Timings...)
	p.reportTimings(compilerOpts.TimeUnit, res.Timings)
	return res, nil
}

// ExecuteWithImage runs the pipeline with a pre-loaded image.
// This is useful for testing and programmatic usage where the image is already in memory.
func (p *Pipeline) ExecuteWithImage(ctx context.Context, img *loader.Image, opts options.Program,
	compilerOpts options.Compiler, writer io.Writer) (*Result, error) {

	res := &Result{}
	var err error

	needsProgram := compilerOpts.Disasm || compilerOpts.Mode == options.ModeCompile
	if needsProgram {
		if err := p.recover(ctx, img, compilerOpts, res); err != nil {
			return nil, err
		}
		if compilerOpts.Disasm {
			if err := p.writeListing(img, compilerOpts, res.Program, writer); err != nil {
				return nil, err
			}
		}
	}

	switch compilerOpts.Mode {
	case options.ModeInterpret:
		err = p.interpret(ctx, img, opts, compilerOpts, res)
	case options.ModeCompare:
		err = p.compare(ctx, img, opts, compilerOpts, res)
	default:
		err = p.compile(ctx, img, opts, compilerOpts, writer, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) recover(ctx context.Context, img *loader.Image, compilerOpts options.Compiler, res *Result) error {
	start := time.Now()
	dis, err := disasm.New(p.logger, img.Data, 0, disasmOptions(img, compilerOpts))
	if err != nil {
		return fmt.Errorf("creating disassembler: %w", err)
	}
	prog, err := dis.Process(ctx)
	if err != nil {
		return fmt.Errorf("recovering control flow: %w", err)
	}
	res.Program = prog
	res.Timings = append(res.Timings, Timing{Phase: PhaseRecover, Duration: time.Since(start)})
	return nil
}

func (p *Pipeline) writeListing(img *loader.Image, compilerOpts options.Compiler, prog *program.Program,
	w io.Writer) error {

	constants := consts.New(compilerOpts.ABI)
	variables := vars.New(prog, func(address uint16) bool {
		_, ok := constants.Get(address)
		return ok
	})
	variables.Process()

	listing := writer.New(prog, img.Data, constants, variables, w, writer.Options{
		HexComments:    compilerOpts.HexComments,
		OffsetComments: compilerOpts.OffsetComments,
	})
	if err := listing.Write(); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}
	return nil
}

func (p *Pipeline) compile(ctx context.Context, img *loader.Image, opts options.Program,
	compilerOpts options.Compiler, w io.Writer, res *Result) error {

	host, cleanup, err := p.newHost(opts, compilerOpts)
	if err != nil {
		return err
	}
	defer cleanup()

	codegenOpts := codegen.Options{
		Optimize:      compilerOpts.Optimize,
		HostAddresses: host.Addresses(),
		HostCall:      abi.CallName,
	}
	if compilerOpts.DumpIR {
		codegenOpts.Dump = w
	}

	start := time.Now()
	fn, err := codegen.Generate(p.logger, res.Program, codegenOpts)
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}
	res.Function = fn
	res.Timings = append(res.Timings, Timing{Phase: PhaseGenerate, Duration: time.Since(start)})
	p.logger.Debug("Generated code",
		log.Int("blocks", len(fn.Blocks)),
		log.Int("instructions", fn.InstructionCount()))

	ram := memory.New()
	if err := ram.Load(img.Data, 0); err != nil {
		return fmt.Errorf("loading memory: %w", err)
	}

	start = time.Now()
	exe, err := engine.Compile(fn, host.EngineOptions(ram))
	if err != nil {
		return fmt.Errorf("compiling: %w", err)
	}
	res.Timings = append(res.Timings, Timing{Phase: PhaseCompile, Duration: time.Since(start)})

	start = time.Now()
	code, err := exe.Run(ctx)
	if err != nil {
		return fmt.Errorf("running compiled code: %w", err)
	}
	res.Timings = append(res.Timings, Timing{Phase: PhaseRun, Duration: time.Since(start)})
	res.ExitCode = code
	res.Registers = exe.Machine().Registers()

	p.logger.Debug("Compiled program finished",
		log.Int("exit_code", int(code)),
		log.Int("host_calls", int(host.Calls())))
	return p.save(opts, ram)
}

func (p *Pipeline) interpret(ctx context.Context, img *loader.Image, opts options.Program,
	compilerOpts options.Compiler, res *Result) error {

	host, cleanup, err := p.newHost(opts, compilerOpts)
	if err != nil {
		return err
	}
	defer cleanup()

	ram := memory.New()
	if err := ram.Load(img.Data, 0); err != nil {
		return fmt.Errorf("loading memory: %w", err)
	}

	c := host.NewCPU(ram, cpu.WithLogger(p.logger))
	c.Reset()

	start := time.Now()
	r := runner.New(p.logger, c)
	r.Start(ctx)
	cpuResult, err := r.Wait(ctx)
	if err != nil {
		return fmt.Errorf("interpreting: %w", err)
	}
	if cpuResult.Reason == cpu.HaltIllegalOpcode {
		return fmt.Errorf("interpreting: illegal opcode $%02X at $%04X", cpuResult.Opcode, cpuResult.Address)
	}
	res.Timings = append(res.Timings, Timing{Phase: PhaseInterpret, Duration: time.Since(start)})
	res.ExitCode = cpuResult.ExitCode
	res.Registers = cpuResult.Registers

	p.logger.Debug("Interpreted program finished",
		log.Int("exit_code", int(cpuResult.ExitCode)),
		log.Int("steps", int(cpuResult.Steps)))
	return p.save(opts, ram)
}

func (p *Pipeline) compare(ctx context.Context, img *loader.Image, opts options.Program,
	compilerOpts options.Compiler, res *Result) error {

	start := time.Now()
	report, err := verification.Compare(ctx, p.logger, img.Data, verification.Options{
		Disasm:   disasmOptions(img, compilerOpts),
		ABI:      compilerOpts.ABI,
		Optimize: compilerOpts.Optimize,
		Setup:    p.scriptSetup(opts),
	})
	if err != nil {
		return fmt.Errorf("comparing execution: %w", err)
	}
	res.Timings = append(res.Timings,
		Timing{Phase: PhaseCompare, Duration: time.Since(start)},
		Timing{Phase: PhaseInterpret, Duration: report.Interpreter.Duration},
		Timing{Phase: PhaseRun, Duration: report.Compiled.Duration},
	)
	res.Report = report
	res.ExitCode = report.Compiled.ExitCode
	res.Registers = report.Compiled.Registers

	if _, err := p.stdout.Write(report.Compiled.Output); err != nil {
		return fmt.Errorf("writing program output: %w", err)
	}
	if !opts.Quiet {
		p.logger.Info("Interpreter and compiled code match",
			log.Int("exit_code", int(report.Compiled.ExitCode)),
			log.Int("steps", int(report.Steps)))
	}
	return p.save(opts, report.Compiled.RAM)
}

// newHost returns the host for a single execution with the optional script
// installed.
func (p *Pipeline) newHost(opts options.Program, compilerOpts options.Compiler) (*abi.Host, func(), error) {
	host := abi.NewHost(p.logger, p.stdout, compilerOpts.ABI)
	setup := p.scriptSetup(opts)
	if setup == nil {
		return host, func() {}, nil
	}
	cleanup, err := setup(host)
	if err != nil {
		return nil, nil, err
	}
	return host, cleanup, nil
}

// scriptSetup returns a host setup that loads a separate script instance
// for every host.
func (p *Pipeline) scriptSetup(opts options.Program) verification.SetupFunc {
	if opts.Script == "" {
		return nil
	}
	return func(h *abi.Host) (func(), error) {
		script, err := hostscript.Load(p.logger, opts.Script)
		if err != nil {
			return nil, fmt.Errorf("loading host script: %w", err)
		}
		script.Install(h)
		return script.Close, nil
	}
}

func (p *Pipeline) save(opts options.Program, ram *memory.RAM) error {
	if opts.Save == "" {
		return nil
	}
	if err := ram.SaveFile(opts.Save); err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	p.logger.Debug("Saved memory", log.String("file", opts.Save))
	return nil
}

// printInfo prints information about the program being processed.
func (p *Pipeline) printInfo(opts options.Program, img *loader.Image) {
	if opts.Quiet {
		return
	}

	switch img.Format {
	case detector.FormatNES:
		p.logger.Info("Processing NES ROM",
			log.String("file", opts.Input),
			log.Uint16("mapper", img.Mapper),
			log.Hex("reset", img.Reset),
		)
		if img.Mapper != 0 {
			p.logger.Warn("Only the first PRG banks are mapped, bank switching is not supported")
		}

	default:
		p.logger.Info("Processing program",
			log.String("file", opts.Input),
			log.Stringer("format", img.Format),
			log.Hex("reset", img.Reset),
		)
	}
}

func (p *Pipeline) reportTimings(unit string, timings []Timing) {
	if unit == options.TimeNone || unit == "" {
		return
	}
	for _, t := range timings {
		p.logger.Info("Phase timing",
			log.String("phase", t.Phase),
			log.String("duration", FormatDuration(t.Duration, unit)))
	}
}

// FormatDuration formats the duration in the given unit.
func FormatDuration(d time.Duration, unit string) string {
	switch unit {
	case options.TimeSeconds:
		return fmt.Sprintf("%.3fs", d.Seconds())
	case options.TimeMilliseconds:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	case options.TimeMicroseconds:
		return fmt.Sprintf("%dus", d.Microseconds())
	default:
		return d.String()
	}
}

func disasmOptions(img *loader.Image, compilerOpts options.Compiler) disasm.Options {
	return disasm.Options{
		FollowVectors: compilerOpts.FollowVectors,
		EntryPoints:   img.EntryPoints,
		ExitAddresses: compilerOpts.ABI.ExitAddresses(),
	}
}
