// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/options"
	"github.com/retroenv/retrorecomp/internal/pipeline"
	"golang.org/x/term"
)

// ProcessFile handles the complete file processing workflow. Program output
// goes to stdout, listings and IR dumps to the configured output file.
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program,
	compilerOpts options.Compiler) (*pipeline.Result, error) {

	return ProcessFileTo(ctx, logger, opts, compilerOpts, os.Stdout)
}

// ProcessFileTo processes the file and writes the program output to stdout.
func ProcessFileTo(ctx context.Context, logger *log.Logger, opts options.Program,
	compilerOpts options.Compiler, stdout io.Writer) (*pipeline.Result, error) {

	writer, err := createWriter(opts, stdout)
	if err != nil {
		return nil, fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closer, ok := writer.(io.Closer); ok && writer != stdout {
			_ = closer.Close()
		}
	}()

	pipe := pipeline.New(logger, stdout)
	res, err := pipe.Execute(ctx, opts, compilerOpts, writer)
	if err != nil {
		return nil, fmt.Errorf("processing '%s': %w", opts.Input, err)
	}
	return res, nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates the listing or IR dump filename for a
// given input file.
func GenerateOutputFilename(inputFile string, compilerOpts options.Compiler) string {
	ext := filepath.Ext(inputFile)
	suffix := ".ir"
	if compilerOpts.Disasm {
		suffix = ".asm"
	}
	return inputFile[:len(inputFile)-len(ext)] + suffix
}

// HasFileOutput returns whether the options produce a listing or IR dump.
func HasFileOutput(compilerOpts options.Compiler) bool {
	return compilerOpts.Disasm || compilerOpts.DumpIR
}

func createWriter(opts options.Program, stdout io.Writer) (io.Writer, error) {
	if opts.Output == "" {
		return stdout, nil
	}

	file, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", opts.Output, err)
	}
	return file, nil
}

// PrintBanner prints application version information. It is skipped in
// quiet mode and when stdout is not a terminal, keeping piped program
// output clean.
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet || !isTerminal(os.Stdout) {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("retrorecomp", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
