// Package main implements the main entry point for a 6502 interpreter and static recompiler
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/cli"
	"github.com/retroenv/retrorecomp/internal/config"
	"github.com/retroenv/retrorecomp/internal/fileprocessor"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, compilerOptions, err := cli.ParseFlags()
	if err != nil {
		logger := config.NewLogger(opts.Flags)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	logger := config.NewLogger(opts.Flags)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	files, err := fileprocessor.GetFilesToProcess(&opts)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	failed := false
	for _, file := range files {
		opts.Input = file
		if len(files) > 1 && fileprocessor.HasFileOutput(compilerOptions) {
			opts.Output = fileprocessor.GenerateOutputFilename(file, compilerOptions)
		}

		res, err := fileprocessor.ProcessFile(ctx, logger, opts, compilerOptions)
		if err != nil {
			// Handle context cancellation (Ctrl+C) gracefully
			if errors.Is(err, context.Canceled) {
				logger.Info("Operation cancelled")
				os.Exit(1)
			}
			logger.Error("Processing failed", log.Err(err))
			failed = true
			continue
		}

		if !opts.Quiet {
			logger.Info("Program finished",
				log.String("file", file),
				log.Int("exit_code", int(res.ExitCode)),
				log.String("registers", res.Registers.String()))
		}
	}

	if failed {
		os.Exit(1)
	}
}
