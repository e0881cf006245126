// Package runner drives an interpreter on a background goroutine that is
// controlled through commands.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrorecomp/internal/cpu"
)

// batchSize is the number of instructions executed between command checks.
const batchSize = 1024

// ErrFinished is returned when a command is sent after the interpreter halted.
var ErrFinished = errors.New("interpreter finished")

type command int

const (
	cmdRun command = iota
	cmdPause
	cmdStep
	cmdStop
)

// Snapshot is the interpreter state at the end of the last executed batch.
type Snapshot struct {
	Registers cpu.Registers
	Steps     uint64
}

// Runner executes an interpreter on its own goroutine. It starts paused.
type Runner struct {
	logger *log.Logger
	cpu    *cpu.CPU

	commands chan command
	finished chan struct{}
	done     chan cpu.Result
	running  atomic.Bool

	mu       sync.Mutex
	snapshot Snapshot
}

// New returns a runner for the interpreter, the interpreter has to be reset.
func New(logger *log.Logger, c *cpu.CPU) *Runner {
	return &Runner{
		logger:   logger,
		cpu:      c,
		commands: make(chan command, 1),
		finished: make(chan struct{}),
		done:     make(chan cpu.Result, 1),
	}
}

// Start launches the execution goroutine. Cancelling the context stops the
// interpreter.
func (r *Runner) Start(ctx context.Context) {
	r.updateSnapshot()
	go r.loop(ctx)
}

// Run resumes continuous execution.
func (r *Runner) Run() error {
	return r.send(cmdRun)
}

// Pause suspends continuous execution.
func (r *Runner) Pause() error {
	return r.send(cmdPause)
}

// Step executes a single instruction while paused.
func (r *Runner) Step() error {
	return r.send(cmdStep)
}

// Stop halts the interpreter. It has no effect once the interpreter halted.
func (r *Runner) Stop() {
	r.cpu.Stop()
	_ = r.send(cmdStop)
}

// Running returns whether the interpreter is executing continuously.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Snapshot returns the last recorded interpreter state.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Done returns a channel that receives the final result once the interpreter halted.
func (r *Runner) Done() <-chan cpu.Result {
	return r.done
}

// Wait runs the interpreter to completion and returns its result.
func (r *Runner) Wait(ctx context.Context) (cpu.Result, error) {
	if err := r.Run(); err != nil && !errors.Is(err, ErrFinished) {
		return cpu.Result{}, err
	}

	select {
	case res := <-r.done:
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if res.Err != nil {
			return res, res.Err
		}
		return res, nil
	case <-ctx.Done():
		// the loop observes the cancellation and halts
		res := <-r.done
		return res, ctx.Err()
	}
}

func (r *Runner) send(cmd command) error {
	select {
	case <-r.finished:
		return ErrFinished
	default:
	}

	select {
	case r.commands <- cmd:
		return nil
	case <-r.finished:
		return ErrFinished
	}
}

func (r *Runner) loop(ctx context.Context) {
	for !r.cpu.Halted() {
		if r.running.Load() {
			select {
			case cmd := <-r.commands:
				r.handle(cmd)
			case <-ctx.Done():
				r.cpu.Stop()
				r.cpu.Step()
			default:
				r.runBatch()
			}
			continue
		}

		select {
		case cmd := <-r.commands:
			r.handle(cmd)
		case <-ctx.Done():
			r.cpu.Stop()
			r.cpu.Step()
		}
	}

	r.running.Store(false)
	r.updateSnapshot()
	res := r.cpu.Result()
	r.logger.Debug("Runner finished",
		log.Stringer("reason", res.Reason),
		log.Int("steps", int(res.Steps)))
	close(r.finished)
	r.done <- res
}

func (r *Runner) handle(cmd command) {
	switch cmd {
	case cmdRun:
		r.running.Store(true)
	case cmdPause:
		r.running.Store(false)
		r.updateSnapshot()
	case cmdStep:
		if !r.running.Load() {
			r.cpu.Step()
			r.updateSnapshot()
		}
	case cmdStop:
		// the stop request was latched in the interpreter
		r.cpu.Step()
	}
}

func (r *Runner) runBatch() {
	for range batchSize {
		if r.cpu.Halted() {
			break
		}
		r.cpu.Step()
	}
	r.updateSnapshot()
}

func (r *Runner) updateSnapshot() {
	res := r.cpu.Result()
	r.mu.Lock()
	r.snapshot = Snapshot{Registers: res.Registers, Steps: res.Steps}
	r.mu.Unlock()
}
