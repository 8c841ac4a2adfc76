// Package process provides the process-execution contract used by procfake and
// a deterministic double that satisfies it.
// This file defines the core types and interfaces shared by the double and its callers.
package process

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"syscall"
)

// Op identifies which spawn-family operation produced an Invocation
type Op string

// Operation constants
const (
	OpStart   Op = "start"    // Asynchronous spawn returning a process handle
	OpRun     Op = "run"      // Asynchronous run to completion
	OpRunSync Op = "run_sync" // Synchronous run to completion
)

// Manager is the capability set of a process-execution facility
type Manager interface {
	// Start spawns a command and returns a handle to it.
	Start(ctx context.Context, args []string, opts ...RunOption) (Process, error)

	// Run runs a command to completion.
	Run(ctx context.Context, args []string, opts ...RunOption) (Result, error)

	// RunSync runs a command to completion without suspending the caller.
	RunSync(args []string, opts ...RunOption) (Result, error)

	// CanRun reports whether path is executable.
	CanRun(path string, opts ...RunOption) bool

	// KillPID sends sig to the process identified by pid.
	KillPID(pid int, sig syscall.Signal) bool
}

// Process is a handle to a spawned command
type Process interface {
	PID() int
	ExitCode(ctx context.Context) (int, error)
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	Stdin() io.WriteCloser
	Kill(sig syscall.Signal) bool
}

// Result is the outcome of a completed command
type Result struct {
	ExitCode int    `json:"exit_code" yaml:"exit_code"`
	Stdout   string `json:"stdout"    yaml:"stdout"`
	Stderr   string `json:"stderr"    yaml:"stderr"`
}

// Succeeded reports whether the command exited with status 0
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// RunOptions are the named options accepted by spawn-family operations
type RunOptions struct {
	Environment map[string]string `json:"environment,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
}

// RunOption configures a single call
type RunOption func(*RunOptions)

// WithEnvironment sets the environment passed to the command
func WithEnvironment(env map[string]string) RunOption {
	return func(o *RunOptions) {
		o.Environment = env
	}
}

// WithWorkingDir sets the directory the command runs in
func WithWorkingDir(dir string) RunOption {
	return func(o *RunOptions) {
		o.WorkingDir = dir
	}
}

func applyRunOptions(opts []RunOption) RunOptions {
	var o RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Invocation is a recorded call to a Manager
type Invocation struct {
	Op          Op                `json:"op"`
	Args        []string          `json:"args"`
	Environment map[string]string `json:"environment,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
}

func newInvocation(op Op, args []string, o RunOptions) Invocation {
	return Invocation{
		Op:          op,
		Args:        slices.Clone(args),
		Environment: maps.Clone(o.Environment),
		WorkingDir:  o.WorkingDir,
	}
}

// CommandLine returns the invocation's arguments joined as a command key
func (i Invocation) CommandLine() string {
	return CommandKey(i.Args)
}

// CommandKey joins positional arguments with single spaces.
// Environment and working directory are never part of the key.
func CommandKey(args []string) string {
	return strings.Join(args, " ")
}

// SplitCommandLine is the inverse of CommandKey
func SplitCommandLine(line string) []string {
	if line == "" {
		return []string{}
	}
	return strings.Split(line, " ")
}
