// Package scenario loads scripted command sequences and replays them against a
// process.Manager. A scenario registers canned results, runs a list of steps and
// names the command lines it expects to have been called.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paveg/procfake/internal/process"
)

// Static error variables to satisfy err113 linter
var (
	ErrNoSteps          = errors.New("scenario has no steps")
	ErrUnknownOp        = errors.New("unknown step op")
	ErrMissingCommand   = errors.New("step has no command")
	ErrArgsAndCommand   = errors.New("step sets both args and command")
	ErrStdinNotAllowed  = errors.New("stdin is only valid for start steps")
	ErrInvalidResult    = errors.New("invalid result entry")
	ErrInvalidResultSet = errors.New("results must be a list")
)

// Op names a step's operation
type Op string

// Step operation constants
const (
	OpStart   Op = "start"
	OpRun     Op = "run"
	OpRunSync Op = "run_sync"
	OpCanRun  Op = "can_run"
	OpKillPID Op = "kill_pid"
)

// Scenario is a scripted set of calls against a process manager
type Scenario struct {
	Name        string                `yaml:"name"         json:"name"`
	Results     map[string]ResultList `yaml:"results"      json:"results"`
	Steps       []Step                `yaml:"steps"        json:"steps"`
	ExpectCalls []string              `yaml:"expect_calls" json:"expect_calls"`
}

// Step is one call made during a replay
type Step struct {
	Op      Op                `yaml:"op"      json:"op"`
	Args    []string          `yaml:"args"    json:"args,omitempty"`
	Command string            `yaml:"command" json:"command,omitempty"` // alternative to Args
	Path    string            `yaml:"path"    json:"path,omitempty"`    // can_run
	PID     int               `yaml:"pid"     json:"pid,omitempty"`     // kill_pid
	Signal  int               `yaml:"signal"  json:"signal,omitempty"`  // kill_pid
	Env     map[string]string `yaml:"env"     json:"env,omitempty"`
	Dir     string            `yaml:"dir"     json:"dir,omitempty"`
	Stdin   string            `yaml:"stdin"   json:"stdin,omitempty"`
	Expect  *Expectation      `yaml:"expect"  json:"expect,omitempty"`
}

// Expectation describes what a step should produce. Unset fields are not checked.
type Expectation struct {
	ExitCode *int    `yaml:"exit_code" json:"exit_code,omitempty"`
	Stdout   *string `yaml:"stdout"    json:"stdout,omitempty"`
	Stderr   *string `yaml:"stderr"    json:"stderr,omitempty"`
	Error    bool    `yaml:"error"     json:"error,omitempty"`
	Result   *bool   `yaml:"result"    json:"result,omitempty"` // can_run, kill_pid
}

// ResultList is the queue of results for one command line.
// Entries are either a bare stdout string or a full result mapping.
type ResultList []process.Result

// UnmarshalYAML accepts scalars as stdout shorthand
func (l *ResultList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w (line %d)", ErrInvalidResultSet, node.Line)
	}

	results := make(ResultList, 0, len(node.Content))
	for _, item := range node.Content {
		switch item.Kind { //nolint:exhaustive // only scalars and mappings are valid entries
		case yaml.ScalarNode:
			results = append(results, process.Result{Stdout: item.Value})
		case yaml.MappingNode:
			var r process.Result
			if err := item.Decode(&r); err != nil {
				return fmt.Errorf("%w (line %d): %w", ErrInvalidResult, item.Line, err)
			}
			results = append(results, r)
		default:
			return fmt.Errorf("%w (line %d)", ErrInvalidResult, item.Line)
		}
	}

	*l = results
	return nil
}

// Load reads and validates a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates scenario YAML. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate validates the scenario
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}

	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate validates a single step
func (st Step) Validate() error {
	switch st.Op {
	case OpStart, OpRun, OpRunSync:
		if len(st.Args) > 0 && st.Command != "" {
			return ErrArgsAndCommand
		}
		if len(st.Args) == 0 && st.Command == "" {
			return fmt.Errorf("%w: %s", ErrMissingCommand, st.Op)
		}
		if st.Stdin != "" && st.Op != OpStart {
			return fmt.Errorf("%w: %s", ErrStdinNotAllowed, st.Op)
		}
	case OpCanRun, OpKillPID:
		if st.Stdin != "" {
			return fmt.Errorf("%w: %s", ErrStdinNotAllowed, st.Op)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, st.Op)
	}
	return nil
}

// Argv returns the step's positional arguments
func (st Step) Argv() []string {
	if len(st.Args) > 0 {
		return st.Args
	}
	return process.SplitCommandLine(st.Command)
}

// RunOptions converts the step's named options
func (st Step) RunOptions() []process.RunOption {
	var opts []process.RunOption
	if st.Env != nil {
		opts = append(opts, process.WithEnvironment(st.Env))
	}
	if st.Dir != "" {
		opts = append(opts, process.WithWorkingDir(st.Dir))
	}
	return opts
}

// ResultSet returns the registered results in the form FakeManager accepts
func (s *Scenario) ResultSet() map[string][]process.Result {
	out := make(map[string][]process.Result, len(s.Results))
	for key, rs := range s.Results {
		out[key] = rs
	}
	return out
}
