package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/paveg/procfake/internal/process"
)

// StepReport is the outcome of one step
type StepReport struct {
	Index    int             `json:"index"`
	Op       Op              `json:"op"`
	Command  string          `json:"command,omitempty"`
	Result   *process.Result `json:"result,omitempty"`
	Answer   *bool           `json:"answer,omitempty"` // can_run, kill_pid
	Error    string          `json:"error,omitempty"`
	Failures []string        `json:"failures,omitempty"`
	Passed   bool            `json:"passed"`
}

// Report is the outcome of a whole replay
type Report struct {
	Name          string               `json:"name,omitempty"`
	Steps         []StepReport         `json:"steps"`
	Invocations   []process.Invocation `json:"invocations"`
	StdinReceived []string             `json:"stdin_received,omitempty"`
	Pending       map[string]int       `json:"pending,omitempty"`
	VerifyError   string               `json:"verify_error,omitempty"`
	Passed        bool                 `json:"passed"`
}

// Failed returns the reports of failing steps
func (r *Report) Failed() []StepReport {
	var failed []StepReport
	for _, st := range r.Steps {
		if !st.Passed {
			failed = append(failed, st)
		}
	}
	return failed
}

// Runner replays scenarios against a fresh FakeManager
type Runner struct {
	logger      *slog.Logger
	stdinBuffer int
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger for the runner and the managers it creates
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunnerStdinBuffer sets the stdin buffer of created managers
func WithRunnerStdinBuffer(n int) RunnerOption {
	return func(r *Runner) {
		r.stdinBuffer = n
	}
}

// NewRunner creates a Runner
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays s. The returned error is reserved for the caller's context;
// step and verification failures are reported in the Report.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Report, error) {
	var mu sync.Mutex
	var stdin []string

	fakeOpts := []process.FakeOption{
		process.WithLogger(r.logger),
		process.WithStdinHandler(func(text string) {
			mu.Lock()
			stdin = append(stdin, text)
			mu.Unlock()
		}),
	}
	if r.stdinBuffer > 0 {
		fakeOpts = append(fakeOpts, process.WithStdinBuffer(r.stdinBuffer))
	}

	m := process.NewFakeManager(fakeOpts...)
	m.SetResultSet(s.ResultSet())

	steps, err := r.Execute(ctx, m, s.Steps)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Name:        s.Name,
		Steps:       steps,
		Invocations: m.Invocations(),
		Pending:     m.Pending(),
		Passed:      true,
	}

	mu.Lock()
	report.StdinReceived = append([]string(nil), stdin...)
	mu.Unlock()

	for _, st := range steps {
		if !st.Passed {
			report.Passed = false
		}
	}

	if s.ExpectCalls != nil {
		if err := m.VerifyCalls(s.ExpectCalls); err != nil {
			report.VerifyError = err.Error()
			report.Passed = false
		}
	}

	r.logger.Info("scenario replayed", "name", s.Name, "steps", len(steps), "passed", report.Passed)
	return report, nil
}

// Execute runs steps in order against m. It stops early only when ctx is done.
func (r *Runner) Execute(ctx context.Context, m process.Manager, steps []Step) ([]StepReport, error) {
	reports := make([]StepReport, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay interrupted at step %d: %w", i+1, err)
		}

		rep := r.executeStep(ctx, m, step)
		rep.Index = i + 1
		r.logger.Debug("step", "index", rep.Index, "op", rep.Op, "cmd", rep.Command, "passed", rep.Passed)
		reports = append(reports, rep)
	}
	return reports, nil
}

func (r *Runner) executeStep(ctx context.Context, m process.Manager, step Step) StepReport {
	rep := StepReport{Op: step.Op}

	var result *process.Result
	var answer *bool
	var err error

	switch step.Op {
	case OpStart:
		rep.Command = process.CommandKey(step.Argv())
		result, err = startStep(ctx, m, step)
	case OpRun:
		rep.Command = process.CommandKey(step.Argv())
		var res process.Result
		if res, err = m.Run(ctx, step.Argv(), step.RunOptions()...); err == nil {
			result = &res
		}
	case OpRunSync:
		rep.Command = process.CommandKey(step.Argv())
		var res process.Result
		if res, err = m.RunSync(step.Argv(), step.RunOptions()...); err == nil {
			result = &res
		}
	case OpCanRun:
		rep.Command = step.Path
		ok := m.CanRun(step.Path, step.RunOptions()...)
		answer = &ok
	case OpKillPID:
		ok := m.KillPID(step.PID, syscall.Signal(step.Signal))
		answer = &ok
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, step.Op)
	}

	rep.Result = result
	rep.Answer = answer
	if err != nil {
		rep.Error = err.Error()
	}
	rep.Failures = check(step.Expect, result, answer, err)
	rep.Passed = len(rep.Failures) == 0
	return rep
}

func startStep(ctx context.Context, m process.Manager, step Step) (*process.Result, error) {
	p, err := m.Start(ctx, step.Argv(), step.RunOptions()...)
	if err != nil {
		return nil, err
	}

	stdin := p.Stdin()
	if step.Stdin != "" {
		if _, err := io.WriteString(stdin, step.Stdin); err != nil {
			return nil, fmt.Errorf("writing stdin: %w", err)
		}
	}
	if err := stdin.Close(); err != nil {
		return nil, fmt.Errorf("closing stdin: %w", err)
	}

	code, err := p.ExitCode(ctx)
	if err != nil {
		return nil, err
	}
	stdout, err := process.ReadAll(ctx, p.Stdout())
	if err != nil {
		return nil, err
	}
	stderr, err := process.ReadAll(ctx, p.Stderr())
	if err != nil {
		return nil, err
	}

	return &process.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
}

// check compares a step's outcome with its expectation
func check(exp *Expectation, result *process.Result, answer *bool, err error) []string {
	if exp == nil {
		if err != nil {
			return []string{"unexpected error: " + err.Error()}
		}
		return nil
	}

	if exp.Error {
		if err == nil {
			return []string{"expected an error, got none"}
		}
		return nil
	}
	if err != nil {
		return []string{"unexpected error: " + err.Error()}
	}

	var failures []string
	if result != nil {
		if exp.ExitCode != nil && *exp.ExitCode != result.ExitCode {
			failures = append(failures, fmt.Sprintf("exit code: expected %d, got %d", *exp.ExitCode, result.ExitCode))
		}
		if exp.Stdout != nil && *exp.Stdout != result.Stdout {
			failures = append(failures, fmt.Sprintf("stdout: expected %q, got %q", *exp.Stdout, result.Stdout))
		}
		if exp.Stderr != nil && *exp.Stderr != result.Stderr {
			failures = append(failures, fmt.Sprintf("stderr: expected %q, got %q", *exp.Stderr, result.Stderr))
		}
	}
	if answer != nil && exp.Result != nil && *exp.Result != *answer {
		failures = append(failures, fmt.Sprintf("result: expected %t, got %t", *exp.Result, *answer))
	}
	return failures
}
