package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/stretchr/testify/assert"

	"github.com/paveg/procfake/internal/capture"
)

// Compile-time check that FakeManager implements Manager.
var _ Manager = (*FakeManager)(nil)

// FakeManager is a Manager that never runs anything. Each call is recorded and
// answered with the next canned result registered for its command line.
type FakeManager struct {
	mutex    sync.RWMutex
	queue    *resultQueue
	recorder recorder

	onStdin     func(string)
	stdinBuffer int
	logger      *slog.Logger
}

// FakeOption configures a FakeManager
type FakeOption func(*FakeManager)

// WithStdinHandler sets the callback that receives text written to any spawned process's stdin
func WithStdinHandler(fn func(string)) FakeOption {
	return func(m *FakeManager) {
		m.onStdin = fn
	}
}

// WithStdinBuffer sets how many stdin chunks are queued before writes block
func WithStdinBuffer(n int) FakeOption {
	return func(m *FakeManager) {
		m.stdinBuffer = n
	}
}

// WithLogger sets the logger used for per-call debug output
func WithLogger(logger *slog.Logger) FakeOption {
	return func(m *FakeManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewFakeManager creates a FakeManager with no registered results
func NewFakeManager(opts ...FakeOption) *FakeManager {
	m := &FakeManager{
		queue:       newResultQueue(),
		stdinBuffer: capture.DefaultBuffer,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetResults replaces all registered results. Each stdout text becomes one
// result with exit code 0 and empty stderr, consumed in order.
func (m *FakeManager) SetResults(outputs map[string][]string) {
	m.SetResultSet(stdoutResults(outputs))
}

// SetResultSet replaces all registered results with full results
func (m *FakeManager) SetResultSet(results map[string][]Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.queue.register(results)
}

// Start records the call and returns a process bound to the next result
func (m *FakeManager) Start(ctx context.Context, args []string, opts ...RunOption) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("start %q: %w", CommandKey(args), err)
	}

	result, err := m.resolve(OpStart, args, opts)
	if err != nil {
		return nil, err
	}

	stdin := capture.New(m.onStdin, capture.WithBuffer(m.stdinBuffer))
	return NewFakeProcess(result, stdin.Sink()), nil
}

// Run records the call and returns the next result
func (m *FakeManager) Run(ctx context.Context, args []string, opts ...RunOption) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("run %q: %w", CommandKey(args), err)
	}
	return m.resolve(OpRun, args, opts)
}

// RunSync records the call and returns the next result
func (m *FakeManager) RunSync(args []string, opts ...RunOption) (Result, error) {
	return m.resolve(OpRunSync, args, opts)
}

// CanRun always reports true. Executability is not modeled.
func (m *FakeManager) CanRun(path string, _ ...RunOption) bool {
	m.logger.Debug("fake: can run", "path", path)
	return true
}

// KillPID always reports true and affects no FakeProcess
func (m *FakeManager) KillPID(pid int, sig syscall.Signal) bool {
	m.logger.Debug("fake: kill pid", "pid", pid, "signal", int(sig))
	return true
}

// resolve records the invocation and pops its result under one lock so that
// per-key FIFO order and recorder order agree under concurrent callers.
func (m *FakeManager) resolve(op Op, args []string, opts []RunOption) (Result, error) {
	inv := newInvocation(op, args, applyRunOptions(opts))
	key := inv.CommandLine()

	m.mutex.Lock()
	m.recorder.record(inv)
	result, err := m.queue.pop(key)
	remaining := m.queue.remaining(key)
	m.mutex.Unlock()

	if err != nil {
		m.logger.Debug("fake: unprovisioned call", "op", op, "cmd", key, "error", err)
		return Result{}, err
	}

	m.logger.Debug("fake: call", "op", op, "cmd", key, "exit_code", result.ExitCode, "remaining", remaining)
	return result, nil
}

// Invocations returns a copy of every recorded call, in call order
func (m *FakeManager) Invocations() []Invocation {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.recorder.all()
}

// CommandLines returns the recorded calls as command lines, in call order
func (m *FakeManager) CommandLines() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.recorder.commandLines()
}

// VerifyCalls fails unless the recorded calls equal expected, element-wise and in count
func (m *FakeManager) VerifyCalls(expected []string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.recorder.verify(expected)
}

// AssertCalls reports a VerifyCalls failure through t
func (m *FakeManager) AssertCalls(t assert.TestingT, expected ...string) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if err := m.VerifyCalls(expected); err != nil {
		return assert.Fail(t, "unexpected process calls", err.Error())
	}
	return true
}

// Remaining returns how many results are still queued for the command line
func (m *FakeManager) Remaining(commandLine string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.queue.remaining(commandLine)
}

// Pending returns every command line that still has results queued
func (m *FakeManager) Pending() map[string]int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.queue.pending()
}

// AssertAllConsumed fails t if any registered result was never used
func (m *FakeManager) AssertAllConsumed(t assert.TestingT) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return assert.Empty(t, m.Pending(), "registered results were not consumed")
}

// Reset forgets all registered results and recorded calls
func (m *FakeManager) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.queue = newResultQueue()
	m.recorder = recorder{}
}
