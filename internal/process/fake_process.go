package process

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"

	"github.com/paveg/procfake/internal/capture"
)

// FakePID is the pid reported by every FakeProcess. It is not unique.
const FakePID = 12345

// Compile-time check that FakeProcess implements Process.
var _ Process = (*FakeProcess)(nil)

// FakeProcess is a spawned command whose outcome was fixed at construction
type FakeProcess struct {
	result Result
	stdin  *capture.Sink

	stdoutOnce sync.Once
	stdout     chan []byte
	stderrOnce sync.Once
	stderr     chan []byte
}

// NewFakeProcess binds result to a process whose stdin feeds sink
func NewFakeProcess(result Result, sink *capture.Sink) *FakeProcess {
	return &FakeProcess{result: result, stdin: sink}
}

// PID returns FakePID
func (p *FakeProcess) PID() int {
	return FakePID
}

// ExitCode returns the bound exit code without waiting on anything
func (p *FakeProcess) ExitCode(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("exit code: %w", err)
	}
	return p.result.ExitCode, nil
}

// Stdout emits the bound stdout as one chunk, then closes.
// The channel is created on first use and never refilled.
func (p *FakeProcess) Stdout() <-chan []byte {
	p.stdoutOnce.Do(func() {
		p.stdout = singleChunk(p.result.Stdout)
	})
	return p.stdout
}

// Stderr emits the bound stderr as one chunk, then closes
func (p *FakeProcess) Stderr() <-chan []byte {
	p.stderrOnce.Do(func() {
		p.stderr = singleChunk(p.result.Stderr)
	})
	return p.stderr
}

// Stdin returns the process input. Close it to flush captured text.
func (p *FakeProcess) Stdin() io.WriteCloser {
	return p.stdin
}

// Kill always succeeds and changes nothing
func (p *FakeProcess) Kill(_ syscall.Signal) bool {
	return true
}

// Output drains stdout and stderr
func (p *FakeProcess) Output(ctx context.Context) (string, string, error) {
	stdout, err := ReadAll(ctx, p.Stdout())
	if err != nil {
		return "", "", err
	}
	stderr, err := ReadAll(ctx, p.Stderr())
	if err != nil {
		return "", "", err
	}
	return stdout, stderr, nil
}

func singleChunk(text string) chan []byte {
	ch := make(chan []byte, 1)
	ch <- []byte(text)
	close(ch)
	return ch
}

// ReadAll concatenates chunks from ch until it is closed or ctx is done
func ReadAll(ctx context.Context, ch <-chan []byte) (string, error) {
	var b strings.Builder
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return b.String(), nil
			}
			b.Write(chunk)
		case <-ctx.Done():
			return "", fmt.Errorf("reading output: %w", ctx.Err())
		}
	}
}
