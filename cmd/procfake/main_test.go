package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain lets the test binary stand in for procfake when re-executed with BE_MAIN=1
func TestMain(m *testing.M) {
	if os.Getenv("BE_MAIN") == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runMain re-executes the test binary as procfake with args
func runMain(t *testing.T, args ...string) (string, int) {
	t.Helper()

	cmd := exec.CommandContext(context.Background(), os.Args[0], args...)
	cmd.Env = append(os.Environ(),
		"BE_MAIN=1",
		"HOME="+t.TempDir(),
		"PROCFAKE_DEFAULT_TRANSCRIPT_DIR="+filepath.Join(t.TempDir(), "transcripts"),
	)
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(output), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return string(output), 0
}

func TestMainFunction(t *testing.T) {
	scenarioPath := filepath.Join(t.TempDir(), "scenario.yml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(`
results:
  "echo hi": ["hi"]
steps:
  - op: run
    command: echo hi
    expect: {stdout: hi}
expect_calls: ["echo hi"]
`), 0o600))

	tests := []struct {
		name           string
		args           []string
		expectExitCode int
		expectOutput   string
	}{
		{
			name:           "help_command",
			args:           []string{"--help"},
			expectExitCode: 0,
			expectOutput:   "Procfake replays",
		},
		{
			name:           "version_command",
			args:           []string{"--version"},
			expectExitCode: 0,
			expectOutput:   "procfake version",
		},
		{
			name:           "replay_passes",
			args:           []string{"replay", scenarioPath},
			expectExitCode: 0,
			expectOutput:   "PASS",
		},
		{
			name:           "invalid_command",
			args:           []string{"invalid-command"},
			expectExitCode: 1,
			expectOutput:   "Error: command execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, code := runMain(t, tt.args...)

			assert.Equal(t, tt.expectExitCode, code)
			assert.Contains(t, output, tt.expectOutput)
		})
	}
}
