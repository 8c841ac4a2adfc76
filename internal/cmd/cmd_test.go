package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: git workflow
results:
  "git status": ["clean"]
  "git add .": ["", ""]
steps:
  - op: run
    args: [git, status]
    expect: {stdout: clean}
  - op: run_sync
    command: git add .
  - op: start
    command: git add .
    stdin: "y"
expect_calls: ["git status", "git add .", "git add ."]
`

const failingScenario = `
name: broken
results:
  "make": [{exit_code: 2, stderr: boom}]
steps:
  - op: run
    command: make
    expect: {exit_code: 0}
expect_calls: ["make test"]
`

// testEnv isolates a command run: its own config file, transcript dir and lock file
type testEnv struct {
	dir           string
	transcriptDir string
}

// Helper function to setup an isolated config for command tests
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{dir: dir, transcriptDir: filepath.Join(dir, "transcripts")}

	configPath := filepath.Join(dir, "procfake.yml")
	content := fmt.Sprintf(`
default:
  log_level: error
  transcript_dir: %q
  lock_file: %q
  lock_timeout: 1s
  stdin_buffer: 4
`, env.transcriptDir, filepath.Join(dir, "procfake.lock"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	viper.Reset()
	cfgFile = configPath
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})

	return env
}

// writeScenario writes a scenario file into the env dir and returns its path
func (e *testEnv) writeScenario(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Helper function to execute the root command and capture its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	jsonOutput = false
	verbose = false
	savePath = ""
	forceConfig = false
	configFile = ".procfake.yml"
	resetBuiltinFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetBuiltinFlags clears cobra's help and version flags, which keep their
// parsed value between executions of the same command tree
func resetBuiltinFlags(c *cobra.Command) {
	for _, name := range []string{"help", "version"} {
		if f := c.Flags().Lookup(name); f != nil {
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // bool flags accept their default
			f.Changed = false
		}
	}
	for _, sub := range c.Commands() {
		resetBuiltinFlags(sub)
	}
}
