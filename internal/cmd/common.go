// Package cmd implements the procfake command line using cobra.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paveg/procfake/internal/config"
	"github.com/paveg/procfake/internal/logging"
)

// Common error definitions
var (
	ErrNotInJSONMode = errors.New("not in JSON mode")
	ErrReplayFailed  = errors.New("replay failed")
)

// Common variables used across multiple commands
var (
	jsonOutput bool
	verbose    bool
	cfgFile    string
)

// OutputHandler provides common output formatting
type OutputHandler struct {
	JSONOutput bool
	Out        io.Writer
}

// NewOutputHandler creates a new output handler writing to out
func NewOutputHandler(jsonOutput bool, out io.Writer) *OutputHandler {
	return &OutputHandler{JSONOutput: jsonOutput, Out: out}
}

// PrintJSON outputs data as JSON or returns error
func (oh *OutputHandler) PrintJSON(data any) error {
	if !oh.JSONOutput {
		return ErrNotInJSONMode
	}

	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	fmt.Fprintln(oh.Out, string(output))
	return nil
}

// PrintError prints error message consistently
func (oh *OutputHandler) PrintError(msg string, err error) {
	if oh.JSONOutput {
		errorData := map[string]any{
			"error":   true,
			"message": msg,
		}
		if err != nil {
			errorData["details"] = err.Error()
		}
		_ = oh.PrintJSON(errorData) //nolint:errcheck // JSON marshal error in error handler should not cause panic
		return
	}

	if err != nil {
		fmt.Fprintf(oh.Out, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(oh.Out, "Error: %s\n", msg)
	}
}

// PrintSuccess prints success message consistently
func (oh *OutputHandler) PrintSuccess(msg string, data ...any) {
	if oh.JSONOutput {
		result := map[string]any{
			"success": true,
			"message": msg,
		}
		if len(data) > 0 {
			result["data"] = data[0]
		}
		_ = oh.PrintJSON(result) //nolint:errcheck // JSON marshal error in success handler should not cause panic
		return
	}

	fmt.Fprintln(oh.Out, msg)
}

// Printf writes human-readable output; it is silent in JSON mode
func (oh *OutputHandler) Printf(format string, args ...any) {
	if oh.JSONOutput {
		return
	}
	fmt.Fprintf(oh.Out, format, args...)
}

// session bundles what every command needs after config is loaded
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	output *OutputHandler
}

// loadSession loads and validates config, then builds the logger and output handler
func loadSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Default.LogLevel
	if verbose {
		level = "debug"
	}

	return &session{
		cfg:    cfg,
		logger: logging.New(cmd.ErrOrStderr(), level, cfg.Default.LogFormat),
		output: NewOutputHandler(jsonOutput, cmd.OutOrStdout()),
	}, nil
}

// ErrInsufficientArgs represents argument validation error
type ErrInsufficientArgs struct {
	Required int
	Got      int
	Usage    string
}

func (e ErrInsufficientArgs) Error() string {
	return fmt.Sprintf("requires at least %d argument(s), got %d\nUsage: %s", e.Required, e.Got, e.Usage)
}

// ValidateArgs validates that required arguments are provided
func ValidateArgs(cmd *cobra.Command, args []string, minArgs int) error {
	if len(args) < minArgs {
		return ErrInsufficientArgs{
			Required: minArgs,
			Got:      len(args),
			Usage:    cmd.UseLine(),
		}
	}
	return nil
}

// minArgs adapts ValidateArgs to cobra's Args hook
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return ValidateArgs(cmd, args, n)
	}
}

// AddCommonJSONFlag adds the standard JSON output flag to a command
func AddCommonJSONFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func indent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "    " + strings.Join(lines, "\n    ") + "\n"
}
