package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paveg/procfake/internal/lock"
	"github.com/paveg/procfake/internal/scenario"
	"github.com/paveg/procfake/internal/state"
)

var savePath string

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yml>",
	Short: "Replay a scenario against the fake process manager",
	Long: `Replay runs every step of a scenario against a fresh fake process
manager, compares each step with its expectation and finally checks the
recorded calls against expect_calls.

The command exits non-zero when any step or the call check fails.
With --save the invocations and report are written as a JSON transcript;
relative paths are placed under the configured transcript directory.

Examples:
  procfake replay git.yml
  procfake replay git.yml --json
  procfake replay git.yml --save git-run.json`,
	Args: minArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	AddCommonJSONFlag(replayCmd)
	replayCmd.Flags().StringVar(&savePath, "save", "", "write a JSON transcript to this path")
}

func runReplay(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	scenarioPath := args[0]
	s, err := scenario.Load(scenarioPath)
	if err != nil {
		sess.output.PrintError("Failed to load scenario", err)
		return err
	}

	runner := scenario.NewRunner(
		scenario.WithRunnerLogger(sess.logger),
		scenario.WithRunnerStdinBuffer(sess.cfg.Default.StdinBuffer),
	)

	report, err := runner.Run(cmd.Context(), s)
	if err != nil {
		return fmt.Errorf("replay interrupted: %w", err)
	}

	var transcriptPath string
	if savePath != "" {
		transcriptPath = sess.cfg.TranscriptPath(savePath)
		if err := saveTranscript(cmd.Context(), sess, transcriptPath, scenarioPath, report); err != nil {
			sess.output.PrintError("Failed to save transcript", err)
			return err
		}
	}

	if sess.output.JSONOutput {
		if err := sess.output.PrintJSON(report); err != nil {
			return err
		}
	} else {
		printReport(sess.output, report, transcriptPath)
	}

	if !report.Passed {
		return fmt.Errorf("%w: %s", ErrReplayFailed, failureSummary(report))
	}
	return nil
}

// saveTranscript writes report under the transcript lock, keeping a backup of any previous file
func saveTranscript(ctx context.Context, sess *session, path, scenarioPath string, report *scenario.Report) error {
	return lock.WithLock(ctx, sess.cfg.Default.LockFile, sess.cfg.Default.LockTimeout, "replay "+scenarioPath, func() error {
		store, err := state.NewJSONStore(path)
		if err != nil {
			return err
		}

		backup, err := store.BackupState()
		if err != nil {
			return err
		}
		if backup != "" {
			sess.logger.Info("previous transcript backed up", "path", backup)
		}

		transcript := state.NewTranscript(scenarioPath, report)
		if err := store.Save(transcript); err != nil {
			return err
		}

		sess.logger.Debug("transcript saved", "path", path, "run_id", transcript.Metadata.RunID)
		return nil
	})
}

func printReport(out *OutputHandler, report *scenario.Report, transcriptPath string) {
	name := report.Name
	if name == "" {
		name = "(unnamed)"
	}
	out.Printf("Scenario: %s\n", name)

	for _, st := range report.Steps {
		status := "ok"
		if !st.Passed {
			status = "FAIL"
		}
		out.Printf("  %-4s %d. %s %s\n", status, st.Index, st.Op, st.Command)
		out.Printf("%s", indent(st.Failures))
	}

	out.Printf("Calls recorded: %d\n", len(report.Invocations))
	if len(report.StdinReceived) > 0 {
		out.Printf("Stdin received: %q\n", report.StdinReceived)
	}
	if len(report.Pending) > 0 {
		out.Printf("Unconsumed results: %v\n", report.Pending)
	}
	if report.VerifyError != "" {
		out.Printf("Call check failed: %s\n", strings.TrimSpace(report.VerifyError))
	}
	if transcriptPath != "" {
		out.Printf("Transcript: %s\n", transcriptPath)
	}

	if report.Passed {
		out.Printf("PASS\n")
	} else {
		out.Printf("FAIL: %s\n", failureSummary(report))
	}
}

func failureSummary(report *scenario.Report) string {
	summary := plural(len(report.Failed()), "failed step")
	if report.VerifyError != "" {
		summary += ", call check failed"
	}
	return summary
}
