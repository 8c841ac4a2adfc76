package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paveg/procfake/internal/state"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <transcript.json> [command line]...",
	Short: "Verify the calls recorded in a saved transcript",
	Long: `Verify loads a transcript written by "replay --save" and checks that its
recorded calls match the given command lines exactly, in order. Each
command line is split on single spaces. Passing no command lines asserts
that nothing was called.

Examples:
  procfake verify git-run.json "git status" "git add ."
  procfake verify git-run.json --json "git status"`,
	Args: minArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	AddCommonJSONFlag(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	path := sess.cfg.TranscriptPath(args[0])
	store, err := state.NewJSONStore(path)
	if err != nil {
		sess.output.PrintError("Failed to open transcript", err)
		return err
	}

	transcript, err := store.Load()
	if err != nil {
		sess.output.PrintError("Failed to load transcript", err)
		return err
	}
	if err := store.ValidateState(); err != nil {
		sess.output.PrintError("Invalid transcript", err)
		return err
	}

	expected := args[1:]
	if err := transcript.Verify(expected); err != nil {
		sess.output.PrintError("Calls do not match", err)
		return err
	}

	sess.output.PrintSuccess("Calls match", map[string]any{
		"transcript": path,
		"run_id":     transcript.Metadata.RunID,
		"calls":      len(expected),
	})
	return nil
}
