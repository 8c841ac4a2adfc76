package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paveg/procfake/internal/scenario"
)

var checkCmd = &cobra.Command{
	Use:   "check <scenario.yml>",
	Short: "Validate a scenario without replaying it",
	Long: `Check loads a scenario file and validates it: known step ops, a
command for every spawning step, stdin only on start steps and well-formed
results. Nothing is replayed.

Examples:
  procfake check git.yml
  procfake check git.yml --json`,
	Args: minArgs(1),
	RunE: runCheck,
}

// scenarioSummary is the machine-readable result of check
type scenarioSummary struct {
	Path        string         `json:"path"`
	Name        string         `json:"name,omitempty"`
	Steps       int            `json:"steps"`
	Results     map[string]int `json:"results"`
	ExpectCalls []string       `json:"expect_calls,omitempty"`
	Valid       bool           `json:"valid"`
}

func init() {
	rootCmd.AddCommand(checkCmd)

	AddCommonJSONFlag(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	s, err := scenario.Load(args[0])
	if err != nil {
		sess.output.PrintError("Invalid scenario", err)
		return err
	}

	summary := scenarioSummary{
		Path:        args[0],
		Name:        s.Name,
		Steps:       len(s.Steps),
		Results:     make(map[string]int, len(s.Results)),
		ExpectCalls: s.ExpectCalls,
		Valid:       true,
	}
	for key, results := range s.Results {
		summary.Results[key] = len(results)
	}

	if sess.output.JSONOutput {
		return sess.output.PrintJSON(summary)
	}

	sess.output.Printf("Scenario %s is valid\n", args[0])
	if s.Name != "" {
		sess.output.Printf("  Name: %s\n", s.Name)
	}
	sess.output.Printf("  Steps: %d\n", summary.Steps)
	sess.output.Printf("  Commands with results: %d\n", len(summary.Results))
	if s.ExpectCalls != nil {
		sess.output.Printf("  Expected calls: %d\n", len(s.ExpectCalls))
	}
	return nil
}
