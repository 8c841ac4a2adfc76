package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paveg/procfake/internal/config"
)

var (
	configFile  string
	forceConfig bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration procfake runs with: defaults, merged with
$HOME/.procfake.yml (or --config) and PROCFAKE_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to .procfake.yml in the current
directory, or to --file. An existing file is kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	AddCommonJSONFlag(configCmd)
	configInitCmd.Flags().StringVar(&configFile, "file", ".procfake.yml", "configuration file path")
	configInitCmd.Flags().BoolVarP(&forceConfig, "force", "f", false, "overwrite existing configuration")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}

	if sess.output.JSONOutput {
		return sess.output.PrintJSON(map[string]any{
			"config_file": viper.ConfigFileUsed(),
			"default":     sess.cfg.Default,
		})
	}

	d := sess.cfg.Default
	out := sess.output
	configUsed := viper.ConfigFileUsed()
	if configUsed == "" {
		configUsed = "(none, using defaults)"
	}
	out.Printf("Config file: %s\n", configUsed)
	out.Printf("  Log level:      %s\n", d.LogLevel)
	out.Printf("  Log format:     %s\n", d.LogFormat)
	out.Printf("  Transcript dir: %s\n", d.TranscriptDir)
	out.Printf("  Lock file:      %s\n", d.LockFile)
	out.Printf("  Lock timeout:   %s\n", d.LockTimeout)
	out.Printf("  Stdin buffer:   %d\n", d.StdinBuffer)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	out := NewOutputHandler(false, cmd.OutOrStdout())

	if _, err := os.Stat(configFile); err == nil && !forceConfig {
		out.Printf("Configuration file %s already exists. Use --force to overwrite.\n", configFile)
		return nil
	}

	cfg := &config.Config{Default: config.Defaults()}
	if err := cfg.Save(configFile); err != nil {
		out.PrintError("Failed to create configuration file", err)
		return err
	}

	out.Printf("Configuration file created: %s\n", configFile)
	return nil
}
