package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags
var Version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "procfake",
		Short: "Deterministic process-execution double",
		Long: `Procfake replays scripted process-manager interactions against a
deterministic fake: canned results per command line, recorded calls,
and captured stdin. Nothing is ever spawned.

Scenarios are YAML files listing canned results, the calls to make and
the calls expected afterwards. Replays can be saved as JSON transcripts
and verified later.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose && viper.ConfigFileUsed() != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
			}
		},
	}
)

// Execute runs the root command, cancelling it on interrupt
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.procfake.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".procfake")
	}

	// PROCFAKE_DEFAULT_LOG_LEVEL overrides default.log_level
	viper.SetEnvPrefix("PROCFAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
