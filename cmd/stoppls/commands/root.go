// Package commands implements the stoppls CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/stoppls/internal/model"
)

var (
	// configPath is the application configuration file.
	configPath string

	// rulesPath overrides the rule configuration file from the config.
	rulesPath string

	// verbose enables debug logging.
	verbose bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "stoppls",
	Short: "AI-assisted email monitoring and triage",
	Long: `StopPls watches a mailbox, evaluates incoming messages against
natural-language rules using an AI backend, and replies to, archives,
or labels the messages that match.

Rules live in a YAML file; each rule carries a plain-English matching
criterion and the actions to take when it matches.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"Path to the configuration file",
	)
	rootCmd.PersistentFlags().StringVar(
		&rulesPath, "rules", "",
		"Path to the rules file (default: from config)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"Enable debug logging",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(credentialsCmd)
}
