package main

import (
	"log/slog"
	"os"

	"mail-cli/internal/config"

	"github.com/spf13/cobra"
)

var (
	credentialsPath string
	configDir       string
	debugMode       bool
	outputFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "mail",
	Short: "Command-line Gmail client and automation toolkit",
	Long: `mail is a Gmail client for the terminal: reading, searching and sending
email, plus the automation layer on top of it.

Commands:
  list / search / read / thread   Progressive-disclosure inbox reading
  send / reply                    Composition with preview-first confirmation
  groups                          Named recipient groups (#group expansion)
  styles                          Writing-style documents with a strict linter
  workflows                       Token-addressed triage sessions over a query`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debugMode {
			level = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		if credentialsPath != "" {
			config.SetCustomCredentialsPath(credentialsPath)
		}

		if configDir != "" {
			config.SetCustomConfigDir(configDir)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&credentialsPath, "credentials", "c", "", "Path to credentials.json file")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Custom configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output-format", "o", "rich", "Output format: rich or json")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}
