package main

import (
	"fmt"

	"mail-cli/pkg/mailerr"

	"github.com/spf13/cobra"
)

var readFormat string

var readCmd = &cobra.Command{
	Use:   "read <message-id>",
	Short: "Read one message as a summary or in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		switch readFormat {
		case "summary":
			summary, err := adapter.GetSummary(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonMode() {
				return printResult(summary)
			}

			renderSummary(summary)

			return nil

		case "full":
			full, err := adapter.GetFull(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonMode() {
				return printResult(full)
			}

			renderFull(full)

			return nil

		default:
			return mailerr.New(mailerr.CodeUsage, "invalid --format '%s': expected summary or full", readFormat)
		}
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <thread-id>",
	Short: "Read every message in a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		fulls, err := adapter.ThreadFulls(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(fulls)
		}

		for i, f := range fulls {
			if i > 0 {
				fmt.Print("\n---\n\n")
			}

			renderFull(f)
		}

		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&readFormat, "format", "full", "Projection: summary or full")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(threadCmd)
}
