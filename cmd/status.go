package main

import (
	"errors"
	"fmt"

	"mail-cli/internal/auth"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify Gmail authorization, running the OAuth flow if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := auth.GetClient(ctx); err != nil {
			var me *mailerr.Error
			if !errors.As(err, &me) || me.Code != mailerr.CodeNotAuthorized {
				return err
			}

			if err := auth.Authorize(ctx); err != nil {
				return err
			}
		}

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		profile, err := adapter.Profile(ctx)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(map[string]string{"email": profile.EmailAddress})
		}

		fmt.Printf("Authorized as %s\n", profile.EmailAddress)

		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authenticated account and per-label message counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		profile, err := adapter.Profile(ctx)
		if err != nil {
			return err
		}

		counts, err := adapter.LabelCounts(ctx)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(struct {
				Email    string              `json:"email"`
				Messages int64               `json:"messages_total"`
				Threads  int64               `json:"threads_total"`
				Labels   []models.LabelCount `json:"labels"`
			}{profile.EmailAddress, profile.MessagesTotal, profile.ThreadsTotal, counts})
		}

		fmt.Printf("Account:  %s\n", profile.EmailAddress)
		fmt.Printf("Messages: %d in %d threads\n\n", profile.MessagesTotal, profile.ThreadsTotal)

		for _, c := range counts {
			fmt.Printf("%-24s %6d total %6d unread\n", c.Name, c.Total, c.Unread)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
}
