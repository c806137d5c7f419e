package main

import (
	"fmt"

	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"github.com/spf13/cobra"
)

var (
	searchMax   int64
	searchSince string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search messages with Gmail query syntax",
	Long: `Search messages using Gmail's query syntax, e.g.:

  mail search 'from:alice@example.com is:unread'
  mail search 'subject:invoice' --since '2 weeks ago'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		query := args[0]

		if searchSince != "" {
			since, err := parseDateTime(searchSince)
			if err != nil {
				return mailerr.Wrap(mailerr.CodeUsage, err, "invalid --since value")
			}

			query = fmt.Sprintf("%s after:%s", query, since.Format("2006/01/02"))
		}

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		ids, next, err := adapter.ListIds(ctx, query, "", searchMax)
		if err != nil {
			return err
		}

		summaries, err := adapter.BatchGetSummaries(ctx, ids)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(struct {
				Query         string           `json:"query"`
				Messages      []models.Summary `json:"messages"`
				NextPageToken string           `json:"next_page_token,omitempty"`
			}{query, summaries, next})
		}

		for _, s := range summaries {
			renderSummaryLine(s)
		}

		if len(summaries) == 0 {
			fmt.Println("No messages matched.")
		}

		return nil
	},
}

func init() {
	searchCmd.Flags().Int64Var(&searchMax, "max", 25, "Maximum number of messages")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "Restrict to messages after a date (ISO, '7d', 'last week', ...)")

	rootCmd.AddCommand(searchCmd)
}
