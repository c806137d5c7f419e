package main

import (
	"fmt"

	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"github.com/spf13/cobra"
)

var (
	listFolder    string
	listMax       int64
	listPageToken string
	listSince     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List message summaries in a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adapter, err := newAdapter(ctx)
		if err != nil {
			return err
		}

		query := "label:" + listFolder

		if listSince != "" {
			since, err := parseDateTime(listSince)
			if err != nil {
				return mailerr.Wrap(mailerr.CodeUsage, err, "invalid --since value")
			}

			query = fmt.Sprintf("%s after:%s", query, since.Format("2006/01/02"))
		}

		ids, next, err := adapter.ListIds(ctx, query, listPageToken, listMax)
		if err != nil {
			return err
		}

		summaries, err := adapter.BatchGetSummaries(ctx, ids)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(struct {
				Messages      []models.Summary `json:"messages"`
				NextPageToken string           `json:"next_page_token,omitempty"`
			}{summaries, next})
		}

		for _, s := range summaries {
			renderSummaryLine(s)
		}

		if next != "" {
			fmt.Printf("\nMore results: --page-token %s\n", next)
		}

		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFolder, "folder", "INBOX", "Label to list")
	listCmd.Flags().Int64Var(&listMax, "max", 25, "Maximum number of messages")
	listCmd.Flags().StringVar(&listPageToken, "page-token", "", "Continue from a previous page")
	listCmd.Flags().StringVar(&listSince, "since", "", "Restrict to messages after a date (ISO, '7d', 'last week', ...)")

	rootCmd.AddCommand(listCmd)
}
