package main

import (
	"context"
	"fmt"
	"time"

	"mail-cli/internal/workflow"
	"mail-cli/pkg/models"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Manage and run triage workflows",
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflow definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workflow.NewDefinitionStore()
		if err != nil {
			return err
		}

		defs, err := store.List()
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(defs)
		}

		for _, def := range defs {
			fmt.Printf("%-20s %s\n", def.Name, def.Query)
		}

		return nil
	},
}

var workflowsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workflow.NewDefinitionStore()
		if err != nil {
			return err
		}

		def, err := store.Get(args[0])
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(def)
		}

		fmt.Printf("Name:           %s\n", def.Name)
		fmt.Printf("Query:          %s\n", def.Query)
		fmt.Printf("Auto mark read: %v\n", def.AutoMarkRead)

		if def.Description != "" {
			fmt.Printf("Description:    %s\n", def.Description)
		}

		return nil
	},
}

var (
	workflowsCreateQuery        string
	workflowsCreateAutoMarkRead bool
	workflowsCreateDescription  string
)

var workflowsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workflow.NewDefinitionStore()
		if err != nil {
			return err
		}

		def := workflow.Definition{
			Name:         args[0],
			Query:        workflowsCreateQuery,
			AutoMarkRead: workflowsCreateAutoMarkRead,
			Description:  workflowsCreateDescription,
		}

		if err := store.Create(def); err != nil {
			return err
		}

		if jsonMode() {
			return printResult(def)
		}

		fmt.Printf("Workflow '%s' created.\n", def.Name)

		return nil
	},
}

var workflowsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workflow.NewDefinitionStore()
		if err != nil {
			return err
		}

		if err := store.Delete(args[0]); err != nil {
			return err
		}

		if jsonMode() {
			return printResult(map[string]string{"workflow": args[0], "status": "deleted"})
		}

		fmt.Printf("Workflow '%s' deleted.\n", args[0])

		return nil
	},
}

var workflowsStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a session and print its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		resp, err := engine.Start(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonMode() {
			return printJSON(resp)
		}

		fmt.Printf("Token: %s\n", resp.Token)
		fmt.Printf("Progress: %s\n", renderProgress(resp.Progress))

		if resp.Completed {
			fmt.Println("No messages matched; session already completed.")
		} else if resp.Email != nil {
			fmt.Println()
			renderSummary(*resp.Email)
		}

		return nil
	},
}

var continueBody string

var workflowsContinueCmd = &cobra.Command{
	Use:   "continue <token> <action>",
	Short: "Apply one action (view, archive, skip, reply, quit) to a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		action, err := workflow.ParseAction(args[1], continueBody)
		if err != nil {
			return err
		}

		engine, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		resp, err := engine.Continue(ctx, args[0], action)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printJSON(resp)
		}

		renderContinue(resp)

		return nil
	},
}

var workflowsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a workflow interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		start, err := engine.Start(ctx, args[0])
		if err != nil {
			return err
		}

		if start.Completed {
			fmt.Println("No messages matched.")

			return nil
		}

		fmt.Printf("Progress: %s\n\n", renderProgress(start.Progress))
		renderSummary(*start.Email)

		return runLoop(ctx, engine, start.Token)
	},
}

// runLoop drives the interactive session until it completes, terminates, or
// an action fails.
func runLoop(ctx context.Context, engine *workflow.Engine, token string) error {
	for {
		var choice string

		err := huh.NewSelect[string]().
			Title("Action").
			Options(
				huh.NewOption("View full message", string(workflow.ActionView)),
				huh.NewOption("Archive", string(workflow.ActionArchive)),
				huh.NewOption("Skip", string(workflow.ActionSkip)),
				huh.NewOption("Reply", string(workflow.ActionReply)),
				huh.NewOption("Quit", string(workflow.ActionQuit)),
			).
			Value(&choice).
			Run()
		if err != nil {
			return err
		}

		body := ""

		if choice == string(workflow.ActionReply) {
			if err := huh.NewText().Title("Reply body").Value(&body).Run(); err != nil {
				return err
			}
		}

		action, err := workflow.ParseAction(choice, body)
		if err != nil {
			return err
		}

		resp, err := engine.Continue(ctx, token, action)
		if err != nil {
			return err
		}

		renderContinue(resp)

		if resp.Terminated || resp.Completed {
			return nil
		}
	}
}

func renderContinue(resp *workflow.ContinueResponse) {
	if resp.Terminated {
		fmt.Println("Session terminated.")

		return
	}

	fmt.Printf("Progress: %s\n", renderProgress(resp.Progress))

	if resp.Warning != "" {
		fmt.Printf("Warning: %s\n", resp.Warning)
	}

	if resp.Completed {
		fmt.Println("All messages processed.")

		return
	}

	switch email := resp.Email.(type) {
	case models.Full:
		fmt.Println()
		renderFull(email)
	case models.Summary:
		fmt.Println()
		renderSummary(email)
	}
}

var workflowsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired and unreadable session files",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := workflow.NewStateStore()
		if err != nil {
			return err
		}

		removed, err := states.Cleanup(time.Now())
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(map[string]int{"removed": removed})
		}

		fmt.Printf("Removed %d stale session file(s).\n", removed)

		return nil
	},
}

func buildEngine(ctx context.Context) (*workflow.Engine, error) {
	adapter, err := newAdapter(ctx)
	if err != nil {
		return nil, err
	}

	return newEngine(adapter)
}

func init() {
	workflowsCreateCmd.Flags().StringVar(&workflowsCreateQuery, "query", "", "Gmail query selecting the session's messages")
	workflowsCreateCmd.Flags().BoolVar(&workflowsCreateAutoMarkRead, "auto-mark-read", false, "Mark messages read as they are processed")
	workflowsCreateCmd.Flags().StringVar(&workflowsCreateDescription, "description", "", "Human-readable description")
	workflowsCreateCmd.MarkFlagRequired("query")

	workflowsContinueCmd.Flags().StringVarP(&continueBody, "body", "b", "", "Reply body (for the reply action)")

	workflowsCmd.AddCommand(workflowsListCmd, workflowsShowCmd, workflowsCreateCmd,
		workflowsDeleteCmd, workflowsStartCmd, workflowsContinueCmd,
		workflowsRunCmd, workflowsCleanupCmd)
	rootCmd.AddCommand(workflowsCmd)
}
