package main

import (
	"fmt"

	"mail-cli/internal/styles"
	"mail-cli/pkg/mailerr"

	"github.com/spf13/cobra"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "Manage writing-style documents",
}

var stylesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all styles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		names, err := store.List()
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(names)
		}

		for _, name := range names {
			fmt.Println(name)
		}

		return nil
	},
}

var stylesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a parsed style",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		if jsonMode() {
			style, err := store.Show(args[0])
			if err != nil {
				return err
			}

			return printResult(style)
		}

		content, err := store.Read(args[0])
		if err != nil {
			return err
		}

		fmt.Print(content)

		return nil
	},
}

var stylesSkipValidation bool

var stylesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a style from the canonical template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		if err := store.Create(args[0], stylesSkipValidation); err != nil {
			return err
		}

		return reportStyleChange(args[0], "created")
	},
}

var stylesEditSkipValidation bool

var stylesEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a style in $EDITOR, validating afterwards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		if err := store.Edit(args[0], stylesEditSkipValidation); err != nil {
			return err
		}

		return reportStyleChange(args[0], "updated")
	},
}

var stylesDeleteForce bool

var stylesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a style (a backup is written first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stylesDeleteForce && !confirmDestructive(fmt.Sprintf("Delete style '%s'?", args[0])) {
			fmt.Println("Cancelled.")

			return nil
		}

		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		if err := store.Delete(args[0]); err != nil {
			return err
		}

		return reportStyleChange(args[0], "deleted")
	},
}

var stylesFix bool

var stylesValidateCmd = &cobra.Command{
	Use:   "validate <name>",
	Short: "Lint one style, optionally applying the whitespace auto-fix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		report, err := store.ValidateStyle(args[0], stylesFix)
		if err != nil {
			return err
		}

		return renderLintReport(args[0], report)
	},
}

var stylesValidateAllCmd = &cobra.Command{
	Use:   "validate-all",
	Short: "Lint every style",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := styles.NewStore()
		if err != nil {
			return err
		}

		names, err := store.List()
		if err != nil {
			return err
		}

		reports := make(map[string]styles.Report, len(names))
		failed := false

		for _, name := range names {
			report, err := store.ValidateStyle(name, stylesFix)
			if err != nil {
				return err
			}

			reports[name] = report

			if !report.OK {
				failed = true
			}
		}

		if jsonMode() {
			if err := printResult(reports); err != nil {
				return err
			}
		} else {
			for _, name := range names {
				report := reports[name]
				if report.OK {
					fmt.Printf("%-30s ok\n", name)

					continue
				}

				fmt.Printf("%-30s FAILED\n", name)

				for _, v := range report.Errors {
					printViolation(v)
				}
			}
		}

		if failed {
			return mailerr.New(mailerr.CodeValidation, "one or more styles failed validation")
		}

		return nil
	},
}

func renderLintReport(name string, report styles.Report) error {
	if jsonMode() {
		if err := printJSON(report); err != nil {
			return err
		}
	} else if report.OK {
		if report.Fixed != "" {
			fmt.Printf("%s: fixed and valid\n", name)
		} else {
			fmt.Printf("%s: valid\n", name)
		}
	} else {
		fmt.Printf("%s: %d violation(s)\n", name, len(report.Errors))

		for _, v := range report.Errors {
			printViolation(v)
		}
	}

	if !report.OK {
		return mailerr.New(mailerr.CodeValidation, "style '%s' failed validation", name)
	}

	return nil
}

func printViolation(v styles.Violation) {
	if v.Line > 0 {
		fmt.Printf("  %s line %d: %s\n", v.Rule, v.Line, v.Message)
	} else {
		fmt.Printf("  %s: %s\n", v.Rule, v.Message)
	}
}

func reportStyleChange(name, verb string) error {
	if jsonMode() {
		return printResult(map[string]string{"style": name, "status": verb})
	}

	fmt.Printf("Style '%s' %s.\n", name, verb)

	return nil
}

func init() {
	stylesCreateCmd.Flags().BoolVar(&stylesSkipValidation, "skip-validation", false, "Skip post-create validation")
	stylesEditCmd.Flags().BoolVar(&stylesEditSkipValidation, "skip-validation", false, "Skip post-edit validation")
	stylesDeleteCmd.Flags().BoolVar(&stylesDeleteForce, "force", false, "Skip confirmation")
	stylesValidateCmd.Flags().BoolVar(&stylesFix, "fix", false, "Apply the whitespace auto-fix")
	stylesValidateAllCmd.Flags().BoolVar(&stylesFix, "fix", false, "Apply the whitespace auto-fix")

	stylesCmd.AddCommand(stylesListCmd, stylesShowCmd, stylesCreateCmd,
		stylesEditCmd, stylesDeleteCmd, stylesValidateCmd, stylesValidateAllCmd)
	rootCmd.AddCommand(stylesCmd)
}
