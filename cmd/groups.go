package main

import (
	"encoding/json"
	"fmt"
	"os"

	"mail-cli/internal/groups"
	"mail-cli/pkg/mailerr"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage named recipient groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		all, err := store.List()
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(all)
		}

		for _, g := range all {
			fmt.Printf("%-20s %d member(s)\n", g.Name, len(g.Members))
		}

		return nil
	},
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one group's members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		g, err := store.Get(args[0])
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(g)
		}

		fmt.Println(g.Name)

		for _, m := range g.Members {
			fmt.Printf("  %s\n", m.Spec())
		}

		return nil
	},
}

var (
	groupsCreateEmails   []string
	groupsCreateJSONPath string
	groupsCreateForce    bool
)

var groupsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group from addresses or a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		members := groupsCreateEmails

		if groupsCreateJSONPath != "" {
			fromFile, err := readMembersJSON(groupsCreateJSONPath)
			if err != nil {
				return err
			}

			members = append(members, fromFile...)
		}

		if len(members) == 0 {
			return mailerr.New(mailerr.CodeUsage, "provide members via --emails or --json-input-path")
		}

		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		if err := store.Create(args[0], members, groupsCreateForce); err != nil {
			return err
		}

		return reportGroupChange(args[0], "created")
	},
}

// readMembersJSON accepts either a bare JSON array of addresses or an
// object with an "emails" array.
func readMembersJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read %s", path)
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Emails []string `json:"emails"`
	}

	if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.Emails) == 0 {
		return nil, mailerr.New(mailerr.CodeValidation,
			"%s is not a JSON address array or {\"emails\": [...]} object", path)
	}

	return wrapped.Emails, nil
}

var groupsAddCmd = &cobra.Command{
	Use:   "add <name> <email>",
	Short: "Add an address to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		if err := store.AddMember(args[0], args[1]); err != nil {
			return err
		}

		return reportGroupChange(args[0], "updated")
	},
}

var groupsRemoveForce bool

var groupsRemoveCmd = &cobra.Command{
	Use:   "remove <name> <email>",
	Short: "Remove an address from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !groupsRemoveForce && !confirmDestructive(fmt.Sprintf("Remove %s from '%s'?", args[1], args[0])) {
			fmt.Println("Cancelled.")

			return nil
		}

		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		if err := store.RemoveMember(args[0], args[1]); err != nil {
			return err
		}

		return reportGroupChange(args[0], "updated")
	},
}

var groupsDeleteForce bool

var groupsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a group (a backup is written first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !groupsDeleteForce && !confirmDestructive(fmt.Sprintf("Delete group '%s'?", args[0])) {
			fmt.Println("Cancelled.")

			return nil
		}

		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		if err := store.Delete(args[0]); err != nil {
			return err
		}

		return reportGroupChange(args[0], "deleted")
	},
}

var groupsValidateCmd = &cobra.Command{
	Use:   "validate [<name>]",
	Short: "Check groups for malformed addresses and duplicates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := groups.NewStore()
		if err != nil {
			return err
		}

		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		verdicts, err := store.Validate(name)
		if err != nil {
			return err
		}

		if jsonMode() {
			return printResult(verdicts)
		}

		failed := false

		for _, v := range verdicts {
			if v.OK {
				fmt.Printf("%-20s ok\n", v.Name)

				continue
			}

			failed = true

			fmt.Printf("%-20s FAILED\n", v.Name)

			for _, p := range v.Problems {
				fmt.Printf("  %s\n", p)
			}
		}

		if failed {
			return mailerr.New(mailerr.CodeValidation, "one or more groups failed validation")
		}

		return nil
	},
}

func reportGroupChange(name, verb string) error {
	if jsonMode() {
		return printResult(map[string]string{"group": name, "status": verb})
	}

	fmt.Printf("Group '%s' %s.\n", name, verb)

	return nil
}

func init() {
	groupsCreateCmd.Flags().StringArrayVar(&groupsCreateEmails, "emails", nil, "Member address (repeatable)")
	groupsCreateCmd.Flags().StringVar(&groupsCreateJSONPath, "json-input-path", "", "JSON file with member addresses")
	groupsCreateCmd.Flags().BoolVar(&groupsCreateForce, "force", false, "Overwrite an existing group")

	groupsRemoveCmd.Flags().BoolVar(&groupsRemoveForce, "force", false, "Skip confirmation")
	groupsDeleteCmd.Flags().BoolVar(&groupsDeleteForce, "force", false, "Skip confirmation")

	groupsCmd.AddCommand(groupsListCmd, groupsShowCmd, groupsCreateCmd,
		groupsAddCmd, groupsRemoveCmd, groupsDeleteCmd, groupsValidateCmd)
	rootCmd.AddCommand(groupsCmd)
}
