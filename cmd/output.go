package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"mail-cli/pkg/mailerr"
)

func jsonMode() bool { return outputFormat == "json" }

// printJSON writes exactly one JSON document on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	fmt.Println(string(data))

	return nil
}

// envelope is the generic success document for commands without a dedicated
// response shape.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func printResult(v any) error {
	return printJSON(envelope{Success: true, Data: v})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// exitWithError renders the failure in the selected output mode and exits
// with the code mapped from the error taxonomy.
func exitWithError(err error) {
	code := mailerr.CodeOf(err)

	var me *mailerr.Error
	message := err.Error()
	hint := ""

	if errors.As(err, &me) {
		message = me.Message
		hint = me.Hint
	}

	if code == "" && looksLikeUsageError(err) {
		code = mailerr.CodeUsage
		err = mailerr.New(mailerr.CodeUsage, "%s", message)
	}

	if jsonMode() {
		printJSON(errorEnvelope{Error: errorBody{
			Code:    string(code),
			Message: message,
			Hint:    hint,
		}})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)

		if hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", hint)
		}
	}

	os.Exit(mailerr.ExitCode(err))
}

// looksLikeUsageError classifies cobra's own flag and argument errors, which
// carry no code of their own.
func looksLikeUsageError(err error) bool {
	msg := err.Error()

	for _, marker := range []string{"unknown flag", "unknown command", "required flag", "accepts ", "invalid argument"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
