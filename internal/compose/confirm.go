package compose

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"mail-cli/pkg/interfaces"
)

// NewConfirmer returns the interactive confirmer when stdin is a terminal
// and an always-no confirmer otherwise. Piped input never counts as consent.
func NewConfirmer() interfaces.Confirmer {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return ttyConfirmer{}
	}

	return DenyConfirmer{}
}

type ttyConfirmer struct{}

func (ttyConfirmer) Confirm(prompt string) (bool, error) {
	var ok bool

	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// DenyConfirmer refuses every prompt. Used for non-TTY stdin and as the
// safe default in tests.
type DenyConfirmer struct{}

func (DenyConfirmer) Confirm(string) (bool, error) { return false, nil }

// StaticConfirmer answers every prompt with a fixed decision, used by tests.
type StaticConfirmer bool

func (s StaticConfirmer) Confirm(string) (bool, error) { return bool(s), nil }
