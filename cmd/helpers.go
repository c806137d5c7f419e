package main

import (
	"context"

	"mail-cli/internal/auth"
	"mail-cli/internal/compose"
	"mail-cli/internal/gmail"
	"mail-cli/internal/groups"
	"mail-cli/internal/styles"
	"mail-cli/internal/workflow"
)

// confirmDestructive gates destructive local operations. Non-TTY stdin
// always answers no.
func confirmDestructive(prompt string) bool {
	ok, err := compose.NewConfirmer().Confirm(prompt)

	return err == nil && ok
}

// newAdapter builds the authenticated Gmail adapter for one invocation.
func newAdapter(ctx context.Context) (*gmail.Adapter, error) {
	client, err := auth.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	api, err := gmail.NewAPI(ctx, client)
	if err != nil {
		return nil, err
	}

	return gmail.NewAdapter(api), nil
}

// newComposer wires the composition pipeline over an adapter.
func newComposer(adapter *gmail.Adapter) (*compose.Composer, error) {
	groupStore, err := groups.NewStore()
	if err != nil {
		return nil, err
	}

	styleStore, err := styles.NewStore()
	if err != nil {
		return nil, err
	}

	return compose.NewComposer(adapter, groupStore, styleStore, compose.NewConfirmer()), nil
}

// newEngine wires the workflow engine over an adapter, with the composer as
// its reply sender.
func newEngine(adapter *gmail.Adapter) (*workflow.Engine, error) {
	definitions, err := workflow.NewDefinitionStore()
	if err != nil {
		return nil, err
	}

	states, err := workflow.NewStateStore()
	if err != nil {
		return nil, err
	}

	composer, err := newComposer(adapter)
	if err != nil {
		return nil, err
	}

	return workflow.NewEngine(definitions, states, adapter, composer), nil
}
