// Package interfaces holds the ports shared across components so that the
// workflow engine, composer and CLI can be wired against mocks in tests.
package interfaces

import (
	"context"

	"google.golang.org/api/gmail/v1"
)

// GmailAPI is the narrow capability surface the adapter builds on. The real
// implementation delegates to the Gmail REST client; tests use a seeded mock.
type GmailAPI interface {
	ListMessages(ctx context.Context, query, pageToken string, max int64) (ids []string, nextPageToken string, err error)
	GetMessage(ctx context.Context, id, format string, metadataHeaders []string) (*gmail.Message, error)
	ModifyMessage(ctx context.Context, id string, addLabels, removeLabels []string) (*gmail.Message, error)
	SendMessage(ctx context.Context, raw string) (id, threadID string, err error)
	ListLabels(ctx context.Context) ([]*gmail.Label, error)
	GetLabel(ctx context.Context, id string) (*gmail.Label, error)
	GetThread(ctx context.Context, id string) (*gmail.Thread, error)
	GetProfile(ctx context.Context) (*gmail.Profile, error)
}

// Confirmer answers yes/no prompts. The TTY-backed implementation asks the
// user; the non-TTY implementation always declines so that piped stdin can
// never be mistaken for consent.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Sender is the reply port the workflow engine depends on. The composer
// implements it; the engine never imports the composer's full surface.
type Sender interface {
	SendReply(ctx context.Context, originalID, body string) (messageID string, err error)
}
