package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mail-cli/internal/groups"
	"mail-cli/internal/styles"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	full    models.Full
	fullErr error
	sendErr error

	sent   [][]byte
	nextID int
}

func (f *fakeMailer) GetFull(ctx context.Context, id string) (models.Full, error) {
	return f.full, f.fullErr
}

func (f *fakeMailer) SendMIME(ctx context.Context, raw []byte) (string, string, error) {
	if f.sendErr != nil {
		return "", "", f.sendErr
	}

	f.sent = append(f.sent, raw)
	f.nextID++

	return fmt.Sprintf("sent-%d", f.nextID), fmt.Sprintf("thread-%d", f.nextID), nil
}

func newTestComposer(t *testing.T, mailer *fakeMailer, confirmer StaticConfirmer) (*Composer, *groups.Store) {
	t.Helper()

	groupStore := groups.NewStoreAt(filepath.Join(t.TempDir(), "email-groups.json"))
	styleStore := styles.NewStoreAt(t.TempDir())

	return NewComposer(mailer, groupStore, styleStore, confirmer), groupStore
}

func TestComposeDryRunExpandsWithoutSending(t *testing.T) {
	mailer := &fakeMailer{}
	composer, groupStore := newTestComposer(t, mailer, StaticConfirmer(true))

	require.NoError(t, groupStore.Create("team", []string{"a@x.com", "b@x.com"}, false))
	require.NoError(t, groupStore.Create("ops", []string{"c@y.com"}, false))

	result, err := composer.Compose(context.Background(), Request{
		To:      []string{"#team", "#ops"},
		Cc:      []string{"a@x.com"},
		Subject: "Rollout",
		Body:    "Status below.",
		DryRun:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@y.com"}, result.Preview.To)
	// a@x.com already appeared in To, so the Cc list drains empty.
	assert.Empty(t, result.Preview.Cc)

	assert.False(t, result.Sent)
	assert.Empty(t, mailer.sent)
}

func TestComposeRequiresToRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	_, err := composer.Compose(context.Background(), Request{
		Subject: "x",
		Body:    "y",
		DryRun:  true,
	})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeUsage, mailerr.CodeOf(err))
}

func TestComposeDeniedConfirmationCancels(t *testing.T) {
	mailer := &fakeMailer{}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(false))

	result, err := composer.Compose(context.Background(), Request{
		To:      []string{"a@x.com"},
		Subject: "Rollout",
		Body:    "Status below.",
	})
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.False(t, result.Sent)
	assert.Empty(t, mailer.sent)
}

func TestComposeYoloSkipsConfirmation(t *testing.T) {
	mailer := &fakeMailer{}

	// The confirmer would say no; yolo must never consult it.
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(false))

	result, err := composer.Compose(context.Background(), Request{
		To:      []string{"a@x.com"},
		Subject: "Rollout",
		Body:    "Status below.",
		Yolo:    true,
	})
	require.NoError(t, err)

	assert.True(t, result.Sent)
	assert.Equal(t, "sent-1", result.MessageID)
	require.Len(t, mailer.sent, 1)

	raw := string(mailer.sent[0])
	assert.Contains(t, raw, "To: a@x.com")
	assert.Contains(t, raw, "Subject: Rollout")
	assert.Contains(t, raw, "Status below.")
}

func TestComposeExplicitStyleMustExist(t *testing.T) {
	mailer := &fakeMailer{}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	_, err := composer.Compose(context.Background(), Request{
		To:        []string{"a@x.com"},
		Subject:   "x",
		Body:      "y",
		StyleName: "nope",
		DryRun:    true,
	})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeNotFound, mailerr.CodeOf(err))
}

func TestComposeStyleIsSurfacedNotInjected(t *testing.T) {
	mailer := &fakeMailer{}

	groupStore := groups.NewStoreAt(filepath.Join(t.TempDir(), "email-groups.json"))
	styleStore := styles.NewStoreAt(t.TempDir())
	require.NoError(t, styleStore.Create("professional-friendly", false))

	composer := NewComposer(mailer, groupStore, styleStore, StaticConfirmer(true))

	result, err := composer.Compose(context.Background(), Request{
		To:      []string{"a@x.com"},
		Subject: "Rollout",
		Body:    "Status below.",
		Yolo:    true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Preview.Style)
	assert.Equal(t, "professional-friendly", result.Preview.Style.Name)
	assert.NotEmpty(t, result.Preview.Style.Greetings)

	// The body goes out exactly as written; greetings stay advisory.
	assert.Equal(t, "Status below.", result.Preview.Body)

	raw := string(mailer.sent[0])
	for _, greeting := range result.Preview.Style.Greetings {
		assert.NotContains(t, raw, greeting)
	}
}

func TestComposeMissingHeuristicStyleIsFine(t *testing.T) {
	mailer := &fakeMailer{}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	result, err := composer.Compose(context.Background(), Request{
		To:      []string{"a@x.com"},
		Subject: "x",
		Body:    "y",
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Preview.Style)
}

func replyOriginal() models.Full {
	full := models.Full{
		Summary: models.Summary{
			ID:      "m1",
			From:    models.Address{Name: "Alice", Local: "alice", Domain: "example.com"},
			Subject: "Rollout plan",
		},
	}

	full.Headers.Add("Message-Id", "<orig-123@mail.example.com>")
	full.Headers.Add("References", "<root-1@mail.example.com>")

	return full
}

func TestSendReplyThreadingHeaders(t *testing.T) {
	mailer := &fakeMailer{full: replyOriginal()}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	id, err := composer.SendReply(context.Background(), "m1", "Sounds good.")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)

	raw := string(mailer.sent[0])
	assert.Contains(t, raw, "Subject: Re: Rollout plan")
	assert.Contains(t, raw, "To: Alice <alice@example.com>")
	assert.Contains(t, raw, "In-Reply-To: <orig-123@mail.example.com>")
	assert.Contains(t, raw, "References: <root-1@mail.example.com> <orig-123@mail.example.com>")
	assert.Contains(t, raw, "Sounds good.")
}

func TestSendReplyKeepsExistingRePrefix(t *testing.T) {
	original := replyOriginal()
	original.Subject = "Re: Rollout plan"

	mailer := &fakeMailer{full: original}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	_, err := composer.SendReply(context.Background(), "m1", "ok")
	require.NoError(t, err)

	raw := string(mailer.sent[0])
	assert.Contains(t, raw, "Subject: Re: Rollout plan")
	assert.NotContains(t, raw, "Re: Re:")
}

func TestSendReplyHonorsReplyTo(t *testing.T) {
	original := replyOriginal()
	original.Headers.Add("Reply-To", "list@example.com")

	mailer := &fakeMailer{full: original}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	_, err := composer.SendReply(context.Background(), "m1", "ok")
	require.NoError(t, err)

	assert.Contains(t, string(mailer.sent[0]), "To: list@example.com")
}

func TestComposeAttachments(t *testing.T) {
	mailer := &fakeMailer{}
	composer, _ := newTestComposer(t, mailer, StaticConfirmer(true))

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("attachment payload"), 0o600))

	result, err := composer.Compose(context.Background(), Request{
		To:          []string{"a@x.com"},
		Subject:     "With file",
		Body:        "See attached.",
		Attachments: []string{path},
		Yolo:        true,
	})
	require.NoError(t, err)
	assert.True(t, result.Sent)

	raw := string(mailer.sent[0])
	assert.Contains(t, raw, "multipart/mixed")
	assert.Contains(t, raw, `filename="notes.txt"`)
	assert.Contains(t, raw, "text/plain")
}

func TestComposeSizeCap(t *testing.T) {
	mailer := &fakeMailer{}

	groupStore := groups.NewStoreAt(filepath.Join(t.TempDir(), "email-groups.json"))
	styleStore := styles.NewStoreAt(t.TempDir())

	composer := NewComposer(mailer, groupStore, styleStore, StaticConfirmer(true),
		WithMaxMessageSize(64))

	_, err := composer.Compose(context.Background(), Request{
		To:      []string{"a@x.com"},
		Subject: "Too big",
		Body:    strings.Repeat("x", 1024),
		Yolo:    true,
	})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeValidation, mailerr.CodeOf(err))
	assert.Empty(t, mailer.sent)
}

func TestNonTTYConfirmerDenies(t *testing.T) {
	ok, err := DenyConfirmer{}.Confirm("Send this email?")
	require.NoError(t, err)
	assert.False(t, ok)
}
