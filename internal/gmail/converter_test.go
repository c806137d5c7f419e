package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func multipartMessage() *gmail.Message {
	return &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		LabelIds:     []string{"INBOX", "UNREAD"},
		Snippet:      "Hello there",
		SizeEstimate: 2048,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "bob@example.com, carol@example.com"},
				{Name: "Subject", Value: "Quarterly numbers"},
				{Name: "Date", Value: "Mon, 02 Jun 2025 10:30:00 +0000"},
				{Name: "Message-Id", Value: "<orig-123@mail.example.com>"},
				{Name: "Received", Value: "hop one"},
				{Name: "Received", Value: "hop two"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmail.MessagePartBody{Data: b64("plain body")},
						},
						{
							MimeType: "text/html",
							Body:     &gmail.MessagePartBody{Data: b64("<p>html body</p>")},
						},
					},
				},
				{
					MimeType: "application/pdf",
					Filename: "report.pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-1", Size: 1024},
				},
				{
					MimeType: "text/calendar",
					Filename: "invite.ics",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-2", Size: 64},
				},
				{
					MimeType: "image/png",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-3", Size: 99},
					Headers: []*gmail.MessagePartHeader{
						{Name: "Content-Disposition", Value: "inline"},
					},
				},
			},
		},
	}
}

func TestToSummaryHeadersOnly(t *testing.T) {
	summary, err := ToSummary(multipartMessage())
	require.NoError(t, err)

	assert.Equal(t, "m1", summary.ID)
	assert.Equal(t, "t1", summary.ThreadID)
	assert.Equal(t, "alice@example.com", summary.From.Spec())
	assert.Equal(t, "Alice", summary.From.Name)
	require.Len(t, summary.To, 2)
	assert.Equal(t, "Quarterly numbers", summary.Subject)
	assert.True(t, summary.IsUnread())
	assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC), summary.Date.UTC())
}

func TestToSummaryNilMessage(t *testing.T) {
	_, err := ToSummary(nil)
	require.Error(t, err)
}

func TestToFullBodiesAndHeaders(t *testing.T) {
	full, err := ToFull(multipartMessage())
	require.NoError(t, err)

	assert.Equal(t, "plain body", full.BodyText)
	assert.Equal(t, "<p>html body</p>", full.BodyHTML)
	assert.Empty(t, full.Warnings)

	assert.Equal(t, "<orig-123@mail.example.com>", full.Headers.Get("Message-Id"))
	assert.Equal(t, []string{"hop one", "hop two"}, full.Headers.Values("Received"))
}

func TestToFullAttachmentFiltering(t *testing.T) {
	full, err := ToFull(multipartMessage())
	require.NoError(t, err)

	// The calendar invite and the inline image are not user attachments.
	require.Len(t, full.Attachments, 1)
	assert.Equal(t, "report.pdf", full.Attachments[0].Filename)
	assert.Equal(t, "att-1", full.Attachments[0].AttachmentID)
	assert.Equal(t, int64(1024), full.Attachments[0].Size)
}

func TestToFullDeterministic(t *testing.T) {
	a, err := ToFull(multipartMessage())
	require.NoError(t, err)

	b, err := ToFull(multipartMessage())
	require.NoError(t, err)

	assert.Equal(t, a.BodyText, b.BodyText)
	assert.Equal(t, a.BodyHTML, b.BodyHTML)
	assert.Equal(t, a.Headers.Names(), b.Headers.Names())
}

func TestToFullDecodeWarning(t *testing.T) {
	msg := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: "!!! not base64 !!!"},
		},
	}

	full, err := ToFull(msg)
	require.NoError(t, err)
	assert.Empty(t, full.BodyText)
	require.Len(t, full.Warnings, 1)
	assert.Contains(t, full.Warnings[0], "text/plain")
}

func TestMessageDateFallsBackToInternalDate(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		InternalDate: 1717324200000,
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Date", Value: "not a date"},
			},
		},
	}

	summary, err := ToSummary(msg)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1717324200, 0).UTC(), summary.Date.UTC())
}
