package workflow

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mail-cli/internal/gmail"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

type fakeSender struct {
	calls []string
	err   error
}

func (f *fakeSender) SendReply(ctx context.Context, originalID, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	f.calls = append(f.calls, originalID)

	return "sent-" + originalID, nil
}

func seedInboxMessage(id, subject string) *gmailv1.Message {
	return &gmailv1.Message{
		Id:           id,
		ThreadId:     "t-" + id,
		LabelIds:     []string{"INBOX", "UNREAD"},
		InternalDate: 1748858400000,
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: subject},
				{Name: "Date", Value: "Mon, 02 Jun 2025 10:30:00 +0000"},
			},
			Body: &gmailv1.MessagePartBody{},
		},
	}
}

type engineFixture struct {
	api    *gmail.MockAPI
	sender *fakeSender
	states *StateStore
	engine *Engine

	now time.Time
}

func newEngineFixture(t *testing.T, autoMarkRead bool, messages ...*gmailv1.Message) *engineFixture {
	t.Helper()

	f := &engineFixture{
		api:    gmail.NewMockAPI(messages...),
		sender: &fakeSender{},
		states: NewStateStoreAt(t.TempDir()),
		now:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}

	definitions := NewDefinitionStoreAt(filepath.Join(t.TempDir(), "workflows.yaml"))
	require.NoError(t, definitions.Create(Definition{
		Name:         "triage",
		Query:        "is:unread label:INBOX",
		AutoMarkRead: autoMarkRead,
	}))

	f.engine = NewEngine(definitions, f.states, gmail.NewAdapter(f.api), f.sender,
		WithClock(func() time.Time { return f.now }))

	return f
}

func TestStartFreezesListAndReturnsFirst(t *testing.T) {
	f := newEngineFixture(t, true,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
		seedInboxMessage("m3", "third"),
	)

	resp, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Regexp(t, "^[0-9a-f]{32}$", resp.Token)
	require.NotNil(t, resp.Email)
	assert.Equal(t, "m1", resp.Email.ID)
	assert.Equal(t, models.Progress{Total: 3, Processed: 0, Remaining: 3, Current: 1}, resp.Progress)
	assert.False(t, resp.Completed)
}

func TestStartUnknownWorkflow(t *testing.T) {
	f := newEngineFixture(t, false)

	_, err := f.engine.Start(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeUnknownWorkflow, mailerr.CodeOf(err))
}

func TestArchiveDrainsSession(t *testing.T) {
	f := newEngineFixture(t, true,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
		seedInboxMessage("m3", "third"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	token := start.Token

	resp, err := f.engine.Continue(context.Background(), token, Action{Kind: ActionArchive})
	require.NoError(t, err)

	require.NotNil(t, resp.ActionResult)
	assert.Equal(t, "m1", resp.ActionResult.ID)
	assert.True(t, resp.ActionResult.OK)
	assert.Equal(t, models.Progress{Total: 3, Processed: 1, Remaining: 2, Current: 2}, resp.Progress)

	next, ok := resp.Email.(models.Summary)
	require.True(t, ok)
	assert.Equal(t, "m2", next.ID)

	// The archive removed INBOX and, with auto mark read, UNREAD.
	assert.NotContains(t, f.api.Message("m1").LabelIds, "INBOX")
	assert.NotContains(t, f.api.Message("m1").LabelIds, "UNREAD")

	_, err = f.engine.Continue(context.Background(), token, Action{Kind: ActionArchive})
	require.NoError(t, err)

	resp, err = f.engine.Continue(context.Background(), token, Action{Kind: ActionArchive})
	require.NoError(t, err)

	assert.True(t, resp.Completed)
	assert.Nil(t, resp.Email)
	assert.Equal(t, models.Progress{Total: 3, Processed: 3, Remaining: 0, Current: 3}, resp.Progress)

	// A completed session absorbs further advancing actions without touching
	// the server.
	mutations := len(f.api.ModifyCalls)

	resp, err = f.engine.Continue(context.Background(), token, Action{Kind: ActionArchive})
	require.NoError(t, err)
	assert.True(t, resp.Completed)
	assert.Nil(t, resp.ActionResult)
	assert.Len(t, f.api.ModifyCalls, mutations)
}

func TestViewDoesNotAdvance(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionView})
	require.NoError(t, err)

	full, ok := resp.Email.(models.Full)
	require.True(t, ok)
	assert.Equal(t, "m1", full.ID)
	assert.Nil(t, resp.ActionResult)
	assert.Equal(t, 0, resp.Progress.Processed)

	// Viewing never modifies labels.
	assert.Empty(t, f.api.ModifyCalls)

	// The next advancing action still targets m1.
	resp, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.NoError(t, err)
	assert.Equal(t, "m1", resp.ActionResult.ID)
	require.Len(t, f.api.ModifyCalls, 1)
	assert.Equal(t, "m1", f.api.ModifyCalls[0].ID)
}

func TestSkipWithoutAutoMarkReadTouchesNothing(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionSkip})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Progress.Processed)
	assert.Empty(t, f.api.ModifyCalls)
	assert.Contains(t, f.api.Message("m1").LabelIds, "INBOX")
	assert.Contains(t, f.api.Message("m1").LabelIds, "UNREAD")
}

func TestSkipWithAutoMarkRead(t *testing.T) {
	f := newEngineFixture(t, true,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	_, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionSkip})
	require.NoError(t, err)

	assert.NotContains(t, f.api.Message("m1").LabelIds, "UNREAD")
	assert.Contains(t, f.api.Message("m1").LabelIds, "INBOX")
}

func TestReplyArchivesAndAdvances(t *testing.T) {
	f := newEngineFixture(t, true,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	resp, err := f.engine.Continue(context.Background(), start.Token,
		Action{Kind: ActionReply, Body: "On it."})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, f.sender.calls)
	assert.Equal(t, 1, resp.Progress.Processed)
	assert.NotContains(t, f.api.Message("m1").LabelIds, "INBOX")
}

func TestPartialReplyKeepsCursor(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	f.api.Errs["ModifyMessage"] = &googleapi.Error{Code: 400, Message: "label modify rejected"}

	_, err = f.engine.Continue(context.Background(), start.Token,
		Action{Kind: ActionReply, Body: "On it."})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodePartialReply, mailerr.CodeOf(err))

	// The reply went out exactly once.
	assert.Equal(t, []string{"m1"}, f.sender.calls)

	// The failure is recorded and the cursor stays on m1.
	state, loadErr := f.states.Load(start.Token, f.now)
	require.NoError(t, loadErr)
	assert.Equal(t, 0, state.Cursor)
	require.Len(t, state.History, 1)
	assert.Equal(t, "m1", state.History[0].ID)
	assert.Equal(t, "reply", state.History[0].Action)
	assert.False(t, state.History[0].OK)
	assert.Equal(t, "PartialReplyFailure", state.History[0].Error)

	// Skip moves past the message without re-sending.
	delete(f.api.Errs, "ModifyMessage")

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionSkip})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Progress.Processed)
	assert.Equal(t, []string{"m1"}, f.sender.calls)
}

func TestStartFailedFirstFetchLeavesNoSession(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
	)

	f.api.Errs["GetMessage"] = &googleapi.Error{Code: 404, Message: "gone"}

	_, err := f.engine.Start(context.Background(), "triage")
	require.Error(t, err)

	// The token was never handed out, so no session file may linger.
	entries, readErr := os.ReadDir(f.states.dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestContinueReportsActionWhenNextFetchFails(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	f.api.Errs["GetMessage"] = &googleapi.Error{Code: 404, Message: "gone"}

	// The archive itself succeeds; only the preview of m2 fails. The caller
	// must still learn the action landed, or a retry would hit m2 unseen.
	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.NoError(t, err)

	require.NotNil(t, resp.ActionResult)
	assert.Equal(t, "m1", resp.ActionResult.ID)
	assert.True(t, resp.ActionResult.OK)
	assert.Nil(t, resp.Email)
	assert.Contains(t, resp.Warning, "m2")
	assert.Equal(t, models.Progress{Total: 2, Processed: 1, Remaining: 1, Current: 2}, resp.Progress)

	// Once the fetch recovers, the session resumes on m2 with m1 untouched
	// a second time.
	delete(f.api.Errs, "GetMessage")

	resp, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.NoError(t, err)
	assert.Equal(t, "m2", resp.ActionResult.ID)
	assert.Empty(t, resp.Warning)

	require.Len(t, f.api.ModifyCalls, 2)
	assert.Equal(t, "m1", f.api.ModifyCalls[0].ID)
	assert.Equal(t, "m2", f.api.ModifyCalls[1].ID)
}

func TestContinueEnvelopeAlwaysCarriesTerminated(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"terminated":false`)

	resp, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionQuit})
	require.NoError(t, err)

	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"terminated":true`)
}

func TestNotAuthorizedLeavesNoHistory(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	f.api.Errs["ModifyMessage"] = &googleapi.Error{Code: 401, Message: "token revoked"}

	_, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeNotAuthorized, mailerr.CodeOf(err))

	state, err := f.states.Load(start.Token, f.now)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Cursor)
	assert.Empty(t, state.History)
}

func TestSessionExpiryOnInactivity(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
		seedInboxMessage("m2", "second"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	// Just inside the window: still alive.
	f.now = f.now.Add(SessionTTL - time.Minute)

	_, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionSkip})
	require.NoError(t, err)

	// Well past the window: expired, but the file stays for cleanup.
	f.now = f.now.Add(2 * SessionTTL)

	_, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionSkip})
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeTokenExpired, mailerr.CodeOf(err))

	_, statErr := os.Stat(filepath.Join(f.states.dir, start.Token+".json"))
	require.NoError(t, statErr)

	removed, err := f.engine.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, statErr = os.Stat(filepath.Join(f.states.dir, start.Token+".json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestQuitDeletesSession(t *testing.T) {
	f := newEngineFixture(t, false,
		seedInboxMessage("m1", "first"),
	)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionQuit})
	require.NoError(t, err)

	assert.True(t, resp.Terminated)
	assert.True(t, resp.Completed)

	_, err = f.states.Load(start.Token, f.now)
	require.Error(t, err)
	assert.Equal(t, mailerr.CodeTokenExpired, mailerr.CodeOf(err))
}

func TestEmptyQueryStartsCompletedSession(t *testing.T) {
	// No seeded messages match the query.
	f := newEngineFixture(t, false)

	start, err := f.engine.Start(context.Background(), "triage")
	require.NoError(t, err)

	assert.True(t, start.Completed)
	assert.Nil(t, start.Email)
	assert.Equal(t, models.Progress{Total: 0, Processed: 0, Remaining: 0, Current: 0}, start.Progress)

	// The state file exists, so the token behaves sensibly on continue.
	_, statErr := os.Stat(filepath.Join(f.states.dir, start.Token+".json"))
	require.NoError(t, statErr)

	resp, err := f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionArchive})
	require.NoError(t, err)
	assert.True(t, resp.Completed)
	assert.Empty(t, f.api.ModifyCalls)

	resp, err = f.engine.Continue(context.Background(), start.Token, Action{Kind: ActionQuit})
	require.NoError(t, err)
	assert.True(t, resp.Terminated)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		kind     string
		body     string
		want     ActionKind
		wantCode mailerr.Code
	}{
		{kind: "view", want: ActionView},
		{kind: "archive", want: ActionArchive},
		{kind: "skip", want: ActionSkip},
		{kind: "quit", want: ActionQuit},
		{kind: "reply", body: "thanks", want: ActionReply},
		{kind: "reply", wantCode: mailerr.CodeUsage},
		{kind: "delete", wantCode: mailerr.CodeUsage},
		{kind: "", wantCode: mailerr.CodeUsage},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.body, func(t *testing.T) {
			action, err := ParseAction(tt.kind, tt.body)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, mailerr.CodeOf(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, action.Kind)
			assert.Equal(t, tt.body, action.Body)
		})
	}
}
