package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mail-cli/internal/gmail"
	"mail-cli/pkg/interfaces"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"
)

// ActionKind enumerates the closed set of session actions.
type ActionKind string

const (
	ActionView    ActionKind = "view"
	ActionArchive ActionKind = "archive"
	ActionSkip    ActionKind = "skip"
	ActionReply   ActionKind = "reply"
	ActionQuit    ActionKind = "quit"
)

// Action is one continue request. Body is set only for reply.
type Action struct {
	Kind ActionKind
	Body string
}

// ParseAction validates an action name and its arguments.
func ParseAction(kind, body string) (Action, error) {
	switch ActionKind(kind) {
	case ActionView, ActionArchive, ActionSkip, ActionQuit:
		return Action{Kind: ActionKind(kind)}, nil
	case ActionReply:
		if body == "" {
			return Action{}, mailerr.New(mailerr.CodeUsage, "reply requires a body (-b)")
		}

		return Action{Kind: ActionReply, Body: body}, nil
	default:
		return Action{}, mailerr.New(mailerr.CodeUsage,
			"unknown action '%s': expected view, archive, skip, reply or quit", kind)
	}
}

// Mailbox is the Gmail surface the engine needs.
type Mailbox interface {
	ListAllIds(ctx context.Context, query string) ([]string, error)
	GetSummary(ctx context.Context, id string) (models.Summary, error)
	GetFull(ctx context.Context, id string) (models.Full, error)
	ApplyAction(ctx context.Context, id string, spec gmail.ActionSpec) error
}

// StartResponse is the JSON contract for starting a session.
type StartResponse struct {
	Success   bool            `json:"success"`
	Token     string          `json:"token"`
	Email     *models.Summary `json:"email"`
	Progress  models.Progress `json:"progress"`
	Completed bool            `json:"completed"`
}

// ActionResult records the action just applied.
type ActionResult struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}

// ContinueResponse is the JSON contract for continuing a session. Email is
// a Summary of the next message, a Full for view, or nil when drained.
// Warning is set when the action succeeded but the next message could not be
// fetched; the caller must not re-issue the action.
type ContinueResponse struct {
	Success      bool            `json:"success"`
	Token        string          `json:"token"`
	Email        any             `json:"email"`
	ActionResult *ActionResult   `json:"action_result,omitempty"`
	Progress     models.Progress `json:"progress"`
	Completed    bool            `json:"completed"`
	Terminated   bool            `json:"terminated"`
	Warning      string          `json:"warning,omitempty"`
}

// Engine drives sessions. It reaches the composer only through the Sender
// port so the reply path stays acyclic.
type Engine struct {
	definitions *DefinitionStore
	states      *StateStore
	mailbox     Mailbox
	sender      interfaces.Sender

	now      func() time.Time
	newToken func() (string, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine clock, used by TTL tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithTokenSource overrides token generation, used by tests.
func WithTokenSource(fn func() (string, error)) EngineOption {
	return func(e *Engine) { e.newToken = fn }
}

// NewEngine creates an engine.
func NewEngine(definitions *DefinitionStore, states *StateStore, mailbox Mailbox, sender interfaces.Sender, opts ...EngineOption) *Engine {
	e := &Engine{
		definitions: definitions,
		states:      states,
		mailbox:     mailbox,
		sender:      sender,
		now:         time.Now,
		newToken:    NewToken,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start creates a session: it drains the definition's query once, freezes
// the resulting id list, and persists the state even when the list is empty
// so a continue with the token gives a well-defined completed response.
func (e *Engine) Start(ctx context.Context, workflowName string) (*StartResponse, error) {
	def, err := e.definitions.Get(workflowName)
	if err != nil {
		return nil, err
	}

	ids, err := e.mailbox.ListAllIds(ctx, def.Query)
	if err != nil {
		return nil, err
	}

	token, err := e.newToken()
	if err != nil {
		return nil, err
	}

	now := e.now()

	state := &State{
		Token:          token,
		Workflow:       def.Name,
		Query:          def.Query,
		AutoMarkRead:   def.AutoMarkRead,
		IDs:            ids,
		Cursor:         0,
		CreatedAt:      now,
		LastActivityAt: now,
		History:        []HistoryEntry{},
	}

	if err := e.states.Save(state); err != nil {
		return nil, err
	}

	slog.Debug("workflow session started", "workflow", def.Name, "total", len(ids))

	resp := &StartResponse{
		Success:   true,
		Token:     token,
		Progress:  progressOf(state),
		Completed: state.Completed(),
	}

	if len(ids) > 0 {
		summary, err := e.mailbox.GetSummary(ctx, ids[0])
		if err != nil {
			// The caller never saw the token; remove the state so the
			// session is not orphaned until cleanup.
			if delErr := e.states.Delete(token); delErr != nil {
				slog.Warn("failed to remove session after start failure", "token", token, "error", delErr)
			}

			return nil, err
		}

		resp.Email = &summary
	}

	return resp, nil
}

// Continue applies one action to the session's current message.
func (e *Engine) Continue(ctx context.Context, token string, action Action) (*ContinueResponse, error) {
	now := e.now()

	state, err := e.states.Load(token, now)
	if err != nil {
		return nil, err
	}

	if state.Completed() {
		if action.Kind == ActionQuit {
			return e.quit(state)
		}

		// Completed sessions absorb every other action without a server
		// call.
		return &ContinueResponse{
			Success:   true,
			Token:     state.Token,
			Progress:  progressOf(state),
			Completed: true,
		}, nil
	}

	if action.Kind == ActionQuit {
		return e.quit(state)
	}

	currentID := state.CurrentID()

	if action.Kind == ActionView {
		full, err := e.mailbox.GetFull(ctx, currentID)
		if err != nil {
			return nil, err
		}

		state.LastActivityAt = now
		if err := e.states.Save(state); err != nil {
			return nil, err
		}

		return &ContinueResponse{
			Success:   true,
			Token:     state.Token,
			Email:     full,
			Progress:  progressOf(state),
			Completed: false,
		}, nil
	}

	if err := e.apply(ctx, state, currentID, action); err != nil {
		if mailerr.CodeOf(err) == mailerr.CodeNotAuthorized {
			return nil, err
		}

		// The failed attempt is recorded and the cursor stays put, so
		// re-issuing the same continue is safe.
		state.History = append(state.History, HistoryEntry{
			ID:     currentID,
			Action: string(action.Kind),
			TS:     now,
			OK:     false,
			Error:  string(mailerr.CodeOf(err)),
		})
		state.LastActivityAt = now

		if saveErr := e.states.Save(state); saveErr != nil {
			return nil, saveErr
		}

		return nil, err
	}

	state.History = append(state.History, HistoryEntry{
		ID:     currentID,
		Action: string(action.Kind),
		TS:     now,
		OK:     true,
	})
	state.Cursor++
	state.LastActivityAt = now

	if err := e.states.Save(state); err != nil {
		return nil, err
	}

	resp := &ContinueResponse{
		Success:      true,
		Token:        state.Token,
		ActionResult: &ActionResult{ID: currentID, Action: string(action.Kind), OK: true},
		Progress:     progressOf(state),
		Completed:    state.Completed(),
	}

	if !state.Completed() {
		summary, err := e.mailbox.GetSummary(ctx, state.CurrentID())
		if err != nil {
			// The action already succeeded and the cursor moved; an error
			// here would invite a retry that hits the next message. Report
			// the action result and degrade the preview to a warning.
			slog.Warn("failed to fetch next message after action",
				"id", state.CurrentID(), "error", err)

			resp.Warning = fmt.Sprintf("action applied, but fetching the next message (%s) failed: %v",
				state.CurrentID(), err)

			return resp, nil
		}

		resp.Email = summary
	}

	return resp, nil
}

// apply performs the server-side effect of one advancing action.
func (e *Engine) apply(ctx context.Context, state *State, id string, action Action) error {
	switch action.Kind {
	case ActionArchive:
		return e.mailbox.ApplyAction(ctx, id, gmail.ActionSpec{
			RemoveLabels: []string{"INBOX"},
			MarkRead:     state.AutoMarkRead,
		})

	case ActionSkip:
		if !state.AutoMarkRead {
			return nil
		}

		return e.mailbox.ApplyAction(ctx, id, gmail.ActionSpec{MarkRead: true})

	case ActionReply:
		if _, err := e.sender.SendReply(ctx, id, action.Body); err != nil {
			return err
		}

		// The reply is already out; a modify failure here must not look
		// retryable as a whole.
		err := e.mailbox.ApplyAction(ctx, id, gmail.ActionSpec{
			RemoveLabels: []string{"INBOX"},
			MarkRead:     state.AutoMarkRead,
		})
		if err != nil {
			return mailerr.Wrap(mailerr.CodePartialReply, err,
				"reply to %s was sent but archiving it failed", id).
				WithHint("Use 'skip' to move past this message; replying again would re-send.")
		}

		return nil

	default:
		return mailerr.New(mailerr.CodeUsage, "action '%s' cannot be applied", action.Kind)
	}
}

func (e *Engine) quit(state *State) (*ContinueResponse, error) {
	if err := e.states.Delete(state.Token); err != nil {
		return nil, err
	}

	progress := progressOf(state)

	return &ContinueResponse{
		Success:      true,
		Token:        state.Token,
		ActionResult: &ActionResult{Action: string(ActionQuit), OK: true},
		Progress:     progress,
		Completed:    true,
		Terminated:   true,
	}, nil
}

// Cleanup removes expired and unparseable session files.
func (e *Engine) Cleanup() (int, error) {
	return e.states.Cleanup(e.now())
}

func progressOf(state *State) models.Progress {
	total := len(state.IDs)

	current := state.Cursor + 1
	if state.Cursor >= total {
		current = total
	}

	return models.Progress{
		Total:     total,
		Processed: state.Cursor,
		Remaining: total - state.Cursor,
		Current:   current,
	}
}
