package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"mail-cli/pkg/interfaces"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
)

const (
	// maxQueryLength is the adapter-enforced Gmail query cap.
	maxQueryLength = 500

	// defaultConcurrency bounds the summary fetch fan-out.
	defaultConcurrency = 8

	// listPageSize is the page size used when draining a query.
	listPageSize = 100
)

var summaryHeaderList = []string{"From", "To", "Cc", "Subject", "Date"}

// Adapter wraps the GmailAPI capability with retry, pagination, projection
// and the action semantics the rest of the system builds on.
type Adapter struct {
	api         interfaces.GmailAPI
	policy      retryPolicy
	concurrency int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithConcurrency sets the summary fan-out bound.
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithRetryPolicy overrides the backoff policy, used by tests to avoid
// real sleeps.
func WithRetryPolicy(p retryPolicy) Option {
	return func(a *Adapter) { a.policy = p }
}

// NewAdapter creates an adapter over an API capability.
func NewAdapter(api interfaces.GmailAPI, opts ...Option) *Adapter {
	a := &Adapter{
		api:         api,
		concurrency: defaultConcurrency,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ListIds returns one page of message ids matching the query.
func (a *Adapter) ListIds(ctx context.Context, query, pageToken string, max int64) ([]string, string, error) {
	if len(query) > maxQueryLength {
		return nil, "", mailerr.New(mailerr.CodeQueryTooLarge,
			"query is %d characters, limit is %d", len(query), maxQueryLength)
	}

	if max <= 0 {
		max = listPageSize
	}

	var (
		ids  []string
		next string
	)

	err := withRetry(ctx, a.policy, "list messages", func(ctx context.Context) error {
		var err error
		ids, next, err = a.api.ListMessages(ctx, query, pageToken, max)

		return err
	})
	if err != nil {
		return nil, "", err
	}

	slog.Debug("listed messages", "query", query, "count", len(ids), "more", next != "")

	return ids, next, nil
}

// ListAllIds drains every page for the query, preserving Gmail's ordering.
func (a *Adapter) ListAllIds(ctx context.Context, query string) ([]string, error) {
	var (
		all       []string
		pageToken string
	)

	for {
		ids, next, err := a.ListIds(ctx, query, pageToken, listPageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, ids...)

		if next == "" {
			return all, nil
		}

		pageToken = next
	}
}

// GetSummary fetches a message in metadata format and projects it.
func (a *Adapter) GetSummary(ctx context.Context, id string) (models.Summary, error) {
	if id == "" {
		return models.Summary{}, fmt.Errorf("message ID is required")
	}

	var msg *gmail.Message

	err := withRetry(ctx, a.policy, "get message metadata", func(ctx context.Context) error {
		var err error
		msg, err = a.api.GetMessage(ctx, id, "metadata", summaryHeaderList)

		return err
	})
	if err != nil {
		return models.Summary{}, err
	}

	return ToSummary(msg)
}

// GetFull fetches a message in full format and projects it.
func (a *Adapter) GetFull(ctx context.Context, id string) (models.Full, error) {
	if id == "" {
		return models.Full{}, fmt.Errorf("message ID is required")
	}

	var msg *gmail.Message

	err := withRetry(ctx, a.policy, "get message", func(ctx context.Context) error {
		var err error
		msg, err = a.api.GetMessage(ctx, id, "full", nil)

		return err
	})
	if err != nil {
		return models.Full{}, err
	}

	return ToFull(msg)
}

// BatchGetSummaries fetches summaries for ids with bounded concurrency.
// Output order matches input order regardless of completion order.
func (a *Adapter) BatchGetSummaries(ctx context.Context, ids []string) ([]models.Summary, error) {
	summaries := make([]models.Summary, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			s, err := a.GetSummary(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch summary for %s: %w", id, err)
			}

			summaries[i] = s

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// ActionSpec describes a label mutation on a single message.
type ActionSpec struct {
	AddLabels    []string
	RemoveLabels []string
	MarkRead     bool
}

// ApplyAction collapses the spec into one modify call and verifies the
// server actually applied it. Gmail occasionally returns 200 with the label
// set unchanged; that surfaces as LabelApplyFailed so callers can retry.
func (a *Adapter) ApplyAction(ctx context.Context, id string, spec ActionSpec) error {
	add := spec.AddLabels
	remove := spec.RemoveLabels

	if spec.MarkRead && !contains(remove, "UNREAD") {
		remove = append(append([]string{}, remove...), "UNREAD")
	}

	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	var result *gmail.Message

	err := withRetry(ctx, a.policy, "modify message", func(ctx context.Context) error {
		var err error
		result, err = a.api.ModifyMessage(ctx, id, add, remove)

		return err
	})
	if err != nil {
		return err
	}

	for _, label := range add {
		if !contains(result.LabelIds, label) {
			return mailerr.New(mailerr.CodeLabelApplyFailed,
				"label %s missing from message %s after modify", label, id)
		}
	}

	for _, label := range remove {
		if contains(result.LabelIds, label) {
			return mailerr.New(mailerr.CodeLabelApplyFailed,
				"label %s still on message %s after modify", label, id)
		}
	}

	return nil
}

// SendMIME sends a raw RFC 2822 message and returns the new ids.
func (a *Adapter) SendMIME(ctx context.Context, raw []byte) (messageID, threadID string, err error) {
	encoded := base64.URLEncoding.EncodeToString(raw)

	err = withRetry(ctx, a.policy, "send message", func(ctx context.Context) error {
		var err error
		messageID, threadID, err = a.api.SendMessage(ctx, encoded)

		return err
	})

	return messageID, threadID, err
}

// LabelCounts lists labels and fetches per-label counts. The list endpoint
// does not populate counts, so each label costs one extra get.
func (a *Adapter) LabelCounts(ctx context.Context) ([]models.LabelCount, error) {
	var labels []*gmail.Label

	err := withRetry(ctx, a.policy, "list labels", func(ctx context.Context) error {
		var err error
		labels, err = a.api.ListLabels(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	counts := make([]models.LabelCount, 0, len(labels))

	for _, header := range labels {
		var detail *gmail.Label

		err := withRetry(ctx, a.policy, "get label", func(ctx context.Context) error {
			var err error
			detail, err = a.api.GetLabel(ctx, header.Id)

			return err
		})
		if err != nil {
			return nil, err
		}

		counts = append(counts, models.LabelCount{
			ID:     detail.Id,
			Name:   detail.Name,
			Total:  detail.MessagesTotal,
			Unread: detail.MessagesUnread,
		})
	}

	return counts, nil
}

// ThreadFulls fetches a thread and projects every message in it.
func (a *Adapter) ThreadFulls(ctx context.Context, threadID string) ([]models.Full, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	var thread *gmail.Thread

	err := withRetry(ctx, a.policy, "get thread", func(ctx context.Context) error {
		var err error
		thread, err = a.api.GetThread(ctx, threadID)

		return err
	})
	if err != nil {
		return nil, err
	}

	fulls := make([]models.Full, 0, len(thread.Messages))

	for _, msg := range thread.Messages {
		full, err := ToFull(msg)
		if err != nil {
			return nil, err
		}

		fulls = append(fulls, full)
	}

	return fulls, nil
}

// Profile fetches the authenticated account's profile.
func (a *Adapter) Profile(ctx context.Context) (*gmail.Profile, error) {
	var profile *gmail.Profile

	err := withRetry(ctx, a.policy, "get profile", func(ctx context.Context) error {
		var err error
		profile, err = a.api.GetProfile(ctx)

		return err
	})

	return profile, err
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}

	return false
}
