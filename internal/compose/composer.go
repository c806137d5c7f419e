// Package compose implements the outbound pipeline: recipient expansion,
// style resolution, preview, confirmation gating and MIME assembly. It also
// provides the reply sender the workflow engine drives.
package compose

import (
	"context"
	"log/slog"
	"strings"

	"mail-cli/internal/groups"
	"mail-cli/internal/styles"
	"mail-cli/pkg/interfaces"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"
)

// DefaultStyleName is the heuristic fallback when no style is requested and
// no domain rule matches.
const DefaultStyleName = "professional-friendly"

// Mailer is the narrow Gmail surface the composer needs.
type Mailer interface {
	GetFull(ctx context.Context, id string) (models.Full, error)
	SendMIME(ctx context.Context, raw []byte) (messageID, threadID string, err error)
}

// Request is one outbound composition. Recipient entries are tokens: either
// literal addresses or '#group' references.
type Request struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	StyleName   string
	Attachments []string
	DryRun      bool
	Force       bool
	Yolo        bool
}

// StyleAdvice is the style surfaced on the preview. The greeting and closing
// patterns guide the author; they are never concatenated into the body.
type StyleAdvice struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Greetings   []string `json:"greetings,omitempty"`
	Closings    []string `json:"closings,omitempty"`
	Do          []string `json:"do,omitempty"`
	Dont        []string `json:"dont,omitempty"`
}

// Preview is the deterministic pre-send rendering shown at the gate.
type Preview struct {
	From        string       `json:"from,omitempty"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Style       *StyleAdvice `json:"style,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
}

// Result reports what the pipeline did.
type Result struct {
	Preview   Preview `json:"preview"`
	Sent      bool    `json:"sent"`
	Cancelled bool    `json:"cancelled,omitempty"`
	MessageID string  `json:"message_id,omitempty"`
	ThreadID  string  `json:"thread_id,omitempty"`
}

// Composer runs the pipeline. It knows nothing about workflows; the engine
// reaches it only through the Sender port.
type Composer struct {
	mailer    Mailer
	groups    *groups.Store
	styles    *styles.Store
	confirmer interfaces.Confirmer

	from         string
	maxSize      int64
	domainStyles map[string]string
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithFrom sets the From header on outbound messages. When unset, Gmail
// substitutes the authenticated identity.
func WithFrom(addr string) ComposerOption {
	return func(c *Composer) { c.from = addr }
}

// WithMaxMessageSize overrides the assembled-message cap.
func WithMaxMessageSize(n int64) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithDomainStyle maps a recipient domain to a style for the heuristic
// selector.
func WithDomainStyle(domain, styleName string) ComposerOption {
	return func(c *Composer) {
		c.domainStyles[strings.ToLower(domain)] = styleName
	}
}

// NewComposer creates a composer.
func NewComposer(mailer Mailer, groupStore *groups.Store, styleStore *styles.Store, confirmer interfaces.Confirmer, opts ...ComposerOption) *Composer {
	c := &Composer{
		mailer:       mailer,
		groups:       groupStore,
		styles:       styleStore,
		confirmer:    confirmer,
		maxSize:      DefaultMaxMessageSize,
		domainStyles: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compose runs the full pipeline for one request.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	to, cc, bcc, err := c.expandRecipients(req)
	if err != nil {
		return nil, err
	}

	var advice *StyleAdvice

	if req.StyleName != "" {
		style, err := c.styles.Show(req.StyleName)
		if err != nil {
			return nil, err
		}

		advice = toAdvice(style)
	} else {
		advice = c.resolveStyle(to, cc, bcc)
	}

	result := &Result{
		Preview: Preview{
			From:        c.from,
			To:          addressStrings(to),
			Cc:          addressStrings(cc),
			Bcc:         addressStrings(bcc),
			Subject:     req.Subject,
			Body:        req.Body,
			Style:       advice,
			Attachments: req.Attachments,
		},
	}

	if req.DryRun {
		return result, nil
	}

	if !req.Force && !req.Yolo {
		ok, err := c.confirmer.Confirm("Send this email?")
		if err != nil {
			return nil, err
		}

		if !ok {
			result.Cancelled = true

			return result, nil
		}
	}

	raw, err := buildMIME(messageSpec{
		From:        c.from,
		To:          to,
		Cc:          cc,
		Bcc:         bcc,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: req.Attachments,
		MaxSize:     c.maxSize,
	})
	if err != nil {
		return nil, err
	}

	messageID, threadID, err := c.mailer.SendMIME(ctx, raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("message sent", "id", messageID, "thread", threadID)

	result.Sent = true
	result.MessageID = messageID
	result.ThreadID = threadID

	return result, nil
}

// SendReply implements the Sender port: it replies to an existing message
// without a confirmation gate. The caller owns that decision.
func (c *Composer) SendReply(ctx context.Context, originalID, body string) (string, error) {
	original, err := c.mailer.GetFull(ctx, originalID)
	if err != nil {
		return "", err
	}

	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	to := original.From

	if replyTo := original.Headers.Get("Reply-To"); replyTo != "" {
		if addr, err := models.ParseAddress(replyTo); err == nil {
			to = addr
		}
	}

	messageID := original.Headers.Get("Message-Id")
	if messageID == "" {
		messageID = original.Headers.Get("Message-ID")
	}

	references := strings.TrimSpace(original.Headers.Get("References") + " " + messageID)

	raw, err := buildMIME(messageSpec{
		From:       c.from,
		To:         []models.Address{to},
		Subject:    subject,
		Body:       body,
		InReplyTo:  messageID,
		References: references,
		MaxSize:    c.maxSize,
	})
	if err != nil {
		return "", err
	}

	sentID, _, err := c.mailer.SendMIME(ctx, raw)
	if err != nil {
		return "", err
	}

	return sentID, nil
}

// expandRecipients expands each list through the group store and removes
// duplicates across the union, first occurrence winning: an address already
// in To is dropped from Cc and Bcc.
func (c *Composer) expandRecipients(req Request) (to, cc, bcc []models.Address, err error) {
	to, err = c.groups.Expand(req.To)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(to) == 0 {
		return nil, nil, nil, mailerr.New(mailerr.CodeUsage, "at least one To recipient is required")
	}

	cc, err = c.groups.Expand(req.Cc)
	if err != nil {
		return nil, nil, nil, err
	}

	bcc, err = c.groups.Expand(req.Bcc)
	if err != nil {
		return nil, nil, nil, err
	}

	seen := make(map[string]bool, len(to))
	for _, a := range to {
		seen[a.Key()] = true
	}

	cc = dropSeen(cc, seen)
	bcc = dropSeen(bcc, seen)

	return to, cc, bcc, nil
}

func dropSeen(addrs []models.Address, seen map[string]bool) []models.Address {
	kept := addrs[:0]

	for _, a := range addrs {
		if seen[a.Key()] {
			continue
		}

		seen[a.Key()] = true
		kept = append(kept, a)
	}

	return kept
}

// resolveStyle picks a style heuristically: the domain table over the union
// of recipient domains, falling back to the default. A missing heuristic
// style simply yields no advice.
func (c *Composer) resolveStyle(lists ...[]models.Address) *StyleAdvice {
	name := DefaultStyleName

	for _, list := range lists {
		for _, addr := range list {
			if mapped, ok := c.domainStyles[strings.ToLower(addr.Domain)]; ok {
				name = mapped
			}
		}
	}

	style, err := c.styles.Show(name)
	if err != nil {
		return nil
	}

	return toAdvice(style)
}

func toAdvice(style styles.Style) *StyleAdvice {
	return &StyleAdvice{
		Name:        style.Name,
		Description: style.Description,
		Greetings:   style.Greetings,
		Closings:    style.Closings,
		Do:          style.Do,
		Dont:        style.Dont,
	}
}

func addressStrings(addrs []models.Address) []string {
	if len(addrs) == 0 {
		return nil
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Spec())
	}

	return out
}
