package models

import (
	"encoding/json"
	"sort"
	"time"
)

// Summary is the cheap, list-friendly projection of a Gmail message. It
// carries only header-derived fields and label state; body content is never
// populated here. Code that needs bodies must fetch a Full projection.
type Summary struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	From         Address   `json:"from"`
	To           []Address `json:"to"`
	Cc           []Address `json:"cc,omitempty"`
	Subject      string    `json:"subject"`
	Date         time.Time `json:"date"`
	Snippet      string    `json:"snippet"`
	LabelIDs     []string  `json:"label_ids"`
	SizeEstimate int64     `json:"size_estimate"`
}

// IsUnread reports whether the UNREAD label is present.
func (s *Summary) IsUnread() bool { return s.hasLabel("UNREAD") }

// IsImportant reports whether the IMPORTANT label is present.
func (s *Summary) IsImportant() bool { return s.hasLabel("IMPORTANT") }

func (s *Summary) hasLabel(id string) bool {
	for _, l := range s.LabelIDs {
		if l == id {
			return true
		}
	}

	return false
}

// Full is the complete projection of a Gmail message. It repeats the Summary
// primary fields so that constructing a Full always yields a consistent
// Summary view of the same message.
type Full struct {
	Summary

	BodyText    string          `json:"body_text"`
	BodyHTML    string          `json:"body_html"`
	Headers     HeaderMap       `json:"headers"`
	Attachments []AttachmentRef `json:"attachments"`

	// Warnings records non-fatal projection problems, such as a body part
	// that failed base64 decoding.
	Warnings []string `json:"warnings,omitempty"`
}

// HasAttachment reports whether any user-visible attachment was projected.
func (f *Full) HasAttachment() bool { return len(f.Attachments) > 0 }

// AttachmentRef describes a user-visible attachment without its content.
type AttachmentRef struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id"`
}

// HeaderMap is a multi-valued header mapping with case-insensitive lookup.
// Insertion order of header names is preserved for deterministic rendering.
type HeaderMap struct {
	order  []string
	values map[string][]string
}

// Add appends a header value, preserving first-seen name order.
func (h *HeaderMap) Add(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}

	key := canonicalHeaderKey(name)
	if _, seen := h.values[key]; !seen {
		h.order = append(h.order, key)
	}

	h.values[key] = append(h.values[key], value)
}

// Get returns the first value for a header name, or "".
func (h *HeaderMap) Get(name string) string {
	vs := h.Values(name)
	if len(vs) == 0 {
		return ""
	}

	return vs[0]
}

// Values returns all values recorded for a header name.
func (h *HeaderMap) Values(name string) []string {
	if h.values == nil {
		return nil
	}

	return h.values[canonicalHeaderKey(name)]
}

// Names returns header names in insertion order.
func (h *HeaderMap) Names() []string {
	return h.order
}

// Len returns the number of distinct header names.
func (h *HeaderMap) Len() int { return len(h.order) }

// MarshalJSON renders the map as name → values. JSON objects cannot carry
// the insertion order, so round-tripping keeps values but not ordering.
func (h HeaderMap) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(h.order))
	for _, name := range h.order {
		out[name] = h.values[name]
	}

	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the map with names sorted for determinism.
func (h *HeaderMap) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		for _, v := range raw[name] {
			h.Add(name, v)
		}
	}

	return nil
}

func canonicalHeaderKey(name string) string {
	b := []byte(name)
	upper := true

	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		} else if !upper && 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}

		upper = c == '-'
	}

	return string(b)
}

// Progress describes how far a workflow session has advanced.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
	Current   int `json:"current"`
}

// LabelCount pairs a label with its message counts. Counts come from the
// per-label Gmail endpoint; the label list endpoint does not carry them.
type LabelCount struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Total  int64  `json:"total"`
	Unread int64  `json:"unread"`
}
