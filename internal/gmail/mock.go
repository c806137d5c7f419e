package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/gmail/v1"
)

// MockAPI is an in-memory GmailAPI for tests. It serves seeded messages,
// records every mutation, and lets tests inject failures per method.
type MockAPI struct {
	mu sync.Mutex

	messages []*gmail.Message
	labels   []*gmail.Label
	profile  *gmail.Profile

	// ModifyCalls and SendCalls record mutations in order.
	ModifyCalls []MockModifyCall
	SendCalls   []string

	// Errors injected per method name ("ModifyMessage", "SendMessage", ...).
	// The error is returned on every call until cleared.
	Errs map[string]error

	nextSendID int
}

// MockModifyCall records one ModifyMessage invocation.
type MockModifyCall struct {
	ID     string
	Add    []string
	Remove []string
}

// NewMockAPI creates a mock with a default profile and system labels.
func NewMockAPI(messages ...*gmail.Message) *MockAPI {
	return &MockAPI{
		messages: messages,
		labels: []*gmail.Label{
			{Id: "INBOX", Name: "INBOX", Type: "system"},
			{Id: "UNREAD", Name: "UNREAD", Type: "system"},
			{Id: "IMPORTANT", Name: "IMPORTANT", Type: "system"},
			{Id: "SENT", Name: "SENT", Type: "system"},
		},
		profile: &gmail.Profile{
			EmailAddress:  "testuser@example.com",
			MessagesTotal: 250,
			ThreadsTotal:  125,
		},
		Errs: make(map[string]error),
	}
}

// AddMessage seeds another message.
func (m *MockAPI) AddMessage(msg *gmail.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
}

// SetLabels replaces the label set.
func (m *MockAPI) SetLabels(labels []*gmail.Label) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels = labels
}

// Message returns a seeded message by id, for assertions on label state.
func (m *MockAPI) Message(id string) *gmail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.Id == id {
			return msg
		}
	}

	return nil
}

func (m *MockAPI) injected(method string) error {
	if m.Errs == nil {
		return nil
	}

	return m.Errs[method]
}

func (m *MockAPI) ListMessages(_ context.Context, query, pageToken string, max int64) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("ListMessages"); err != nil {
		return nil, "", err
	}

	var matched []string

	for _, msg := range m.messages {
		if matchesQuery(msg, query) {
			matched = append(matched, msg.Id)
		}
	}

	start := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &start)
	}

	if start >= len(matched) {
		return nil, "", nil
	}

	end := start + int(max)
	next := ""

	if end < len(matched) {
		next = fmt.Sprintf("page-%d", end)
	} else {
		end = len(matched)
	}

	return matched[start:end], next, nil
}

// matchesQuery implements just enough Gmail query syntax for tests:
// is:unread, label:X, and bare text against the subject.
func matchesQuery(msg *gmail.Message, query string) bool {
	for _, term := range strings.Fields(query) {
		switch {
		case term == "is:unread":
			if !hasLabel(msg, "UNREAD") {
				return false
			}
		case strings.HasPrefix(term, "label:"):
			if !hasLabel(msg, strings.TrimPrefix(term, "label:")) {
				return false
			}
		default:
			if !strings.Contains(strings.ToLower(mockHeader(msg, "Subject")), strings.ToLower(term)) {
				return false
			}
		}
	}

	return true
}

func hasLabel(msg *gmail.Message, label string) bool {
	for _, l := range msg.LabelIds {
		if l == label {
			return true
		}
	}

	return false
}

func mockHeader(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}

	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}

	return ""
}

func (m *MockAPI) GetMessage(_ context.Context, id, format string, _ []string) (*gmail.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("GetMessage"); err != nil {
		return nil, err
	}

	for _, msg := range m.messages {
		if msg.Id == id {
			return msg, nil
		}
	}

	return nil, fmt.Errorf("message not found: %s", id)
}

func (m *MockAPI) ModifyMessage(_ context.Context, id string, add, remove []string) (*gmail.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("ModifyMessage"); err != nil {
		return nil, err
	}

	m.ModifyCalls = append(m.ModifyCalls, MockModifyCall{ID: id, Add: add, Remove: remove})

	for _, msg := range m.messages {
		if msg.Id != id {
			continue
		}

		for _, label := range add {
			if !hasLabel(msg, label) {
				msg.LabelIds = append(msg.LabelIds, label)
			}
		}

		var kept []string

		for _, label := range msg.LabelIds {
			removed := false

			for _, r := range remove {
				if label == r {
					removed = true

					break
				}
			}

			if !removed {
				kept = append(kept, label)
			}
		}

		msg.LabelIds = kept

		return msg, nil
	}

	return nil, fmt.Errorf("message not found: %s", id)
}

func (m *MockAPI) SendMessage(_ context.Context, raw string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("SendMessage"); err != nil {
		return "", "", err
	}

	m.SendCalls = append(m.SendCalls, raw)
	m.nextSendID++

	id := fmt.Sprintf("sent-%d", m.nextSendID)

	return id, "thread-" + id, nil
}

func (m *MockAPI) ListLabels(_ context.Context) ([]*gmail.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("ListLabels"); err != nil {
		return nil, err
	}

	// List entries deliberately omit counts, matching the real endpoint.
	headers := make([]*gmail.Label, 0, len(m.labels))
	for _, l := range m.labels {
		headers = append(headers, &gmail.Label{Id: l.Id, Name: l.Name, Type: l.Type})
	}

	return headers, nil
}

func (m *MockAPI) GetLabel(_ context.Context, id string) (*gmail.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("GetLabel"); err != nil {
		return nil, err
	}

	for _, l := range m.labels {
		if l.Id == id {
			return l, nil
		}
	}

	return nil, fmt.Errorf("label not found: %s", id)
}

func (m *MockAPI) GetThread(_ context.Context, id string) (*gmail.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("GetThread"); err != nil {
		return nil, err
	}

	var msgs []*gmail.Message

	for _, msg := range m.messages {
		if msg.ThreadId == id {
			msgs = append(msgs, msg)
		}
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("thread not found: %s", id)
	}

	return &gmail.Thread{Id: id, Messages: msgs, Snippet: msgs[0].Snippet}, nil
}

func (m *MockAPI) GetProfile(_ context.Context) (*gmail.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("GetProfile"); err != nil {
		return nil, err
	}

	return m.profile, nil
}
