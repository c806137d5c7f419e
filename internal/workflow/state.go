package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mail-cli/internal/config"
	"mail-cli/pkg/mailerr"
)

// SessionTTL is the inactivity window after which a token stops working.
// Expiry is checked on load, not by a background reaper.
const SessionTTL = time.Hour

var tokenRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// HistoryEntry records one attempted action on a session.
type HistoryEntry struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	TS     time.Time `json:"ts"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// State is the persisted session: the frozen id list, the cursor, and the
// action history. One file per token.
type State struct {
	Token          string         `json:"token"`
	Workflow       string         `json:"workflow"`
	Query          string         `json:"query"`
	AutoMarkRead   bool           `json:"auto_mark_read,omitempty"`
	IDs            []string       `json:"ids"`
	Cursor         int            `json:"cursor"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	History        []HistoryEntry `json:"history"`
}

// Completed reports whether the cursor has drained the id list.
func (s *State) Completed() bool { return s.Cursor >= len(s.IDs) }

// CurrentID returns the id under the cursor.
func (s *State) CurrentID() string { return s.IDs[s.Cursor] }

// NewToken generates a 128-bit random session token, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate session token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// StateStore persists sessions as one JSON file per token.
type StateStore struct {
	dir string
}

// NewStateStore creates a store over the default state directory.
func NewStateStore() (*StateStore, error) {
	dir, err := config.StatesDir()
	if err != nil {
		return nil, err
	}

	return &StateStore{dir: dir}, nil
}

// NewStateStoreAt creates a store over an explicit directory, used by tests.
func NewStateStoreAt(dir string) *StateStore {
	return &StateStore{dir: dir}
}

func (s *StateStore) statePath(token string) (string, error) {
	if !tokenRe.MatchString(token) {
		return "", mailerr.New(mailerr.CodeTokenExpired, "invalid session token").
			WithHint("Run 'mail workflows start <name>' to begin a new session.")
	}

	return filepath.Join(s.dir, token+".json"), nil
}

// Save persists a state atomically.
func (s *StateStore) Save(state *State) error {
	path, err := s.statePath(state.Token)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal session state: %w", err)
	}

	if err := config.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to persist session state")
	}

	return nil
}

// Load returns the state for a token. A missing file, an unparseable file,
// or a state past its TTL all come back as TokenExpired; expired state is
// left on disk for cleanup.
func (s *StateStore) Load(token string, now time.Time) (*State, error) {
	path, err := s.statePath(token)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, expiredErr()
	}

	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read session state")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, expiredErr()
	}

	if state.Token != token || state.LastActivityAt.IsZero() {
		return nil, expiredErr()
	}

	if now.Sub(state.LastActivityAt) > SessionTTL {
		return nil, expiredErr()
	}

	return &state, nil
}

// Delete removes a session file. Missing files are fine; quit racing
// cleanup must not fail.
func (s *StateStore) Delete(token string) error {
	path, err := s.statePath(token)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to delete session state")
	}

	return nil
}

// Cleanup removes expired and unparseable state files plus abandoned temp
// files. Idempotent; a file vanishing mid-scan is tolerated.
func (s *StateStore) Cleanup(now time.Time) (removed int, err error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read state directory")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())

		if !strings.HasSuffix(entry.Name(), ".json") {
			// Leftover temp file from an interrupted write.
			if os.Remove(path) == nil {
				removed++
			}

			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var state State

		stale := json.Unmarshal(data, &state) != nil ||
			state.LastActivityAt.IsZero() ||
			now.Sub(state.LastActivityAt) > SessionTTL

		if stale && os.Remove(path) == nil {
			removed++
		}
	}

	return removed, nil
}

func expiredErr() error {
	return mailerr.New(mailerr.CodeTokenExpired, "session token is expired or unknown").
		WithHint("Run 'mail workflows start <name>' to begin a new session.")
}
