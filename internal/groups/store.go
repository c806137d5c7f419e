// Package groups implements the named email-group alias store and the
// expansion operator used by the composer for outbound recipients.
package groups

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"mail-cli/internal/config"
	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"
)

var groupNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Group is a named, ordered set of addresses.
type Group struct {
	Name    string           `json:"name"`
	Members []models.Address `json:"members"`
}

// Store reads and writes the single JSON group document. It holds no cached
// state: every operation loads the file fresh and writes it back atomically.
type Store struct {
	path string
}

// NewStore creates a store over the default group file location.
func NewStore() (*Store, error) {
	path, err := config.GroupsFilePath()
	if err != nil {
		return nil, err
	}

	return &Store{path: path}, nil
}

// NewStoreAt creates a store over an explicit path, used by tests.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// document is the on-disk shape: group name → list of address strings.
type document map[string][]string

func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return document{}, nil
	}

	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read group store %s", s.path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, mailerr.Wrap(mailerr.CodeFilesystem, err, "group store %s is corrupt", s.path)
	}

	return doc, nil
}

func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal group store: %w", err)
	}

	if err := config.WriteFileAtomic(s.path, append(data, '\n')); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to write group store")
	}

	return nil
}

// backup copies the current document aside before a destructive operation.
func (s *Store) backup() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read group store for backup")
	}

	backupPath := fmt.Sprintf("%s.backup.%s", s.path, time.Now().Format("20060102-150405"))
	if err := config.WriteFileAtomic(backupPath, data); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to write group backup")
	}

	return nil
}

// List returns all groups sorted by name.
func (s *Store) List() ([]Group, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}

	sort.Strings(names)

	groups := make([]Group, 0, len(names))

	for _, name := range names {
		g, err := s.Get(name)
		if err != nil {
			return nil, err
		}

		groups = append(groups, g)
	}

	return groups, nil
}

// Get returns one group by name.
func (s *Store) Get(name string) (Group, error) {
	doc, err := s.load()
	if err != nil {
		return Group{}, err
	}

	raw, ok := doc[name]
	if !ok {
		return Group{}, mailerr.New(mailerr.CodeUnknownGroup, "group '%s' not found", name).
			WithHint("Run 'mail groups list' to see available groups.")
	}

	members := make([]models.Address, 0, len(raw))

	for _, entry := range raw {
		addr, err := models.ParseAddress(entry)
		if err != nil {
			// A hand-edited malformed entry must not flow into a send as a
			// recipient. Validate reads the raw document and still reports
			// the group.
			return Group{}, mailerr.Wrap(mailerr.CodeMalformedAddress, err,
				"group '%s' contains a malformed address: %q", name, entry).
				WithHint("Run 'mail groups validate' and repair the group file.")
		}

		members = append(members, addr)
	}

	return Group{Name: name, Members: members}, nil
}

// Create adds a new group. Overwriting an existing group requires force and
// writes a backup first.
func (s *Store) Create(name string, members []string, force bool) error {
	if !groupNameRe.MatchString(name) {
		return mailerr.New(mailerr.CodeValidation,
			"invalid group name '%s': allowed characters are A-Z a-z 0-9 _ -, length 1..64", name)
	}

	parsed, err := parseMembers(members)
	if err != nil {
		return err
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, exists := doc[name]; exists {
		if !force {
			return mailerr.New(mailerr.CodeValidation, "group '%s' already exists", name).
				WithHint("Pass --force to overwrite it.")
		}

		if err := s.backup(); err != nil {
			return err
		}
	}

	doc[name] = parsed

	return s.save(doc)
}

// AddMember appends an address, rejecting duplicates. Duplicate detection is
// case-sensitive on the local part and case-insensitive on the domain.
func (s *Store) AddMember(name, rawAddr string) error {
	addr, err := models.ParseAddress(rawAddr)
	if err != nil {
		return mailerr.Wrap(mailerr.CodeMalformedAddress, err, "invalid address '%s'", rawAddr)
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	existing, ok := doc[name]
	if !ok {
		return mailerr.New(mailerr.CodeUnknownGroup, "group '%s' not found", name).
			WithHint("Run 'mail groups list' to see available groups.")
	}

	for _, entry := range existing {
		if member, err := models.ParseAddress(entry); err == nil && member.Key() == addr.Key() {
			return mailerr.New(mailerr.CodeDuplicateMember,
				"address %s is already in group '%s'", addr.Spec(), name)
		}
	}

	doc[name] = append(existing, addr.Spec())

	return s.save(doc)
}

// RemoveMember deletes an address from a group.
func (s *Store) RemoveMember(name, rawAddr string) error {
	addr, err := models.ParseAddress(rawAddr)
	if err != nil {
		return mailerr.Wrap(mailerr.CodeMalformedAddress, err, "invalid address '%s'", rawAddr)
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	existing, ok := doc[name]
	if !ok {
		return mailerr.New(mailerr.CodeUnknownGroup, "group '%s' not found", name)
	}

	kept := make([]string, 0, len(existing))
	found := false

	for _, entry := range existing {
		if member, err := models.ParseAddress(entry); err == nil && member.Key() == addr.Key() {
			found = true

			continue
		}

		kept = append(kept, entry)
	}

	if !found {
		return mailerr.New(mailerr.CodeNotFound,
			"address %s is not in group '%s'", addr.Spec(), name)
	}

	doc[name] = kept

	return s.save(doc)
}

// Delete removes a whole group, backing up the store first.
func (s *Store) Delete(name string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := doc[name]; !ok {
		return mailerr.New(mailerr.CodeUnknownGroup, "group '%s' not found", name).
			WithHint("Run 'mail groups list' to see available groups.")
	}

	if err := s.backup(); err != nil {
		return err
	}

	delete(doc, name)

	return s.save(doc)
}

// Verdict is the validation result for one group.
type Verdict struct {
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// Validate checks address well-formedness and intra-group duplicates.
// Cross-group duplicates are allowed. Passing "" validates every group.
func (s *Store) Validate(name string) ([]Verdict, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc))

	if name != "" {
		if _, ok := doc[name]; !ok {
			return nil, mailerr.New(mailerr.CodeUnknownGroup, "group '%s' not found", name)
		}

		names = append(names, name)
	} else {
		for n := range doc {
			names = append(names, n)
		}

		sort.Strings(names)
	}

	verdicts := make([]Verdict, 0, len(names))

	for _, n := range names {
		verdict := Verdict{Name: n, OK: true}
		seen := make(map[string]bool)

		for _, entry := range doc[n] {
			addr, err := models.ParseAddress(entry)
			if err != nil {
				verdict.OK = false
				verdict.Problems = append(verdict.Problems, fmt.Sprintf("malformed address: %s", entry))

				continue
			}

			if seen[addr.Key()] {
				verdict.OK = false
				verdict.Problems = append(verdict.Problems, fmt.Sprintf("duplicate member: %s", addr.Spec()))
			}

			seen[addr.Key()] = true
		}

		verdicts = append(verdicts, verdict)
	}

	return verdicts, nil
}

// Expand resolves recipient tokens to addresses. Tokens starting with '#'
// resolve through the store; anything else must parse as an address. The
// result preserves first-occurrence order with duplicates removed.
func (s *Store) Expand(tokens []string) ([]models.Address, error) {
	var (
		out       []models.Address
		badTokens []string
	)

	for _, token := range tokens {
		if groupName, ok := strings.CutPrefix(token, "#"); ok {
			group, err := s.Get(groupName)
			if err != nil {
				return nil, err
			}

			out = append(out, group.Members...)

			continue
		}

		addr, err := models.ParseAddress(token)
		if err != nil {
			badTokens = append(badTokens, token)

			continue
		}

		out = append(out, addr)
	}

	if len(badTokens) > 0 {
		return nil, mailerr.New(mailerr.CodeMalformedAddress,
			"malformed address(es): %s", strings.Join(badTokens, ", "))
	}

	return models.DedupAddresses(out), nil
}

func parseMembers(members []string) ([]string, error) {
	parsed := make([]string, 0, len(members))

	var bad []string

	for _, raw := range members {
		addr, err := models.ParseAddress(raw)
		if err != nil {
			bad = append(bad, raw)

			continue
		}

		parsed = append(parsed, addr.Spec())
	}

	if len(bad) > 0 {
		return nil, mailerr.New(mailerr.CodeMalformedAddress,
			"malformed address(es): %s", strings.Join(bad, ", "))
	}

	return parsed, nil
}
