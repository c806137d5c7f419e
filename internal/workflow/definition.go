// Package workflow implements reusable workflow definitions and the
// token-addressed session engine that steps through a frozen message list.
package workflow

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"mail-cli/internal/config"
	"mail-cli/pkg/mailerr"
)

var workflowNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Definition is a named, reusable workflow: a Gmail query plus per-session
// behavior flags.
type Definition struct {
	Name         string `yaml:"name" json:"name"`
	Query        string `yaml:"query" json:"query"`
	AutoMarkRead bool   `yaml:"auto_mark_read,omitempty" json:"auto_mark_read,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// DefinitionStore reads and writes the workflow definition document.
type DefinitionStore struct {
	path string
}

// NewDefinitionStore creates a store over the default workflows file.
func NewDefinitionStore() (*DefinitionStore, error) {
	path, err := config.WorkflowsFilePath()
	if err != nil {
		return nil, err
	}

	return &DefinitionStore{path: path}, nil
}

// NewDefinitionStoreAt creates a store over an explicit path, used by tests.
func NewDefinitionStoreAt(path string) *DefinitionStore {
	return &DefinitionStore{path: path}
}

// definitionDoc is the on-disk YAML shape.
type definitionDoc struct {
	Workflows []Definition `yaml:"workflows"`
}

func (s *DefinitionStore) load() (definitionDoc, error) {
	var doc definitionDoc

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}

	if err != nil {
		return doc, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read workflow store %s", s.path)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, mailerr.Wrap(mailerr.CodeFilesystem, err, "workflow store %s is corrupt", s.path)
	}

	return doc, nil
}

func (s *DefinitionStore) save(doc definitionDoc) error {
	sort.Slice(doc.Workflows, func(i, j int) bool {
		return doc.Workflows[i].Name < doc.Workflows[j].Name
	})

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("unable to marshal workflow store: %w", err)
	}

	if err := config.WriteFileAtomic(s.path, data); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to write workflow store")
	}

	return nil
}

// List returns all definitions sorted by name.
func (s *DefinitionStore) List() ([]Definition, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	sort.Slice(doc.Workflows, func(i, j int) bool {
		return doc.Workflows[i].Name < doc.Workflows[j].Name
	})

	return doc.Workflows, nil
}

// Get returns one definition by name.
func (s *DefinitionStore) Get(name string) (Definition, error) {
	doc, err := s.load()
	if err != nil {
		return Definition{}, err
	}

	for _, def := range doc.Workflows {
		if def.Name == name {
			return def, nil
		}
	}

	return Definition{}, mailerr.New(mailerr.CodeUnknownWorkflow, "workflow '%s' not found", name).
		WithHint("Run 'mail workflows list' to see available workflows.")
}

// Create adds a new definition. Names are unique.
func (s *DefinitionStore) Create(def Definition) error {
	if !workflowNameRe.MatchString(def.Name) {
		return mailerr.New(mailerr.CodeValidation,
			"invalid workflow name '%s': allowed characters are A-Z a-z 0-9 _ -, length 1..64", def.Name)
	}

	if def.Query == "" {
		return mailerr.New(mailerr.CodeValidation, "workflow '%s' requires a query", def.Name)
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	for _, existing := range doc.Workflows {
		if existing.Name == def.Name {
			return mailerr.New(mailerr.CodeValidation, "workflow '%s' already exists", def.Name)
		}
	}

	doc.Workflows = append(doc.Workflows, def)

	return s.save(doc)
}

// Delete removes a definition by name.
func (s *DefinitionStore) Delete(name string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Workflows[:0]
	found := false

	for _, def := range doc.Workflows {
		if def.Name == name {
			found = true

			continue
		}

		kept = append(kept, def)
	}

	if !found {
		return mailerr.New(mailerr.CodeUnknownWorkflow, "workflow '%s' not found", name)
	}

	doc.Workflows = kept

	return s.save(doc)
}
