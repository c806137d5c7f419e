package styles

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"mail-cli/internal/config"
	"mail-cli/pkg/mailerr"
)

// fileNameRe is the gate on every style name used to build a path. Combined
// with the prefix check in stylePath it closes the path-traversal class.
var fileNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,49}$`)

// Style is the parsed, validated document the composer consumes.
type Style struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Greetings   []string `json:"greetings"`
	Body        string   `json:"body"`
	Closings    []string `json:"closings"`
	Do          []string `json:"do"`
	Dont        []string `json:"dont"`
}

// Store manages the style document directory.
type Store struct {
	dir string
}

// NewStore creates a store over the default styles directory.
func NewStore() (*Store, error) {
	dir, err := config.StylesDir()
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir}, nil
}

// NewStoreAt creates a store over an explicit directory, used by tests.
func NewStoreAt(dir string) *Store {
	return &Store{dir: dir}
}

// stylePath validates the name and resolves it inside the styles directory.
// The canonicalized result must stay under the directory.
func (s *Store) stylePath(name string) (string, error) {
	if !fileNameRe.MatchString(name) {
		return "", mailerr.New(mailerr.CodeInvalidStyleName, "invalid style name '%s'", name).
			WithHint("Style names are 1-50 characters of A-Z a-z 0-9 _ -, starting alphanumeric.")
	}

	base, err := filepath.Abs(s.dir)
	if err != nil {
		return "", mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to resolve styles directory")
	}

	path := filepath.Join(base, name+".md")
	if !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", mailerr.New(mailerr.CodeInvalidStyleName, "invalid style name '%s'", name)
	}

	return path, nil
}

// List enumerates style names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read styles directory %s", s.dir)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		names = append(names, strings.TrimSuffix(entry.Name(), ".md"))
	}

	sort.Strings(names)

	return names, nil
}

// Show loads and parses one style. A document that fails validation is
// still returned structurally when parseable, with the error flagging it.
func (s *Store) Show(name string) (Style, error) {
	content, err := s.read(name)
	if err != nil {
		return Style{}, err
	}

	report := Validate(content)
	if !report.OK && report.HasStructuralErrors() {
		return Style{}, validationError(name, report)
	}

	return parseStyle(content), nil
}

// Read returns the raw document text.
func (s *Store) Read(name string) (string, error) {
	return s.read(name)
}

func (s *Store) read(name string) (string, error) {
	path, err := s.stylePath(name)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", mailerr.New(mailerr.CodeNotFound, "style '%s' not found", name).
			WithHint("Run 'mail styles list' to see available styles.")
	}

	if err != nil {
		return "", mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read style '%s'", name)
	}

	return string(data), nil
}

// Write persists a document after validating it, unless skipValidation.
func (s *Store) Write(name, content string, skipValidation bool) error {
	path, err := s.stylePath(name)
	if err != nil {
		return err
	}

	if !skipValidation {
		if report := Validate(content); !report.OK {
			return validationError(name, report)
		}
	}

	if err := config.WriteFileAtomic(path, []byte(content)); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to write style '%s'", name)
	}

	return nil
}

// Create writes the canonical template for a new style and validates it.
func (s *Store) Create(name string, skipValidation bool) error {
	path, err := s.stylePath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return mailerr.New(mailerr.CodeValidation, "style '%s' already exists", name)
	}

	return s.Write(name, styleTemplate(name), skipValidation)
}

// Edit opens the document in $EDITOR and re-validates afterwards unless
// suppressed.
func (s *Store) Edit(name string, skipValidation bool) error {
	path, err := s.stylePath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return mailerr.New(mailerr.CodeNotFound, "style '%s' not found", name)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	if skipValidation {
		return nil
	}

	content, err := s.read(name)
	if err != nil {
		return err
	}

	if report := Validate(content); !report.OK {
		return validationError(name, report)
	}

	return nil
}

// Delete backs the document up with a timestamp sidecar before unlinking.
func (s *Store) Delete(name string) error {
	path, err := s.stylePath(name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return mailerr.New(mailerr.CodeNotFound, "style '%s' not found", name)
	}

	if err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read style '%s'", name)
	}

	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := config.WriteFileAtomic(backupPath, data); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to back up style '%s'", name)
	}

	if err := os.Remove(path); err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to delete style '%s'", name)
	}

	return nil
}

// ValidateStyle lints a stored document, optionally applying auto-fix and
// persisting the repaired content.
func (s *Store) ValidateStyle(name string, autoFix bool) (Report, error) {
	content, err := s.read(name)
	if err != nil {
		return Report{}, err
	}

	if !autoFix {
		return Validate(content), nil
	}

	report := ValidateAndFix(content)

	if report.Fixed != "" && report.OK {
		if err := s.Write(name, report.Fixed, true); err != nil {
			return report, err
		}
	}

	return report, nil
}

func validationError(name string, report Report) error {
	msgs := make([]string, 0, len(report.Errors))
	for _, v := range report.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Rule, v.Message))
	}

	return mailerr.New(mailerr.CodeValidation,
		"style '%s' failed validation: %s", name, strings.Join(msgs, "; "))
}

// parseStyle converts a structurally valid document into a Style value.
func parseStyle(content string) Style {
	doc := parseDocument(content)

	style := Style{
		Name:        doc.frontmatter["name"],
		Description: doc.frontmatter["description"],
		Body:        strings.TrimSpace(strings.Join(doc.sections["body"], "\n")),
	}

	style.Examples = splitExamples(doc.sections["examples"])
	style.Greetings = patternLines(doc.sections["greeting"])
	style.Closings = patternLines(doc.sections["closing"])
	style.Do = bulletLines(doc.sections["do"])
	style.Dont = bulletLines(doc.sections["dont"])

	return style
}

func splitExamples(lines []string) []string {
	var (
		examples []string
		current  []string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			examples = append(examples, text)
		}

		current = nil
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			flush()

			continue
		}

		current = append(current, line)
	}

	flush()

	return examples
}

// patternLines extracts greeting/closing patterns from bullets or prose.
func patternLines(lines []string) []string {
	var out []string

	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		text = strings.TrimPrefix(text, "- ")
		text = strings.Trim(text, `"`)

		out = append(out, text)
	}

	return out
}

func bulletLines(lines []string) []string {
	var out []string

	for _, line := range lines {
		if item, ok := strings.CutPrefix(line, "- "); ok {
			out = append(out, strings.TrimSpace(item))
		}
	}

	return out
}

// styleTemplate is the canonical starting document for a new style.
func styleTemplate(name string) string {
	return fmt.Sprintf(`---
name: %s
description: "When to use: describe the situations where this style fits."
---
<examples>
Hi team,

Short example email demonstrating this style in action.

Thanks,
Alex
</examples>
<greeting>
- "Hi {name},"
- "Hello {name},"
</greeting>
<body>
Keep paragraphs short. Lead with the ask. One topic per email.
</body>
<closing>
- "Thanks,"
- "Best,"
</closing>
<do>
- Keep it under five sentences
- State the desired outcome in the first line
</do>
<dont>
- Bury the ask below context
- Use jargon the recipient may not share
</dont>
`, name)
}
