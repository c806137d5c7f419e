// Package styles loads, validates and repairs the style documents consumed
// by the composer. The linter is a pure function over document text so that
// validation behaves identically for stored styles and editor buffers.
package styles

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule codes are stable identifiers used in reports and tests.
const (
	RuleFrontmatterMissing = "F001"
	RuleNameInvalid        = "F002"
	RuleDescriptionInvalid = "F003"
	RuleUnknownKey         = "F004"
	RuleSectionMissing     = "S001"
	RuleSectionOrder       = "S002"
	RuleSectionDuplicate   = "S003"
	RuleSectionUnknown     = "S004"
	RuleExamplesEmpty      = "C001"
	RuleBulletsMissing     = "C002"
	RuleBulletFormat       = "C003" // reported only; bullets are never auto-rewritten
	RuleTrailingWhitespace = "W001"
	RuleFinalNewline       = "W002"
)

// sectionOrder is the canonical section sequence; all are required.
var sectionOrder = []string{"examples", "greeting", "body", "closing", "do", "dont"}

var (
	styleNameRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,49}$`)
	sectionOpenRe = regexp.MustCompile(`^<([a-z]+)>$`)
	badBulletRe   = regexp.MustCompile(`^-[^ \t-]`)
)

// Violation is one rule failure. Line is 1-based, 0 when the violation is
// not tied to a specific line.
type Violation struct {
	Rule    string `json:"rule"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Fixable bool   `json:"fixable"`
}

// Report is the linter output. Fixed carries the repaired document when an
// auto-fix pass ran and every remaining violation was repairable.
type Report struct {
	OK     bool        `json:"ok"`
	Errors []Violation `json:"errors,omitempty"`
	Fixed  string      `json:"fixed,omitempty"`
}

// HasStructuralErrors reports whether any violation is non-fixable.
func (r Report) HasStructuralErrors() bool {
	for _, v := range r.Errors {
		if !v.Fixable {
			return true
		}
	}

	return false
}

// Validate lints a style document and returns every violation, not just the
// first.
func Validate(content string) Report {
	var report Report

	doc := parseDocument(content)

	report.Errors = append(report.Errors, checkFrontmatter(doc)...)
	report.Errors = append(report.Errors, checkSections(doc)...)
	report.Errors = append(report.Errors, checkContent(doc)...)
	report.Errors = append(report.Errors, checkWhitespace(content)...)

	report.OK = len(report.Errors) == 0

	return report
}

// ValidateAndFix lints and, when every violation is fixable, applies the
// narrow whitespace auto-fix and re-validates. Structural violations
// short-circuit the fix.
func ValidateAndFix(content string) Report {
	report := Validate(content)
	if report.OK {
		return report
	}

	if report.HasStructuralErrors() {
		return report
	}

	fixed := applyFixes(content)

	fixedReport := Validate(fixed)
	fixedReport.Fixed = fixed

	return fixedReport
}

// applyFixes performs only the whitespace-class repairs. It never reorders
// sections, adds sections, or changes content. Rewriting a bad bullet would
// be a content change, so C003 stays report-only.
func applyFixes(content string) string {
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	fixed := strings.Join(lines, "\n")
	fixed = strings.TrimRight(fixed, "\n") + "\n"

	return fixed
}

// document is the parsed shape the rule checks run over.
type document struct {
	frontmatter     map[string]string
	frontmatterOK   bool
	frontmatterKeys []string

	// sections in appearance order: name → content lines; firstLine is the
	// 1-based line of the opening tag.
	sections  map[string][]string
	order     []string
	firstLine map[string]int

	unknownSections []sectionRef
	duplicates      []sectionRef
}

type sectionRef struct {
	name string
	line int
}

func parseDocument(content string) *document {
	doc := &document{
		frontmatter: make(map[string]string),
		sections:    make(map[string][]string),
		firstLine:   make(map[string]int),
	}

	lines := strings.Split(content, "\n")
	body := lines

	// Frontmatter: a leading '---' fence closed by another '---'.
	if len(lines) > 0 && strings.TrimRight(lines[0], " \t") == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimRight(lines[i], " \t") == "---" {
				raw := strings.Join(lines[1:i], "\n")

				var node yaml.Node
				if err := yaml.Unmarshal([]byte(raw), &node); err == nil {
					doc.frontmatterOK = decodeFrontmatter(&node, doc)
				}

				body = lines[i+1:]

				break
			}
		}
	}

	known := make(map[string]bool, len(sectionOrder))
	for _, s := range sectionOrder {
		known[s] = true
	}

	current := ""
	offset := len(lines) - len(body)

	for i, line := range body {
		lineNo := offset + i + 1
		trimmed := strings.TrimRight(line, " \t")

		if m := sectionOpenRe.FindStringSubmatch(trimmed); m != nil {
			name := m[1]

			if !known[name] {
				doc.unknownSections = append(doc.unknownSections, sectionRef{name, lineNo})

				current = ""

				continue
			}

			if _, seen := doc.sections[name]; seen {
				doc.duplicates = append(doc.duplicates, sectionRef{name, lineNo})

				current = ""

				continue
			}

			doc.sections[name] = []string{}
			doc.order = append(doc.order, name)
			doc.firstLine[name] = lineNo
			current = name

			continue
		}

		if current != "" && trimmed == "</"+current+">" {
			current = ""

			continue
		}

		if current != "" {
			doc.sections[current] = append(doc.sections[current], line)
		}
	}

	return doc
}

// decodeFrontmatter extracts string keys while preserving key order so the
// unknown-key report is deterministic.
func decodeFrontmatter(node *yaml.Node, doc *document) bool {
	if node.Kind != yaml.DocumentNode || len(node.Content) != 1 {
		return false
	}

	mapping := node.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return false
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		value := mapping.Content[i+1].Value

		doc.frontmatterKeys = append(doc.frontmatterKeys, key)
		doc.frontmatter[key] = value
	}

	return true
}

func checkFrontmatter(doc *document) []Violation {
	if !doc.frontmatterOK {
		return []Violation{{
			Rule:    RuleFrontmatterMissing,
			Line:    1,
			Message: "frontmatter block missing or invalid: expected a leading '---' fence with name and description",
		}}
	}

	var out []Violation

	name := doc.frontmatter["name"]
	if !styleNameRe.MatchString(name) {
		out = append(out, Violation{
			Rule:    RuleNameInvalid,
			Message: fmt.Sprintf("name %q must be 3-50 characters of A-Z a-z 0-9 _ -, starting alphanumeric", name),
		})
	}

	desc, hasDesc := doc.frontmatter["description"]

	switch {
	case !hasDesc || desc == "":
		out = append(out, Violation{
			Rule:    RuleDescriptionInvalid,
			Message: "description is required",
		})
	case !strings.HasPrefix(desc, "When to use:"):
		out = append(out, Violation{
			Rule:    RuleDescriptionInvalid,
			Message: "description must start with \"When to use:\"",
		})
	case len(desc) < 30 || len(desc) > 200:
		out = append(out, Violation{
			Rule:    RuleDescriptionInvalid,
			Message: fmt.Sprintf("description is %d characters, must be 30-200", len(desc)),
		})
	}

	for _, key := range doc.frontmatterKeys {
		if key != "name" && key != "description" {
			out = append(out, Violation{
				Rule:    RuleUnknownKey,
				Message: fmt.Sprintf("unknown frontmatter key: %s", key),
			})
		}
	}

	return out
}

func checkSections(doc *document) []Violation {
	var out []Violation

	for _, name := range sectionOrder {
		if _, ok := doc.sections[name]; !ok {
			out = append(out, Violation{
				Rule:    RuleSectionMissing,
				Message: fmt.Sprintf("Missing section: %s", name),
			})
		}
	}

	// Order check only makes sense over the sections that are present.
	want := make([]string, 0, len(doc.order))

	for _, name := range sectionOrder {
		if _, ok := doc.sections[name]; ok {
			want = append(want, name)
		}
	}

	for i := range doc.order {
		if doc.order[i] != want[i] {
			out = append(out, Violation{
				Rule:    RuleSectionOrder,
				Line:    doc.firstLine[doc.order[i]],
				Message: fmt.Sprintf("section <%s> out of order: canonical order is %s", doc.order[i], strings.Join(sectionOrder, ", ")),
			})

			break
		}
	}

	for _, dup := range doc.duplicates {
		out = append(out, Violation{
			Rule:    RuleSectionDuplicate,
			Line:    dup.line,
			Message: fmt.Sprintf("duplicate section: %s", dup.name),
		})
	}

	for _, unknown := range doc.unknownSections {
		out = append(out, Violation{
			Rule:    RuleSectionUnknown,
			Line:    unknown.line,
			Message: fmt.Sprintf("unknown section: %s", unknown.name),
		})
	}

	return out
}

func checkContent(doc *document) []Violation {
	var out []Violation

	if lines, ok := doc.sections["examples"]; ok {
		if countExamples(lines) == 0 {
			out = append(out, Violation{
				Rule:    RuleExamplesEmpty,
				Line:    doc.firstLine["examples"],
				Message: "examples section must contain at least one example",
			})
		}
	}

	for _, name := range []string{"do", "dont"} {
		lines, ok := doc.sections[name]
		if !ok {
			continue
		}

		if countBullets(lines) == 0 {
			out = append(out, Violation{
				Rule:    RuleBulletsMissing,
				Line:    doc.firstLine[name],
				Message: fmt.Sprintf("section <%s> must contain at least one '- ' bullet", name),
			})
		}
	}

	for _, name := range []string{"greeting", "closing", "do", "dont"} {
		lines, ok := doc.sections[name]
		if !ok {
			continue
		}

		for i, line := range lines {
			if badBulletRe.MatchString(strings.TrimRight(line, " \t")) {
				out = append(out, Violation{
					Rule:    RuleBulletFormat,
					Line:    doc.firstLine[name] + i + 1,
					Message: "bullet lines must start with '- ' (dash, single space)",
				})
			}
		}
	}

	return out
}

// countExamples counts blocks separated by lines containing only '---'.
func countExamples(lines []string) int {
	count := 0
	current := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			if current > 0 {
				count++
			}

			current = 0

			continue
		}

		if strings.TrimSpace(line) != "" {
			current++
		}
	}

	if current > 0 {
		count++
	}

	return count
}

func countBullets(lines []string) int {
	count := 0

	for _, line := range lines {
		if strings.HasPrefix(line, "- ") {
			count++
		}
	}

	return count
}

func checkWhitespace(content string) []Violation {
	var out []Violation

	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if line != strings.TrimRight(line, " \t") {
			out = append(out, Violation{
				Rule:    RuleTrailingWhitespace,
				Line:    i + 1,
				Message: "trailing whitespace",
				Fixable: true,
			})
		}
	}

	if !strings.HasSuffix(content, "\n") || strings.HasSuffix(content, "\n\n") {
		out = append(out, Violation{
			Rule:    RuleFinalNewline,
			Line:    len(lines),
			Message: "file must end with exactly one newline",
			Fixable: true,
		})
	}

	return out
}
