package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validStyle = `---
name: professional-friendly
description: "When to use: everyday work email to colleagues you know."
---
<examples>
Hi Sam,

Quick question about the rollout schedule.

Thanks,
Alex
</examples>
<greeting>
- "Hi {name},"
</greeting>
<body>
Short paragraphs, one ask per email.
</body>
<closing>
- "Thanks,"
</closing>
<do>
- Lead with the ask
</do>
<dont>
- Bury the question
</dont>
`

func ruleCodes(report Report) []string {
	codes := make([]string, 0, len(report.Errors))
	for _, v := range report.Errors {
		codes = append(codes, v.Rule)
	}

	return codes
}

func TestValidateAcceptsCanonicalDocument(t *testing.T) {
	report := Validate(validStyle)
	assert.True(t, report.OK, "violations: %v", report.Errors)
}

func TestValidateMissingFrontmatter(t *testing.T) {
	report := Validate("<examples>\nhi\n</examples>\n")
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleFrontmatterMissing)
}

func TestValidateFrontmatterFields(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(string) string
		wantRule string
	}{
		{
			name: "name too short",
			mutate: func(s string) string {
				return strings.Replace(s, "name: professional-friendly", "name: ab", 1)
			},
			wantRule: RuleNameInvalid,
		},
		{
			name: "description missing prefix",
			mutate: func(s string) string {
				return strings.Replace(s,
					`description: "When to use: everyday work email to colleagues you know."`,
					`description: "Everyday work email to colleagues you know, always."`, 1)
			},
			wantRule: RuleDescriptionInvalid,
		},
		{
			name: "description too short",
			mutate: func(s string) string {
				return strings.Replace(s,
					`description: "When to use: everyday work email to colleagues you know."`,
					`description: "When to use: x"`, 1)
			},
			wantRule: RuleDescriptionInvalid,
		},
		{
			name: "unknown key",
			mutate: func(s string) string {
				return strings.Replace(s, "name: professional-friendly",
					"name: professional-friendly\nauthor: alex", 1)
			},
			wantRule: RuleUnknownKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(tt.mutate(validStyle))
			require.False(t, report.OK)
			assert.Contains(t, ruleCodes(report), tt.wantRule)
		})
	}
}

func TestValidateMissingSectionNamesIt(t *testing.T) {
	noClosing := strings.Replace(validStyle, "<closing>\n- \"Thanks,\"\n</closing>\n", "", 1)

	report := Validate(noClosing)
	require.False(t, report.OK)

	var missing []Violation

	for _, v := range report.Errors {
		if v.Rule == RuleSectionMissing {
			missing = append(missing, v)
		}
	}

	require.Len(t, missing, 1)
	assert.Equal(t, "Missing section: closing", missing[0].Message)
}

func TestValidateSectionOrder(t *testing.T) {
	swapped := strings.Replace(validStyle,
		"<greeting>\n- \"Hi {name},\"\n</greeting>\n<body>\nShort paragraphs, one ask per email.\n</body>\n",
		"<body>\nShort paragraphs, one ask per email.\n</body>\n<greeting>\n- \"Hi {name},\"\n</greeting>\n", 1)

	report := Validate(swapped)
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleSectionOrder)
}

func TestValidateDuplicateAndUnknownSections(t *testing.T) {
	doc := validStyle + "<dont>\n- Again\n</dont>\n<footer>\nx\n</footer>\n"

	report := Validate(doc)
	require.False(t, report.OK)

	codes := ruleCodes(report)
	assert.Contains(t, codes, RuleSectionDuplicate)
	assert.Contains(t, codes, RuleSectionUnknown)
}

func TestValidateContentRules(t *testing.T) {
	emptyExamples := strings.Replace(validStyle,
		"Hi Sam,\n\nQuick question about the rollout schedule.\n\nThanks,\nAlex\n", "", 1)

	report := Validate(emptyExamples)
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleExamplesEmpty)

	noBullets := strings.Replace(validStyle, "- Lead with the ask", "Lead with the ask", 1)

	report = Validate(noBullets)
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleBulletsMissing)

	badBullet := strings.Replace(validStyle, "- Bury the question", "-Bury the question", 1)

	report = Validate(badBullet)
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleBulletFormat)
}

func TestValidateAndFixWhitespaceOnly(t *testing.T) {
	dirty := strings.Replace(validStyle, "Hi Sam,", "Hi Sam,  ", 1)
	dirty = strings.Replace(dirty, "- Lead with the ask", "- Lead with the ask\t", 1)
	dirty = strings.TrimRight(dirty, "\n") // drop final newline too

	report := ValidateAndFix(dirty)

	require.True(t, report.OK, "violations: %v", report.Errors)
	require.NotEmpty(t, report.Fixed)
	assert.Equal(t, validStyle, report.Fixed)

	// A second pass is a fixed point.
	again := ValidateAndFix(report.Fixed)
	assert.True(t, again.OK)
	assert.Empty(t, again.Fixed)
}

func TestValidateAndFixShortCircuitsOnStructural(t *testing.T) {
	noClosing := strings.Replace(validStyle, "<closing>\n- \"Thanks,\"\n</closing>\n", "", 1)
	dirty := strings.Replace(noClosing, "Hi Sam,", "Hi Sam,   ", 1)

	report := ValidateAndFix(dirty)

	require.False(t, report.OK)
	assert.Empty(t, report.Fixed)
	assert.Contains(t, ruleCodes(report), RuleSectionMissing)
}

func TestValidateFinalNewline(t *testing.T) {
	report := Validate(validStyle + "\n")
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleFinalNewline)

	report = Validate(strings.TrimRight(validStyle, "\n"))
	require.False(t, report.OK)
	assert.Contains(t, ruleCodes(report), RuleFinalNewline)
}
