package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// parseDateTime parses the --since flag. Accepted forms, tried in order:
// named dates (today, yesterday, tomorrow), ISO 8601 variants, relative day
// counts like "7d", Go durations like "24h", then natural language via
// go-naturaldate ("last week", "3 days ago"). ISO formats are tried before
// natural language so parsing stays deterministic.
func parseDateTime(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	now := time.Now()

	switch dateStr {
	case "today":
		return midnight(now), nil
	case "tomorrow":
		return midnight(now.AddDate(0, 0, 1)), nil
	case "yesterday":
		return midnight(now.AddDate(0, 0, -1)), nil
	}

	isoFormats := []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range isoFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	// Go's ParseDuration has no day unit.
	if daysStr, ok := strings.CutSuffix(dateStr, "d"); ok {
		if days, err := strconv.Atoi(daysStr); err == nil && days >= 0 {
			return now.Add(-time.Duration(days) * 24 * time.Hour), nil
		}
	}

	if duration, err := time.ParseDuration(dateStr); err == nil {
		return now.Add(-duration), nil
	}

	return parseNaturalDate(dateStr, now)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseNaturalDate is the natural-language fallback. naturaldate returns the
// reference time instead of an error for some unparseable inputs, so a
// result equal to now is only accepted for explicit "now" spellings.
func parseNaturalDate(dateStr string, now time.Time) (time.Time, error) {
	t, err := naturaldate.Parse(dateStr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date: %s. Supported formats: ISO 8601 (2006-01-02), relative durations (7d, 24h), named dates (today, yesterday, tomorrow), or natural language (last week, 3 days ago)", dateStr)
	}

	if !t.Equal(now) {
		return t, nil
	}

	switch strings.ToLower(strings.TrimSpace(dateStr)) {
	case "now", "right now", "currently":
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
