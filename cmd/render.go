package main

import (
	"fmt"
	"strings"

	mdconverter "github.com/JohannesKaufmann/html-to-markdown/v2"

	"mail-cli/pkg/models"
)

// renderSummaryLine prints one list row.
func renderSummaryLine(s models.Summary) {
	marker := " "
	if s.IsUnread() {
		marker = "*"
	}

	fmt.Printf("%s %-18s %-28s %s\n", marker, s.ID, truncate(s.From.Spec(), 28), truncate(s.Subject, 60))
}

// renderSummary prints the summary detail block.
func renderSummary(s models.Summary) {
	fmt.Printf("ID:      %s\n", s.ID)
	fmt.Printf("Thread:  %s\n", s.ThreadID)
	fmt.Printf("From:    %s\n", s.From.String())
	fmt.Printf("To:      %s\n", joinSpecs(s.To))

	if len(s.Cc) > 0 {
		fmt.Printf("Cc:      %s\n", joinSpecs(s.Cc))
	}

	fmt.Printf("Subject: %s\n", s.Subject)
	fmt.Printf("Date:    %s\n", s.Date.Format("2006-01-02 15:04"))

	if s.Snippet != "" {
		fmt.Printf("\n%s\n", s.Snippet)
	}
}

// renderFull prints the full message. HTML-only bodies are converted to
// markdown for terminal reading.
func renderFull(f models.Full) {
	renderSummary(f.Summary)
	fmt.Println()
	fmt.Println(renderBody(f))

	if len(f.Attachments) > 0 {
		fmt.Println("\nAttachments:")

		for _, a := range f.Attachments {
			fmt.Printf("  %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.Size)
		}
	}

	for _, w := range f.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func renderBody(f models.Full) string {
	if f.BodyText != "" {
		return f.BodyText
	}

	if f.BodyHTML != "" {
		if markdown, err := mdconverter.ConvertString(f.BodyHTML); err == nil {
			return markdown
		}

		return f.BodyHTML
	}

	return "(no body)"
}

func renderProgress(p models.Progress) string {
	return fmt.Sprintf("%d/%d processed, %d remaining", p.Processed, p.Total, p.Remaining)
}

func joinSpecs(addrs []models.Address) string {
	specs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		specs = append(specs, a.Spec())
	}

	return strings.Join(specs, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n-1] + "…"
}
