package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"mail-cli/pkg/models"

	"google.golang.org/api/gmail/v1"
)

// ToSummary projects a Gmail message onto the cheap read model. It reads
// only headers and top-level metadata, so it works for format=metadata
// responses as well as full ones.
func ToSummary(msg *gmail.Message) (models.Summary, error) {
	if msg == nil {
		return models.Summary{}, fmt.Errorf("message is nil")
	}

	from := models.Address{}
	if raw := headerValue(msg, "From"); raw != "" {
		if addrs := models.ParseAddressList(raw); len(addrs) > 0 {
			from = addrs[0]
		}
	}

	return models.Summary{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		From:         from,
		To:           models.ParseAddressList(headerValue(msg, "To")),
		Cc:           models.ParseAddressList(headerValue(msg, "Cc")),
		Subject:      headerValue(msg, "Subject"),
		Date:         messageDate(msg),
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
		SizeEstimate: msg.SizeEstimate,
	}, nil
}

// ToFull projects a Gmail message onto the complete read model. Body
// extraction is total: missing bodies yield empty strings, and per-part
// decode failures become warnings rather than errors.
func ToFull(msg *gmail.Message) (models.Full, error) {
	summary, err := ToSummary(msg)
	if err != nil {
		return models.Full{}, err
	}

	full := models.Full{Summary: summary}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			full.Headers.Add(h.Name, h.Value)
		}

		full.BodyText = extractBody(msg.Payload, "text/plain", &full.Warnings)
		full.BodyHTML = extractBody(msg.Payload, "text/html", &full.Warnings)
		full.Attachments = collectAttachments(msg.Payload)
	}

	return full, nil
}

// extractBody walks the part tree depth-first and returns the first
// non-empty body of the requested MIME type. Later or deeper parts are used
// only when earlier ones are empty or fail to decode.
func extractBody(part *gmail.MessagePart, mimeType string, warnings *[]string) string {
	if part == nil {
		return ""
	}

	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := decodeBody(part.Body.Data)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("failed to decode %s part: %v", mimeType, err))
		} else if len(decoded) > 0 {
			return string(decoded)
		}
	}

	for _, sub := range part.Parts {
		if body := extractBody(sub, mimeType, warnings); body != "" {
			return body
		}
	}

	return ""
}

// decodeBody tries URL-safe base64 first, then standard; Gmail uses the
// former but some payloads in the wild carry the latter.
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}

	return base64.StdEncoding.DecodeString(data)
}

// collectAttachments walks the part tree and keeps only parts that are real
// user attachments: they must carry an attachment ID, must not be calendar
// invites, and inline parts without a filename are presentation artifacts,
// not attachments.
func collectAttachments(part *gmail.MessagePart) []models.AttachmentRef {
	var refs []models.AttachmentRef

	collectAttachmentsInto(part, &refs)

	return refs
}

func collectAttachmentsInto(part *gmail.MessagePart, refs *[]models.AttachmentRef) {
	if part == nil {
		return
	}

	if isUserAttachment(part) {
		*refs = append(*refs, models.AttachmentRef{
			Filename:     part.Filename,
			MimeType:     part.MimeType,
			Size:         part.Body.Size,
			AttachmentID: part.Body.AttachmentId,
		})
	}

	for _, sub := range part.Parts {
		collectAttachmentsInto(sub, refs)
	}
}

func isUserAttachment(part *gmail.MessagePart) bool {
	if part.Body == nil || part.Body.AttachmentId == "" {
		return false
	}

	if strings.EqualFold(part.MimeType, "text/calendar") {
		return false
	}

	if part.Filename == "" && isInline(part) {
		return false
	}

	return true
}

func isInline(part *gmail.MessagePart) bool {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, "Content-Disposition") &&
			strings.HasPrefix(strings.ToLower(h.Value), "inline") {
			return true
		}
	}

	return false
}

// headerValue returns a payload header by name, case-insensitive.
func headerValue(msg *gmail.Message, name string) string {
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

// messageDate parses the Date header, falling back to Gmail's internal
// millisecond timestamp.
func messageDate(msg *gmail.Message) time.Time {
	if raw := headerValue(msg, "Date"); raw != "" {
		formats := []string{
			time.RFC1123Z,
			time.RFC1123,
			"Mon, 2 Jan 2006 15:04:05 -0700",
			"2 Jan 2006 15:04:05 -0700",
			"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, raw); err == nil {
				return t
			}
		}
	}

	if msg.InternalDate > 0 {
		return time.Unix(msg.InternalDate/1000, (msg.InternalDate%1000)*1000000)
	}

	return time.Time{}
}
