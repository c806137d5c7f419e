package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mail-cli/pkg/mailerr"
	"mail-cli/pkg/models"
)

// DefaultMaxMessageSize caps the assembled MIME message at 25 MiB.
const DefaultMaxMessageSize = 25 << 20

// messageSpec is everything the MIME builder needs, already expanded and
// validated by the pipeline.
type messageSpec struct {
	From    string
	To      []models.Address
	Cc      []models.Address
	Bcc     []models.Address
	Subject string
	Body    string

	// Reply threading headers, empty for fresh messages.
	InReplyTo  string
	References string

	Attachments []string
	MaxSize     int64
}

// buildMIME assembles an RFC 2822 message. Messages without attachments are
// plain text/plain; with attachments the result is multipart/mixed.
func buildMIME(spec messageSpec) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}

	writeHeader("From", spec.From)
	writeHeader("To", joinAddresses(spec.To))
	writeHeader("Cc", joinAddresses(spec.Cc))
	writeHeader("Bcc", joinAddresses(spec.Bcc))
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", spec.Subject))
	writeHeader("Date", time.Now().Format(time.RFC1123Z))
	writeHeader("In-Reply-To", spec.InReplyTo)
	writeHeader("References", spec.References)
	writeHeader("MIME-Version", "1.0")

	if len(spec.Attachments) == 0 {
		writeHeader("Content-Type", `text/plain; charset="UTF-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(spec.Body)

		return capSize(buf.Bytes(), spec.MaxSize)
	}

	mw := multipart.NewWriter(&buf)

	writeHeader("Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, mw.Boundary()))
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", `text/plain; charset="UTF-8"`)

	part, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}

	if _, err := part.Write([]byte(spec.Body)); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}

	for _, path := range spec.Attachments {
		if err := writeAttachment(mw, path); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize message: %w", err)
	}

	return capSize(buf.Bytes(), spec.MaxSize)
}

func capSize(raw []byte, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}

	if int64(len(raw)) > maxSize {
		return nil, mailerr.New(mailerr.CodeValidation,
			"message is %d bytes, limit is %d", len(raw), maxSize)
	}

	return raw, nil
}

func writeAttachment(mw *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return mailerr.Wrap(mailerr.CodeFilesystem, err, "unable to read attachment %s", path)
	}

	name := filepath.Base(path)

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", detectContentType(name, data))
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create attachment part: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	// RFC 2045 line length limit.
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}

		if _, err := part.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return fmt.Errorf("failed to write attachment data: %w", err)
		}

		encoded = encoded[n:]
	}

	return nil
}

// detectContentType resolves by extension first, then content sniffing.
func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}

	if ct := http.DetectContentType(data); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

func joinAddresses(addrs []models.Address) string {
	specs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		specs = append(specs, a.String())
	}

	return strings.Join(specs, ", ")
}
