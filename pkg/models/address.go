package models

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Address is a parsed email address with an optional display name. Local and
// Domain are stored separately so deduplication can be case-insensitive on
// the domain while staying case-sensitive on the local part.
type Address struct {
	Name   string `json:"name,omitempty"`
	Local  string `json:"local"`
	Domain string `json:"domain"`
}

// Lenient RFC-5321-ish shape. Gmail accepts more than the RFC grammar in
// practice, so the check stays permissive; the one-dot domain rule catches
// the common "user@host" typo.
var addrSpecRe = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)+$`)

// ParseAddress parses `"Name" <x@y>`, `Name <x@y>` or bare `x@y`.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	name := ""
	spec := raw

	if parsed, err := mail.ParseAddress(raw); err == nil {
		name = parsed.Name
		spec = parsed.Address
	}

	if !addrSpecRe.MatchString(spec) {
		return Address{}, fmt.Errorf("malformed address %q", raw)
	}

	at := strings.LastIndex(spec, "@")

	return Address{
		Name:   name,
		Local:  spec[:at],
		Domain: spec[at+1:],
	}, nil
}

// ParseAddressList parses a comma-separated header value into addresses.
// Individually malformed entries are skipped; header values coming off the
// wire are best-effort, unlike user-supplied recipients which go through
// ParseAddress and fail loudly.
func ParseAddressList(raw string) []Address {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []Address

	if parsed, err := mail.ParseAddressList(raw); err == nil {
		for _, p := range parsed {
			if addr, err := ParseAddress(p.String()); err == nil {
				out = append(out, addr)
			}
		}

		return out
	}

	for _, part := range splitAddressList(raw) {
		if addr, err := ParseAddress(part); err == nil {
			out = append(out, addr)
		}
	}

	return out
}

// splitAddressList splits on commas outside quotes and angle brackets.
func splitAddressList(raw string) []string {
	var (
		parts   []string
		current strings.Builder
	)

	inQuotes := false
	inAngle := false

	for _, r := range raw {
		switch r {
		case '"':
			inQuotes = !inQuotes

			current.WriteRune(r)
		case '<':
			inAngle = true

			current.WriteRune(r)
		case '>':
			inAngle = false

			current.WriteRune(r)
		case ',':
			if !inQuotes && !inAngle {
				if p := strings.TrimSpace(current.String()); p != "" {
					parts = append(parts, p)
				}

				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}

	if p := strings.TrimSpace(current.String()); p != "" {
		parts = append(parts, p)
	}

	return parts
}

// Spec returns the bare addr-spec form, local@domain.
func (a Address) Spec() string {
	return a.Local + "@" + a.Domain
}

// Key is the deduplication identity: case-sensitive local part plus
// lowercased domain.
func (a Address) Key() string {
	return a.Local + "@" + strings.ToLower(a.Domain)
}

// String renders the address for a header, quoting the display name when set.
func (a Address) String() string {
	if a.Name == "" {
		return a.Spec()
	}

	return (&mail.Address{Name: a.Name, Address: a.Spec()}).String()
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Local == "" && a.Domain == ""
}

// DedupAddresses removes duplicates by Key, preserving first occurrence.
func DedupAddresses(addrs []Address) []Address {
	seen := make(map[string]bool, len(addrs))
	out := make([]Address, 0, len(addrs))

	for _, a := range addrs {
		if seen[a.Key()] {
			continue
		}

		seen[a.Key()] = true

		out = append(out, a)
	}

	return out
}
