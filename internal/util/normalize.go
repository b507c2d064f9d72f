// Package util holds small helpers shared across packages.
package util

import (
	"net/mail"
	"strings"
)

// NormalizeSender reduces an RFC 5322 From/To header value to a bare
// lowercased address, stripping any +alias from the local part so
// "Alice <alice+news@Example.COM>" and "alice@example.com" compare equal.
// Returns "" when no address can be parsed.
func NormalizeSender(header string) string {
	addr := parseAddress(header)
	if addr == nil {
		return ""
	}

	email := strings.ToLower(strings.TrimSpace(addr.Address))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if plus := strings.IndexByte(local, '+'); plus > -1 {
		local = local[:plus]
	}
	// Dots in the local part stay: only some providers ignore them, and
	// collapsing would over-group addresses across the rest.
	return local + "@" + domain
}

func parseAddress(header string) *mail.Address {
	if header == "" {
		return nil
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return addr
	}
	// Header may be an address list; take the first parseable entry.
	for _, part := range strings.Split(header, ",") {
		if addr, err := mail.ParseAddress(strings.TrimSpace(part)); err == nil {
			return addr
		}
	}
	return nil
}
