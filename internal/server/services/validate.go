package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// validEmail accepts a bare address with a dotted domain, e.g. "a@x.com".
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, ok := strings.Cut(s, "@")
	if !ok {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-2
}

func minLen(s string, n int) bool {
	return utf8.RuneCountInString(s) >= n
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
