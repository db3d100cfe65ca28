// Package aimention turns "@ai" chat messages into AI-authored replies.
package aimention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker is the invocation marker.
const Marker = "@ai"

// Matcher decides whether a chat message invokes the AI.
type Matcher func(text string) bool

// ContainsMarker matches the marker anywhere, case-sensitively, including
// inside words and email addresses such as "mail@aiden.dev".
func ContainsMarker(text string) bool {
	return strings.Contains(text, Marker)
}

// WordBoundaryMatcher matches the marker only when it is not glued to a
// letter, digit or underscore on either side.
func WordBoundaryMatcher(text string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], Marker)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(Marker)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		i = start + 1
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

// Prompt removes the first occurrence of the marker.
func Prompt(text string) string {
	return strings.Replace(text, Marker, "", 1)
}
