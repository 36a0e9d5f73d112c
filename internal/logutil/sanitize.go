// Package logutil has helpers for writing untrusted strings to the log.
package logutil

import "strings"

// SanitizeForLog makes a user-provided string safe for a single log line:
// newlines and tabs become spaces, remaining control characters are
// dropped. Without this a crafted server name or command could forge log
// entries.
func SanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		if r < 32 {
			return -1
		}
		return r
	}, s)
}
