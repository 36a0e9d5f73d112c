package logutil

import "testing"

func TestSanitizeForLog(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"line1\nline2", "line1 line2"},
		{"a\r\nb", "a  b"},
		{"tab\there", "tab here"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}
	for _, c := range cases {
		if got := SanitizeForLog(c.in); got != c.want {
			t.Errorf("SanitizeForLog(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
