package query

import "testing"

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no identifiers", "how do I harden ssh", "how do I harden ssh"},
		{"one identifier", "explain CWE-79", "explain CWE-79 Related CWE IDs: CWE-79"},
		{"lowercase", "what about cwe-89?", "what about cwe-89? Related CWE IDs: CWE-89"},
		{"several in order", "CWE-22 vs CWE-79", "CWE-22 vs CWE-79 Related CWE IDs: CWE-22 CWE-79"},
		{"not a word boundary", "XCWE-12", "XCWE-12"},
		{"other families ignored", "CVE-2021-44228", "CVE-2021-44228"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteQuery(tt.in); got != tt.want {
				t.Errorf("RewriteQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
