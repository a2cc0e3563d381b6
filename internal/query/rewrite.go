package query

import (
	"regexp"
	"strings"
)

var cweIDPattern = regexp.MustCompile(`\bCWE-(\d+)\b`)

// RewriteQuery appends every CWE identifier mentioned in q, in order of
// appearance, as " Related CWE IDs: CWE-n ...". Matching is case-insensitive;
// the original text is kept verbatim. Queries without identifiers are
// returned unchanged.
func RewriteQuery(q string) string {
	matches := cweIDPattern.FindAllStringSubmatch(strings.ToUpper(q), -1)
	if len(matches) == 0 {
		return q
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = "CWE-" + m[1]
	}
	return q + " Related CWE IDs: " + strings.Join(ids, " ")
}
