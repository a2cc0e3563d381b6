package record

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyBody is returned when every descriptive field of a raw record is empty.
var ErrEmptyBody = errors.New("record has no descriptive text")

// BodySeparator joins descriptive fields inside BodyText.
const BodySeparator = "\n\n"

// ChecklistItem is a raw security-control checklist entry.
type ChecklistItem struct {
	VulnID      string `json:"vuln_id"`
	RuleID      string `json:"rule_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Check       string `json:"check"`
	Fix         string `json:"fix"`
	Severity    string `json:"severity"`
}

// WeaknessItem is a raw weakness-enumeration entry.
type WeaknessItem struct {
	CWEID        string `json:"cwe_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Introduction string `json:"introduction"`
	Consequences string `json:"consequences"`
	Detection    string `json:"detection"`
	Mitigations  string `json:"mitigations"`
	Examples     string `json:"examples"`
}

// checklistFields is the fixed concatenation order for checklist items.
// Changing it changes every embedding, so it must stay stable across builds.
func checklistFields(c ChecklistItem) []string {
	return []string{c.Title, c.Description, c.Check, c.Fix}
}

// weaknessFields is the fixed concatenation order for weakness items.
func weaknessFields(w WeaknessItem) []string {
	return []string{
		w.Name,
		w.Description,
		w.Introduction,
		w.Consequences,
		w.Detection,
		w.Mitigations,
		w.Examples,
	}
}

// joinFields trims each part and joins the non-empty ones with BodySeparator.
func joinFields(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, BodySeparator)
}

// hasText reports whether any of the given fields is non-blank.
func hasText(parts ...string) bool {
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// NormalizeChecklist maps a checklist item onto a CanonicalRecord.
// The second return value is false when the item has no descriptive text.
func NormalizeChecklist(c ChecklistItem) (CanonicalRecord, bool) {
	if !hasText(c.Description, c.Check, c.Fix) {
		return CanonicalRecord{}, false
	}

	id := strings.TrimSpace(c.VulnID)
	if id == "" {
		id = strings.TrimSpace(c.RuleID)
	}

	return CanonicalRecord{
		ID:         id,
		SourceKind: KindChecklist,
		Title:      strings.TrimSpace(c.Title),
		BodyText:   joinFields(checklistFields(c)),
		Severity:   strings.ToLower(strings.TrimSpace(c.Severity)),
	}, true
}

// NormalizeWeakness maps a weakness item onto a CanonicalRecord.
// The second return value is false when the item has no descriptive text.
func NormalizeWeakness(w WeaknessItem) (CanonicalRecord, bool) {
	if !hasText(w.Description, w.Introduction, w.Consequences, w.Detection, w.Mitigations, w.Examples) {
		return CanonicalRecord{}, false
	}

	return CanonicalRecord{
		ID:         WeaknessID(w.CWEID),
		SourceKind: KindWeakness,
		Title:      strings.TrimSpace(w.Name),
		BodyText:   joinFields(weaknessFields(w)),
	}, true
}

var cweNumberPattern = regexp.MustCompile(`(?i)^(?:CWE-?)?\s*(\d+)$`)

// WeaknessID derives the canonical identifier from a numeric weakness code.
// "79", "CWE-79" and "cwe79" all become "CWE-79". Codes that are not numeric
// are returned trimmed and otherwise unchanged.
func WeaknessID(code string) string {
	code = strings.TrimSpace(code)
	if m := cweNumberPattern.FindStringSubmatch(code); m != nil {
		n := strings.TrimLeft(m[1], "0")
		if n == "" {
			n = "0"
		}
		return "CWE-" + n
	}
	return code
}
