// Package record defines the core domain types for security corpus records.
package record

import (
	"fmt"
	"strings"
)

// SourceKind identifies which source schema a record came from.
type SourceKind string

const (
	// KindChecklist marks security-control checklist items (e.g. STIG rules).
	KindChecklist SourceKind = "CHECKLIST"
	// KindWeakness marks weakness-enumeration items (e.g. MITRE CWE entries).
	KindWeakness SourceKind = "WEAKNESS"
)

// ParseSourceKind accepts the canonical kind names as well as the source
// labels used by the upstream converters ("STIG", "MITRE").
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CHECKLIST", "STIG":
		return KindChecklist, nil
	case "WEAKNESS", "MITRE", "CWE":
		return KindWeakness, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	return k == KindChecklist || k == KindWeakness
}

// CanonicalRecord is the single shape every source record is normalized into.
type CanonicalRecord struct {
	ID         string     `json:"id"`
	SourceKind SourceKind `json:"source_kind"`
	Title      string     `json:"title"`
	BodyText   string     `json:"body_text"` // The only text that is ever embedded
	Severity   string     `json:"severity,omitempty"`
}

// Metadata is the denormalized projection of a CanonicalRecord stored at one
// index slot. It is used for display and context assembly only.
type Metadata struct {
	Slot       int        `json:"slot"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	SourceKind SourceKind `json:"source_kind"`
	Severity   string     `json:"severity"`
	BodyText   string     `json:"body_text"`
}

// ToMetadata projects the record onto the given slot.
func (r CanonicalRecord) ToMetadata(slot int) Metadata {
	return Metadata{
		Slot:       slot,
		ID:         r.ID,
		Title:      r.Title,
		SourceKind: r.SourceKind,
		Severity:   r.Severity,
		BodyText:   r.BodyText,
	}
}

// DisplayTitle returns the title decorated with the record identifier,
// e.g. "CWE-79: Improper Neutralization..." or "V-1001: Disable unused services".
func (m Metadata) DisplayTitle() string {
	title := m.Title
	if title == "" {
		title = "Untitled"
	}
	if m.ID == "" {
		return title
	}
	return m.ID + ": " + title
}

// SourceLabel is the short source tag shown in evidence headers.
func (m Metadata) SourceLabel() string {
	switch m.SourceKind {
	case KindChecklist:
		return "STIG"
	case KindWeakness:
		return "CWE"
	default:
		return "Unknown"
	}
}
