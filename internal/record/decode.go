package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownSchema is returned when a raw line matches neither source schema.
var ErrUnknownSchema = errors.New("cannot determine record schema")

// FlexibleString can unmarshal from either string or number JSON values.
// Weakness codes arrive as 79 or "79" depending on the exporter.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		// Integral floats (79.0) are emitted by some spreadsheet exports.
		if v, err := strconv.ParseFloat(n.String(), 64); err == nil && v == float64(int64(v)) {
			*f = FlexibleString(strconv.FormatInt(int64(v), 10))
			return nil
		}
		*f = FlexibleString(n.String())
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return string(f)
}

// rawLine is the union of every field the upstream converters emit.
type rawLine struct {
	// Canonical records
	ID         FlexibleString `json:"id"`
	SourceKind string         `json:"source_kind"`
	BodyText   string         `json:"body_text"`

	Source string `json:"source"` // STIG or MITRE

	// Checklist fields
	VulnID      FlexibleString `json:"vuln_id"`
	RuleID      string         `json:"rule_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Check       string         `json:"check"`
	Fix         string         `json:"fix"`
	Severity    string         `json:"severity"`

	// Weakness fields
	CWEID        FlexibleString `json:"cwe_id"`
	Name         string         `json:"name"`
	Introduction string         `json:"introduction"`
	Likelihood   string         `json:"likelihood"`
	Consequences string         `json:"consequences"`
	Detection    string         `json:"detection"`
	Mitigations  string         `json:"mitigations"`
	Examples     string         `json:"examples"`
}

func (l rawLine) checklist() ChecklistItem {
	return ChecklistItem{
		VulnID:      l.VulnID.String(),
		RuleID:      l.RuleID,
		Title:       l.Title,
		Description: l.Description,
		Check:       l.Check,
		Fix:         l.Fix,
		Severity:    l.Severity,
	}
}

func (l rawLine) weakness() WeaknessItem {
	code := l.CWEID.String()
	if code == "" {
		code = l.ID.String()
	}
	intro := l.Introduction
	if intro == "" {
		intro = l.Likelihood
	}
	name := l.Name
	if name == "" {
		name = l.Title
	}
	return WeaknessItem{
		CWEID:        code,
		Name:         name,
		Description:  l.Description,
		Introduction: intro,
		Consequences: l.Consequences,
		Detection:    l.Detection,
		Mitigations:  l.Mitigations,
		Examples:     l.Examples,
	}
}

// detectKind decides which schema a raw line follows.
func (l rawLine) detectKind() (SourceKind, error) {
	if l.Source != "" {
		if kind, err := ParseSourceKind(l.Source); err == nil {
			return kind, nil
		}
	}
	switch {
	case l.VulnID != "" || l.RuleID != "" || l.Check != "" || l.Fix != "":
		return KindChecklist, nil
	case l.CWEID != "" || l.Name != "" || l.Mitigations != "" || l.Consequences != "":
		return KindWeakness, nil
	}
	return "", ErrUnknownSchema
}

// DecodeLine parses one JSONL line in any supported shape and normalizes it.
// The boolean is false when the record carries no descriptive text and must
// be skipped.
func DecodeLine(data []byte) (CanonicalRecord, bool, error) {
	var l rawLine
	if err := json.Unmarshal(data, &l); err != nil {
		return CanonicalRecord{}, false, fmt.Errorf("parsing record: %w", err)
	}

	if l.SourceKind != "" {
		kind, err := ParseSourceKind(l.SourceKind)
		if err != nil {
			return CanonicalRecord{}, false, err
		}
		rec := CanonicalRecord{
			ID:         strings.TrimSpace(l.ID.String()),
			SourceKind: kind,
			Title:      strings.TrimSpace(l.Title),
			BodyText:   strings.TrimSpace(l.BodyText),
			Severity:   strings.TrimSpace(l.Severity),
		}
		if kind == KindWeakness {
			rec.ID = WeaknessID(rec.ID)
			rec.Severity = ""
		}
		if rec.BodyText == "" {
			return CanonicalRecord{}, false, nil
		}
		return rec, true, rec.Validate()
	}

	kind, err := l.detectKind()
	if err != nil {
		return CanonicalRecord{}, false, err
	}

	var (
		rec CanonicalRecord
		ok  bool
	)
	if kind == KindChecklist {
		rec, ok = NormalizeChecklist(l.checklist())
	} else {
		rec, ok = NormalizeWeakness(l.weakness())
	}
	if !ok {
		return CanonicalRecord{}, false, nil
	}
	return rec, true, rec.Validate()
}

// Validate checks the invariants a record must satisfy before it is embedded.
func (r CanonicalRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record has no id")
	}
	if !r.SourceKind.Valid() {
		return fmt.Errorf("record %s: invalid source kind %q", r.ID, r.SourceKind)
	}
	if strings.TrimSpace(r.BodyText) == "" {
		return fmt.Errorf("record %s: %w", r.ID, ErrEmptyBody)
	}
	return nil
}
