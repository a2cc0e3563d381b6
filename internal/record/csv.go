package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column aliases accepted for each logical field. Header matching is
// case-insensitive and ignores surrounding whitespace.
var (
	checklistColumns = map[string][]string{
		"vuln_id":     {"vuln_id", "vuln id", "vulnerability id", "group id"},
		"rule_id":     {"rule_id", "rule id"},
		"title":       {"title", "rule title"},
		"description": {"description", "discussion", "vuln discussion"},
		"check":       {"check", "check content"},
		"fix":         {"fix", "fix text"},
		"severity":    {"severity"},
	}

	weaknessColumns = map[string][]string{
		"cwe_id":       {"cwe-id", "cwe_id", "cwe id", "id"},
		"name":         {"name"},
		"description":  {"full description", "description && notes", "description"},
		"introduction": {"modes or phase of introduction", "modes of introduction"},
		"consequences": {"common consequences"},
		"detection":    {"detection methods"},
		"mitigations":  {"potential mitigations"},
		"examples":     {"observed examples"},
	}
)

// csvTable maps logical field names to column positions for one file.
type csvTable struct {
	cols map[string]int
}

func newCSVTable(header []string, aliases map[string][]string) csvTable {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}

	t := csvTable{cols: make(map[string]int, len(aliases))}
	for field, names := range aliases {
		for _, name := range names {
			if i, ok := pos[name]; ok {
				t.cols[field] = i
				break
			}
		}
	}
	return t
}

func (t csvTable) get(row []string, field string) string {
	i, ok := t.cols[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t csvTable) has(field string) bool {
	_, ok := t.cols[field]
	return ok
}

// readCSV reads all rows and hands each one, with the resolved table, to fn.
func readCSV(r io.Reader, aliases map[string][]string, required string, fn func(csvTable, []string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("csv input is empty")
		}
		return fmt.Errorf("reading csv header: %w", err)
	}

	table := newCSVTable(header, aliases)
	if !table.has(required) {
		return fmt.Errorf("csv header has no %s column", required)
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("reading csv line %d: %w", line, err)
		}
		fn(table, row)
	}
}

// ReadChecklistCSV parses a flattened checklist export.
func ReadChecklistCSV(r io.Reader) ([]ChecklistItem, error) {
	var items []ChecklistItem
	err := readCSV(r, checklistColumns, "vuln_id", func(t csvTable, row []string) {
		items = append(items, ChecklistItem{
			VulnID:      t.get(row, "vuln_id"),
			RuleID:      t.get(row, "rule_id"),
			Title:       t.get(row, "title"),
			Description: t.get(row, "description"),
			Check:       t.get(row, "check"),
			Fix:         t.get(row, "fix"),
			Severity:    t.get(row, "severity"),
		})
	})
	return items, err
}

// ReadWeaknessCSV parses a weakness catalogue export.
func ReadWeaknessCSV(r io.Reader) ([]WeaknessItem, error) {
	var items []WeaknessItem
	err := readCSV(r, weaknessColumns, "cwe_id", func(t csvTable, row []string) {
		items = append(items, WeaknessItem{
			CWEID:        t.get(row, "cwe_id"),
			Name:         t.get(row, "name"),
			Description:  t.get(row, "description"),
			Introduction: t.get(row, "introduction"),
			Consequences: t.get(row, "consequences"),
			Detection:    t.get(row, "detection"),
			Mitigations:  t.get(row, "mitigations"),
			Examples:     t.get(row, "examples"),
		})
	})
	return items, err
}
