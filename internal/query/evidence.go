package query

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// BlockSeparator joins evidence blocks.
const BlockSeparator = "\n\n====\n\n"

// NoUsableEntriesMessage is shown when no evidence block fits the budget.
const NoUsableEntriesMessage = ":: No usable entries found. Try a simpler query."

// ErrNoUsableEntries means the first block alone exceeds the budget, or
// there were no hits at all.
var ErrNoUsableEntries = errors.New("no usable entries")

// Evidence is the assembled context handed to an answerer.
type Evidence struct {
	Text   string `json:"text"`
	Blocks int    `json:"blocks"`
	Chars  int    `json:"chars"`
	Hits   []Hit  `json:"hits"` // The hits whose blocks were included
}

// CleanText collapses all whitespace runs to single spaces and keeps at most
// maxChars runes. maxChars <= 0 means no cap.
func CleanText(text string, maxChars int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if maxChars > 0 {
		cleaned = truncateRunes(cleaned, maxChars)
	}
	return cleaned
}

// truncateRunes keeps at most n runes of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// indent prefixes every non-empty line with two spaces.
func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n")
}

// FormatBlock renders one evidence block: a "[source] id - title" header
// followed by the cleaned body indented by two spaces.
func FormatBlock(h Hit, bodyChars int) string {
	title := h.Record.Title
	if title == "" {
		title = "Untitled"
	}
	id := h.Record.ID
	if id == "" {
		id = "N/A"
	}
	header := "[" + h.Record.SourceLabel() + "] " + id + " - " + title
	return header + "\n" + indent(CleanText(h.Record.BodyText, bodyChars))
}

// AssembleEvidence adds blocks in rank order while the joined text, including
// separators, stays within maxChars runes. The first block that does not fit
// ends accumulation and is dropped whole, so no partial block is ever
// emitted. Returns ErrNoUsableEntries when nothing fits.
func AssembleEvidence(hits []Hit, maxChars, bodyChars int) (*Evidence, error) {
	ev := &Evidence{}
	var blocks []string
	sepLen := utf8.RuneCountInString(BlockSeparator)

	for _, h := range hits {
		block := FormatBlock(h, bodyChars)
		cost := utf8.RuneCountInString(block)
		if len(blocks) > 0 {
			cost += sepLen
		}
		if ev.Chars+cost > maxChars {
			break
		}
		blocks = append(blocks, block)
		ev.Hits = append(ev.Hits, h)
		ev.Chars += cost
	}

	if len(blocks) == 0 {
		return nil, ErrNoUsableEntries
	}
	ev.Text = strings.Join(blocks, BlockSeparator)
	ev.Blocks = len(blocks)
	return ev, nil
}

const promptTemplate = `You are a focused cybersecurity assistant. Use only the provided context from STIGs or MITRE CWEs to answer the user's question.
- Do not speculate or hallucinate.
- If the answer is not in the context, say so.

User Question: {question}

Context:
{context}

Answer:`

// RenderPrompt fills the answer template with the question and evidence.
func RenderPrompt(question, context string) string {
	r := strings.NewReplacer("{question}", question, "{context}", context)
	return strings.TrimSpace(r.Replace(promptTemplate))
}
