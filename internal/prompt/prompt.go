// Package prompt assembles the user prompt sent to the chat model from a
// question and the ranked chunks retrieved for it. Every chunk is trimmed and
// hard-truncated, so the size of the request stays bounded no matter how large
// the indexed documents are.
package prompt

import (
	"fmt"
	"strings"
)

const (
	// DefaultLimit is the maximum number of characters of chunk text kept per
	// retrieved passage.
	DefaultLimit = 1200

	// TruncationMarker is appended to passage text that was clipped.
	TruncationMarker = " …[truncated]"

	// SourceLimit is the maximum number of characters of a document name
	// shown in a passage label.
	SourceLimit = 200

	// NoContext is placed in the CONTEXT section when retrieval returned
	// nothing.
	NoContext = "(No relevant document context was found. Answer from general knowledge " +
		"and say clearly when you are not sure; do not claim anything comes from the documents.)"
)

// System is the instruction sent as the system message on every question.
const System = `You are a careful assistant that answers questions about the user's uploaded documents.
Use the passages in the CONTEXT section as your primary source and cite them by their [rank] label.
If the context does not contain the answer, say so and answer from general knowledge only when you
are confident, clearly marking it as such. Never invent document content.`

// Passage is one ranked retrieval result.
type Passage struct {
	// Text is the chunk text as stored in the index.
	Text string
	// Source is the display name of the document the chunk came from.
	Source string
	// ChunkIndex is the 0-based position of the chunk in its document.
	ChunkIndex int
	// Distance is the similarity distance reported by the index (lower is closer).
	Distance float32
}

// Truncate trims surrounding whitespace from text and clips it to limit
// characters, appending TruncationMarker when it had to cut. The second
// return value reports whether the text was clipped. A non-positive limit
// selects DefaultLimit.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]) + TruncationMarker, true
}

// Context renders passages as labeled blocks in rank order separated by a
// blank line. It returns NoContext when passages is empty.
func Context(passages []Passage, limit int) string {
	if len(passages) == 0 {
		return NoContext
	}

	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		text, _ := Truncate(p.Text, limit)
		blocks = append(blocks, fmt.Sprintf("[%d] %s (chunk #%d, distance %.4f)\n%s",
			i+1, sourceLabel(p.Source), p.ChunkIndex, p.Distance, text))
	}
	return strings.Join(blocks, "\n\n")
}

// sourceLabel puts name on one line and clips it to SourceLimit characters.
func sourceLabel(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	runes := []rune(name)
	if len(runes) <= SourceLimit {
		return name
	}
	return string(runes[:SourceLimit]) + "…"
}

// Build returns the final user prompt: the question followed by a labeled
// CONTEXT section.
func Build(question string, passages []Passage, limit int) string {
	var sb strings.Builder
	sb.WriteString("QUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(Context(passages, limit))
	return sb.String()
}
