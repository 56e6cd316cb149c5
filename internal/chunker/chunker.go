// Package chunker normalises extracted document text and splits it into
// overlapping fixed-width windows. Chunk boundaries are a pure function of
// (normalised text, size, overlap): the same input always yields the same
// ordered chunks, and the order is exposed to users as the chunk index.
//
// Lengths are measured in characters (Unicode code points), not bytes, so a
// multi-byte rune is never split across two chunks.
package chunker

import (
	"strings"
)

const (
	// DefaultSize is the default window width in characters.
	DefaultSize = 1000

	// DefaultOverlap is the default number of characters shared by
	// consecutive chunks.
	DefaultOverlap = 150
)

// Normalize collapses every whitespace run (newlines and tabs included) to a
// single ASCII space and strips leading and trailing whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Step returns the distance between the start offsets of consecutive chunks.
// It is never less than 1, so an overlap greater than or equal to size yields
// maximally overlapping chunks instead of an endless loop.
func Step(size, overlap int) int {
	return max(1, size-max(0, overlap))
}

// Split normalises text and returns its chunks in left-to-right order.
// Empty or whitespace-only input returns nil.
func Split(text string, size, overlap int) []string {
	return splitNormalized(Normalize(text), size, overlap)
}

// splitNormalized slides a window of size characters over text, advancing by
// Step(size, overlap), clipping the last window to the end of the text.
func splitNormalized(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}

	runes := []rune(text)
	step := Step(size, overlap)

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if end <= start {
			continue
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
