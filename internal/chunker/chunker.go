// Package chunker splits document text into overlapping, boundary-aware chunks.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Window sizes (in runes) for boundary snapping around a proposed chunk end.
const (
	paragraphWindow = 100
	sentenceWindow  = 50
)

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Chunker splits text into overlapping rune-based chunks, snapping chunk ends
// to paragraph or sentence boundaries where possible. Offsets are counted in
// runes, never bytes, so a hard cut cannot split a multi-byte character.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a chunker. chunkSize must be positive and overlap should be
// smaller than chunkSize; the advance rule still guarantees forward progress
// when the caller violates that.
func New(chunkSize, overlap int) *Chunker {
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits text into trimmed, non-empty chunks. Output is deterministic
// for identical input. Empty text yields no chunks; text shorter than the
// chunk size yields exactly one chunk covering the whole text.
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	n := len(runes)
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end > n {
			end = n
		}
		if end < n {
			end = snapBoundary(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Advance with overlap; the start+1 floor guarantees progress even
		// when overlap >= chunkSize.
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// snapBoundary adjusts a proposed chunk end to the nearest paragraph break
// within ±paragraphWindow, falling back to a sentence end within
// ±sentenceWindow, falling back to the proposed end (hard cut). The backward
// window is floored at start so a boundary already consumed by the previous
// chunk is never chosen again.
func snapBoundary(runes []rune, start, end int) int {
	n := len(runes)

	lo := end - paragraphWindow
	if lo < start {
		lo = start
	}
	hi := end + paragraphWindow
	if hi > n {
		hi = n
	}
	for i := lo; i+1 < hi; i++ {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}

	lo = end - sentenceWindow
	if lo < start {
		lo = start
	}
	hi = end + sentenceWindow
	if hi > n {
		hi = n
	}
	window := string(runes[lo:hi])
	if loc := sentenceEnd.FindStringIndex(window); loc != nil {
		return lo + utf8.RuneCountInString(window[:loc[1]])
	}
	return end
}
