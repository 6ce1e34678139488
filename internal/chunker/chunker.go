// Package chunker splits document text into overlapping, boundary-aware
// segments suitable for embedding and indexing.
//
// Splitting is a pure function: the same input and options always produce
// the same segments, and no state is shared between calls, so documents
// can be chunked concurrently without coordination.
package chunker

import (
	"strings"
	"unicode"
)

const (
	// DefaultSize is the target chunk length in runes.
	DefaultSize = 1000

	// DefaultOverlap is the number of runes shared between adjacent chunks.
	DefaultOverlap = 200

	// DefaultBoundaryWindow is how far Split scans backward from a proposed
	// cut point looking for a sentence or whitespace boundary.
	DefaultBoundaryWindow = 100
)

// sentence terminators that mark a preferred cut point.
var sentenceTerminators = map[rune]bool{
	'.':  true,
	'!':  true,
	'?':  true,
	'\n': true,
}

// Options controls chunk sizing. Zero values fall back to defaults.
type Options struct {
	// Size is the maximum chunk length in runes.
	Size int

	// Overlap is the number of runes repeated at the start of the next chunk.
	// Zero selects the default; a negative value disables overlap.
	Overlap int

	// BoundaryWindow is the backward scan distance for boundary detection.
	BoundaryWindow int
}

// ApplyDefaults sets default values for unset fields.
func (o *Options) ApplyDefaults() {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.Size {
		o.Overlap = o.Size / 2
	}
	if o.BoundaryWindow <= 0 {
		o.BoundaryWindow = DefaultBoundaryWindow
	}
}

// Split divides text into overlapping segments of at most opts.Size runes.
//
// Cut points prefer sentence terminators (. ! ? newline) within the boundary
// window, then any whitespace, then a hard cut at the size limit. Operating
// on runes guarantees no UTF-8 character is ever split across segments.
//
// Empty or whitespace-only input yields nil.
func Split(text string, opts Options) []string {
	opts.ApplyDefaults()

	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= opts.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + opts.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = findBoundary(runes, start, end, opts.BoundaryWindow)
		chunks = append(chunks, string(runes[start:end]))

		next := end - opts.Overlap
		// Guarantee forward progress even when overlap >= chunk length.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBoundary returns the best cut point at or before end, scanning backward
// at most window runes. Sentence terminators win over whitespace; a cut is
// placed just after the terminator so it stays with its sentence.
func findBoundary(runes []rune, start, end, window int) int {
	low := end - window
	if low < start+1 {
		low = start + 1
	}

	for i := end - 1; i >= low; i-- {
		if sentenceTerminators[runes[i]] {
			return i + 1
		}
	}
	for i := end - 1; i >= low; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}
