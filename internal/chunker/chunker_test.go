package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklens/doccached/internal/chunker"
)

func TestSplit_EmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "spaces only", input: "     "},
		{name: "newlines only", input: "\n\n\n"},
		{name: "mixed whitespace", input: " \t \n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, chunker.Split(tt.input, chunker.Options{}))
		})
	}
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	text := "A short document that fits in one chunk."
	chunks := chunker.Split(text, chunker.Options{})

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_RespectsSizeLimit(t *testing.T) {
	text := strings.Repeat("word ", 2000) // 10000 chars
	opts := chunker.Options{Size: 500, Overlap: 100}

	chunks := chunker.Split(text, opts)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 500, "chunk %d exceeds size", i)
		assert.NotEmpty(t, c, "chunk %d is empty", i)
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	// Two sentences; the size limit lands inside the second, so the cut
	// should fall back to the terminator of the first.
	text := "First sentence ends here. Second sentence continues for a while after the boundary."
	chunks := chunker.Split(text, chunker.Options{Size: 40, Overlap: -1, BoundaryWindow: 30})

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "First sentence ends here.", strings.TrimSpace(chunks[0]))
}

func TestSplit_FallsBackToWhitespace(t *testing.T) {
	// No sentence terminators at all; cut should land on a space.
	text := strings.Repeat("alpha beta gamma delta ", 20)
	chunks := chunker.Split(text, chunker.Options{Size: 50, Overlap: -1})

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks[:len(chunks)-1] {
		last := c[len(c)-1]
		assert.True(t, last == ' ' || strings.HasSuffix(c, "alpha") || strings.HasSuffix(c, "beta") ||
			strings.HasSuffix(c, "gamma") || strings.HasSuffix(c, "delta"),
			"chunk %d should end at a word boundary, got %q", i, c[len(c)-10:])
	}
}

func TestSplit_HardCutWithoutBoundary(t *testing.T) {
	// Single unbroken token longer than the chunk size.
	text := strings.Repeat("x", 1200)
	chunks := chunker.Split(text, chunker.Options{Size: 500, Overlap: -1})

	require.Len(t, chunks, 3)
	assert.Equal(t, 500, len(chunks[0]))
	assert.Equal(t, 500, len(chunks[1]))
	assert.Equal(t, 200, len(chunks[2]))
}

func TestSplit_NeverSplitsUTF8(t *testing.T) {
	text := strings.Repeat("héllo wörld 日本語テキスト ", 100)
	chunks := chunker.Split(text, chunker.Options{Size: 64, Overlap: 16})

	for i, c := range chunks {
		assert.True(t, strings.ToValidUTF8(c, "�") == c,
			"chunk %d contains an invalid UTF-8 sequence", i)
	}
}

func TestSplit_OverlapClampPreventsInfiniteLoop(t *testing.T) {
	text := strings.Repeat("abcdef ", 100)
	// Overlap larger than size must still terminate and cover the input.
	chunks := chunker.Split(text, chunker.Options{Size: 20, Overlap: 50})

	require.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 400, "clamped overlap should not explode chunk count")
}

// TestSplit_RoundTrip verifies that concatenating chunks with the overlap
// removed reconstructs the original text. Each chunk starts exactly
// overlap runes before the previous chunk's end, so dropping that prefix
// from every chunk after the first must rebuild the document.
func TestSplit_RoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 120),
		strings.Repeat("no punctuation here just words over and over ", 90),
		strings.Repeat("unicode départ très tôt 漢字 ", 200),
	}

	for _, text := range texts {
		opts := chunker.Options{Size: 300, Overlap: 60}
		chunks := chunker.Split(text, opts)
		require.NotEmpty(t, chunks)

		runes := []rune(text)
		pos := 0
		for i, c := range chunks {
			cr := []rune(c)
			require.LessOrEqual(t, pos+len(cr), len(runes), "chunk %d overruns input", i)
			assert.Equal(t, string(runes[pos:pos+len(cr)]), c, "chunk %d is not a substring at its position", i)
			advance := len(cr) - opts.Overlap
			if advance < 1 || i == len(chunks)-1 {
				advance = len(cr)
			}
			pos += advance
		}
		assert.Equal(t, len(runes), pos, "chunks do not cover the full input")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Deterministic output is required. ", 80)
	a := chunker.Split(text, chunker.Options{})
	b := chunker.Split(text, chunker.Options{})
	assert.Equal(t, a, b)
}
