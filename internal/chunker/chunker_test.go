package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

func sentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("This is sentence number %02d and it has some padding words.", i)
	}
	return strings.Join(parts, " ")
}

func TestForComparisonEmpty(t *testing.T) {
	assert.Empty(t, ForComparison(""))
	assert.Empty(t, ForComparison(" \n\t "))
}

func TestForComparisonPacksSentenceWindows(t *testing.T) {
	chunks := ForComparison(sentences(10))
	require.Len(t, chunks, 10)
	assert.True(t, strings.HasPrefix(chunks[0], "This is sentence number 00"))
	assert.True(t, strings.HasPrefix(chunks[9], "This is sentence number 09"))
	for _, c := range chunks {
		assert.LessOrEqual(t, textproc.RuneLen(c), DefaultMaxChunkSize)
		assert.Greater(t, textproc.RuneLen(c), DefaultMinChunkSize)
	}
	// consecutive windows overlap
	assert.Contains(t, chunks[0], "number 01")
}

func TestForComparisonWithoutPunctuation(t *testing.T) {
	text := strings.Repeat("abcdefghi ", 100)
	require.Equal(t, 1000, textproc.RuneLen(text))

	chunks := ForComparison(text)
	assert.GreaterOrEqual(t, len(chunks), MinChunks)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, textproc.RuneLen(c), 200)
	}
}

func TestForComparisonShortTextNoFallback(t *testing.T) {
	chunks := ForComparison("Only one sentence here that is long enough to keep around.")
	require.Len(t, chunks, 1)
}

func TestForComparisonOptions(t *testing.T) {
	chunks := ForComparison(sentences(6), WithMaxChunkSize(70), WithMinChunkSize(10))
	require.Len(t, chunks, 6)
	for _, c := range chunks {
		assert.LessOrEqual(t, textproc.RuneLen(c), 70)
	}
}

func TestForComparisonCountsRunes(t *testing.T) {
	s := "Élève français à l'école, déjà très motivé pour réussir."
	text := strings.Repeat(s+" ", 5)
	chunks := ForComparison(text)
	for _, c := range chunks {
		assert.LessOrEqual(t, textproc.RuneLen(c), DefaultMaxChunkSize)
	}
}

func TestFixed(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10)
	chunks := Fixed(text, 40, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 40, textproc.RuneLen(c))
	}
	assert.Empty(t, Fixed("", 40, 10))
	assert.Empty(t, Fixed("short", 40, 10))
}

func TestSemantic(t *testing.T) {
	chunks := Semantic(sentences(20), SemanticMinSize, SemanticMaxSize)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, textproc.RuneLen(c), SemanticMaxSize)
		assert.GreaterOrEqual(t, textproc.RuneLen(c), SemanticMinSize)
	}
	// non-overlapping: every sentence appears exactly once
	joined := strings.Join(chunks, " ")
	assert.Equal(t, 1, strings.Count(joined, "number 05"))

	assert.Empty(t, Semantic("Too short.", SemanticMinSize, SemanticMaxSize))
}

func TestPositioned(t *testing.T) {
	got := Positioned([]string{"a", "b"})
	assert.Equal(t, []Chunk{{Text: "a", Position: 0}, {Text: "b", Position: 1}}, got)
}

func BenchmarkForComparison(b *testing.B) {
	text := sentences(200)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = ForComparison(text)
	}
}

func TestForComparisonDropsTrivialText(t *testing.T) {
	numbers := strings.Repeat("2023 1998 4471 0042 ", 30)
	punct := strings.Repeat("... ; -- !! ?? ", 30)
	require.Greater(t, textproc.RuneLen(numbers), 200)
	require.Greater(t, textproc.RuneLen(punct), 200)

	assert.Nil(t, ForComparison(numbers))
	assert.Nil(t, ForComparison(punct))

	mixed := sentences(6) + " " + strings.Repeat("12345 ", 20)
	for _, c := range ForComparison(mixed) {
		assert.False(t, textproc.IsTrivial(c), c)
	}
}
