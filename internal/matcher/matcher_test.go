package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/internal/similarity"
)

var (
	chunksA = []string{
		"The first passage is long enough to count as evidence.",
		"Introduction",
		"The third passage is also long enough to be reported.",
	}
	chunksB = []string{
		"A counterpart passage that is long enough to be evidence.",
		"Another counterpart passage long enough for a report.",
	}
)

func matrix(rows, cols int, values ...float64) similarity.Matrix {
	m := similarity.NewMatrix(rows, cols)
	copy(m.Data, values)
	return m
}

func TestDetectThresholdAndOrder(t *testing.T) {
	m := matrix(3, 2,
		0.75, 0.10,
		0.99, 0.99,
		0.20, 0.90,
	)
	got := Detect(chunksA, chunksB, m, DefaultThreshold, KeepDuplicates)
	require.Len(t, got, 2, "trivial row 1 is skipped")

	assert.Equal(t, 2, got[0].Position1)
	assert.Equal(t, 1, got[0].Position2)
	assert.Equal(t, 0.90, got[0].Similarity)
	assert.Equal(t, 0, got[1].Position1)
	assert.Equal(t, chunksB[0], got[1].Text2)

	for _, mt := range got {
		assert.GreaterOrEqual(t, mt.Similarity, DefaultThreshold)
	}
}

func TestDetectTiesPickFirstColumnAndKeepRowOrder(t *testing.T) {
	a := []string{chunksA[0], chunksA[2]}
	m := matrix(2, 2,
		0.8, 0.8,
		0.8, 0.8,
	)
	got := Detect(a, chunksB, m, 0.5, KeepDuplicates)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position1)
	assert.Equal(t, 1, got[1].Position1)
	assert.Equal(t, 0, got[0].Position2)
	assert.Equal(t, 0, got[1].Position2)
}

func TestDetectDedupeTargets(t *testing.T) {
	a := []string{chunksA[0], chunksA[2]}
	m := matrix(2, 2,
		0.8, 0.1,
		0.9, 0.1,
	)
	kept := Detect(a, chunksB, m, 0.5, KeepDuplicates)
	assert.Len(t, kept, 2)

	deduped := Detect(a, chunksB, m, 0.5, DedupeTargets)
	require.Len(t, deduped, 1)
	assert.Equal(t, 1, deduped[0].Position1)
}

func TestDetectSkipsTrivialCounterpart(t *testing.T) {
	b := []string{"Conclusion", chunksB[1]}
	m := matrix(1, 2, 0.95, 0.2)
	got := Detect(chunksA[:1], b, m, 0.5, KeepDuplicates)
	assert.Empty(t, got)
}

func TestDetectConformsWrongShape(t *testing.T) {
	m := matrix(1, 1, 0.95)
	got := Detect(chunksA, chunksB, m, 0.5, KeepDuplicates)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Position1)
}

func TestDetectEmpty(t *testing.T) {
	assert.Empty(t, Detect(nil, chunksB, similarity.NewMatrix(1, 1), 0.5, KeepDuplicates))
	assert.Empty(t, Detect([]string{"-", "."}, []string{":"}, matrix(2, 1, 1, 1), 0.0, KeepDuplicates))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{"": KeepDuplicates, "keep": KeepDuplicates, "dedupe": DedupeTargets} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("other")
	assert.Error(t, err)
	assert.Equal(t, "dedupe", DedupeTargets.String())
}
