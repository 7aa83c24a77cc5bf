package compare

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABNmmd/PFE-FSA/internal/chunker"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/textproc"
	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
)

const (
	astronomy = "Astronomers observed distant galaxies through powerful telescopes last winter. " +
		"Spectral measurements revealed unusual hydrogen emissions near bright quasars. " +
		"Several researchers proposed models describing dark matter halos around spiral systems. " +
		"Further observations will require orbital instruments with sensitive detectors. " +
		"Funding agencies approved additional proposals supporting radio interferometry projects."

	cooking = "Grandmother baked fresh bread every Sunday morning using sourdough starter. " +
		"Ripe tomatoes, basil leaves and olive oil made simple summer salads delicious. " +
		"Children learned kneading dough while flour covered kitchen counters completely. " +
		"Homemade jam preserved strawberries harvested from backyard gardens. " +
		"Family dinners often ended with warm apple pie served alongside vanilla cream."
)

func lexicalComparator(t *testing.T, opts ...Option) *Comparator {
	t.Helper()
	return New(similarity.NewEngine(similarity.Config{Method: similarity.MethodTFIDF}, nil), opts...)
}

func TestCompareSelf(t *testing.T) {
	c := lexicalComparator(t)
	res := c.Compare(context.Background(), astronomy, astronomy, nil)

	assert.InDelta(t, 100.0, res.Scores.Percentage, 1e-6)
	assert.Equal(t, similarity.MethodTFIDF, res.Stats.Method)
	assert.Equal(t, 0.70, res.Stats.Threshold)
	require.Positive(t, res.Stats.Doc1Chunks)
	assert.Equal(t, res.Stats.Doc1Chunks, res.Stats.Doc2Chunks)

	nonTrivial := 0
	for _, ch := range chunker.ForComparison(astronomy) {
		if !textproc.IsTrivial(ch) {
			nonTrivial++
		}
	}
	require.Positive(t, nonTrivial)
	assert.GreaterOrEqual(t, len(res.Matches), nonTrivial)
	for i, m := range res.Matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.70)
		assert.False(t, textproc.IsTrivial(m.Text1))
		assert.False(t, textproc.IsTrivial(m.Text2))
		if i > 0 {
			assert.GreaterOrEqual(t, res.Matches[i-1].Similarity, m.Similarity)
		}
	}
}

func TestCompareDisjoint(t *testing.T) {
	c := lexicalComparator(t)
	res := c.Compare(context.Background(), astronomy, cooking, nil)
	assert.Empty(t, res.Matches)
	assert.Less(t, res.Scores.Percentage, 10.0)
}

func TestCompareIsSymmetric(t *testing.T) {
	mixed := astronomy + " " + cooking
	c := lexicalComparator(t)
	ab := c.Compare(context.Background(), astronomy, mixed, nil)
	ba := c.Compare(context.Background(), mixed, astronomy, nil)
	assert.Equal(t, ab.Scores.GlobalScore, ba.Scores.GlobalScore)
}

func TestCompareTrivialInput(t *testing.T) {
	c := lexicalComparator(t)
	for _, text := range []string{"", "- . : ,", strings.Repeat("... ", 10)} {
		res := c.Compare(context.Background(), text, astronomy, nil)
		assert.Empty(t, res.Matches)
		assert.Zero(t, res.Scores.GlobalScore)
		assert.NotNil(t, res.Matches)
	}
}

func TestCompareLongTrivialInput(t *testing.T) {
	c := lexicalComparator(t)
	for name, text := range map[string]string{
		"numbers":     strings.Repeat("2023 1998 4471 0042 ", 30),
		"punctuation": strings.Repeat("... ; -- !! ?? ", 30),
	} {
		t.Run(name, func(t *testing.T) {
			require.Greater(t, textproc.RuneLen(text), 200)
			res := c.Compare(context.Background(), text, text, nil)
			assert.Zero(t, res.Scores.GlobalScore)
			assert.Zero(t, res.Scores.Percentage)
			assert.Empty(t, res.Matches)
			assert.Zero(t, res.Stats.Doc1Chunks)
			assert.Equal(t, similarity.MethodNone, res.Scores.Method)
		})
	}
}

func TestCompareExplicitThreshold(t *testing.T) {
	c := lexicalComparator(t)
	res := c.Compare(context.Background(), astronomy, astronomy, Float(1.01))
	assert.Empty(t, res.Matches)
	assert.Equal(t, 1.01, res.Stats.Threshold)
}

func TestCompareTargetMatchesCompare(t *testing.T) {
	c := lexicalComparator(t)
	target, err := c.PrepareTarget(context.Background(), astronomy)
	require.NoError(t, err)

	want := c.Compare(context.Background(), astronomy, astronomy+" "+cooking, nil)
	got := c.CompareTarget(context.Background(), target, astronomy+" "+cooking, nil)
	assert.Equal(t, want.Scores.GlobalScore, got.Scores.GlobalScore)
	assert.Equal(t, len(want.Matches), len(got.Matches))
}

func TestCompareRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := lexicalComparator(t, WithMetrics(m))
	c.Compare(context.Background(), astronomy, cooking, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComparisonsTotal.WithLabelValues(similarity.MethodTFIDF)))
}

func TestSensitivityThreshold(t *testing.T) {
	assert.Equal(t, 0.80, SensitivityThreshold("low"))
	assert.Equal(t, 0.70, SensitivityThreshold("medium"))
	assert.Equal(t, 0.60, SensitivityThreshold("high"))
	assert.Equal(t, 0.70, SensitivityThreshold("extreme"))
	assert.Equal(t, 0.70, SensitivityThreshold(""))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	c, err := NewFromConfig(cfg, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, similarity.MethodTFIDF, c.Method())
	assert.Equal(t, cfg.Detection.Threshold, c.Threshold(nil))

	cfg.Detection.DuplicatePolicy = "sometimes"
	_, err = NewFromConfig(cfg, "", nil, nil)
	assert.Error(t, err)
}
