package similarity

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

// ErrEmptyVocabulary is returned when no chunk of either side yields a term
// after tokenisation and stop-word removal.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// LexicalConfig configures the TF-IDF vectorizer.
type LexicalConfig struct {
	MaxFeatures int
	NgramMin    int
	NgramMax    int
	Stem        bool
}

// DefaultLexicalConfig uses word 1-3 grams and at most 10000 features.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{MaxFeatures: 10000, NgramMin: 1, NgramMax: 3}
}

// Lexical is a TF-IDF vectorizer fitted jointly on both chunk lists of a
// pair. It holds no state between calls.
type Lexical struct {
	cfg LexicalConfig
}

// NewLexical normalises cfg and returns a Lexical vectorizer.
func NewLexical(cfg LexicalConfig) *Lexical {
	def := DefaultLexicalConfig()
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.NgramMin <= 0 {
		cfg.NgramMin = def.NgramMin
	}
	if cfg.NgramMax < cfg.NgramMin {
		cfg.NgramMax = max(def.NgramMax, cfg.NgramMin)
	}
	return &Lexical{cfg: cfg}
}

func (l *Lexical) Name() string { return MethodTFIDF }

// Similarity vectorises a and b and returns their cosine matrix.
func (l *Lexical) Similarity(ctx context.Context, a, b []string) (Matrix, error) {
	va, vb, err := l.Vectorize(ctx, a, b)
	if err != nil {
		return Matrix{}, err
	}
	return CosineMatrix(va, vb), nil
}

// Vectorize fits the vocabulary over a followed by b and returns
// L2-normalised TF-IDF rows for each side.
func (l *Lexical) Vectorize(ctx context.Context, a, b []string) ([][]float64, [][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	lang := pairLanguage(a, b)
	opts := textproc.TokenizeOptions{Language: lang, Stem: l.cfg.Stem}

	docs := make([]map[string]int, 0, len(a)+len(b))
	corpusTF := make(map[string]int)
	df := make(map[string]int)
	for _, text := range append(append([]string(nil), a...), b...) {
		counts := make(map[string]int)
		for _, term := range textproc.NGrams(textproc.Tokenize(text, opts), l.cfg.NgramMin, l.cfg.NgramMax) {
			counts[term]++
		}
		for term, n := range counts {
			corpusTF[term] += n
			df[term]++
		}
		docs = append(docs, counts)
	}
	if len(corpusTF) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	vocab := l.selectFeatures(corpusTF)
	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([][]float64, len(docs))
	for d, counts := range docs {
		v := make([]float64, len(vocab))
		for i, term := range vocab {
			if c := counts[term]; c > 0 {
				v[i] = float64(c) * idf[i]
			}
		}
		normalize(v)
		vectors[d] = v
	}
	return vectors[:len(a)], vectors[len(a):], nil
}

// selectFeatures keeps the MaxFeatures most frequent terms (ties broken
// alphabetically) and returns them in alphabetical order.
func (l *Lexical) selectFeatures(tf map[string]int) []string {
	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	if len(terms) > l.cfg.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:l.cfg.MaxFeatures]
	}
	sort.Strings(terms)
	return terms
}

func normalize(v []float64) {
	var s float64
	for _, x := range v {
		s += x * x
	}
	if s == 0 {
		return
	}
	n := math.Sqrt(s)
	for i := range v {
		v[i] /= n
	}
}

// pairLanguage detects the stop-word language on the first chunk of each
// side. The samples are ordered so that swapping a and b picks the same
// language.
func pairLanguage(a, b []string) textproc.Language {
	var first, second string
	if len(a) > 0 {
		first = a[0]
	}
	if len(b) > 0 {
		second = b[0]
	}
	if second < first {
		first, second = second, first
	}
	return textproc.DetectLanguage(first + " " + second)
}
