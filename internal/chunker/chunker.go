// Package chunker cuts document text into the passages that are vectorised
// and compared. ForComparison is the chunker used by the comparison pipeline;
// Fixed and Semantic are the simpler strategies kept for indexing-style use.
package chunker

import (
	"strings"

	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

const (
	DefaultMaxChunkSize = 300
	DefaultMinChunkSize = 50
	// MinChunks is the chunk count under which ForComparison switches to
	// character windows.
	MinChunks = 4

	fallbackMinText = 200
	fallbackWindow  = 200

	SemanticMinSize = 80
	SemanticMaxSize = 500
)

// Chunk is a passage and its index in the document's chunk list.
type Chunk struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Positioned attaches positions to an ordered chunk list.
func Positioned(chunks []string) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = Chunk{Text: c, Position: i}
	}
	return out
}

// Chunker holds the comparison chunking parameters.
type Chunker struct {
	maxChunkSize int
	minChunkSize int
	splitter     *textproc.Splitter
	trivial      textproc.Trivial
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChunkSize sets the largest packed chunk in runes.
func WithMaxChunkSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChunkSize = n
		}
	}
}

// WithMinChunkSize sets the length a packed chunk must exceed to be kept.
func WithMinChunkSize(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minChunkSize = n
		}
	}
}

// WithSplitter replaces the sentence splitter.
func WithSplitter(s *textproc.Splitter) Option {
	return func(c *Chunker) {
		if s != nil {
			c.splitter = s
		}
	}
}

// New returns a Chunker with the default sizes.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxChunkSize: DefaultMaxChunkSize,
		minChunkSize: DefaultMinChunkSize,
		splitter:     textproc.DefaultSplitter,
		trivial:      textproc.DefaultTrivial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForComparison chunks text with a Chunker built from opts.
func ForComparison(text string, opts ...Option) []string {
	return New(opts...).ForComparison(text)
}

// ForComparison builds overlapping sentence windows: for every sentence i it
// packs s[i], s[i+1], ... while the packed length plus the next sentence stays
// within the maximum size. Short or sentence-poor texts fall back to
// half-overlapping character windows. Trivial chunks are dropped, so text
// made only of numbers, punctuation or boilerplate yields nil.
func (c *Chunker) ForComparison(text string) []string {
	text = textproc.FixEncoding(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sents := c.splitter.Sentences(text)
	var chunks []string
	for i := range sents {
		var b strings.Builder
		size := 0
		j := i
		for j < len(sents) {
			n := textproc.RuneLen(sents[j])
			if size+n > c.maxChunkSize {
				break
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
				size++
			}
			b.WriteString(sents[j])
			size += n
			j++
		}
		if size > c.minChunkSize && j > i {
			chunks = append(chunks, strings.TrimSpace(b.String()))
		}
	}

	runes := []rune(text)
	if len(chunks) < MinChunks && len(runes) > fallbackMinText {
		chunks = windows(runes)
	}
	return c.dropTrivial(chunks)
}

func (c *Chunker) dropTrivial(chunks []string) []string {
	var out []string
	for _, ch := range chunks {
		if !c.trivial.Is(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func windows(runes []rune) []string {
	window := min(fallbackWindow, len(runes)/2)
	step := max(window/2, 1)
	var out []string
	for start := 0; start <= len(runes)-window; start += step {
		if s := strings.TrimSpace(string(runes[start : start+window])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Fixed collapses whitespace and cuts windows of size runes every
// size-overlap runes, keeping windows of at least size/2 and at least
// textproc.MinMatchLength runes.
func Fixed(text string, size, overlap int) []string {
	text = textproc.CollapseSpace(textproc.FixEncoding(text))
	if text == "" || size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		n := end - start
		if n*2 < size || n < textproc.MinMatchLength {
			continue
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// Semantic packs sentences of at least textproc.MinSentenceLength runes into
// non-overlapping chunks of at most maxSize runes, dropping chunks shorter
// than minSize.
func Semantic(text string, minSize, maxSize int) []string {
	return SemanticWith(textproc.DefaultSplitter, text, minSize, maxSize)
}

// SemanticWith is Semantic with an explicit splitter.
func SemanticWith(sp *textproc.Splitter, text string, minSize, maxSize int) []string {
	text = textproc.CollapseSpace(textproc.FixEncoding(text))
	if text == "" {
		return nil
	}
	if minSize <= 0 {
		minSize = SemanticMinSize
	}
	if maxSize <= 0 {
		maxSize = SemanticMaxSize
	}

	var out []string
	flush := func(cur string, size int) {
		if size >= minSize && size >= textproc.MinMatchLength {
			out = append(out, strings.TrimSpace(cur))
		}
	}

	cur, size := "", 0
	for _, s := range sp.Split(text) {
		n := textproc.RuneLen(s)
		if size+n <= maxSize {
			if cur != "" {
				cur += " "
				size++
			}
			cur += s
			size += n
			continue
		}
		flush(cur, size)
		cur, size = s, n
	}
	if cur != "" {
		flush(cur, size)
	}
	return out
}
