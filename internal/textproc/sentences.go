package textproc

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// MinSentenceLength is the default minimum sentence length in runes.
const MinSentenceLength = 15

// SentenceSplitter cuts text into trimmed, non-empty sentences in order.
type SentenceSplitter interface {
	Split(text string) []string
}

// UAXSplitter segments with the Unicode UAX #29 sentence boundary rules.
type UAXSplitter struct{}

func (UAXSplitter) Split(text string) []string {
	var out []string
	seg := sentences.FromString(text)
	for seg.Next() {
		if s := strings.TrimSpace(seg.Value()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// RegexSplitter cuts after '.', '!' or '?' when followed by whitespace.
type RegexSplitter struct{}

func (RegexSplitter) Split(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// Splitter runs Primary and falls back to Fallback when Primary panics or
// returns nothing for non-blank text.
type Splitter struct {
	Primary   SentenceSplitter
	Fallback  SentenceSplitter
	MinLength int
	logger    *slog.Logger
}

// NewSplitter returns the UAX #29 splitter with the regex fallback.
func NewSplitter(minLength int) *Splitter {
	if minLength <= 0 {
		minLength = MinSentenceLength
	}
	return &Splitter{
		Primary:   UAXSplitter{},
		Fallback:  RegexSplitter{},
		MinLength: minLength,
		logger:    slog.Default().With("component", "sentence-splitter"),
	}
}

// DefaultSplitter is shared by callers that do not configure their own.
var DefaultSplitter = NewSplitter(MinSentenceLength)

// Sentences returns every sentence regardless of length.
func (s *Splitter) Sentences(text string) []string {
	text = FixEncoding(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	out, err := safeSplit(s.Primary, text)
	if err != nil {
		s.log().Warn("sentence segmentation failed, using regex fallback", "error", err)
	} else if len(out) > 0 {
		return out
	}
	if s.Fallback == nil {
		return nil
	}
	out, err = safeSplit(s.Fallback, text)
	if err != nil {
		s.log().Error("fallback sentence segmentation failed", "error", err)
		return nil
	}
	return out
}

// Split returns the sentences of at least MinLength runes.
func (s *Splitter) Split(text string) []string {
	all := s.Sentences(text)
	out := all[:0]
	for _, sent := range all {
		if RuneLen(sent) >= s.MinLength {
			out = append(out, sent)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitSentences splits with DefaultSplitter.
func SplitSentences(text string) []string {
	return DefaultSplitter.Split(text)
}

func (s *Splitter) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func safeSplit(sp SentenceSplitter, text string) (out []string, err error) {
	if sp == nil {
		return nil, fmt.Errorf("no splitter configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("splitter panic: %v", r)
		}
	}()
	return sp.Split(text), nil
}
