package textproc

import (
	"strings"
	"unicode/utf8"
)

// TokenizeOptions controls Tokenize.
type TokenizeOptions struct {
	Language Language
	// Stem applies the suffix stemmer to English tokens.
	Stem bool
	// KeepStopWords disables stop-word removal.
	KeepStopWords bool
}

// Tokenize lowercases text and returns its word tokens of at least two
// runes, in order, with stop words removed.
func Tokenize(text string, opts TokenizeOptions) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	stops := StopWords(opts.Language)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if !opts.KeepStopWords {
			if _, ok := stops[w]; ok {
				continue
			}
		}
		if opts.Stem && opts.Language == LangEnglish {
			w = Stem(w)
		}
		if w == "" {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// NGrams returns every contiguous n-gram of tokens for n in [minN, maxN],
// joined by a single space.
func NGrams(tokens []string, minN, maxN int) []string {
	if minN < 1 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

var stemRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Stem strips the first matching English suffix when the remaining stem is
// long enough.
func Stem(word string) string {
	for _, rule := range stemRules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
