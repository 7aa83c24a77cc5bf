package sources

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

// Keyphrase extraction limits.
const (
	DefaultKeyphrases = 5
	MinKeyphrases     = 3
	maxPhraseWords    = 3
	longWordLength    = 7
)

// KeyphraseExtractor ranks short content-word phrases with a RAKE score:
// each word scores degree/frequency and a phrase sums its words.
type KeyphraseExtractor struct {
	// Limit is the number of phrases returned.
	Limit int
}

// Extract returns up to Limit phrases, best first. When the RAKE pass yields
// fewer than MinKeyphrases, noun-like phrases fill the remainder.
func (k KeyphraseExtractor) Extract(text string) []string {
	limit := k.Limit
	if limit <= 0 {
		limit = DefaultKeyphrases
	}
	stop := textproc.StopWords(textproc.DetectLanguage(text))

	phrases := rakePhrases(text, stop)
	if len(phrases) >= MinKeyphrases {
		return head(phrases, limit)
	}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		seen[p] = true
	}
	for _, p := range nounPhrases(text, stop) {
		if !seen[p] {
			seen[p] = true
			phrases = append(phrases, p)
		}
	}
	return head(phrases, limit)
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func isPhraseBreak(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '(', ')', '[', ']', '"', '«', '»', '\n', '\t':
		return true
	}
	return false
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}

func contentWord(w string, stop map[string]struct{}) bool {
	if textproc.RuneLen(w) < 3 {
		return false
	}
	if _, ok := stop[w]; ok {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// rakePhrases returns candidate phrases ordered by score, ties alphabetical.
func rakePhrases(text string, stop map[string]struct{}) []string {
	var cands [][]string
	for _, frag := range strings.FieldsFunc(strings.ToLower(text), isPhraseBreak) {
		var run []string
		flush := func() {
			for len(run) > 0 {
				n := min(len(run), maxPhraseWords)
				cands = append(cands, run[:n])
				run = run[n:]
			}
		}
		for _, w := range strings.FieldsFunc(frag, func(r rune) bool { return !isKeyRune(r) }) {
			w = strings.Trim(w, "-")
			if !contentWord(w, stop) {
				flush()
				continue
			}
			run = append(run, w)
		}
		flush()
	}

	freq := make(map[string]float64)
	degree := make(map[string]float64)
	for _, c := range cands {
		for _, w := range c {
			freq[w]++
			degree[w] += float64(len(c))
		}
	}
	scores := make(map[string]float64)
	for _, c := range cands {
		var s float64
		for _, w := range c {
			s += degree[w] / freq[w]
		}
		scores[strings.Join(c, " ")] = s
	}

	out := make([]string, 0, len(scores))
	for p := range scores {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// nounPhrases approximates noun phrases: runs of capitalised words, then
// long content words, each ranked by frequency.
func nounPhrases(text string, stop map[string]struct{}) []string {
	counts := make(map[string]int)
	var run []string
	flush := func() {
		if len(run) > 0 {
			counts[strings.ToLower(strings.Join(head(run, maxPhraseWords), " "))]++
		}
		run = run[:0]
	}
	for _, frag := range strings.FieldsFunc(text, isPhraseBreak) {
		for _, w := range strings.FieldsFunc(frag, func(r rune) bool { return !isKeyRune(r) }) {
			r := []rune(w)
			lw := strings.ToLower(w)
			if len(r) > 0 && unicode.IsUpper(r[0]) && contentWord(lw, stop) {
				run = append(run, w)
				continue
			}
			flush()
			if textproc.RuneLen(lw) >= longWordLength && contentWord(lw, stop) {
				counts[lw]++
			}
		}
		flush()
	}

	out := make([]string, 0, len(counts))
	for p := range counts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
