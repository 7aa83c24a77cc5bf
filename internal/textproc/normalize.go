// Package textproc holds the text normalisation primitives shared by the
// chunker, the vectorizers and the match detector: encoding repair, sentence
// segmentation, language detection, tokenisation and the triviality filter.
// Every function is pure and safe for concurrent use.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EmojiPlaceholder replaces pictographic runes so chunk lengths stay close
// to the source length.
const EmojiPlaceholder = "[emoji]"

// mojibake undoes UTF-8 text that was decoded as Latin-1 somewhere upstream.
// Two-rune sequences come before the bare "Ã" so the Replacer, which tries
// patterns in argument order at each position, never shadows them.
var mojibake = strings.NewReplacer(
	"Ã©", "é", "Ã¨", "è", "Ãª", "ê", "Ã«", "ë",
	"Ã¢", "â", "Ã®", "î", "Ã´", "ô", "Ã»", "û",
	"Ã¹", "ù", "Ã§", "ç", "Ã¯", "ï", "Ã¤", "ä",
	"Ã¶", "ö", "Ã¼", "ü",
	"â\u0080\u0099", "'",
	"â\u0080\u0093", "-",
	"â\u0080\u0094", "-",
	"â\u0080\u009c", `"`,
	"â\u0080\u009d", `"`,
	"Ã", "À",
)

// Options tunes Normalize.
type Options struct {
	EmojiPlaceholder bool
}

// DefaultOptions replaces emoji with EmojiPlaceholder.
var DefaultOptions = Options{EmojiPlaceholder: true}

// FixEncoding replaces invalid UTF-8 (including encoded surrogates) with
// U+FFFD and repairs common mojibake. Line structure is preserved.
func FixEncoding(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return mojibake.Replace(s)
}

// Normalize returns clean single-spaced text using DefaultOptions.
func Normalize(raw string) string {
	return NormalizeWith(raw, DefaultOptions)
}

// NormalizeWith repairs encoding, composes to NFC, optionally replaces
// emoji and collapses whitespace.
func NormalizeWith(raw string, opts Options) string {
	s := FixEncoding(raw)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	if opts.EmojiPlaceholder {
		s = replaceEmoji(s)
	}
	return CollapseSpace(s)
}

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Preprocess lowercases s, collapses whitespace and drops every rune that is
// not a word character, whitespace or one of ".,?!-".
func Preprocess(s string) string {
	s = strings.ToLower(FixEncoding(s))
	s = strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) || strings.ContainsRune(".,?!-", r) {
			return r
		}
		return -1
	}, s)
	return CollapseSpace(s)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func replaceEmoji(s string) string {
	if !strings.ContainsFunc(s, isEmoji) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for _, r := range s {
		if isEmoji(r) {
			b.WriteString(EmojiPlaceholder)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2702 && r <= 0x27B0:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

// RuneLen is the length unit used for every size threshold in the pipeline.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
