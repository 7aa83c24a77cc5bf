package textproc

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Language is the coarse language class used to pick stop words.
type Language string

const (
	LangFrench  Language = "fr"
	LangEnglish Language = "en"
	LangOther   Language = "other"
)

const detectSample = 100

// DetectLanguage classifies text from its first runes. Blank text is treated
// as French, the corpus default.
func DetectLanguage(text string) Language {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return LangFrench
	}
	if r := []rune(sample); len(r) > detectSample {
		sample = string(r[:detectSample])
	}
	switch whatlanggo.Detect(sample).Lang {
	case whatlanggo.Fra:
		return LangFrench
	case whatlanggo.Eng:
		return LangEnglish
	default:
		return LangOther
	}
}
