package textproc

import (
	"regexp"
	"strings"
)

// MinMatchLength is the shortest text, in runes, that can count as evidence.
const MinMatchLength = 30

var (
	boilerplate = map[string]struct{}{
		".": {}, ":": {}, ",": {}, "-": {}, "introduction": {}, "conclusion": {},
	}
	punctOnly       = regexp.MustCompile(`^[\s\p{Z}.,;:!?()-]+$`)
	digitsPunctOnly = regexp.MustCompile(`^[\s\p{Z}\p{Nd}.,;:!?()-]+$`)
)

// Trivial classifies chunks too short or too empty to be evidence of copying.
type Trivial struct {
	MinLength int
}

// DefaultTrivial uses MinMatchLength.
var DefaultTrivial = Trivial{MinLength: MinMatchLength}

// Is reports whether text is trivial.
func (t Trivial) Is(text string) bool {
	s := strings.TrimSpace(strings.ToLower(text))
	if s == "" {
		return true
	}
	if RuneLen(s) < t.MinLength {
		return true
	}
	if _, ok := boilerplate[s]; ok {
		return true
	}
	return punctOnly.MatchString(s) || digitsPunctOnly.MatchString(s)
}

// IsTrivial applies DefaultTrivial.
func IsTrivial(text string) bool {
	return DefaultTrivial.Is(text)
}
