package textproc

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var englishStopWords = set(
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"down", "during", "each", "few", "for", "from", "further", "had", "has", "have",
	"having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"if", "in", "into", "is", "it", "its", "itself", "just", "me", "more", "most",
	"my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once", "only",
	"or", "other", "our", "ours", "ourselves", "out", "over", "own", "same", "she",
	"should", "so", "some", "such", "than", "that", "the", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "this", "those", "through", "to",
	"too", "under", "until", "up", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "would", "you",
	"your", "yours", "yourself", "yourselves",
)

var frenchStopWords = set(
	"au", "aux", "avec", "ce", "ces", "cette", "dans", "de", "des", "du", "elle",
	"elles", "en", "et", "eux", "il", "ils", "je", "la", "le", "les", "leur",
	"leurs", "lui", "ma", "mais", "me", "même", "mes", "moi", "mon", "ne", "nos",
	"notre", "nous", "on", "ou", "où", "par", "pas", "pour", "qu", "que", "qui",
	"sa", "se", "ses", "son", "sur", "ta", "te", "tes", "toi", "ton", "tu", "un",
	"une", "vos", "votre", "vous", "est", "sont", "été", "être", "avoir", "ai",
	"as", "avons", "avez", "ont", "était", "étaient", "fait", "faire", "plus",
	"comme", "tout", "tous", "toute", "toutes", "sans", "sous", "entre", "aussi",
	"donc", "ainsi", "alors", "cela", "ceci", "ça", "si", "car", "dont", "très",
	"bien", "peu", "leur", "ci", "là", "lors", "chez", "vers", "selon",
)

var combinedStopWords = func() map[string]struct{} {
	m := make(map[string]struct{}, len(englishStopWords)+len(frenchStopWords))
	for w := range englishStopWords {
		m[w] = struct{}{}
	}
	for w := range frenchStopWords {
		m[w] = struct{}{}
	}
	return m
}()

// StopWords returns the stop-word set for lang. Unknown languages get the
// union of the English and French lists.
func StopWords(lang Language) map[string]struct{} {
	switch lang {
	case LangEnglish:
		return englishStopWords
	case LangFrench:
		return frenchStopWords
	default:
		return combinedStopWords
	}
}

// IsStopWord reports whether word is a stop word in lang.
func IsStopWord(lang Language, word string) bool {
	_, ok := StopWords(lang)[word]
	return ok
}
