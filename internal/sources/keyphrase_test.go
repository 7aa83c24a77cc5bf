package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ABNmmd/PFE-FSA/internal/textproc"
)

func TestRakePhrases(t *testing.T) {
	got := rakePhrases("Compatibility of systems of linear constraints", textproc.StopWords(textproc.LangEnglish))
	assert.Equal(t, []string{"linear constraints", "compatibility", "systems"}, got)
}

func TestNounPhrases(t *testing.T) {
	got := nounPhrases("Marie Curie studied radioactivity. Marie Curie won prizes.",
		textproc.StopWords(textproc.LangEnglish))
	assert.Equal(t, "marie curie", got[0])
	assert.Contains(t, got, "radioactivity")
	assert.NotContains(t, got, "prizes")
}

func TestExtractLimitsPhrases(t *testing.T) {
	text := "Astronomers observed distant galaxies through powerful telescopes. " +
		"Spectral measurements revealed hydrogen emissions near bright quasars. " +
		"Researchers proposed dark matter halos around spiral systems."
	got := KeyphraseExtractor{Limit: 5}.Extract(text)
	assert.GreaterOrEqual(t, len(got), MinKeyphrases)
	assert.LessOrEqual(t, len(got), 5)
	for _, p := range got {
		assert.LessOrEqual(t, len(strings.Fields(p)), 3)
	}
}

func TestExtractEmpty(t *testing.T) {
	assert.Empty(t, KeyphraseExtractor{}.Extract(""))
}
