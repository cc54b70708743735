package engine

// Voice catalogs by language, in order of conversational realism.
var (
	EnglishVoices  = []string{"tara", "leah", "jess", "leo", "dan", "mia", "zac", "zoe"}
	FrenchVoices   = []string{"pierre", "amelie", "marie"}
	GermanVoices   = []string{"jana", "thomas", "max"}
	KoreanVoices   = []string{"유나", "준서"}
	HindiVoices    = []string{"ऋतिका"}
	MandarinVoices = []string{"长乐", "白芷"}
	SpanishVoices  = []string{"javi", "sergio", "maria"}
	ItalianVoices  = []string{"pietro", "giulia", "carlo"}
)

// DefaultVoice is used whenever a requested voice is not recognized.
const DefaultVoice = "tara"

// AvailableVoices returns the combined catalog across all languages.
func AvailableVoices() []string {
	var voices []string

	voices = append(voices, EnglishVoices...)
	voices = append(voices, FrenchVoices...)
	voices = append(voices, GermanVoices...)
	voices = append(voices, KoreanVoices...)
	voices = append(voices, HindiVoices...)
	voices = append(voices, MandarinVoices...)
	voices = append(voices, SpanishVoices...)
	voices = append(voices, ItalianVoices...)

	return voices
}

// IsVoiceAvailable reports whether voice is in the catalog.
func IsVoiceAvailable(voice string) bool {
	for _, known := range AvailableVoices() {
		if known == voice {
			return true
		}
	}

	return false
}
