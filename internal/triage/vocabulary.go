package triage

import "fmt"

// Vocabulary is an ordered, language-scoped list of canonical lowercase
// symptom terms. The order is fixed at configuration time and carried
// through to match results.
type Vocabulary struct {
	Language string
	Terms    []string
}

var vocabularies = map[string]Vocabulary{
	"en": {
		Language: "en",
		Terms: []string{
			"fever", "chills", "headache", "vomiting", "fatigue", "nausea",
			"muscle pain", "diarrhea", "sore throat", "eye pain", "dizziness", "confusion",
		},
	},
	"fr": {
		Language: "fr",
		Terms: []string{
			"fièvre", "frissons", "mal de tête", "vomissements", "fatigue", "nausée",
			"douleurs musculaires", "diarrhée", "maux de gorge", "douleur oculaire", "vertiges", "confusion",
		},
	},
}

// VocabularyFor returns the symptom vocabulary for a language tag.
func VocabularyFor(language string) (Vocabulary, error) {
	v, ok := vocabularies[language]
	if !ok {
		return Vocabulary{}, fmt.Errorf("no symptom vocabulary for language %q", language)
	}
	return v, nil
}

// Languages lists the supported vocabulary tags.
func Languages() []string {
	return []string{"en", "fr"}
}
