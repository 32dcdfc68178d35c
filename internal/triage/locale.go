package triage

// Prompts holds the localized instruction strings spoken and displayed
// around a recording session.
type Prompts struct {
	SymptomsPrompt   string
	ExamplePrompt    string
	StartInstruction string
}

var prompts = map[string]Prompts{
	"en": {
		SymptomsPrompt:   "Say: fever, chills, headache, vomiting, fatigue, nausea, muscle pain, diarrhea, sore throat, eye pain, dizziness, or confusion.",
		ExamplePrompt:    "For example: 'I have a fever and fatigue'",
		StartInstruction: "Recording will start in a few seconds. You will have 10 seconds to say one or more symptoms clearly.",
	},
	"fr": {
		SymptomsPrompt:   "Dites : fièvre, frissons, mal de tête, vomissements, fatigue, nausée, douleurs musculaires, diarrhée, maux de gorge, douleur oculaire, vertiges ou confusion.",
		ExamplePrompt:    "Par exemple : 'J'ai de la fièvre et des frissons'",
		StartInstruction: "L'enregistrement commencera dans quelques secondes. Vous aurez 10 secondes pour dire un ou plusieurs symptômes.",
	},
}

// PromptsFor returns the instruction strings for a language tag, falling
// back to English for unknown tags.
func PromptsFor(language string) Prompts {
	if p, ok := prompts[language]; ok {
		return p
	}
	return prompts["en"]
}
