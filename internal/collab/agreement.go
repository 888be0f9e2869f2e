package collab

import "strings"

// Detector decides whether a model response signals consensus. The phrase
// heuristic is provisional; the interface exists so a structured signal can
// replace it without touching the orchestrator.
type Detector interface {
	Detect(text string) bool
}

// agreementPhrases are matched case-insensitively as substrings.
var agreementPhrases = []string{
	"i agree with",
	"fully addresses",
	"nothing more to add",
	"nothing further to add",
	"i fully agree",
	"we are in agreement",
	"we're in agreement",
	"i concur with",
	"this answer is complete",
}

// PhraseDetector scans text for a fixed list of consensus phrases.
type PhraseDetector struct {
	phrases []string
}

// NewPhraseDetector creates a detector with the default phrase list.
func NewPhraseDetector() *PhraseDetector {
	return &PhraseDetector{phrases: agreementPhrases}
}

// Detect reports whether any consensus phrase occurs in the text.
func (d *PhraseDetector) Detect(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var _ Detector = (*PhraseDetector)(nil)
