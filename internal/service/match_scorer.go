package service

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
)

// Category weights for the overall similarity score.
const (
	medicalWeight  = 0.4
	researchWeight = 0.4
	socialWeight   = 0.2
)

// matchStopWords holds common function words plus domain filler that appears
// in nearly every profile answer and carries no matching signal.
var matchStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"have": {}, "has": {}, "had": {}, "are": {}, "was": {}, "were": {},
	"you": {}, "your": {}, "our": {}, "their": {}, "they": {}, "them": {},
	"from": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"like": {}, "any": {}, "all": {}, "also": {}, "but": {}, "not": {},
	"can": {}, "into": {}, "out": {}, "about": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "how": {}, "been": {}, "being": {},
	"its": {}, "his": {}, "her": {}, "she": {}, "him": {}, "than": {},
	"then": {}, "some": {}, "such": {}, "very": {}, "more": {}, "most": {},
	"other": {}, "own": {}, "same": {}, "just": {}, "during": {}, "while": {},
	"interested": {}, "interest": {}, "interests": {}, "interesting": {},
	"work": {}, "working": {}, "done": {}, "doing": {}, "etc": {},
	"really": {}, "enjoy": {}, "want": {}, "might": {}, "things": {},
}

// MatchScorer computes similarity between student and tutor free-text
// profiles. It is a pure value with no dependencies.
type MatchScorer struct{}

// NewMatchScorer constructs a scorer.
func NewMatchScorer() *MatchScorer {
	return &MatchScorer{}
}

// Score compares the three paired profile categories and returns the weighted
// breakdown. It never fails: empty or missing fields score zero for their
// category.
//
// A category where neither side contributes any significant term is excluded
// from the overall weighting entirely, and the weights are renormalised over
// the remaining categories. Without that, a pair overlapping fully on the
// only populated category could never reach 100.
func (m *MatchScorer) Score(student models.Student, tutor models.NonResidentTutor) models.MatchScore {
	medical, medTerms, medActive := jaccardCategory(student.MedicalInterests, tutor.MedicalInterests)
	research, resTerms, resActive := jaccardCategory(student.ResearchActivity, tutor.ResearchInterest)
	social, socTerms, socActive := jaccardCategory(student.Extracurriculars, tutor.OutsideInterests)

	var weighted, totalWeight float64
	if medActive {
		weighted += medicalWeight * medical
		totalWeight += medicalWeight
	}
	if resActive {
		weighted += researchWeight * research
		totalWeight += researchWeight
	}
	if socActive {
		weighted += socialWeight * social
		totalWeight += socialWeight
	}

	overall := 0
	if totalWeight > 0 {
		overall = int(math.Round(weighted / totalWeight))
	}

	return models.MatchScore{
		Overall:  overall,
		Medical:  int(math.Round(medical)),
		Research: int(math.Round(research)),
		Social:   int(math.Round(social)),
		MatchedTerms: models.MatchedTerms{
			Medical:  medTerms,
			Research: resTerms,
			Social:   socTerms,
		},
	}
}

// jaccardCategory scores one field pairing as 100 * |A∩B| / |A∪B|. The third
// return value is false when the union is empty, meaning the category holds
// no signal at all.
func jaccardCategory(studentText, tutorText string) (float64, []string, bool) {
	studentTerms := significantTerms(studentText)
	tutorTerms := significantTerms(tutorText)

	union := len(studentTerms)
	var matched []string
	for term := range tutorTerms {
		if _, ok := studentTerms[term]; ok {
			matched = append(matched, term)
		} else {
			union++
		}
	}
	if union == 0 {
		return 0, nil, false
	}
	sort.Strings(matched)
	return 100 * float64(len(matched)) / float64(union), matched, true
}

// significantTerms tokenizes free text into the set of terms that carry
// matching signal: lowercased, punctuation stripped, longer than two runes,
// and not a stop word.
func significantTerms(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	terms := make(map[string]struct{})
	for _, token := range strings.Fields(cleaned) {
		if len([]rune(token)) <= 2 {
			continue
		}
		if _, stop := matchStopWords[token]; stop {
			continue
		}
		terms[token] = struct{}{}
	}
	return terms
}
