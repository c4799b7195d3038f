package models

// MatchedTerms lists the literal terms shared by a student and tutor per
// category. Consumers use them for highlighting only.
type MatchedTerms struct {
	Medical  []string `json:"medical"`
	Research []string `json:"research"`
	Social   []string `json:"social"`
}

// MatchScore is the similarity breakdown between one student and one tutor.
// All scores are 0..100.
type MatchScore struct {
	Overall      int          `json:"overall"`
	Medical      int          `json:"medical"`
	Research     int          `json:"research"`
	Social       int          `json:"social"`
	MatchedTerms MatchedTerms `json:"matched_terms"`
}

// SuggestedPair is one proposed student-tutor assignment.
type SuggestedPair struct {
	Student    Student          `json:"student"`
	Tutor      NonResidentTutor `json:"tutor"`
	Similarity MatchScore       `json:"similarity"`
}
