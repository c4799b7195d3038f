package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type nrtRosterReader interface {
	All(ctx context.Context) ([]models.NonResidentTutor, error)
}

// SuggestionService feeds the pure matcher from the live rosters: students
// without a non-resident tutor on one side, tutors with their dynamically
// counted load on the other.
type SuggestionService struct {
	students rosterReader
	nrts     nrtRosterReader
	matcher  *MatchService
	logger   *zap.Logger
}

// NewSuggestionService creates a service instance.
func NewSuggestionService(students rosterReader, nrts nrtRosterReader, matcher *MatchService, logger *zap.Logger) *SuggestionService {
	if matcher == nil {
		matcher = NewMatchService(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{students: students, nrts: nrts, matcher: matcher, logger: logger}
}

// Suggest proposes assignments for every student currently lacking a
// non-resident tutor.
func (s *SuggestionService) Suggest(ctx context.Context) ([]models.SuggestedPair, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}
	tutors, err := s.nrts.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load non-resident tutors")
	}

	idByName := make(map[string]string, len(tutors))
	for _, tutor := range tutors {
		idByName[trimLower(tutor.Name)] = tutor.ID
	}

	counts := make(map[string]int, len(tutors))
	unassigned := make([]models.Student, 0, len(students))
	for _, student := range students {
		if student.NRTAssignment == "" {
			unassigned = append(unassigned, student)
			continue
		}
		if tutorID, ok := idByName[trimLower(student.NRTAssignment)]; ok {
			counts[tutorID]++
		}
	}

	return s.matcher.Suggest(unassigned, tutors, counts), nil
}
