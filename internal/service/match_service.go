package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
)

// MatchService produces suggested student-to-NRT assignments.
//
// The algorithm is a greedy walk over all pairs in descending score order.
// It approximates maximum-weight bipartite matching without any augmenting
// improvement; at house scale (tens of students, tens of tutors) the greedy
// result is close enough, and the caller can re-invoke after rejecting a
// suggestion. An optimal assignment (Hungarian algorithm) was considered and
// deliberately left out.
type MatchService struct {
	scorer  *MatchScorer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMatchService creates a matcher backed by the given scorer.
func NewMatchService(scorer *MatchScorer, logger *zap.Logger) *MatchService {
	if scorer == nil {
		scorer = NewMatchScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{scorer: scorer, logger: logger}
}

// SetMetrics attaches suggestion timing instrumentation.
func (s *MatchService) SetMetrics(m *MetricsService) { s.metrics = m }

type scoredPair struct {
	studentIdx int
	tutorIdx   int
	score      models.MatchScore
}

// Suggest proposes capacity-respecting assignments for the given students.
// currentCounts seeds the per-tutor counters with assignments that already
// exist. The result is ordered by the original student input order, never by
// score, and holds at most one entry per student.
func (s *MatchService) Suggest(students []models.Student, tutors []models.NonResidentTutor, currentCounts map[string]int) []models.SuggestedPair {
	started := time.Now()
	defer func() { s.metrics.ObserveMatch(time.Since(started)) }()

	eligible := make([]int, 0, len(tutors))
	remaining := make(map[string]int, len(tutors))
	for i, tutor := range tutors {
		free := models.NRTCapacity - currentCounts[tutor.ID]
		if tutor.AcceptingStudents() && free > 0 {
			eligible = append(eligible, i)
			remaining[tutor.ID] = free
		}
	}
	if len(students) == 0 || len(eligible) == 0 {
		return []models.SuggestedPair{}
	}

	pairs := make([]scoredPair, 0, len(students)*len(eligible))
	for si, student := range students {
		for _, ti := range eligible {
			pairs = append(pairs, scoredPair{
				studentIdx: si,
				tutorIdx:   ti,
				score:      s.scorer.Score(student, tutors[ti]),
			})
		}
	}

	// Stable keeps the cross-product order for ties, so the outcome is
	// deterministic for a given input ordering.
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score.Overall > pairs[j].score.Overall
	})

	placed := make(map[int]scoredPair, len(students))
	for _, pair := range pairs {
		if _, done := placed[pair.studentIdx]; done {
			continue
		}
		tutorID := tutors[pair.tutorIdx].ID
		if remaining[tutorID] <= 0 {
			continue
		}
		remaining[tutorID]--
		placed[pair.studentIdx] = pair
	}

	order := make([]int, 0, len(placed))
	for idx := range placed {
		order = append(order, idx)
	}
	sort.Ints(order)

	suggestions := make([]models.SuggestedPair, 0, len(order))
	for _, idx := range order {
		pair := placed[idx]
		suggestions = append(suggestions, models.SuggestedPair{
			Student:    students[pair.studentIdx],
			Tutor:      tutors[pair.tutorIdx],
			Similarity: pair.score,
		})
	}

	s.logger.Debug("match suggestions computed",
		zap.Int("students", len(students)),
		zap.Int("eligible_tutors", len(eligible)),
		zap.Int("suggested", len(suggestions)),
	)
	return suggestions
}
