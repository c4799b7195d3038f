package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

// StatsService aggregates dashboard figures from the rosters.
type StatsService struct {
	students rosterReader
	nrts     nrtRosterReader
	logger   *zap.Logger
}

// NewStatsService creates a service instance.
func NewStatsService(students rosterReader, nrts nrtRosterReader, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{students: students, nrts: nrts, logger: logger}
}

// HouseStats computes the dashboard snapshot in one pass over both rosters.
func (s *StatsService) HouseStats(ctx context.Context) (*models.HouseStats, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}
	tutors, err := s.nrts.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load non-resident tutors")
	}

	stats := &models.HouseStats{
		TotalStudents:      len(students),
		StudentsByStatus:   make(map[string]int),
		RTAssignments:      make(map[string]int),
		NRTAssignments:     make(map[string]int),
		NRTClassYearCounts: make(map[string]map[string]int),
	}

	for _, student := range students {
		stats.StudentsByStatus[string(student.Status)]++
		if student.RTAssignment == "" {
			stats.UnassignedRTCount++
		} else {
			stats.RTAssignments[student.RTAssignment]++
		}
		if student.NRTAssignment == "" {
			stats.UnassignedNRTCount++
			continue
		}
		stats.NRTAssignments[student.NRTAssignment]++
		year := student.ClassYear
		if year == "" {
			year = "unknown"
		}
		byYear := stats.NRTClassYearCounts[student.NRTAssignment]
		if byYear == nil {
			byYear = make(map[string]int)
			stats.NRTClassYearCounts[student.NRTAssignment] = byYear
		}
		byYear[year]++
	}

	for _, tutor := range tutors {
		if tutor.AcceptingStudents() {
			stats.ActiveNRTs++
		}
	}

	return stats, nil
}
