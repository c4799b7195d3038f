package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type assignmentStudentRepo interface {
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
}

type rtReader interface {
	FindByEmail(ctx context.Context, email string) (*models.ResidentTutor, error)
}

type nrtReader interface {
	FindByEmail(ctx context.Context, email string) (*models.NonResidentTutor, error)
}

// AssignmentService applies individual tutor assignments to students. The
// assignment itself is the tutor's display name written onto the student
// record, matching the spreadsheet of record.
type AssignmentService struct {
	students assignmentStudentRepo
	rts      rtReader
	nrts     nrtReader
	logger   *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(students assignmentStudentRepo, rts rtReader, nrts nrtReader, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{students: students, rts: rts, nrts: nrts, logger: logger}
}

// AssignTutor routes an assignment to the right tutor category.
func (s *AssignmentService) AssignTutor(ctx context.Context, studentID, tutorEmail string, kind models.TutorKind) error {
	switch kind {
	case models.TutorKindRT:
		return s.AssignRT(ctx, studentID, tutorEmail)
	case models.TutorKindNRT:
		return s.AssignNRT(ctx, studentID, tutorEmail)
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown tutor kind %q", kind))
}

// AssignRT stores a resident tutor on the student. Resident tutors have no
// capacity limit and no eligibility status.
func (s *AssignmentService) AssignRT(ctx context.Context, studentID, tutorEmail string) error {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	tutor, err := s.rts.FindByEmail(ctx, tutorEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resident tutor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load resident tutor")
	}

	student.RTAssignment = tutor.Name
	if err := s.students.Update(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store assignment")
	}
	s.logger.Info("resident tutor assigned",
		zap.String("student_id", studentID),
		zap.String("tutor", tutor.Name),
	)
	return nil
}

// AssignNRT stores a non-resident tutor on the student after eligibility and
// capacity checks. The tutor's load is counted dynamically from the student
// roster rather than trusting a stored total.
func (s *AssignmentService) AssignNRT(ctx context.Context, studentID, tutorEmail string) error {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	tutor, err := s.nrts.FindByEmail(ctx, tutorEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "non-resident tutor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load non-resident tutor")
	}

	if tutor.Status == models.NRTStatusPendingApproval {
		return appErrors.Clone(appErrors.ErrIneligibleTutor, "tutor is pending approval and cannot take students yet")
	}
	if !tutor.AcceptingStudents() {
		return appErrors.Clone(appErrors.ErrIneligibleTutor, fmt.Sprintf("tutor is not active (status: %s)", tutor.Status))
	}

	alreadyAssigned := trimLower(student.NRTAssignment) == trimLower(tutor.Name)
	if !alreadyAssigned {
		count, err := s.countNRTStudents(ctx, tutor.Name)
		if err != nil {
			return err
		}
		if count >= models.NRTCapacity {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("tutor already has the maximum number of students (%d)", models.NRTCapacity))
		}
	}

	student.NRTAssignment = tutor.Name
	if err := s.students.Update(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store assignment")
	}
	s.logger.Info("non-resident tutor assigned",
		zap.String("student_id", studentID),
		zap.String("tutor", tutor.Name),
	)
	return nil
}

// RemoveTutor clears the assignment of the given kind from the student.
func (s *AssignmentService) RemoveTutor(ctx context.Context, studentID string, kind models.TutorKind) error {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return err
	}
	switch kind {
	case models.TutorKindRT:
		if student.RTAssignment == "" {
			return appErrors.Clone(appErrors.ErrNotFound, "student has no resident tutor assignment")
		}
		student.RTAssignment = ""
	case models.TutorKindNRT:
		if student.NRTAssignment == "" {
			return appErrors.Clone(appErrors.ErrNotFound, "student has no non-resident tutor assignment")
		}
		student.NRTAssignment = ""
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown tutor kind %q", kind))
	}
	if err := s.students.Update(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to clear assignment")
	}
	return nil
}

// CountByTutorName counts students assigned to the named non-resident tutor.
func (s *AssignmentService) CountByTutorName(ctx context.Context, tutorName string) (int, error) {
	return s.countNRTStudents(ctx, tutorName)
}

func (s *AssignmentService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEntityNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}
	return student, nil
}

func (s *AssignmentService) countNRTStudents(ctx context.Context, tutorName string) (int, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}
	want := trimLower(tutorName)
	count := 0
	for _, student := range students {
		if student.NRTAssignment != "" && trimLower(student.NRTAssignment) == want {
			count++
		}
	}
	return count, nil
}
