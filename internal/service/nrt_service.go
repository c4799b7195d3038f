package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type nrtRepository interface {
	List(ctx context.Context, filter models.TutorFilter) ([]models.NonResidentTutor, int, error)
	All(ctx context.Context) ([]models.NonResidentTutor, error)
	FindByID(ctx context.Context, id string) (*models.NonResidentTutor, error)
	FindByEmail(ctx context.Context, email string) (*models.NonResidentTutor, error)
	Create(ctx context.Context, tutor *models.NonResidentTutor) error
	Update(ctx context.Context, tutor *models.NonResidentTutor) error
	Delete(ctx context.Context, id string) (*models.NonResidentTutor, error)
	BulkCreate(ctx context.Context, tutors []models.NonResidentTutor) error
}

// CreateNRTRequest describes a non-resident tutor payload.
type CreateNRTRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Status string `json:"status"`

	PhoneNumber       string `json:"phone_number"`
	Affiliation       string `json:"affiliation"`
	StageOfTraining   string `json:"stage_of_training"`
	TimeInBoston      string `json:"time_in_boston"`
	MedicalInterests  string `json:"medical_interests"`
	OutsideInterests  string `json:"outside_interests"`
	ResearchInterest  string `json:"research_interest"`
	ShadowingInterest string `json:"shadowing_interest"`
	EventsInterest    string `json:"events_interest"`
	SpecificEvents    string `json:"specific_events"`
}

// NRTService handles the non-resident tutor roster.
type NRTService struct {
	repo      nrtRepository
	students  rosterReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNRTService creates a service instance.
func NewNRTService(repo nrtRepository, students rosterReader, validate *validator.Validate, logger *zap.Logger) *NRTService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NRTService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns non-resident tutors with derived student counts and
// per-class-year breakdowns computed from the student roster.
func (s *NRTService) List(ctx context.Context, filter models.TutorFilter) ([]models.NRTWithCount, *models.Pagination, error) {
	tutors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list non-resident tutors")
	}
	counts, err := s.assignmentCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make([]models.NRTWithCount, 0, len(tutors))
	for _, tutor := range tutors {
		out = append(out, models.NRTWithCount{
			NonResidentTutor: tutor,
			StudentCount:     counts[trimLower(tutor.Name)],
		})
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return out, models.NewPagination(page, filter.PageSize, total), nil
}

// Get fetches one non-resident tutor.
func (s *NRTService) Get(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "non-resident tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load non-resident tutor")
	}
	return tutor, nil
}

// Create validates and inserts a new non-resident tutor.
func (s *NRTService) Create(ctx context.Context, req CreateNRTRequest) (*models.NonResidentTutor, error) {
	tutor, err := s.buildTutor(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, tutor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create non-resident tutor")
	}
	return tutor, nil
}

// Update replaces the tutor's editable fields.
func (s *NRTService) Update(ctx context.Context, id string, req CreateNRTRequest) (*models.NonResidentTutor, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.buildTutor(req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update non-resident tutor")
	}
	return updated, nil
}

// UpdateStatus changes only the eligibility status, preserving every other
// field from a fresh read of the record.
func (s *NRTService) UpdateStatus(ctx context.Context, id string, status models.NRTStatus) (*models.NonResidentTutor, error) {
	if !models.ValidNRTStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown tutor status")
	}
	tutor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tutor.Status = status
	if err := s.repo.Update(ctx, tutor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tutor status")
	}
	return tutor, nil
}

// Delete removes a non-resident tutor and returns the deleted record.
// Students assigned to the tutor keep the stale name string; callers decide
// whether to clear those assignments.
func (s *NRTService) Delete(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	tutor, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "non-resident tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete non-resident tutor")
	}
	s.logger.Info("non-resident tutor deleted", zap.String("tutor_id", id), zap.String("name", tutor.Name))
	return tutor, nil
}

// BulkAdd imports many tutors, counting per-row successes and failures.
// Imported tutors start as ACTIVE.
func (s *NRTService) BulkAdd(ctx context.Context, rows []CreateNRTRequest) (*BulkAddResult, error) {
	result := &BulkAddResult{}
	valid := make([]models.NonResidentTutor, 0, len(rows))
	for _, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		row.Email = strings.TrimSpace(row.Email)
		if row.Name == "" || row.Email == "" {
			result.Failed++
			continue
		}
		row.Status = string(models.NRTStatusActive)
		tutor, err := s.buildTutor(row)
		if err != nil {
			result.Failed++
			continue
		}
		valid = append(valid, *tutor)
	}
	if len(valid) > 0 {
		if err := s.repo.BulkCreate(ctx, valid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk insert failed")
		}
		result.Success = len(valid)
	}
	return result, nil
}

func (s *NRTService) buildTutor(req CreateNRTRequest) (*models.NonResidentTutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	status := models.NRTStatus(req.Status)
	if req.Status == "" {
		status = models.NRTStatusActive
	} else if !models.ValidNRTStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown tutor status")
	}
	return &models.NonResidentTutor{
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Status:            status,
		PhoneNumber:       req.PhoneNumber,
		Affiliation:       req.Affiliation,
		StageOfTraining:   req.StageOfTraining,
		TimeInBoston:      req.TimeInBoston,
		MedicalInterests:  req.MedicalInterests,
		OutsideInterests:  req.OutsideInterests,
		ResearchInterest:  req.ResearchInterest,
		ShadowingInterest: req.ShadowingInterest,
		EventsInterest:    req.EventsInterest,
		SpecificEvents:    req.SpecificEvents,
	}, nil
}

func (s *NRTService) assignmentCounts(ctx context.Context) (map[string]int, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	counts := make(map[string]int)
	for _, student := range students {
		if student.NRTAssignment != "" {
			counts[trimLower(student.NRTAssignment)]++
		}
	}
	return counts, nil
}
