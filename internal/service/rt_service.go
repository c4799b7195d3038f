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

type rtRepository interface {
	All(ctx context.Context) ([]models.ResidentTutor, error)
	FindByID(ctx context.Context, id string) (*models.ResidentTutor, error)
	FindByEmail(ctx context.Context, email string) (*models.ResidentTutor, error)
	Create(ctx context.Context, tutor *models.ResidentTutor) error
	Update(ctx context.Context, tutor *models.ResidentTutor) error
	Delete(ctx context.Context, id string) (*models.ResidentTutor, error)
	BulkCreate(ctx context.Context, tutors []models.ResidentTutor) error
}

type rosterReader interface {
	All(ctx context.Context) ([]models.Student, error)
}

// CreateRTRequest describes a resident tutor payload.
type CreateRTRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// RTService handles the resident tutor roster.
type RTService struct {
	repo      rtRepository
	students  rosterReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRTService creates a service instance.
func NewRTService(repo rtRepository, students rosterReader, validate *validator.Validate, logger *zap.Logger) *RTService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RTService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns all resident tutors with derived student counts. Counts come
// from the student roster, matched by name, never from a stored total.
func (s *RTService) List(ctx context.Context) ([]models.RTWithCount, error) {
	tutors, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resident tutors")
	}
	counts, err := s.assignmentCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.RTWithCount, 0, len(tutors))
	for _, tutor := range tutors {
		out = append(out, models.RTWithCount{
			ResidentTutor: tutor,
			StudentCount:  counts[trimLower(tutor.Name)],
		})
	}
	return out, nil
}

// Get fetches one resident tutor.
func (s *RTService) Get(ctx context.Context, id string) (*models.ResidentTutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resident tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resident tutor")
	}
	return tutor, nil
}

// Create validates and inserts a new resident tutor.
func (s *RTService) Create(ctx context.Context, req CreateRTRequest) (*models.ResidentTutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	tutor := &models.ResidentTutor{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	if err := s.repo.Create(ctx, tutor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resident tutor")
	}
	return tutor, nil
}

// Update replaces the tutor's name and email.
func (s *RTService) Update(ctx context.Context, id string, req CreateRTRequest) (*models.ResidentTutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	tutor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tutor.Name = strings.TrimSpace(req.Name)
	tutor.Email = strings.TrimSpace(req.Email)
	if err := s.repo.Update(ctx, tutor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resident tutor")
	}
	return tutor, nil
}

// Delete removes a resident tutor and returns the deleted record.
func (s *RTService) Delete(ctx context.Context, id string) (*models.ResidentTutor, error) {
	tutor, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resident tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resident tutor")
	}
	s.logger.Info("resident tutor deleted", zap.String("tutor_id", id), zap.String("name", tutor.Name))
	return tutor, nil
}

func (s *RTService) assignmentCounts(ctx context.Context) (map[string]int, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	counts := make(map[string]int)
	for _, student := range students {
		if student.RTAssignment != "" {
			counts[trimLower(student.RTAssignment)]++
		}
	}
	return counts, nil
}
