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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) (*models.Student, error)
	BulkCreate(ctx context.Context, students []models.Student) error
	Restore(ctx context.Context, student *models.Student) error
}

// CreateStudentRequest describes a new student payload.
type CreateStudentRequest struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	PrimaryEmail   string `json:"primary_email" validate:"omitempty,email"`
	SecondaryEmail string `json:"secondary_email" validate:"omitempty,email"`
	ClassYear      string `json:"class_year"`
	Status         string `json:"status"`

	PhoneNumber       string `json:"phone_number"`
	Hometown          string `json:"hometown"`
	Concentration     string `json:"concentration"`
	SecondaryField    string `json:"secondary_field"`
	Extracurriculars  string `json:"extracurriculars"`
	ClinicalShadowing string `json:"clinical_shadowing"`
	ResearchActivity  string `json:"research_activity"`
	MedicalInterests  string `json:"medical_interests"`
	ProgramInterests  string `json:"program_interests"`
}

// UpdateStudentRequest mirrors the create payload for full updates.
type UpdateStudentRequest = CreateStudentRequest

// BulkAddResult reports per-row outcomes of a bulk import.
type BulkAddResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// StudentService handles the student roster.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a service instance.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return students, models.NewPagination(page, filter.PageSize, total), nil
}

// Get fetches one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create validates and inserts a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	student, err := s.buildStudent(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update replaces the student's editable fields, preserving assignments.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.buildStudent(req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.RTAssignment = existing.RTAssignment
	updated.NRTAssignment = existing.NRTAssignment
	updated.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return updated, nil
}

// Delete removes the student and returns the prior record so callers can
// offer a single-slot undo.
func (s *StudentService) Delete(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return student, nil
}

// Restore re-inserts a deleted student with its original identity and data.
func (s *StudentService) Restore(ctx context.Context, student models.Student) (*models.Student, error) {
	if student.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "restore requires the original student id")
	}
	if err := s.repo.Restore(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore student")
	}
	s.logger.Info("student restored", zap.String("student_id", student.ID))
	return &student, nil
}

// BulkAdd imports many students, counting per-row successes and failures the
// way the spreadsheet import always has: a row missing a name or any email
// is counted as failed and skipped, it never aborts the rest.
func (s *StudentService) BulkAdd(ctx context.Context, rows []CreateStudentRequest) (*BulkAddResult, error) {
	result := &BulkAddResult{}
	valid := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		row.FirstName = strings.TrimSpace(row.FirstName)
		row.LastName = strings.TrimSpace(row.LastName)
		if row.FirstName == "" || row.LastName == "" || (row.PrimaryEmail == "" && row.SecondaryEmail == "") {
			result.Failed++
			continue
		}
		student, err := s.buildStudent(row)
		if err != nil {
			result.Failed++
			continue
		}
		valid = append(valid, *student)
	}
	if len(valid) > 0 {
		if err := s.repo.BulkCreate(ctx, valid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk insert failed")
		}
		result.Success = len(valid)
	}
	return result, nil
}

func (s *StudentService) buildStudent(req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.PrimaryEmail == "" && req.SecondaryEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a student needs at least one email address")
	}
	status := models.ApplicationStatus(req.Status)
	if req.Status == "" {
		status = models.StatusNotApplying
	} else if !models.ValidApplicationStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}
	return &models.Student{
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		PrimaryEmail:      strings.TrimSpace(req.PrimaryEmail),
		SecondaryEmail:    strings.TrimSpace(req.SecondaryEmail),
		ClassYear:         strings.TrimSpace(req.ClassYear),
		Status:            status,
		PhoneNumber:       req.PhoneNumber,
		Hometown:          req.Hometown,
		Concentration:     req.Concentration,
		SecondaryField:    req.SecondaryField,
		Extracurriculars:  req.Extracurriculars,
		ClinicalShadowing: req.ClinicalShadowing,
		ResearchActivity:  req.ResearchActivity,
		MedicalInterests:  req.MedicalInterests,
		ProgramInterests:  req.ProgramInterests,
	}, nil
}
