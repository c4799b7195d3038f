package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
)

const studentColumns = `id, first_name, last_name, primary_email, secondary_email, class_year, status,
        rt_assignment, nrt_assignment, phone_number, hometown, concentration, secondary_field,
        extracurriculars, clinical_shadowing, research_activity, medical_interests, program_interests,
        created_at, updated_at`

// QueryObserver receives per-query timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// SetMetrics attaches query timing instrumentation.
func (r *StudentRepository) SetMetrics(m QueryObserver) { r.metrics = m }

func (r *StudentRepository) observe(label string, started time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(started))
	}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	defer r.observe("students.list", time.Now())
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ClassYear != "" {
		conditions = append(conditions, fmt.Sprintf("class_year = $%d", len(args)+1))
		args = append(args, filter.ClassYear)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(primary_email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"last_name":  "last_name",
		"class_year": "class_year",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "last_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns, where, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// All fetches the whole roster in stable name order.
func (r *StudentRepository) All(ctx context.Context) ([]models.Student, error) {
	defer r.observe("students.all", time.Now())
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY last_name, first_name", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	defer r.observe("students.find_by_id", time.Now())
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	defer r.observe("students.create", time.Now())
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.Status == "" {
		student.Status = models.StatusNotApplying
	}

	query := `INSERT INTO students (id, first_name, last_name, primary_email, secondary_email, class_year, status,
        rt_assignment, nrt_assignment, phone_number, hometown, concentration, secondary_field,
        extracurriculars, clinical_shadowing, research_activity, medical_interests, program_interests,
        created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :primary_email, :secondary_email, :class_year, :status,
        :rt_assignment, :nrt_assignment, :phone_number, :hometown, :concentration, :secondary_field,
        :extracurriculars, :clinical_shadowing, :research_activity, :medical_interests, :program_interests,
        :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists every mutable field of the student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	defer r.observe("students.update", time.Now())
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET first_name = :first_name, last_name = :last_name,
        primary_email = :primary_email, secondary_email = :secondary_email, class_year = :class_year,
        status = :status, rt_assignment = :rt_assignment, nrt_assignment = :nrt_assignment,
        phone_number = :phone_number, hometown = :hometown, concentration = :concentration,
        secondary_field = :secondary_field, extracurriculars = :extracurriculars,
        clinical_shadowing = :clinical_shadowing, research_activity = :research_activity,
        medical_interests = :medical_interests, program_interests = :program_interests,
        updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student and returns the prior record so the caller can
// offer a restore.
func (r *StudentRepository) Delete(ctx context.Context, id string) (*models.Student, error) {
	defer r.observe("students.delete", time.Now())
	query := fmt.Sprintf("DELETE FROM students WHERE id = $1 RETURNING %s", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// BulkCreate inserts all students inside one transaction.
func (r *StudentRepository) BulkCreate(ctx context.Context, students []models.Student) error {
	defer r.observe("students.bulk_create", time.Now())
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `INSERT INTO students (id, first_name, last_name, primary_email, secondary_email, class_year, status,
        rt_assignment, nrt_assignment, phone_number, hometown, concentration, secondary_field,
        extracurriculars, clinical_shadowing, research_activity, medical_interests, program_interests,
        created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :primary_email, :secondary_email, :class_year, :status,
        :rt_assignment, :nrt_assignment, :phone_number, :hometown, :concentration, :secondary_field,
        :extracurriculars, :clinical_shadowing, :research_activity, :medical_interests, :program_interests,
        :created_at, :updated_at)`
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		if students[i].Status == "" {
			students[i].Status = models.StatusNotApplying
		}
		students[i].CreatedAt = now
		students[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, students[i]); err != nil {
			return fmt.Errorf("bulk insert student %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

// Restore re-inserts a previously deleted student keeping its original
// identity and timestamps.
func (r *StudentRepository) Restore(ctx context.Context, student *models.Student) error {
	defer r.observe("students.restore", time.Now())
	if student.ID == "" {
		return fmt.Errorf("restore requires the original student id")
	}
	query := `INSERT INTO students (id, first_name, last_name, primary_email, secondary_email, class_year, status,
        rt_assignment, nrt_assignment, phone_number, hometown, concentration, secondary_field,
        extracurriculars, clinical_shadowing, research_activity, medical_interests, program_interests,
        created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :primary_email, :secondary_email, :class_year, :status,
        :rt_assignment, :nrt_assignment, :phone_number, :hometown, :concentration, :secondary_field,
        :extracurriculars, :clinical_shadowing, :research_activity, :medical_interests, :program_interests,
        :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("restore student: %w", err)
	}
	return nil
}
