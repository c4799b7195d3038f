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

const nrtColumns = `id, name, email, status, phone_number, affiliation, stage_of_training,
        time_in_boston, medical_interests, outside_interests, research_interest,
        shadowing_interest, events_interest, specific_events, created_at, updated_at`

// NRTRepository manages persistence for non-resident tutor records.
type NRTRepository struct {
	db *sqlx.DB
}

// NewNRTRepository constructs an NRTRepository.
func NewNRTRepository(db *sqlx.DB) *NRTRepository {
	return &NRTRepository{db: db}
}

// List returns tutors matching the provided filters.
func (r *NRTRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.NonResidentTutor, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM non_resident_tutors WHERE %s ORDER BY name LIMIT %d OFFSET %d",
		nrtColumns, where, size, offset)

	var tutors []models.NonResidentTutor
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list non-resident tutors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM non_resident_tutors WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count non-resident tutors: %w", err)
	}
	return tutors, total, nil
}

// All fetches every non-resident tutor in name order.
func (r *NRTRepository) All(ctx context.Context) ([]models.NonResidentTutor, error) {
	query := fmt.Sprintf("SELECT %s FROM non_resident_tutors ORDER BY name", nrtColumns)
	var tutors []models.NonResidentTutor
	if err := r.db.SelectContext(ctx, &tutors, query); err != nil {
		return nil, fmt.Errorf("load non-resident tutors: %w", err)
	}
	return tutors, nil
}

// FindByID fetches one non-resident tutor.
func (r *NRTRepository) FindByID(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	query := fmt.Sprintf("SELECT %s FROM non_resident_tutors WHERE id = $1", nrtColumns)
	var tutor models.NonResidentTutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByEmail fetches a non-resident tutor by its email address.
func (r *NRTRepository) FindByEmail(ctx context.Context, email string) (*models.NonResidentTutor, error) {
	query := fmt.Sprintf("SELECT %s FROM non_resident_tutors WHERE LOWER(email) = $1", nrtColumns)
	var tutor models.NonResidentTutor
	if err := r.db.GetContext(ctx, &tutor, query, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Create inserts a new non-resident tutor.
func (r *NRTRepository) Create(ctx context.Context, tutor *models.NonResidentTutor) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	if tutor.Status == "" {
		tutor.Status = models.NRTStatusActive
	}
	now := time.Now().UTC()
	tutor.CreatedAt = now
	tutor.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, nrtInsertQuery, tutor); err != nil {
		return fmt.Errorf("create non-resident tutor: %w", err)
	}
	return nil
}

// Update persists every mutable field of the tutor.
func (r *NRTRepository) Update(ctx context.Context, tutor *models.NonResidentTutor) error {
	tutor.UpdatedAt = time.Now().UTC()
	query := `UPDATE non_resident_tutors SET name = :name, email = :email, status = :status,
        phone_number = :phone_number, affiliation = :affiliation, stage_of_training = :stage_of_training,
        time_in_boston = :time_in_boston, medical_interests = :medical_interests,
        outside_interests = :outside_interests, research_interest = :research_interest,
        shadowing_interest = :shadowing_interest, events_interest = :events_interest,
        specific_events = :specific_events, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, tutor)
	if err != nil {
		return fmt.Errorf("update non-resident tutor: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a non-resident tutor returning the prior record.
func (r *NRTRepository) Delete(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	query := fmt.Sprintf("DELETE FROM non_resident_tutors WHERE id = $1 RETURNING %s", nrtColumns)
	var tutor models.NonResidentTutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// BulkCreate inserts all tutors inside one transaction.
func (r *NRTRepository) BulkCreate(ctx context.Context, tutors []models.NonResidentTutor) error {
	if len(tutors) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for i := range tutors {
		if tutors[i].ID == "" {
			tutors[i].ID = uuid.NewString()
		}
		if tutors[i].Status == "" {
			tutors[i].Status = models.NRTStatusActive
		}
		tutors[i].CreatedAt = now
		tutors[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, nrtInsertQuery, tutors[i]); err != nil {
			return fmt.Errorf("bulk insert non-resident tutor %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

const nrtInsertQuery = `INSERT INTO non_resident_tutors (id, name, email, status, phone_number, affiliation,
        stage_of_training, time_in_boston, medical_interests, outside_interests, research_interest,
        shadowing_interest, events_interest, specific_events, created_at, updated_at)
        VALUES (:id, :name, :email, :status, :phone_number, :affiliation,
        :stage_of_training, :time_in_boston, :medical_interests, :outside_interests, :research_interest,
        :shadowing_interest, :events_interest, :specific_events, :created_at, :updated_at)`
