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

// RTRepository manages persistence for resident tutor records.
type RTRepository struct {
	db *sqlx.DB
}

// NewRTRepository constructs an RTRepository.
func NewRTRepository(db *sqlx.DB) *RTRepository {
	return &RTRepository{db: db}
}

// All fetches every resident tutor in name order.
func (r *RTRepository) All(ctx context.Context) ([]models.ResidentTutor, error) {
	var tutors []models.ResidentTutor
	if err := r.db.SelectContext(ctx, &tutors, "SELECT id, name, email, created_at, updated_at FROM resident_tutors ORDER BY name"); err != nil {
		return nil, fmt.Errorf("load resident tutors: %w", err)
	}
	return tutors, nil
}

// FindByID fetches one resident tutor.
func (r *RTRepository) FindByID(ctx context.Context, id string) (*models.ResidentTutor, error) {
	var tutor models.ResidentTutor
	if err := r.db.GetContext(ctx, &tutor, "SELECT id, name, email, created_at, updated_at FROM resident_tutors WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByEmail fetches a resident tutor by its email address.
func (r *RTRepository) FindByEmail(ctx context.Context, email string) (*models.ResidentTutor, error) {
	var tutor models.ResidentTutor
	if err := r.db.GetContext(ctx, &tutor, "SELECT id, name, email, created_at, updated_at FROM resident_tutors WHERE LOWER(email) = $1", strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Create inserts a new resident tutor.
func (r *RTRepository) Create(ctx context.Context, tutor *models.ResidentTutor) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tutor.CreatedAt = now
	tutor.UpdatedAt = now
	query := `INSERT INTO resident_tutors (id, name, email, created_at, updated_at)
        VALUES (:id, :name, :email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return fmt.Errorf("create resident tutor: %w", err)
	}
	return nil
}

// Update persists the tutor's name and email.
func (r *RTRepository) Update(ctx context.Context, tutor *models.ResidentTutor) error {
	tutor.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		"UPDATE resident_tutors SET name = :name, email = :email, updated_at = :updated_at WHERE id = :id", tutor)
	if err != nil {
		return fmt.Errorf("update resident tutor: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a resident tutor returning the prior record.
func (r *RTRepository) Delete(ctx context.Context, id string) (*models.ResidentTutor, error) {
	var tutor models.ResidentTutor
	if err := r.db.GetContext(ctx, &tutor, "DELETE FROM resident_tutors WHERE id = $1 RETURNING id, name, email, created_at, updated_at", id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// BulkCreate inserts all tutors inside one transaction.
func (r *RTRepository) BulkCreate(ctx context.Context, tutors []models.ResidentTutor) error {
	if len(tutors) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `INSERT INTO resident_tutors (id, name, email, created_at, updated_at)
        VALUES (:id, :name, :email, :created_at, :updated_at)`
	for i := range tutors {
		if tutors[i].ID == "" {
			tutors[i].ID = uuid.NewString()
		}
		tutors[i].CreatedAt = now
		tutors[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, tutors[i]); err != nil {
			return fmt.Errorf("bulk insert resident tutor %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}
