package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
)

// EmailTemplateRepository manages reusable message templates.
type EmailTemplateRepository struct {
	db *sqlx.DB
}

// NewEmailTemplateRepository constructs an EmailTemplateRepository.
func NewEmailTemplateRepository(db *sqlx.DB) *EmailTemplateRepository {
	return &EmailTemplateRepository{db: db}
}

// All lists every template.
func (r *EmailTemplateRepository) All(ctx context.Context) ([]models.EmailTemplate, error) {
	var templates []models.EmailTemplate
	if err := r.db.SelectContext(ctx, &templates, "SELECT id, name, subject, body, created_at, updated_at FROM email_templates ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	return templates, nil
}

// FindByID fetches one template.
func (r *EmailTemplateRepository) FindByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	var template models.EmailTemplate
	if err := r.db.GetContext(ctx, &template, "SELECT id, name, subject, body, created_at, updated_at FROM email_templates WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &template, nil
}

// Create inserts a new template.
func (r *EmailTemplateRepository) Create(ctx context.Context, template *models.EmailTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	query := `INSERT INTO email_templates (id, name, subject, body, created_at, updated_at)
        VALUES (:id, :name, :subject, :body, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create email template: %w", err)
	}
	return nil
}

// Update persists template changes.
func (r *EmailTemplateRepository) Update(ctx context.Context, template *models.EmailTemplate) error {
	template.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		"UPDATE email_templates SET name = :name, subject = :subject, body = :body, updated_at = :updated_at WHERE id = :id", template)
	if err != nil {
		return fmt.Errorf("update email template: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template.
func (r *EmailTemplateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM email_templates WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete email template: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EmailLogRepository records delivery attempts.
type EmailLogRepository struct {
	db *sqlx.DB
}

// NewEmailLogRepository constructs an EmailLogRepository.
func NewEmailLogRepository(db *sqlx.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// Create appends one delivery record.
func (r *EmailLogRepository) Create(ctx context.Context, log *models.EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.SentAt.IsZero() {
		log.SentAt = time.Now().UTC()
	}
	query := `INSERT INTO email_logs (id, student_id, recipient, subject, body, success, error, sent_at)
        VALUES (:id, :student_id, :recipient, :subject, :body, :success, :error, :sent_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	return nil
}

// ListByStudent returns delivery history for a student, newest first.
func (r *EmailLogRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	if err := r.db.SelectContext(ctx, &logs,
		"SELECT id, student_id, recipient, subject, body, success, error, sent_at FROM email_logs WHERE student_id = $1 ORDER BY sent_at DESC", studentID); err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return logs, nil
}
