package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/jobs"
	"github.com/winthrop-prehealth/tutor-api/pkg/mailer"
)

const assignmentSubject = "Winthrop Pre-Health RT & NRT Assignment"

const defaultAssignmentBody = `Dear {first_name},

Your non-resident pre-medical tutor this year is {nrt_name} (cc'd here). Please follow up to set up a meeting at a convenient time. Your non-resident tutor will be an important resource as you on your journey towards medical school and will write the first draft of your Dean's Letter when you apply. Our hope is that you will meet on average once per semester. It is your responsibility to reach out and schedule this meeting, so be proactive!

Your resident pre-medical tutor will be {rt_name} (also cc'd). If you have additional questions about the advising and application process, please don't hesitate to contact them.

If you are not planning to be pre-med anymore, please let us know as soon as possible so we can reassign your NRT.

Regards,
Winthrop House Pre-Health Committee
`

type emailTemplateStore interface {
	All(ctx context.Context) ([]models.EmailTemplate, error)
	FindByID(ctx context.Context, id string) (*models.EmailTemplate, error)
	Create(ctx context.Context, tpl *models.EmailTemplate) error
	Update(ctx context.Context, tpl *models.EmailTemplate) error
	Delete(ctx context.Context, id string) error
}

type emailLogStore interface {
	Create(ctx context.Context, log *models.EmailLog) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EmailLog, error)
}

type emailStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type rtLister interface {
	All(ctx context.Context) ([]models.ResidentTutor, error)
}

// TemplateRequest creates or updates a reusable email template.
type TemplateRequest struct {
	Name    string `json:"name" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// BulkEmailResult reports per-recipient delivery outcomes.
type BulkEmailResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}

// EmailService sends assignment notifications to students with their
// resident and non-resident tutors cc'd, manages templates, and records
// every delivery attempt.
type EmailService struct {
	templates emailTemplateStore
	logs      emailLogStore
	students  emailStudentReader
	rts       rtLister
	nrts      nrtRosterReader
	mailer    mailer.Mailer
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmailService constructs an EmailService instance. The background queue
// is wired after construction because the queue handler closes over the
// service itself.
func NewEmailService(templates emailTemplateStore, logs emailLogStore, students emailStudentReader, rts rtLister, nrts nrtRosterReader, m mailer.Mailer, validate *validator.Validate, logger *zap.Logger) *EmailService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		templates: templates,
		logs:      logs,
		students:  students,
		rts:       rts,
		nrts:      nrts,
		mailer:    m,
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the background delivery queue used for bulk sends.
func (s *EmailService) SetQueue(q *jobs.Queue) { s.queue = q }

// SetMetrics attaches delivery instrumentation.
func (s *EmailService) SetMetrics(m *MetricsService) { s.metrics = m }

// HandleJob is the queue handler for queued assignment emails. The payload
// is the student ID, the job type carries the optional template ID.
func (s *EmailService) HandleJob(ctx context.Context, job jobs.Job) error {
	studentID, _ := job.Payload.(string)
	if studentID == "" {
		return nil
	}
	return s.SendAssignmentEmail(ctx, studentID, job.Type)
}

// SendAssignmentEmail notifies one student of their current assignments.
// templateID selects a stored template; empty uses the built-in body.
func (s *EmailService) SendAssignmentEmail(ctx context.Context, studentID, templateID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load student")
	}

	to := student.ContactEmail()
	if to == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student has no email address")
	}

	subject, body, err := s.resolveTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	rtName, rtEmail := s.resolveRT(ctx, student.RTAssignment)
	nrtName, nrtEmail := s.resolveNRT(ctx, student.NRTAssignment)

	msg := mailer.Message{
		To:      to,
		ToName:  student.FullName(),
		Subject: subject,
		Body:    renderBody(body, student.FirstName, rtName, rtEmail, nrtName, nrtEmail),
	}
	if rtEmail != "" {
		msg.CC = append(msg.CC, rtEmail)
	}
	if nrtEmail != "" {
		msg.CC = append(msg.CC, nrtEmail)
	}

	sendErr := s.mailer.Send(ctx, msg)
	s.recordAttempt(ctx, student.ID, msg, sendErr)
	if sendErr != nil {
		return appErrors.Wrap(sendErr, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to send email")
	}
	return nil
}

// SendBulkAssignmentEmails sends assignment notifications to each listed
// student in turn, collecting successes and failures instead of stopping.
func (s *EmailService) SendBulkAssignmentEmails(ctx context.Context, studentIDs []string, templateID string) (*BulkEmailResult, error) {
	result := &BulkEmailResult{Success: []string{}, Failed: []string{}}
	for _, id := range studentIDs {
		if err := s.SendAssignmentEmail(ctx, id, templateID); err != nil {
			s.logger.Warn("bulk assignment email failed",
				zap.String("student_id", id), zap.Error(err))
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}

// QueueAssignmentEmails enqueues deliveries on the background queue and
// returns the number accepted. Outcomes land in the delivery log.
func (s *EmailService) QueueAssignmentEmails(studentIDs []string, templateID string) (int, error) {
	if s.queue == nil {
		return 0, appErrors.Clone(appErrors.ErrInternal, "email queue is not running")
	}
	queued := 0
	for _, id := range studentIDs {
		job := jobs.Job{ID: uuid.NewString(), Type: templateID, Payload: id}
		if err := s.queue.Enqueue(job); err != nil {
			return queued, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue email")
		}
		queued++
	}
	return queued, nil
}

// SendLoginCode mails a one-time login code to an administrator.
func (s *EmailService) SendLoginCode(ctx context.Context, email, code string) error {
	msg := mailer.Message{
		To:      email,
		Subject: "Winthrop Pre-Health Admin Login Code",
		Body:    "Your login code is: " + code + "\n\nIt expires shortly. If you did not request it, ignore this message.\n",
	}
	return s.mailer.Send(ctx, msg)
}

// History returns the delivery log for one student, newest first.
func (s *EmailService) History(ctx context.Context, studentID string) ([]models.EmailLog, error) {
	logs, err := s.logs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load email history")
	}
	return logs, nil
}

// ListTemplates returns all stored templates.
func (s *EmailService) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	templates, err := s.templates.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load templates")
	}
	return templates, nil
}

// CreateTemplate stores a new template.
func (s *EmailService) CreateTemplate(ctx context.Context, req TemplateRequest) (*models.EmailTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template")
	}
	now := time.Now().UTC()
	tpl := &models.EmailTemplate{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create template")
	}
	return tpl, nil
}

// UpdateTemplate replaces a stored template's content.
func (s *EmailService) UpdateTemplate(ctx context.Context, id string, req TemplateRequest) (*models.EmailTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template")
	}
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load template")
	}
	tpl.Name = req.Name
	tpl.Subject = req.Subject
	tpl.Body = req.Body
	tpl.UpdatedAt = time.Now().UTC()
	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update template")
	}
	return tpl, nil
}

// DeleteTemplate removes a stored template.
func (s *EmailService) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete template")
	}
	return nil
}

func (s *EmailService) resolveTemplate(ctx context.Context, templateID string) (subject, body string, err error) {
	if templateID == "" {
		return assignmentSubject, defaultAssignmentBody, nil
	}
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load template")
	}
	return tpl.Subject, tpl.Body, nil
}

// resolveRT maps an assignment string back to the tutor record. Assignments
// store the tutor's display name; the roster lookup tolerates case and
// whitespace drift.
func (s *EmailService) resolveRT(ctx context.Context, assignment string) (name, email string) {
	if assignment == "" {
		return "", ""
	}
	tutors, err := s.rts.All(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve resident tutor", zap.Error(err))
		return assignment, ""
	}
	want := trimLower(assignment)
	for _, t := range tutors {
		if trimLower(t.Name) == want {
			return t.Name, t.Email
		}
	}
	return assignment, ""
}

func (s *EmailService) resolveNRT(ctx context.Context, assignment string) (name, email string) {
	if assignment == "" {
		return "", ""
	}
	tutors, err := s.nrts.All(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve non-resident tutor", zap.Error(err))
		return assignment, ""
	}
	want := trimLower(assignment)
	for _, t := range tutors {
		if trimLower(t.Name) == want {
			return t.Name, t.Email
		}
	}
	return assignment, ""
}

func (s *EmailService) recordAttempt(ctx context.Context, studentID string, msg mailer.Message, sendErr error) {
	s.metrics.RecordEmail(sendErr == nil)
	log := &models.EmailLog{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Success:   sendErr == nil,
		SentAt:    time.Now().UTC(),
	}
	if sendErr != nil {
		log.Error = sendErr.Error()
	}
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record email attempt", zap.Error(err))
	}
}

func renderBody(body, firstName, rtName, rtEmail, nrtName, nrtEmail string) string {
	orTBD := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "TBD"
		}
		return strings.TrimSpace(v)
	}
	return strings.NewReplacer(
		"{first_name}", orTBD(firstName),
		"{rt_name}", orTBD(rtName),
		"{rt_email}", orTBD(rtEmail),
		"{nrt_name}", orTBD(nrtName),
		"{nrt_email}", orTBD(nrtEmail),
	).Replace(body)
}
