package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/mailer"
)

type fakeTemplateStore struct {
	byID map[string]models.EmailTemplate

	created []models.EmailTemplate
	updated []models.EmailTemplate
	deleted []string
}

func (f *fakeTemplateStore) All(ctx context.Context) ([]models.EmailTemplate, error) {
	out := make([]models.EmailTemplate, 0, len(f.byID))
	for _, tpl := range f.byID {
		out = append(out, tpl)
	}
	return out, nil
}

func (f *fakeTemplateStore) FindByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	tpl, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tpl, nil
}

func (f *fakeTemplateStore) Create(ctx context.Context, tpl *models.EmailTemplate) error {
	f.created = append(f.created, *tpl)
	return nil
}

func (f *fakeTemplateStore) Update(ctx context.Context, tpl *models.EmailTemplate) error {
	f.updated = append(f.updated, *tpl)
	return nil
}

func (f *fakeTemplateStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeEmailLogs struct {
	logs []models.EmailLog
}

func (f *fakeEmailLogs) Create(ctx context.Context, log *models.EmailLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeEmailLogs) ListByStudent(ctx context.Context, studentID string) ([]models.EmailLog, error) {
	out := make([]models.EmailLog, 0)
	for _, log := range f.logs {
		if log.StudentID == studentID {
			out = append(out, log)
		}
	}
	return out, nil
}

type fakeEmailStudents struct {
	byID map[string]models.Student
}

func (f *fakeEmailStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type fakeRTLister struct {
	tutors []models.ResidentTutor
}

func (f *fakeRTLister) All(ctx context.Context) ([]models.ResidentTutor, error) {
	return f.tutors, nil
}

type fakeMailer struct {
	sent   []mailer.Message
	errFor map[string]error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if err := f.errFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type emailFixture struct {
	templates *fakeTemplateStore
	logs      *fakeEmailLogs
	students  *fakeEmailStudents
	mail      *fakeMailer
	svc       *EmailService
}

func newEmailFixture() *emailFixture {
	templates := &fakeTemplateStore{byID: map[string]models.EmailTemplate{}}
	logs := &fakeEmailLogs{}
	students := &fakeEmailStudents{byID: map[string]models.Student{
		"s1": {
			ID: "s1", FirstName: "Ana", LastName: "Silva",
			PrimaryEmail:  "ana@college.edu",
			RTAssignment:  "Sam Porter",
			NRTAssignment: "Dr. Lee",
		},
	}}
	rts := &fakeRTLister{tutors: []models.ResidentTutor{
		{ID: "rt1", Name: "Sam Porter", Email: "sam@winthrop.edu"},
	}}
	nrts := &fakeBatchNRTs{tutors: []models.NonResidentTutor{
		{ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	mail := &fakeMailer{errFor: map[string]error{}}
	svc := NewEmailService(templates, logs, students, rts, nrts, mail, nil, nil)
	return &emailFixture{templates: templates, logs: logs, students: students, mail: mail, svc: svc}
}

func TestSendAssignmentEmailDefaultTemplate(t *testing.T) {
	fx := newEmailFixture()

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "")
	require.NoError(t, err)

	require.Len(t, fx.mail.sent, 1)
	msg := fx.mail.sent[0]
	assert.Equal(t, "ana@college.edu", msg.To)
	assert.Equal(t, "Ana Silva", msg.ToName)
	assert.Equal(t, assignmentSubject, msg.Subject)
	assert.Contains(t, msg.Body, "Dear Ana,")
	assert.Contains(t, msg.Body, "Dr. Lee")
	assert.Contains(t, msg.Body, "Sam Porter")
	assert.NotContains(t, msg.Body, "{nrt_name}", "all placeholders must be substituted")
	assert.ElementsMatch(t, []string{"sam@winthrop.edu", "lee@hospital.org"}, msg.CC)
}

func TestSendAssignmentEmailUnassignedTutorsRenderTBD(t *testing.T) {
	fx := newEmailFixture()
	fx.students.byID["s1"] = models.Student{
		ID: "s1", FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu",
	}

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "")
	require.NoError(t, err)

	require.Len(t, fx.mail.sent, 1)
	msg := fx.mail.sent[0]
	assert.Contains(t, msg.Body, "tutor this year is TBD")
	assert.Empty(t, msg.CC, "no tutors means nobody to cc")
}

func TestSendAssignmentEmailStoredTemplate(t *testing.T) {
	fx := newEmailFixture()
	fx.templates.byID["tpl1"] = models.EmailTemplate{
		ID: "tpl1", Name: "reminder", Subject: "Check in", Body: "Hi {first_name}, meet {nrt_name}.",
	}

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "tpl1")
	require.NoError(t, err)

	require.Len(t, fx.mail.sent, 1)
	assert.Equal(t, "Check in", fx.mail.sent[0].Subject)
	assert.Equal(t, "Hi Ana, meet Dr. Lee.", fx.mail.sent[0].Body)
}

func TestSendAssignmentEmailUnknownTemplate(t *testing.T) {
	fx := newEmailFixture()

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, fx.mail.sent)
}

func TestSendAssignmentEmailNoAddress(t *testing.T) {
	fx := newEmailFixture()
	fx.students.byID["s1"] = models.Student{ID: "s1", FirstName: "Ana", LastName: "Silva"}

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSendAssignmentEmailRecordsAttempts(t *testing.T) {
	fx := newEmailFixture()
	fx.mail.errFor["ana@college.edu"] = fmt.Errorf("smtp refused")

	err := fx.svc.SendAssignmentEmail(context.Background(), "s1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnavailable))

	// The failed attempt still lands in the log.
	require.Len(t, fx.logs.logs, 1)
	assert.False(t, fx.logs.logs[0].Success)
	assert.Contains(t, fx.logs.logs[0].Error, "smtp refused")

	delete(fx.mail.errFor, "ana@college.edu")
	require.NoError(t, fx.svc.SendAssignmentEmail(context.Background(), "s1", ""))
	require.Len(t, fx.logs.logs, 2)
	assert.True(t, fx.logs.logs[1].Success)
	assert.Empty(t, fx.logs.logs[1].Error)
}

func TestSendBulkAssignmentEmailsCollectsFailures(t *testing.T) {
	fx := newEmailFixture()
	fx.students.byID["s2"] = models.Student{ID: "s2", FirstName: "Ben", LastName: "Okoye", PrimaryEmail: "ben@college.edu"}
	fx.mail.errFor["ben@college.edu"] = fmt.Errorf("smtp refused")

	result, err := fx.svc.SendBulkAssignmentEmails(context.Background(), []string{"s1", "s2", "ghost"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, result.Success)
	assert.ElementsMatch(t, []string{"s2", "ghost"}, result.Failed)
}

func TestQueueAssignmentEmailsRequiresQueue(t *testing.T) {
	fx := newEmailFixture()

	_, err := fx.svc.QueueAssignmentEmails([]string{"s1"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestEmailHistoryFiltersByStudent(t *testing.T) {
	fx := newEmailFixture()
	fx.logs.logs = []models.EmailLog{
		{ID: "l1", StudentID: "s1"},
		{ID: "l2", StudentID: "s2"},
		{ID: "l3", StudentID: "s1"},
	}

	history, err := fx.svc.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTemplateCRUD(t *testing.T) {
	fx := newEmailFixture()

	_, err := fx.svc.CreateTemplate(context.Background(), TemplateRequest{Name: "x"})
	require.Error(t, err, "subject and body are required")

	tpl, err := fx.svc.CreateTemplate(context.Background(), TemplateRequest{
		Name: "reminder", Subject: "Check in", Body: "Hi {first_name}",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tpl.ID)
	require.Len(t, fx.templates.created, 1)

	fx.templates.byID[tpl.ID] = *tpl
	updated, err := fx.svc.UpdateTemplate(context.Background(), tpl.ID, TemplateRequest{
		Name: "reminder", Subject: "Check in again", Body: "Hi {first_name}",
	})
	require.NoError(t, err)
	assert.Equal(t, "Check in again", updated.Subject)

	require.NoError(t, fx.svc.DeleteTemplate(context.Background(), tpl.ID))
	err = fx.svc.DeleteTemplate(context.Background(), tpl.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSendLoginCodeBody(t *testing.T) {
	fx := newEmailFixture()

	require.NoError(t, fx.svc.SendLoginCode(context.Background(), "admin@winthrop.edu", "123456"))
	require.Len(t, fx.mail.sent, 1)
	assert.Equal(t, "admin@winthrop.edu", fx.mail.sent[0].To)
	assert.Contains(t, fx.mail.sent[0].Body, "123456")
}

func TestRenderBodySubstitutions(t *testing.T) {
	body := renderBody("{first_name}/{rt_name}/{rt_email}/{nrt_name}/{nrt_email}", "Ana", "Sam Porter", "", " Dr. Lee ", "lee@hospital.org")
	assert.Equal(t, "Ana/Sam Porter/TBD/Dr. Lee/lee@hospital.org", body)
}
