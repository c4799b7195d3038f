package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type fakeAssignmentStudents struct {
	byID    map[string]models.Student
	roster  []models.Student
	updated []models.Student
}

func (f *fakeAssignmentStudents) All(ctx context.Context) ([]models.Student, error) {
	return f.roster, nil
}

func (f *fakeAssignmentStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (f *fakeAssignmentStudents) Update(ctx context.Context, student *models.Student) error {
	f.updated = append(f.updated, *student)
	return nil
}

type fakeRTReader struct {
	byEmail map[string]models.ResidentTutor
}

func (f *fakeRTReader) FindByEmail(ctx context.Context, email string) (*models.ResidentTutor, error) {
	tutor, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tutor, nil
}

type fakeNRTReader struct {
	byEmail map[string]models.NonResidentTutor
}

func (f *fakeNRTReader) FindByEmail(ctx context.Context, email string) (*models.NonResidentTutor, error) {
	tutor, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tutor, nil
}

func assignmentFixture() (*fakeAssignmentStudents, *fakeRTReader, *fakeNRTReader) {
	students := &fakeAssignmentStudents{
		byID: map[string]models.Student{
			"s1": {ID: "s1", FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"},
		},
	}
	rts := &fakeRTReader{byEmail: map[string]models.ResidentTutor{
		"sam@winthrop.edu": {ID: "rt1", Name: "Sam Porter", Email: "sam@winthrop.edu"},
	}}
	nrts := &fakeNRTReader{byEmail: map[string]models.NonResidentTutor{
		"lee@hospital.org": {ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	return students, rts, nrts
}

func TestAssignRTWritesTutorName(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignRT(context.Background(), "s1", "sam@winthrop.edu")
	require.NoError(t, err)

	require.Len(t, students.updated, 1)
	assert.Equal(t, "Sam Porter", students.updated[0].RTAssignment)
}

func TestAssignRTUnknownStudent(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignRT(context.Background(), "ghost", "sam@winthrop.edu")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEntityNotFound))
}

func TestAssignRTUnknownTutor(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignRT(context.Background(), "s1", "nobody@winthrop.edu")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAssignNRTWritesTutorName(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignNRT(context.Background(), "s1", "lee@hospital.org")
	require.NoError(t, err)

	require.Len(t, students.updated, 1)
	assert.Equal(t, "Dr. Lee", students.updated[0].NRTAssignment)
}

func TestAssignNRTPendingApprovalRejected(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	nrts.byEmail["lee@hospital.org"] = models.NonResidentTutor{
		ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusPendingApproval,
	}
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignNRT(context.Background(), "s1", "lee@hospital.org")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIneligibleTutor))
	assert.Contains(t, err.Error(), "pending approval")
	assert.Empty(t, students.updated)
}

func TestAssignNRTInactiveRejected(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	nrts.byEmail["lee@hospital.org"] = models.NonResidentTutor{
		ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusNoNewStudents,
	}
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignNRT(context.Background(), "s1", "lee@hospital.org")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIneligibleTutor))
}

func TestAssignNRTCapacityCountedByName(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	// Name matching is case and whitespace insensitive.
	students.roster = []models.Student{
		{ID: "a", NRTAssignment: "Dr. Lee"},
		{ID: "b", NRTAssignment: "dr. lee"},
		{ID: "c", NRTAssignment: " Dr. Lee "},
	}
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignNRT(context.Background(), "s1", "lee@hospital.org")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
}

func TestAssignNRTReassignSameTutorSkipsCapacityCheck(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	students.byID["s1"] = models.Student{ID: "s1", FirstName: "Ana", LastName: "Silva", NRTAssignment: "dr. lee"}
	students.roster = []models.Student{
		{ID: "s1", NRTAssignment: "dr. lee"},
		{ID: "b", NRTAssignment: "Dr. Lee"},
		{ID: "c", NRTAssignment: "Dr. Lee"},
	}
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.AssignNRT(context.Background(), "s1", "lee@hospital.org")
	require.NoError(t, err, "re-asserting the same assignment must not trip the cap")
}

func TestAssignTutorDispatchesByKind(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	require.NoError(t, svc.AssignTutor(context.Background(), "s1", "sam@winthrop.edu", models.TutorKindRT))
	require.NoError(t, svc.AssignTutor(context.Background(), "s1", "lee@hospital.org", models.TutorKindNRT))

	err := svc.AssignTutor(context.Background(), "s1", "sam@winthrop.edu", "MENTOR")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRemoveTutorClearsAssignment(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	students.byID["s1"] = models.Student{ID: "s1", RTAssignment: "Sam Porter", NRTAssignment: "Dr. Lee"}
	svc := NewAssignmentService(students, rts, nrts, nil)

	require.NoError(t, svc.RemoveTutor(context.Background(), "s1", models.TutorKindRT))
	require.Len(t, students.updated, 1)
	assert.Empty(t, students.updated[0].RTAssignment)
	assert.Equal(t, "Dr. Lee", students.updated[0].NRTAssignment)
}

func TestRemoveTutorWithoutAssignment(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	svc := NewAssignmentService(students, rts, nrts, nil)

	err := svc.RemoveTutor(context.Background(), "s1", models.TutorKindNRT)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCountByTutorName(t *testing.T) {
	students, rts, nrts := assignmentFixture()
	students.roster = []models.Student{
		{ID: "a", NRTAssignment: "Dr. Lee"},
		{ID: "b", NRTAssignment: "Dr. Park"},
		{ID: "c", NRTAssignment: "dr. lee "},
		{ID: "d"},
	}
	svc := NewAssignmentService(students, rts, nrts, nil)

	count, err := svc.CountByTutorName(context.Background(), "Dr. Lee")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
