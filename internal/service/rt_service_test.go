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

type fakeRoster struct {
	students []models.Student
}

func (f *fakeRoster) All(ctx context.Context) ([]models.Student, error) {
	return f.students, nil
}

type fakeRTRepo struct {
	byID map[string]models.ResidentTutor

	created []models.ResidentTutor
	updated []models.ResidentTutor
}

func (f *fakeRTRepo) All(ctx context.Context) ([]models.ResidentTutor, error) {
	out := make([]models.ResidentTutor, 0, len(f.byID))
	for _, tutor := range f.byID {
		out = append(out, tutor)
	}
	return out, nil
}

func (f *fakeRTRepo) FindByID(ctx context.Context, id string) (*models.ResidentTutor, error) {
	tutor, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tutor, nil
}

func (f *fakeRTRepo) FindByEmail(ctx context.Context, email string) (*models.ResidentTutor, error) {
	for _, tutor := range f.byID {
		if tutor.Email == email {
			found := tutor
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRTRepo) Create(ctx context.Context, tutor *models.ResidentTutor) error {
	f.created = append(f.created, *tutor)
	return nil
}

func (f *fakeRTRepo) Update(ctx context.Context, tutor *models.ResidentTutor) error {
	f.updated = append(f.updated, *tutor)
	return nil
}

func (f *fakeRTRepo) Delete(ctx context.Context, id string) (*models.ResidentTutor, error) {
	tutor, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(f.byID, id)
	return &tutor, nil
}

func (f *fakeRTRepo) BulkCreate(ctx context.Context, tutors []models.ResidentTutor) error {
	f.created = append(f.created, tutors...)
	return nil
}

func TestRTListCountsStudentsByName(t *testing.T) {
	repo := &fakeRTRepo{byID: map[string]models.ResidentTutor{
		"rt1": {ID: "rt1", Name: "Sam Porter", Email: "sam@winthrop.edu"},
	}}
	roster := &fakeRoster{students: []models.Student{
		{ID: "s1", RTAssignment: "Sam Porter"},
		{ID: "s2", RTAssignment: "sam porter "},
		{ID: "s3", RTAssignment: "Someone Else"},
		{ID: "s4"},
	}}
	svc := NewRTService(repo, roster, nil, nil)

	tutors, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tutors, 1)
	assert.Equal(t, 2, tutors[0].StudentCount)
}

func TestRTCreateValidates(t *testing.T) {
	repo := &fakeRTRepo{}
	svc := NewRTService(repo, &fakeRoster{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateRTRequest{Name: "Sam Porter"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	tutor, err := svc.Create(context.Background(), CreateRTRequest{Name: " Sam Porter ", Email: "sam@winthrop.edu"})
	require.NoError(t, err)
	assert.Equal(t, "Sam Porter", tutor.Name)
	require.Len(t, repo.created, 1)
}

func TestRTUpdate(t *testing.T) {
	repo := &fakeRTRepo{byID: map[string]models.ResidentTutor{
		"rt1": {ID: "rt1", Name: "Sam Porter", Email: "sam@winthrop.edu"},
	}}
	svc := NewRTService(repo, &fakeRoster{}, nil, nil)

	tutor, err := svc.Update(context.Background(), "rt1", CreateRTRequest{Name: "Samantha Porter", Email: "sam@winthrop.edu"})
	require.NoError(t, err)
	assert.Equal(t, "Samantha Porter", tutor.Name)
	assert.Equal(t, "rt1", tutor.ID)

	_, err = svc.Update(context.Background(), "ghost", CreateRTRequest{Name: "X", Email: "x@winthrop.edu"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRTDeleteReturnsRecord(t *testing.T) {
	repo := &fakeRTRepo{byID: map[string]models.ResidentTutor{
		"rt1": {ID: "rt1", Name: "Sam Porter", Email: "sam@winthrop.edu"},
	}}
	svc := NewRTService(repo, &fakeRoster{}, nil, nil)

	deleted, err := svc.Delete(context.Background(), "rt1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Porter", deleted.Name)

	_, err = svc.Delete(context.Background(), "rt1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
