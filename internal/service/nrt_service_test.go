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

type fakeNRTRepo struct {
	byID map[string]models.NonResidentTutor

	created []models.NonResidentTutor
	updated []models.NonResidentTutor
	bulks   [][]models.NonResidentTutor

	listTotal int
}

func (f *fakeNRTRepo) List(ctx context.Context, filter models.TutorFilter) ([]models.NonResidentTutor, int, error) {
	out := make([]models.NonResidentTutor, 0, len(f.byID))
	for _, tutor := range f.byID {
		out = append(out, tutor)
	}
	total := f.listTotal
	if total == 0 {
		total = len(out)
	}
	return out, total, nil
}

func (f *fakeNRTRepo) All(ctx context.Context) ([]models.NonResidentTutor, error) {
	out := make([]models.NonResidentTutor, 0, len(f.byID))
	for _, tutor := range f.byID {
		out = append(out, tutor)
	}
	return out, nil
}

func (f *fakeNRTRepo) FindByID(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	tutor, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tutor, nil
}

func (f *fakeNRTRepo) FindByEmail(ctx context.Context, email string) (*models.NonResidentTutor, error) {
	for _, tutor := range f.byID {
		if tutor.Email == email {
			found := tutor
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeNRTRepo) Create(ctx context.Context, tutor *models.NonResidentTutor) error {
	f.created = append(f.created, *tutor)
	return nil
}

func (f *fakeNRTRepo) Update(ctx context.Context, tutor *models.NonResidentTutor) error {
	f.updated = append(f.updated, *tutor)
	f.byID[tutor.ID] = *tutor
	return nil
}

func (f *fakeNRTRepo) Delete(ctx context.Context, id string) (*models.NonResidentTutor, error) {
	tutor, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(f.byID, id)
	return &tutor, nil
}

func (f *fakeNRTRepo) BulkCreate(ctx context.Context, tutors []models.NonResidentTutor) error {
	f.bulks = append(f.bulks, tutors)
	return nil
}

func TestNRTListCountsStudentsByName(t *testing.T) {
	repo := &fakeNRTRepo{byID: map[string]models.NonResidentTutor{
		"t1": {ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	roster := &fakeRoster{students: []models.Student{
		{ID: "s1", NRTAssignment: "Dr. Lee"},
		{ID: "s2", NRTAssignment: "DR. LEE"},
		{ID: "s3", NRTAssignment: "Dr. Park"},
	}}
	svc := NewNRTService(repo, roster, nil, nil)

	tutors, pagination, err := svc.List(context.Background(), models.TutorFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, tutors, 1)
	assert.Equal(t, 2, tutors[0].StudentCount)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.TotalItems)
}

func TestNRTCreateDefaultsToActive(t *testing.T) {
	repo := &fakeNRTRepo{}
	svc := NewNRTService(repo, &fakeRoster{}, nil, nil)

	tutor, err := svc.Create(context.Background(), CreateNRTRequest{
		Name:  "Dr. Lee",
		Email: "lee@hospital.org",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NRTStatusActive, tutor.Status)
}

func TestNRTCreateRejectsUnknownStatus(t *testing.T) {
	svc := NewNRTService(&fakeNRTRepo{}, &fakeRoster{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateNRTRequest{
		Name:   "Dr. Lee",
		Email:  "lee@hospital.org",
		Status: "DELETE",
	})
	require.Error(t, err, "the staging sentinel is not a storable status")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestNRTUpdatePreservesIdentity(t *testing.T) {
	repo := &fakeNRTRepo{byID: map[string]models.NonResidentTutor{
		"t1": {ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	svc := NewNRTService(repo, &fakeRoster{}, nil, nil)

	updated, err := svc.Update(context.Background(), "t1", CreateNRTRequest{
		Name:        "Dr. Lee",
		Email:       "lee@hospital.org",
		Status:      string(models.NRTStatusNoNewStudents),
		Affiliation: "MGH",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", updated.ID)
	assert.Equal(t, models.NRTStatusNoNewStudents, updated.Status)
	assert.Equal(t, "MGH", updated.Affiliation)
}

func TestNRTUpdateStatusOnlyTouchesStatus(t *testing.T) {
	repo := &fakeNRTRepo{byID: map[string]models.NonResidentTutor{
		"t1": {ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive, Affiliation: "MGH"},
	}}
	svc := NewNRTService(repo, &fakeRoster{}, nil, nil)

	updated, err := svc.UpdateStatus(context.Background(), "t1", models.NRTStatusLeavingKeeps)
	require.NoError(t, err)
	assert.Equal(t, models.NRTStatusLeavingKeeps, updated.Status)
	assert.Equal(t, "MGH", updated.Affiliation)

	_, err = svc.UpdateStatus(context.Background(), "t1", "RETIRED")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateStatus(context.Background(), "t1", models.NRTStatusDelete)
	require.Error(t, err, "the DELETE sentinel is rejected outside batch staging")
}

func TestNRTBulkAddSkipsBadRowsAndForcesActive(t *testing.T) {
	repo := &fakeNRTRepo{}
	svc := NewNRTService(repo, &fakeRoster{}, nil, nil)

	result, err := svc.BulkAdd(context.Background(), []CreateNRTRequest{
		{Name: "Dr. Lee", Email: "lee@hospital.org", Status: string(models.NRTStatusNoNewStudents)},
		{Name: "", Email: "park@hospital.org"},
		{Name: "Dr. Park", Email: ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, repo.bulks, 1)
	require.Len(t, repo.bulks[0], 1)
	assert.Equal(t, models.NRTStatusActive, repo.bulks[0][0].Status, "imports always start active")
}

func TestNRTDeleteKeepsStudentAssignments(t *testing.T) {
	repo := &fakeNRTRepo{byID: map[string]models.NonResidentTutor{
		"t1": {ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	roster := &fakeRoster{students: []models.Student{
		{ID: "s1", NRTAssignment: "Dr. Lee"},
	}}
	svc := NewNRTService(repo, roster, nil, nil)

	deleted, err := svc.Delete(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Lee", deleted.Name)
	// The student still carries the stale name string.
	assert.Equal(t, "Dr. Lee", roster.students[0].NRTAssignment)
}
