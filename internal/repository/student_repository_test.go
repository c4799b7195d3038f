package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

var studentCols = []string{
	"id", "first_name", "last_name", "primary_email", "secondary_email", "class_year", "status",
	"rt_assignment", "nrt_assignment", "phone_number", "hometown", "concentration", "secondary_field",
	"extracurriculars", "clinical_shadowing", "research_activity", "medical_interests", "program_interests",
	"created_at", "updated_at",
}

func studentRow(id, first, last string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(studentCols).
		AddRow(id, first, last, first+"@college.edu", "", "2027", "NOT_APPLYING",
			"", "", "", "", "", "", "", "", "", "", "", now, now)
}

func TestStudentRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE 1=1 ORDER BY last_name ASC LIMIT 50 OFFSET 0`).
		WillReturnRows(studentRow("s1", "Ana", "Silva"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE 1=1 AND class_year = \$1 AND status = \$2 AND \(LOWER\(first_name\) LIKE \$3.+ ORDER BY class_year DESC LIMIT 10 OFFSET 10`).
		WithArgs("2027", string(models.StatusCurrentlyApplying), "%ana%").
		WillReturnRows(studentRow("s1", "Ana", "Silva"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students`).
		WithArgs("2027", string(models.StatusCurrentlyApplying), "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		ClassYear: "2027",
		Status:    models.StatusCurrentlyApplying,
		Search:    "Ana",
		SortBy:    "class_year",
		SortOrder: "desc",
		Page:      2,
		PageSize:  10,
	})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(studentRow("s1", "Ana", "Silva"))

	student, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", student.FirstName)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(anyArgs(20)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID, "a missing id is generated")
	assert.Equal(t, models.StatusNotApplying, student.Status)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET").
		WithArgs(anyArgs(19)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Student{ID: "s1", FirstName: "Ana", LastName: "Silva"})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE students SET").
		WithArgs(anyArgs(19)...).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), &models.Student{ID: "ghost"})
	assert.ErrorIs(t, err, sql.ErrNoRows, "zero rows affected reports not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteReturnsRecord(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)DELETE FROM students WHERE id = \$1 RETURNING`).
		WithArgs("s1").
		WillReturnRows(studentRow("s1", "Ana", "Silva"))

	student, err := repo.Delete(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Silva", student.LastName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryBulkCreateTransaction(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs(anyArgs(20)...).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WithArgs(anyArgs(20)...).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.BulkCreate(context.Background(), []models.Student{
		{FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"},
		{FirstName: "Ben", LastName: "Okoye", PrimaryEmail: "ben@college.edu"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryBulkCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs(anyArgs(20)...).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.BulkCreate(context.Background(), []models.Student{
		{FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordedQuery struct {
	label    string
	duration time.Duration
}

type fakeQueryObserver struct {
	observed []recordedQuery
}

func (f *fakeQueryObserver) ObserveDBQuery(label string, duration time.Duration) {
	f.observed = append(f.observed, recordedQuery{label: label, duration: duration})
}

func TestStudentRepositoryObservesQueryTiming(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)
	observer := &fakeQueryObserver{}
	repo.SetMetrics(observer)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(studentRow("s1", "Ana", "Silva"))
	mock.ExpectQuery(`(?s)SELECT .+ FROM students ORDER BY last_name, first_name`).
		WillReturnRows(studentRow("s1", "Ana", "Silva"))

	_, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	_, err = repo.All(context.Background())
	require.NoError(t, err)

	require.Len(t, observer.observed, 2)
	assert.Equal(t, "students.find_by_id", observer.observed[0].label)
	assert.Equal(t, "students.all", observer.observed[1].label)
	assert.NoError(t, mock.ExpectationsWereMet())
}
