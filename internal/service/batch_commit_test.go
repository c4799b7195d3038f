package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

// sessionAtCommit walks a fresh session to the commit stage and swaps in the
// staged batch under test.
func sessionAtCommit(t *testing.T, svc *BatchWorkflowService, batch models.WorkflowBatch) string {
	t.Helper()
	session := svc.StartSession()
	advanceTo(t, svc, session.ID, models.StageCommit)
	session.Batch = batch
	return session.ID
}

func TestCommitRequiresCommitStage(t *testing.T) {
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, &fakeAssigner{}, nil)
	session := svc.StartSession()

	_, err := svc.Commit(context.Background(), session.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCommitUnknownSession(t *testing.T) {
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, &fakeAssigner{}, nil)

	_, err := svc.Commit(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCommitAppliesFullBatch(t *testing.T) {
	students := &fakeBatchStudents{}
	nrts := &fakeBatchNRTs{tutors: []models.NonResidentTutor{
		{ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	assigner := &fakeAssigner{}
	exporter := &fakeExporter{}
	svc := newWorkflow(students, &fakeBatchRTs{}, nrts, assigner, exporter)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		StudentDeletions: []string{"old1"},
		StudentAdditions: []models.Student{
			{FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"},
		},
		NRTDeletions: []string{"t9"},
		NRTStatusChanges: []models.NRTStatusChange{
			{TutorID: "t1", Status: models.NRTStatusNoNewStudents},
		},
		NRTAdditions: []models.NonResidentTutor{
			{Name: "Dr. Park", Email: "park@hospital.org", Status: models.NRTStatusActive},
		},
		RTAssignments:  map[string]string{"s1": "sam@winthrop.edu"},
		NRTAssignments: map[string]string{"s1": "lee@hospital.org"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitSucceeded, result.Outcome)
	assert.Equal(t, 1, result.StudentsDeleted)
	assert.Equal(t, 1, result.StudentsAdded)
	assert.Equal(t, 1, result.NRTsDeleted)
	assert.Equal(t, 1, result.NRTStatusUpdates)
	assert.Equal(t, 1, result.NRTsAdded)
	assert.Equal(t, 1, result.RTAssigned)
	assert.Equal(t, 1, result.NRTAssigned)
	assert.Empty(t, result.Warnings)

	require.Len(t, nrts.updated, 1)
	assert.Equal(t, models.NRTStatusNoNewStudents, nrts.updated[0].Status)
	require.Len(t, assigner.calls, 2)
	assert.Equal(t, 1, exporter.calls)

	// A committed session is gone.
	_, err = svc.Session(id)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCommitSkipsAssignmentsForDeletedStudents(t *testing.T) {
	assigner := &fakeAssigner{}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, assigner, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		StudentDeletions: []string{"s1"},
		RTAssignments:    map[string]string{"s1": "sam@winthrop.edu", "s2": "sam@winthrop.edu"},
		NRTAssignments:   map[string]string{"s1": "lee@hospital.org"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitSucceeded, result.Outcome)
	assert.Equal(t, 1, result.RTAssigned)
	assert.Equal(t, 0, result.NRTAssigned)
	require.Len(t, assigner.calls, 1)
	assert.Equal(t, "s2", assigner.calls[0].studentID)
}

func TestCommitBulkStudentInsertFailureAborts(t *testing.T) {
	students := &fakeBatchStudents{bulkErr: fmt.Errorf("unique constraint violation")}
	assigner := &fakeAssigner{}
	svc := newWorkflow(students, &fakeBatchRTs{}, &fakeBatchNRTs{}, assigner, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		StudentDeletions: []string{"old1"},
		StudentAdditions: []models.Student{
			{FirstName: "Ana", LastName: "Silva", PrimaryEmail: "ana@college.edu"},
		},
		RTAssignments: map[string]string{"s1": "sam@winthrop.edu"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitAborted, result.Outcome)
	assert.Equal(t, models.StepInsertStudents, result.FatalStep)
	assert.NotEmpty(t, result.FatalErr)
	assert.Equal(t, 1, result.StudentsDeleted, "work before the fatal step stays applied")
	assert.Empty(t, assigner.calls, "processing stops at the fatal step")

	// An aborted session survives for a retry.
	session, err := svc.Session(id)
	require.NoError(t, err)
	assert.Equal(t, models.StageCommit, session.Stage)

	students.bulkErr = nil
	result, err = svc.Commit(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.CommitSucceeded, result.Outcome)
}

func TestCommitPerItemDeleteFailuresWarn(t *testing.T) {
	students := &fakeBatchStudents{deleteErr: map[string]error{
		"s2": fmt.Errorf("deadlock detected"),
		"s3": appErrors.Clone(appErrors.ErrNotFound, "student not found"),
	}}
	svc := newWorkflow(students, &fakeBatchRTs{}, &fakeBatchNRTs{}, &fakeAssigner{}, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		StudentDeletions: []string{"s1", "s2", "s3"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitWithWarnings, result.Outcome)
	assert.Equal(t, 1, result.StudentsDeleted)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "failed to delete student s2")
	assert.Contains(t, result.Warnings[1], "already gone")
}

func TestCommitStatusChangeDeleteSentinel(t *testing.T) {
	nrts := &fakeBatchNRTs{tutors: []models.NonResidentTutor{
		{ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive},
	}}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, nrts, &fakeAssigner{}, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		NRTStatusChanges: []models.NRTStatusChange{
			{TutorID: "t1", Status: models.NRTStatusDelete},
		},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitSucceeded, result.Outcome)
	assert.Equal(t, 1, result.NRTsDeleted)
	assert.Equal(t, 0, result.NRTStatusUpdates)
	assert.Equal(t, []string{"t1"}, nrts.deleted)
	assert.Empty(t, nrts.updated)
}

func TestCommitStatusChangeVanishedTutorWarns(t *testing.T) {
	nrts := &fakeBatchNRTs{}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, nrts, &fakeAssigner{}, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		NRTStatusChanges: []models.NRTStatusChange{
			{TutorID: "ghost", Status: models.NRTStatusActive},
		},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitWithWarnings, result.Outcome)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "vanished")
}

func TestCommitStatusChangeUpdateFailureAborts(t *testing.T) {
	nrts := &fakeBatchNRTs{
		tutors:    []models.NonResidentTutor{{ID: "t1", Name: "Dr. Lee", Email: "lee@hospital.org", Status: models.NRTStatusActive}},
		updateErr: map[string]error{"t1": fmt.Errorf("connection reset")},
	}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, nrts, &fakeAssigner{}, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		NRTStatusChanges: []models.NRTStatusChange{
			{TutorID: "t1", Status: models.NRTStatusNoNewStudents},
		},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitAborted, result.Outcome)
	assert.Equal(t, models.StepUpdateNRTStatuses, result.FatalStep)
}

func TestCommitAssignmentNotFoundSkips(t *testing.T) {
	assigner := &fakeAssigner{errFor: map[string]error{
		"s1": appErrors.Clone(appErrors.ErrEntityNotFound, "student not found"),
	}}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, assigner, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		RTAssignments: map[string]string{
			"s1": "sam@winthrop.edu",
			"s2": "sam@winthrop.edu",
		},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitWithWarnings, result.Outcome)
	assert.Equal(t, 1, result.RTAssigned)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no longer exists")
}

func TestCommitAssignmentFailureAborts(t *testing.T) {
	assigner := &fakeAssigner{errFor: map[string]error{
		"s1": fmt.Errorf("connection reset"),
	}}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, assigner, nil)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		NRTAssignments: map[string]string{"s1": "lee@hospital.org"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitAborted, result.Outcome)
	assert.Equal(t, models.StepAssignNRTs, result.FatalStep)
}

func TestCommitExportFailureOnlyWarns(t *testing.T) {
	exporter := &fakeExporter{err: fmt.Errorf("sheet is locked")}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, &fakeAssigner{}, exporter)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{
		StudentDeletions: []string{"s1"},
	})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitWithWarnings, result.Outcome)
	assert.Equal(t, 1, result.StudentsDeleted)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "spreadsheet export failed")
}

func TestCommitEmptyBatchSkipsExport(t *testing.T) {
	exporter := &fakeExporter{}
	svc := newWorkflow(&fakeBatchStudents{}, &fakeBatchRTs{}, &fakeBatchNRTs{}, &fakeAssigner{}, exporter)

	id := sessionAtCommit(t, svc, models.WorkflowBatch{})

	result, err := svc.Commit(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.CommitSucceeded, result.Outcome)
	assert.Equal(t, 0, exporter.calls)
}
