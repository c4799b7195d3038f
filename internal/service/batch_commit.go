package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

// Commit applies every staged change in the fixed step order. The sequence is
// deliberately non-transactional: per-item failures are isolated where the
// spreadsheet-backed store allows it, and a fatal failure stops processing
// with everything already applied left in place. There is no rollback and no
// cancellation once the sequence has started.
func (s *BatchWorkflowService) Commit(ctx context.Context, id string) (*models.CommitResult, error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if err := ensureLive(session); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if session.Stage != models.StageCommit {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has not reached the commit stage")
	}
	batch := session.Batch
	s.mu.Unlock()

	result := s.applyBatch(ctx, batch)
	s.metrics.RecordBatchCommit(string(result.Outcome))

	s.mu.Lock()
	if result.Outcome != models.CommitAborted {
		session.Committed = true
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	return result, nil
}

func (s *BatchWorkflowService) applyBatch(ctx context.Context, batch models.WorkflowBatch) *models.CommitResult {
	result := &models.CommitResult{Outcome: models.CommitSucceeded}

	// Step 1: student deletions, each independent of the others.
	deleted := make(map[string]struct{}, len(batch.StudentDeletions))
	for _, studentID := range batch.StudentDeletions {
		deleted[studentID] = struct{}{}
		if _, err := s.students.Delete(ctx, studentID); err != nil {
			if isNotFound(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("student %s was already gone", studentID))
				continue
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to delete student %s: %v", studentID, err))
			continue
		}
		result.StudentsDeleted++
	}

	// Step 2: bulk student insert, atomic at the store boundary.
	if len(batch.StudentAdditions) > 0 {
		if err := s.students.BulkCreate(ctx, batch.StudentAdditions); err != nil {
			return s.abort(result, models.StepInsertStudents, err)
		}
		result.StudentsAdded = len(batch.StudentAdditions)
	}

	// Step 3: tutor deletions, each independent.
	for _, tutorID := range batch.NRTDeletions {
		if _, err := s.nrts.Delete(ctx, tutorID); err != nil {
			if isNotFound(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("tutor %s was already gone", tutorID))
				continue
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to delete tutor %s: %v", tutorID, err))
			continue
		}
		result.NRTsDeleted++
	}

	// Step 4: status changes. The DELETE sentinel deletes instead of
	// updating; every change re-fetches so other fields are preserved.
	for _, change := range batch.NRTStatusChanges {
		tutor, err := s.nrts.FindByID(ctx, change.TutorID)
		if err != nil {
			if isNotFound(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("tutor %s vanished before its status change", change.TutorID))
				continue
			}
			return s.abort(result, models.StepUpdateNRTStatuses, err)
		}
		if change.Status == models.NRTStatusDelete {
			if _, err := s.nrts.Delete(ctx, change.TutorID); err != nil && !isNotFound(err) {
				return s.abort(result, models.StepUpdateNRTStatuses, err)
			}
			result.NRTsDeleted++
			continue
		}
		tutor.Status = change.Status
		if err := s.nrts.Update(ctx, tutor); err != nil {
			if isNotFound(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("tutor %s vanished before its status change", change.TutorID))
				continue
			}
			return s.abort(result, models.StepUpdateNRTStatuses, err)
		}
		result.NRTStatusUpdates++
	}

	// Step 5: bulk tutor insert, atomic at the store boundary.
	if len(batch.NRTAdditions) > 0 {
		if err := s.nrts.BulkCreate(ctx, batch.NRTAdditions); err != nil {
			return s.abort(result, models.StepInsertNRTs, err)
		}
		result.NRTsAdded = len(batch.NRTAdditions)
	}

	// Steps 6 and 7: assignments. Deleted students never receive assignment
	// calls; a vanished entity is a skip, anything else is fatal.
	applied, aborted := s.applyAssignments(ctx, batch.RTAssignments, models.TutorKindRT, deleted, result)
	result.RTAssigned = applied
	if aborted {
		return result
	}
	applied, aborted = s.applyAssignments(ctx, batch.NRTAssignments, models.TutorKindNRT, deleted, result)
	result.NRTAssigned = applied
	if aborted {
		return result
	}

	// Step 8: best-effort spreadsheet export. The local store is already
	// correct, so a failure here only warns.
	if !batch.Empty() {
		if s.exporter == nil {
			s.logger.Debug("spreadsheet export skipped, sync not configured")
		} else if _, err := s.exporter.Export(ctx, false); err != nil {
			s.logger.Warn("spreadsheet export failed after commit", zap.Error(err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("spreadsheet export failed: %v", err))
		}
	}

	if len(result.Warnings) > 0 {
		result.Outcome = models.CommitWithWarnings
	}
	return result
}

func (s *BatchWorkflowService) applyAssignments(ctx context.Context, assignments map[string]string, kind models.TutorKind, deleted map[string]struct{}, result *models.CommitResult) (int, bool) {
	step := models.StepAssignRTs
	if kind == models.TutorKindNRT {
		step = models.StepAssignNRTs
	}

	applied := 0
	for _, studentID := range sortedKeys(assignments) {
		if _, gone := deleted[studentID]; gone {
			s.logger.Info("skipping assignment for deleted student",
				zap.String("student_id", studentID),
				zap.String("kind", string(kind)),
			)
			continue
		}
		if err := s.assigner.AssignTutor(ctx, studentID, assignments[studentID], kind); err != nil {
			if isNotFound(err) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s assignment skipped, student %s no longer exists", kind, studentID))
				continue
			}
			s.abort(result, step, err)
			return applied, true
		}
		applied++
	}
	return applied, false
}

func (s *BatchWorkflowService) abort(result *models.CommitResult, step models.CommitStep, err error) *models.CommitResult {
	s.logger.Error("batch commit aborted",
		zap.Int("step", int(step)),
		zap.Error(err),
	)
	result.Outcome = models.CommitAborted
	result.FatalStep = step
	result.FatalErr = err.Error()
	return result
}

func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return appErrors.Is(err, appErrors.ErrNotFound) || appErrors.Is(err, appErrors.ErrEntityNotFound)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
