package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type batchStudentStore interface {
	All(ctx context.Context) ([]models.Student, error)
	Delete(ctx context.Context, id string) (*models.Student, error)
	BulkCreate(ctx context.Context, students []models.Student) error
}

type batchNRTStore interface {
	All(ctx context.Context) ([]models.NonResidentTutor, error)
	FindByID(ctx context.Context, id string) (*models.NonResidentTutor, error)
	Update(ctx context.Context, tutor *models.NonResidentTutor) error
	Delete(ctx context.Context, id string) (*models.NonResidentTutor, error)
	BulkCreate(ctx context.Context, tutors []models.NonResidentTutor) error
}

type batchRTStore interface {
	All(ctx context.Context) ([]models.ResidentTutor, error)
}

type tutorAssigner interface {
	AssignTutor(ctx context.Context, studentID, tutorEmail string, kind models.TutorKind) error
}

type sheetExporter interface {
	Export(ctx context.Context, force bool) (*models.SyncResult, error)
}

// StageInput carries the contribution of the stage being confirmed. Only the
// fields relevant to the current stage are read; an empty contribution is
// valid for every stage.
type StageInput struct {
	StudentDeletions []string                  `json:"student_deletions,omitempty"`
	StudentAdditions []models.Student          `json:"student_additions,omitempty"`
	NRTDeletions     []string                  `json:"nrt_deletions,omitempty"`
	NRTStatusChanges []models.NRTStatusChange  `json:"nrt_status_changes,omitempty"`
	NRTAdditions     []models.NonResidentTutor `json:"nrt_additions,omitempty"`
	RTAssignments    map[string]string         `json:"rt_assignments,omitempty"`
	NRTAssignments   map[string]string         `json:"nrt_assignments,omitempty"`
}

// BatchSession is one in-flight guided workflow. Staged data lives only in
// memory until Commit; abandoning the session discards everything.
type BatchSession struct {
	ID        string               `json:"id"`
	Stage     models.BatchStage    `json:"stage"`
	Batch     models.WorkflowBatch `json:"batch"`
	Committed bool                 `json:"committed"`
	Abandoned bool                 `json:"abandoned"`
	CreatedAt time.Time            `json:"created_at"`

	stageIdx    int
	board       *AssignmentState
	suggestions []models.SuggestedPair
}

// BatchWorkflowService orchestrates guided batch-update sessions: staging
// through the fixed stage order, assignment boards for the two assign stages,
// and the final non-transactional commit.
type BatchWorkflowService struct {
	students batchStudentStore
	rts      batchRTStore
	nrts     batchNRTStore
	assigner tutorAssigner
	exporter sheetExporter
	matcher  *MatchService
	metrics  *MetricsService
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*BatchSession
}

// NewBatchWorkflowService wires the orchestrator to its collaborators.
func NewBatchWorkflowService(
	students batchStudentStore,
	rts batchRTStore,
	nrts batchNRTStore,
	assigner tutorAssigner,
	exporter sheetExporter,
	matcher *MatchService,
	logger *zap.Logger,
) *BatchWorkflowService {
	if matcher == nil {
		matcher = NewMatchService(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchWorkflowService{
		students: students,
		rts:      rts,
		nrts:     nrts,
		assigner: assigner,
		exporter: exporter,
		matcher:  matcher,
		logger:   logger,
		sessions: make(map[string]*BatchSession),
	}
}

// SetMetrics attaches commit instrumentation.
func (s *BatchWorkflowService) SetMetrics(m *MetricsService) { s.metrics = m }

// StartSession opens a new workflow at the first stage.
func (s *BatchWorkflowService) StartSession() *BatchSession {
	session := &BatchSession{
		ID:        uuid.NewString(),
		Stage:     models.BatchStageOrder[0],
		CreatedAt: time.Now().UTC(),
		Batch: models.WorkflowBatch{
			RTAssignments:  make(map[string]string),
			NRTAssignments: make(map[string]string),
		},
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Session returns the identified session.
func (s *BatchWorkflowService) Session(id string) (*BatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	return session, nil
}

// Confirm applies the stage input to the batch and advances one stage
// forward. The transition is rejected with a validation error when the input
// is malformed; an empty contribution always passes.
func (s *BatchWorkflowService) Confirm(ctx context.Context, id string, input StageInput) (*BatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if err := ensureLive(session); err != nil {
		return nil, err
	}

	switch session.Stage {
	case models.StageSelectDeletions:
		session.Batch.StudentDeletions = dedupe(input.StudentDeletions)
	case models.StageStageAdditions:
		for i, student := range input.StudentAdditions {
			if student.FirstName == "" || student.LastName == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("staged student %d is missing a name", i+1))
			}
			if student.PrimaryEmail == "" && student.SecondaryEmail == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("staged student %d needs at least one email", i+1))
			}
		}
		session.Batch.StudentAdditions = input.StudentAdditions
	case models.StageSelectTutorDeletions:
		session.Batch.NRTDeletions = dedupe(input.NRTDeletions)
	case models.StageTutorStatusChanges:
		for i, change := range input.NRTStatusChanges {
			if change.TutorID == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status change %d is missing a tutor id", i+1))
			}
			if change.Status != models.NRTStatusDelete && !models.ValidNRTStatus(change.Status) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status change %d has unknown status %q", i+1, change.Status))
			}
		}
		session.Batch.NRTStatusChanges = input.NRTStatusChanges
	case models.StageTutorAdditions:
		for i, tutor := range input.NRTAdditions {
			if tutor.Name == "" || tutor.Email == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("staged tutor %d needs a name and email", i+1))
			}
		}
		session.Batch.NRTAdditions = input.NRTAdditions
	case models.StageReviewSummary:
		// Confirmation only; the summary stage contributes no data.
	case models.StageAssignRT:
		if err := s.confirmAssignments(session, input.RTAssignments, models.TutorKindRT); err != nil {
			return nil, err
		}
	case models.StageAssignNRT:
		if err := s.confirmAssignments(session, input.NRTAssignments, models.TutorKindNRT); err != nil {
			return nil, err
		}
	case models.StageCommit:
		return nil, appErrors.Clone(appErrors.ErrValidation, "the commit stage is finished with commit, not confirm")
	}

	session.stageIdx++
	session.Stage = models.BatchStageOrder[session.stageIdx]
	session.board = nil
	session.suggestions = nil

	if session.Stage == models.StageAssignRT || session.Stage == models.StageAssignNRT {
		if err := s.openBoard(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Back returns the session to the immediately preceding stage.
func (s *BatchWorkflowService) Back(ctx context.Context, id string) (*BatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if err := ensureLive(session); err != nil {
		return nil, err
	}
	if session.stageIdx == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "already at the first stage")
	}

	session.stageIdx--
	session.Stage = models.BatchStageOrder[session.stageIdx]
	session.board = nil
	session.suggestions = nil

	if session.Stage == models.StageAssignRT || session.Stage == models.StageAssignNRT {
		if err := s.openBoard(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Abandon discards the session. No staged change has touched persistence, so
// there is nothing to clean up.
func (s *BatchWorkflowService) Abandon(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if session.Committed {
		return appErrors.Clone(appErrors.ErrConflict, "session already committed")
	}
	session.Abandoned = true
	delete(s.sessions, id)
	return nil
}

// Suggestions exposes the matcher proposals for the active NRT assign stage.
func (s *BatchWorkflowService) Suggestions(id string) ([]models.SuggestedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if session.Stage != models.StageAssignNRT {
		return nil, appErrors.Clone(appErrors.ErrValidation, "suggestions are only available while assigning non-resident tutors")
	}
	return session.suggestions, nil
}

// AcceptSuggestion moves the suggested student onto the tutor's board bucket
// and drops the suggestion from the list.
func (s *BatchWorkflowService) AcceptSuggestion(id, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, pair, err := s.findSuggestion(id, studentID)
	if err != nil {
		return err
	}
	if err := session.board.AcceptSuggestion(*pair); err != nil {
		return err
	}
	s.dropSuggestion(session, studentID)
	return nil
}

// RejectSuggestion removes the suggestion without touching the board.
func (s *BatchWorkflowService) RejectSuggestion(id, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, _, err := s.findSuggestion(id, studentID)
	if err != nil {
		return err
	}
	s.dropSuggestion(session, studentID)
	return nil
}

// MoveStudent relocates a student on the active assignment board. An empty
// tutor ID moves the student back to the unassigned pool.
func (s *BatchWorkflowService) MoveStudent(id, studentID, tutorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if session.board == nil {
		return appErrors.Clone(appErrors.ErrValidation, "no assignment board is active at this stage")
	}
	if tutorID == "" {
		session.board.MoveToUnassigned(studentID)
		return nil
	}
	return session.board.MoveToTutor(studentID, tutorID)
}

// Board returns a snapshot of the active assignment board.
func (s *BatchWorkflowService) Board(id string) (StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return StateSnapshot{}, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if session.board == nil {
		return StateSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "no assignment board is active at this stage")
	}
	return session.board.Snapshot(), nil
}

func (s *BatchWorkflowService) findSuggestion(id, studentID string) (*BatchSession, *models.SuggestedPair, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "workflow session not found")
	}
	if session.Stage != models.StageAssignNRT || session.board == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "suggestions are only available while assigning non-resident tutors")
	}
	for i := range session.suggestions {
		if session.suggestions[i].Student.ID == studentID {
			return session, &session.suggestions[i], nil
		}
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no suggestion for that student")
}

func (s *BatchWorkflowService) dropSuggestion(session *BatchSession, studentID string) {
	kept := session.suggestions[:0]
	for _, pair := range session.suggestions {
		if pair.Student.ID != studentID {
			kept = append(kept, pair)
		}
	}
	session.suggestions = kept
}

// confirmAssignments folds the board's session-created assignments into the
// batch, or takes an explicit map when no board was opened.
func (s *BatchWorkflowService) confirmAssignments(session *BatchSession, explicit map[string]string, kind models.TutorKind) error {
	assignments := explicit
	if session.board != nil {
		assignments = session.board.NewAssignments()
	}
	if assignments == nil {
		assignments = make(map[string]string)
	}
	for studentID, email := range assignments {
		if studentID == "" || email == "" {
			return appErrors.Clone(appErrors.ErrValidation, "assignments need both a student and a tutor email")
		}
	}
	if kind == models.TutorKindRT {
		session.Batch.RTAssignments = assignments
	} else {
		session.Batch.NRTAssignments = assignments
	}
	return nil
}

// openBoard loads the rosters and seeds the assignment board for the stage,
// including matcher suggestions for the NRT stage. Staged deletions are left
// off the board; they are going away at commit.
func (s *BatchWorkflowService) openBoard(ctx context.Context, session *BatchSession) error {
	students, err := s.students.All(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}
	deleted := make(map[string]struct{}, len(session.Batch.StudentDeletions))
	for _, id := range session.Batch.StudentDeletions {
		deleted[id] = struct{}{}
	}
	roster := make([]models.Student, 0, len(students))
	for _, student := range students {
		if _, gone := deleted[student.ID]; !gone {
			roster = append(roster, student)
		}
	}

	if session.Stage == models.StageAssignRT {
		rts, err := s.rts.All(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load resident tutors")
		}
		slots := make([]TutorSlot, 0, len(rts))
		byName := make(map[string]string, len(rts))
		for _, rt := range rts {
			slots = append(slots, TutorSlot{ID: rt.ID, Name: rt.Name, Email: rt.Email, Capacity: 0, Accepting: true})
			byName[normalizeName(rt.Name)] = rt.ID
		}
		board := NewAssignmentState(slots)
		for _, student := range roster {
			if tutorID, ok := byName[normalizeName(student.RTAssignment)]; ok && student.RTAssignment != "" {
				board.LoadCurrent(student.ID, tutorID)
			} else {
				board.LoadUnassigned(student.ID)
			}
		}
		session.board = board
		return nil
	}

	nrts, err := s.nrts.All(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load non-resident tutors")
	}
	slots := make([]TutorSlot, 0, len(nrts))
	byName := make(map[string]string, len(nrts))
	for _, nrt := range nrts {
		slots = append(slots, TutorSlot{
			ID:        nrt.ID,
			Name:      nrt.Name,
			Email:     nrt.Email,
			Capacity:  models.NRTCapacity,
			Accepting: nrt.AcceptingStudents(),
		})
		byName[normalizeName(nrt.Name)] = nrt.ID
	}
	board := NewAssignmentState(slots)
	counts := make(map[string]int, len(nrts))
	var unmatched []models.Student
	for _, student := range roster {
		if tutorID, ok := byName[normalizeName(student.NRTAssignment)]; ok && student.NRTAssignment != "" {
			board.LoadCurrent(student.ID, tutorID)
			counts[tutorID]++
		} else {
			board.LoadUnassigned(student.ID)
			unmatched = append(unmatched, student)
		}
	}
	session.board = board
	session.suggestions = s.matcher.Suggest(unmatched, nrts, counts)
	return nil
}

func ensureLive(session *BatchSession) error {
	if session.Committed {
		return appErrors.Clone(appErrors.ErrConflict, "session already committed")
	}
	if session.Abandoned {
		return appErrors.Clone(appErrors.ErrConflict, "session was abandoned")
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizeName(name string) string {
	return trimLower(name)
}
