package models

// BatchStage identifies one step of the guided batch-update workflow.
type BatchStage string

const (
	StageSelectDeletions      BatchStage = "SELECT_DELETIONS"
	StageStageAdditions       BatchStage = "STAGE_ADDITIONS"
	StageSelectTutorDeletions BatchStage = "SELECT_TUTOR_DELETIONS"
	StageTutorStatusChanges   BatchStage = "TUTOR_STATUS_CHANGES"
	StageTutorAdditions       BatchStage = "TUTOR_ADDITIONS"
	StageReviewSummary        BatchStage = "REVIEW_SUMMARY"
	StageAssignRT             BatchStage = "ASSIGN_RT"
	StageAssignNRT            BatchStage = "ASSIGN_NRT"
	StageCommit               BatchStage = "COMMIT"
)

// BatchStageOrder is the fixed forward order of the workflow.
var BatchStageOrder = []BatchStage{
	StageSelectDeletions,
	StageStageAdditions,
	StageSelectTutorDeletions,
	StageTutorStatusChanges,
	StageTutorAdditions,
	StageReviewSummary,
	StageAssignRT,
	StageAssignNRT,
	StageCommit,
}

// NRTStatusChange stages a status update for a tutor. A Status of
// NRTStatusDelete deletes the tutor at commit time instead.
type NRTStatusChange struct {
	TutorID string    `json:"tutor_id"`
	Status  NRTStatus `json:"status"`
}

// WorkflowBatch aggregates every staged change of one guided session. It has
// no persistence; an abandoned session simply drops it.
type WorkflowBatch struct {
	StudentDeletions []string           `json:"student_deletions"`
	StudentAdditions []Student          `json:"student_additions"`
	NRTDeletions     []string           `json:"nrt_deletions"`
	NRTStatusChanges []NRTStatusChange  `json:"nrt_status_changes"`
	NRTAdditions     []NonResidentTutor `json:"nrt_additions"`
	RTAssignments    map[string]string  `json:"rt_assignments"`
	NRTAssignments   map[string]string  `json:"nrt_assignments"`
}

// Empty reports whether nothing at all has been staged.
func (b WorkflowBatch) Empty() bool {
	return len(b.StudentDeletions) == 0 &&
		len(b.StudentAdditions) == 0 &&
		len(b.NRTDeletions) == 0 &&
		len(b.NRTStatusChanges) == 0 &&
		len(b.NRTAdditions) == 0 &&
		len(b.RTAssignments) == 0 &&
		len(b.NRTAssignments) == 0
}

// CommitStep numbers the commit sequence for partial-failure reporting.
type CommitStep int

const (
	StepDeleteStudents CommitStep = iota + 1
	StepInsertStudents
	StepDeleteNRTs
	StepUpdateNRTStatuses
	StepInsertNRTs
	StepAssignRTs
	StepAssignNRTs
	StepExport
)

// CommitOutcome is the terminal state of a commit attempt.
type CommitOutcome string

const (
	CommitSucceeded    CommitOutcome = "SUCCEEDED"
	CommitWithWarnings CommitOutcome = "SUCCEEDED_WITH_WARNINGS"
	CommitAborted      CommitOutcome = "ABORTED"
)

// CommitResult summarises what a commit applied, skipped and failed.
type CommitResult struct {
	Outcome   CommitOutcome `json:"outcome"`
	Warnings  []string      `json:"warnings,omitempty"`
	FatalStep CommitStep    `json:"fatal_step,omitempty"`
	FatalErr  string        `json:"fatal_error,omitempty"`

	StudentsDeleted  int `json:"students_deleted"`
	StudentsAdded    int `json:"students_added"`
	NRTsDeleted      int `json:"nrts_deleted"`
	NRTStatusUpdates int `json:"nrt_status_updates"`
	NRTsAdded        int `json:"nrts_added"`
	RTAssigned       int `json:"rt_assigned"`
	NRTAssigned      int `json:"nrt_assigned"`
}
