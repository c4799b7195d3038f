package service

import (
	"sync"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

// TutorSlot describes one tutor on the assignment board. Capacity 0 means
// unbounded (resident tutors).
type TutorSlot struct {
	ID        string
	Name      string
	Email     string
	Capacity  int
	Accepting bool
}

// AssignmentState tracks, for one guided session, which students sit in the
// unassigned pool, which are newly placed with a tutor, and which were
// already assigned when the session loaded. Every student ID lives in exactly
// one bucket at all times.
//
// The state is driven by a single session, but each mutating operation is a
// critical section: a mutex serialises access so UI event handlers firing
// across goroutines cannot interleave two moves.
type AssignmentState struct {
	mu sync.Mutex

	tutors     map[string]TutorSlot
	unassigned map[string]struct{}
	current    map[string]map[string]struct{} // tutorID -> student IDs loaded from persistence
	newly      map[string]map[string]struct{} // tutorID -> student IDs placed this session
	location   map[string]string              // studentID -> bucket key
}

const unassignedBucket = "" // location value for the unassigned pool

// NewAssignmentState builds an empty board for the given tutors.
func NewAssignmentState(tutors []TutorSlot) *AssignmentState {
	st := &AssignmentState{
		tutors:     make(map[string]TutorSlot, len(tutors)),
		unassigned: make(map[string]struct{}),
		current:    make(map[string]map[string]struct{}, len(tutors)),
		newly:      make(map[string]map[string]struct{}, len(tutors)),
		location:   make(map[string]string),
	}
	for _, tutor := range tutors {
		st.tutors[tutor.ID] = tutor
		st.current[tutor.ID] = make(map[string]struct{})
		st.newly[tutor.ID] = make(map[string]struct{})
	}
	return st
}

// LoadUnassigned seeds a student into the unassigned pool.
func (st *AssignmentState) LoadUnassigned(studentID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.removeLocked(studentID)
	st.unassigned[studentID] = struct{}{}
	st.location[studentID] = unassignedBucket
}

// LoadCurrent seeds a student into a tutor's pre-existing assignment bucket.
// Unknown tutors fall back to the unassigned pool so the student still has a
// well-defined location.
func (st *AssignmentState) LoadCurrent(studentID, tutorID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.removeLocked(studentID)
	bucket, ok := st.current[tutorID]
	if !ok {
		st.unassigned[studentID] = struct{}{}
		st.location[studentID] = unassignedBucket
		return
	}
	bucket[studentID] = struct{}{}
	st.location[studentID] = tutorID
}

// MoveToUnassigned pulls the student out of whichever bucket holds them and
// returns them to the pool. It always succeeds.
func (st *AssignmentState) MoveToUnassigned(studentID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.removeLocked(studentID)
	st.unassigned[studentID] = struct{}{}
	st.location[studentID] = unassignedBucket
}

// MoveToTutor places the student in the tutor's new-assignment bucket after
// eligibility and capacity checks. On rejection the board is left untouched.
// Re-adding a student already in the same tutor's new bucket is a no-op.
func (st *AssignmentState) MoveToTutor(studentID, tutorID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	tutor, ok := st.tutors[tutorID]
	if !ok {
		return appErrors.Clone(appErrors.ErrEntityNotFound, "tutor is not on the board")
	}
	if _, already := st.newly[tutorID][studentID]; already {
		return nil
	}
	if !tutor.Accepting {
		return appErrors.Clone(appErrors.ErrIneligibleTutor, "tutor is not accepting new students")
	}
	if tutor.Capacity > 0 {
		occupied := len(st.current[tutorID]) + len(st.newly[tutorID])
		// A student moving within the same tutor's buckets frees their own slot.
		if st.location[studentID] == tutorID {
			occupied--
		}
		if occupied >= tutor.Capacity {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, "tutor is at capacity")
		}
	}

	st.removeLocked(studentID)
	st.newly[tutorID][studentID] = struct{}{}
	st.location[studentID] = tutorID
	return nil
}

// AcceptSuggestion applies a matcher suggestion as a move.
func (st *AssignmentState) AcceptSuggestion(pair models.SuggestedPair) error {
	return st.MoveToTutor(pair.Student.ID, pair.Tutor.ID)
}

// NewAssignments returns only the assignments created during this session,
// keyed by student ID with the tutor's email as value. Assignments that were
// already persisted are excluded so the store never receives redundant
// writes.
func (st *AssignmentState) NewAssignments() map[string]string {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make(map[string]string)
	for tutorID, bucket := range st.newly {
		email := st.tutors[tutorID].Email
		for studentID := range bucket {
			out[studentID] = email
		}
	}
	return out
}

// Unassigned lists the students currently in the pool.
func (st *AssignmentState) Unassigned() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]string, 0, len(st.unassigned))
	for id := range st.unassigned {
		out = append(out, id)
	}
	return out
}

// Snapshot captures the full board for comparison in tests and for rendering.
type StateSnapshot struct {
	Unassigned map[string]struct{}
	Current    map[string]map[string]struct{}
	New        map[string]map[string]struct{}
}

// Snapshot returns a deep copy of all three bucket groups.
func (st *AssignmentState) Snapshot() StateSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := StateSnapshot{
		Unassigned: make(map[string]struct{}, len(st.unassigned)),
		Current:    make(map[string]map[string]struct{}, len(st.current)),
		New:        make(map[string]map[string]struct{}, len(st.newly)),
	}
	for id := range st.unassigned {
		snap.Unassigned[id] = struct{}{}
	}
	for tutorID, bucket := range st.current {
		cp := make(map[string]struct{}, len(bucket))
		for id := range bucket {
			cp[id] = struct{}{}
		}
		snap.Current[tutorID] = cp
	}
	for tutorID, bucket := range st.newly {
		cp := make(map[string]struct{}, len(bucket))
		for id := range bucket {
			cp[id] = struct{}{}
		}
		snap.New[tutorID] = cp
	}
	return snap
}

// removeLocked detaches the student from whichever bucket holds them.
// Callers must hold st.mu.
func (st *AssignmentState) removeLocked(studentID string) {
	loc, known := st.location[studentID]
	if !known {
		return
	}
	if loc == unassignedBucket {
		delete(st.unassigned, studentID)
	} else {
		delete(st.current[loc], studentID)
		delete(st.newly[loc], studentID)
	}
	delete(st.location, studentID)
}
