package models

import "time"

// NRTStatus tracks a non-resident tutor's intake eligibility.
type NRTStatus string

const (
	NRTStatusActive          NRTStatus = "ACTIVE"
	NRTStatusNoNewStudents   NRTStatus = "ACTIVE_NO_NEW_STUDENTS"
	NRTStatusLeavingKeeps    NRTStatus = "LEAVING_KEEPS_STUDENTS"
	NRTStatusPendingApproval NRTStatus = "PENDING_APPROVAL"

	// NRTStatusDelete is a staging-only sentinel: a status change carrying it
	// deletes the tutor instead of updating the record.
	NRTStatusDelete NRTStatus = "DELETE"
)

// NRTCapacity is the hard ceiling of students per non-resident tutor.
const NRTCapacity = 3

// ValidNRTStatus reports whether the value is a storable status token.
func ValidNRTStatus(s NRTStatus) bool {
	switch s {
	case NRTStatusActive, NRTStatusNoNewStudents, NRTStatusLeavingKeeps, NRTStatusPendingApproval:
		return true
	}
	return false
}

// ResidentTutor is an in-house tutor with no capacity limit.
type ResidentTutor struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NonResidentTutor is an external tutor capped at NRTCapacity students.
type NonResidentTutor struct {
	ID     string    `db:"id" json:"id"`
	Name   string    `db:"name" json:"name"`
	Email  string    `db:"email" json:"email"`
	Status NRTStatus `db:"status" json:"status"`

	PhoneNumber       string `db:"phone_number" json:"phone_number"`
	Affiliation       string `db:"affiliation" json:"affiliation"`
	StageOfTraining   string `db:"stage_of_training" json:"stage_of_training"`
	TimeInBoston      string `db:"time_in_boston" json:"time_in_boston"`
	MedicalInterests  string `db:"medical_interests" json:"medical_interests"`
	OutsideInterests  string `db:"outside_interests" json:"outside_interests"`
	ResearchInterest  string `db:"research_interest" json:"research_interest"`
	ShadowingInterest string `db:"shadowing_interest" json:"shadowing_interest"`
	EventsInterest    string `db:"events_interest" json:"events_interest"`
	SpecificEvents    string `db:"specific_events" json:"specific_events"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcceptingStudents reports whether the tutor may receive new assignments.
// Only ACTIVE tutors take new students; the other statuses keep existing
// assignments but block intake.
func (t NonResidentTutor) AcceptingStudents() bool {
	return t.Status == NRTStatusActive
}

// TutorKind distinguishes the two tutor categories on shared endpoints.
type TutorKind string

const (
	TutorKindRT  TutorKind = "RT"
	TutorKindNRT TutorKind = "NRT"
)

// TutorFilter captures filtering options for tutor listings.
type TutorFilter struct {
	Search    string
	Status    NRTStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RTWithCount pairs a resident tutor with its derived student count.
type RTWithCount struct {
	ResidentTutor
	StudentCount int `json:"student_count"`
}

// NRTWithCount pairs a non-resident tutor with its derived student count.
type NRTWithCount struct {
	NonResidentTutor
	StudentCount int `json:"student_count"`
}
