package models

import "time"

// ApplicationStatus tracks where a student is in the application cycle.
type ApplicationStatus string

const (
	StatusNotApplying       ApplicationStatus = "NOT_APPLYING"
	StatusCurrentlyApplying ApplicationStatus = "CURRENTLY_APPLYING"
	StatusApplyingNextCycle ApplicationStatus = "APPLYING_NEXT_CYCLE"
)

// ValidApplicationStatus reports whether the value is a known status token.
func ValidApplicationStatus(s ApplicationStatus) bool {
	switch s {
	case StatusNotApplying, StatusCurrentlyApplying, StatusApplyingNextCycle:
		return true
	}
	return false
}

// Student represents an advisee tracked by the house.
//
// Tutor assignments are stored as display-name strings, mirroring the
// spreadsheet of record. Name uniqueness is assumed at house scale.
type Student struct {
	ID             string            `db:"id" json:"id"`
	FirstName      string            `db:"first_name" json:"first_name"`
	LastName       string            `db:"last_name" json:"last_name"`
	PrimaryEmail   string            `db:"primary_email" json:"primary_email"`
	SecondaryEmail string            `db:"secondary_email" json:"secondary_email"`
	ClassYear      string            `db:"class_year" json:"class_year"`
	Status         ApplicationStatus `db:"status" json:"status"`
	RTAssignment   string            `db:"rt_assignment" json:"rt_assignment"`
	NRTAssignment  string            `db:"nrt_assignment" json:"nrt_assignment"`

	PhoneNumber       string `db:"phone_number" json:"phone_number"`
	Hometown          string `db:"hometown" json:"hometown"`
	Concentration     string `db:"concentration" json:"concentration"`
	SecondaryField    string `db:"secondary_field" json:"secondary_field"`
	Extracurriculars  string `db:"extracurriculars" json:"extracurriculars"`
	ClinicalShadowing string `db:"clinical_shadowing" json:"clinical_shadowing"`
	ResearchActivity  string `db:"research_activity" json:"research_activity"`
	MedicalInterests  string `db:"medical_interests" json:"medical_interests"`
	ProgramInterests  string `db:"program_interests" json:"program_interests"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ContactEmail returns the best address to reach the student at.
func (s Student) ContactEmail() string {
	if s.PrimaryEmail != "" {
		return s.PrimaryEmail
	}
	return s.SecondaryEmail
}

// FullName joins the student's first and last name.
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassYear string
	Status    ApplicationStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
