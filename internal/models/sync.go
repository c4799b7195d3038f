package models

import "time"

// SyncResult reports the outcome of one spreadsheet sync pass.
type SyncResult struct {
	Success   bool      `json:"success"`
	Cached    bool      `json:"cached"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncStatus summarises the spreadsheet mirror's configuration and history.
type SyncStatus struct {
	Configured bool       `json:"configured"`
	LastExport *time.Time `json:"last_export,omitempty"`
	LastImport *time.Time `json:"last_import,omitempty"`
}

// HouseStats aggregates dashboard figures over the active rosters.
type HouseStats struct {
	TotalStudents      int                       `json:"total_students"`
	StudentsByStatus   map[string]int            `json:"students_by_status"`
	UnassignedRTCount  int                       `json:"unassigned_rt_students_count"`
	UnassignedNRTCount int                       `json:"unassigned_nrt_students_count"`
	ActiveNRTs         int                       `json:"active_nrts"`
	RTAssignments      map[string]int            `json:"rt_assignments"`
	NRTAssignments     map[string]int            `json:"nrt_assignments"`
	NRTClassYearCounts map[string]map[string]int `json:"nrt_class_year_counts"`
}
