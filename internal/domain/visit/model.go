// Package visit holds the patient-visit domain: the status model, the
// transition state machine, wait-time derivation, and the registry service
// that the HTTP layer and schedule importers drive.
package visit

import (
	"time"

	"github.com/google/uuid"
)

// Status is the canonical visit status. The set is closed; free-text statuses
// from external systems are folded onto it by NormalizeStatus.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusArrived     Status = "arrived"
	StatusPrep        Status = "prep"
	StatusReadyForMD  Status = "ready-for-md"
	StatusWithDoctor  Status = "with-doctor"
	StatusSeenByMD    Status = "seen-by-md"
	StatusCompleted   Status = "completed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no-show"
)

// pipelineIndex orders the forward-only canonical path. Escape statuses are
// deliberately absent: they sit outside the ordering.
var pipelineIndex = map[Status]int{
	StatusScheduled:  0,
	StatusConfirmed:  1,
	StatusArrived:    2,
	StatusPrep:       3,
	StatusReadyForMD: 4,
	StatusWithDoctor: 5,
	StatusSeenByMD:   6,
	StatusCompleted:  7,
}

// IsValid reports whether s is one of the canonical statuses.
func (s Status) IsValid() bool {
	if _, ok := pipelineIndex[s]; ok {
		return true
	}
	return s == StatusRescheduled || s == StatusCancelled || s == StatusNoShow
}

// IsEscape reports whether s is a terminal escape status reachable from any
// non-terminal state.
func (s Status) IsEscape() bool {
	return s == StatusRescheduled || s == StatusCancelled || s == StatusNoShow
}

// IsTerminal reports whether no further transitions are allowed out of s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s.IsEscape()
}

// ImpliesArrival reports whether s means the patient is physically in the
// clinic (or was, for completed visits).
func (s Status) ImpliesArrival() bool {
	idx, ok := pipelineIndex[s]
	return ok && idx >= pipelineIndex[StatusArrived]
}

// ImpliesRoomOccupancy reports whether s means the patient occupies a
// physical room right now.
func (s Status) ImpliesRoomOccupancy() bool {
	idx, ok := pipelineIndex[s]
	return ok && idx >= pipelineIndex[StatusArrived] && idx < pipelineIndex[StatusCompleted]
}

// StatusChange is one entry in a record's transition history.
type StatusChange struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// PatientRecord is one patient's visit for a single appointment instance.
// Mutations go through the state machine or the registry's explicit edit
// operations; the record itself enforces nothing.
type PatientRecord struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DOB             string    `json:"dob"` // calendar date, YYYY-MM-DD
	Provider        string    `json:"provider"`
	AppointmentTime time.Time `json:"appointmentTime"`
	Status          Status    `json:"status"`

	CheckInTime    *time.Time `json:"checkInTime,omitempty"`
	WithDoctorTime *time.Time `json:"withDoctorTime,omitempty"`
	CompletedTime  *time.Time `json:"completedTime,omitempty"`

	Room            string `json:"room,omitempty"`
	AppointmentType string `json:"appointmentType,omitempty"`
	ChiefComplaint  string `json:"chiefComplaint,omitempty"`

	StatusHistory []StatusChange `json:"statusHistory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so readers can hold snapshots while the registry
// keeps mutating its own copy.
func (r *PatientRecord) Clone() *PatientRecord {
	cp := *r
	if r.CheckInTime != nil {
		t := *r.CheckInTime
		cp.CheckInTime = &t
	}
	if r.WithDoctorTime != nil {
		t := *r.WithDoctorTime
		cp.WithDoctorTime = &t
	}
	if r.CompletedTime != nil {
		t := *r.CompletedTime
		cp.CompletedTime = &t
	}
	if r.StatusHistory != nil {
		cp.StatusHistory = append([]StatusChange(nil), r.StatusHistory...)
	}
	return &cp
}

// Draft is a parsed or imported record before identifier assignment and
// registry insertion.
type Draft struct {
	Name            string     `json:"name"`
	DOB             string     `json:"dob"`
	Provider        string     `json:"provider"`
	AppointmentTime time.Time  `json:"appointmentTime"`
	Status          Status     `json:"status"`
	CheckInTime     *time.Time `json:"checkInTime,omitempty"`
	Room            string     `json:"room,omitempty"`
	AppointmentType string     `json:"appointmentType,omitempty"`
	ChiefComplaint  string     `json:"chiefComplaint,omitempty"`
}
