package visit

import (
	"errors"
	"fmt"
	"time"
)

// TimeSource is the time provider consumed by the state machine. The
// platform clock satisfies it; tests substitute a fixed source.
type TimeSource interface {
	Now() time.Time
	IsSimulated() bool
}

// ErrInvalidRegression is returned when a transition would move a record
// backward along the canonical pipeline or out of a terminal status.
var ErrInvalidRegression = errors.New("visit: invalid status regression")

// ErrUnknownStatus is returned for a transition target outside the canonical set.
var ErrUnknownStatus = errors.New("visit: unknown status")

// Machine applies status transitions and derives wait-time figures. All time
// reads go through the TimeSource, never the OS clock, so simulated-mode
// rehearsal produces the same math as a live clinic day.
type Machine struct {
	clock TimeSource
}

// NewMachine creates a state machine bound to a time source.
func NewMachine(clock TimeSource) *Machine {
	return &Machine{clock: clock}
}

// Transition moves rec to target, stamping side-effect timestamps on first
// entry. Re-entering the current status is a no-op: an operator re-clicking
// a button must never overwrite a timestamp. On rejection the record is
// left untouched.
func (m *Machine) Transition(rec *PatientRecord, target Status) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	if target == rec.Status {
		return nil
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrInvalidRegression, rec.Status, target)
	}

	now := m.clock.Now()

	if target.IsEscape() {
		rec.StatusHistory = append(rec.StatusHistory, StatusChange{From: rec.Status, To: target, At: now})
		rec.Status = target
		rec.Room = ""
		rec.UpdatedAt = now
		return nil
	}

	from, to := pipelineIndex[rec.Status], pipelineIndex[target]
	if to <= from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRegression, rec.Status, target)
	}

	// First-entry timestamps. Skipped intermediate steps still imply the
	// patient checked in, so any status at or past arrived backfills it.
	if target.ImpliesArrival() && rec.CheckInTime == nil {
		t := now
		rec.CheckInTime = &t
	}
	if target == StatusWithDoctor && rec.WithDoctorTime == nil {
		t := now
		rec.WithDoctorTime = &t
	}
	if target == StatusCompleted && rec.CompletedTime == nil {
		t := now
		rec.CompletedTime = &t
	}

	rec.StatusHistory = append(rec.StatusHistory, StatusChange{From: rec.Status, To: target, At: now})
	rec.Status = target
	rec.UpdatedAt = now
	return nil
}

// WaitMinutes derives how long the patient has waited to see the doctor.
// Before doctor contact the figure grows live against the clock; once
// WithDoctorTime (or CompletedTime) is set it freezes at time-to-doctor.
func (m *Machine) WaitMinutes(rec *PatientRecord) int {
	if rec.CheckInTime == nil {
		return 0
	}
	end := m.clock.Now()
	switch {
	case rec.CompletedTime != nil:
		end = *rec.CompletedTime
	case rec.WithDoctorTime != nil:
		end = *rec.WithDoctorTime
	}
	mins := int(end.Sub(*rec.CheckInTime) / time.Minute)
	if mins < 0 {
		return 0
	}
	return mins
}

// TotalMinutes is checkout minus check-in, defined only for completed visits
// with a check-in time.
func (m *Machine) TotalMinutes(rec *PatientRecord) (int, bool) {
	if rec.CheckInTime == nil || rec.CompletedTime == nil {
		return 0, false
	}
	mins := int(rec.CompletedTime.Sub(*rec.CheckInTime) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	return mins, true
}

// MetricsSnapshot aggregates the board figures the reporting layer consumes.
type MetricsSnapshot struct {
	Waiting         int     `json:"waiting"`
	CheckedIn       int     `json:"checkedIn"`
	MeanWaitMinutes float64 `json:"meanWaitMinutes"`
	MaxWaitMinutes  int     `json:"maxWaitMinutes"`
	CompletedToday  int     `json:"completedToday"`
}

// Metrics computes the aggregate wait figures across records. "Today" is the
// clock's current date, so simulated rehearsal reports coherent counts.
func (m *Machine) Metrics(records []*PatientRecord) MetricsSnapshot {
	var snap MetricsSnapshot
	var waitSum int

	y, mo, d := m.clock.Now().Date()

	for _, rec := range records {
		switch rec.Status {
		case StatusArrived, StatusPrep, StatusReadyForMD:
			snap.Waiting++
		}

		if rec.CheckInTime != nil && !rec.Status.IsEscape() {
			snap.CheckedIn++
			w := m.WaitMinutes(rec)
			waitSum += w
			if w > snap.MaxWaitMinutes {
				snap.MaxWaitMinutes = w
			}
		}

		if rec.Status == StatusCompleted && rec.CompletedTime != nil {
			cy, cmo, cd := rec.CompletedTime.Date()
			if cy == y && cmo == mo && cd == d {
				snap.CompletedToday++
			}
		}
	}

	if snap.CheckedIn > 0 {
		snap.MeanWaitMinutes = float64(waitSum) / float64(snap.CheckedIn)
	}
	return snap
}
