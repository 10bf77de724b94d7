package visit

import "strings"

// statusSynonyms folds the status vocabularies of the known upstream export
// tools onto the canonical set. Keys are lower-cased with collapsed spacing.
var statusSynonyms = map[string]Status{
	"scheduled": StatusScheduled,
	"sched":     StatusScheduled,
	"booked":    StatusScheduled,

	"confirmed":     StatusConfirmed,
	"conf":          StatusConfirmed,
	"reminder sent": StatusConfirmed,

	"arrived":    StatusArrived,
	"checked in": StatusArrived,
	"checkedin":  StatusArrived,
	"check in":   StatusArrived,
	"here":       StatusArrived,

	"prep":              StatusPrep,
	"roomed":            StatusPrep,
	"appt prep started": StatusPrep,
	"in room":           StatusPrep,
	"triage":            StatusPrep,

	"ready for md":       StatusReadyForMD,
	"ready-for-md":       StatusReadyForMD,
	"ready":              StatusReadyForMD,
	"ready for provider": StatusReadyForMD,

	"with doctor": StatusWithDoctor,
	"with-doctor": StatusWithDoctor,
	"with md":     StatusWithDoctor,
	"in progress": StatusWithDoctor,
	"being seen":  StatusWithDoctor,

	"seen by md": StatusSeenByMD,
	"seen-by-md": StatusSeenByMD,
	"seen":       StatusSeenByMD,

	"completed":   StatusCompleted,
	"complete":    StatusCompleted,
	"checked out": StatusCompleted,
	"checkedout":  StatusCompleted,
	"check out":   StatusCompleted,
	"done":        StatusCompleted,

	"rescheduled": StatusRescheduled,
	"resched":     StatusRescheduled,

	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"cancel":    StatusCancelled,

	"no show": StatusNoShow,
	"no-show": StatusNoShow,
	"noshow":  StatusNoShow,
	"missed":  StatusNoShow,
}

// LookupStatus maps free-text appointment status wording onto the canonical
// Status. Matching is case-insensitive with collapsed whitespace; ok is false
// when the wording matches neither a canonical status nor a known synonym.
func LookupStatus(raw string) (Status, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	s, ok := statusSynonyms[key]
	return s, ok
}

// NormalizeStatus is the tolerant form of LookupStatus used on import paths.
// Empty or unrecognized input normalizes to StatusScheduled: upstream
// schedule exports are inconsistently worded, and a bad status must never
// abort an import. Both the text parser and the JSON importer use this
// function so the two paths cannot diverge.
func NormalizeStatus(raw string) Status {
	if s, ok := LookupStatus(raw); ok {
		return s
	}
	return StatusScheduled
}
