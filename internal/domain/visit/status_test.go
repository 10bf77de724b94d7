package visit

import "testing"

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"CHECKED IN", StatusArrived},
		{"arrived", StatusArrived},
		{"checked in", StatusArrived},
		{"Roomed", StatusPrep},
		{"Appt Prep Started", StatusPrep},
		{"Reminder Sent", StatusConfirmed},
		{"Confirmed", StatusConfirmed},
		{"Seen by MD", StatusSeenByMD},
		{"Checked Out", StatusCompleted},
		{"CheckedOut", StatusCompleted},
		{"No Show", StatusNoShow},
		{"no-show", StatusNoShow},
		{"Cancelled", StatusCancelled},
		{"canceled", StatusCancelled},
		{"Ready for MD", StatusReadyForMD},
		{"With Doctor", StatusWithDoctor},
		{"  Checked   In  ", StatusArrived},

		// Tolerance policy: unknown and empty fall back to scheduled.
		{"", StatusScheduled},
		{"Telepathy Visit", StatusScheduled},
		{"???", StatusScheduled},
	}

	for _, tc := range cases {
		if got := NormalizeStatus(tc.raw); got != tc.want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestLookupStatusRejectsUnknown(t *testing.T) {
	if s, ok := LookupStatus("compleed"); ok {
		t.Errorf("LookupStatus(compleed) = %s, want miss", s)
	}
	if s, ok := LookupStatus("Roomed"); !ok || s != StatusPrep {
		t.Errorf("LookupStatus(Roomed) = %s/%v, want prep", s, ok)
	}
}

func TestNormalizeStatusDeterminism(t *testing.T) {
	a := NormalizeStatus("CHECKED IN")
	b := NormalizeStatus("arrived")
	if a != b || a != StatusArrived {
		t.Errorf("normalization diverged: %s vs %s", a, b)
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusPrep.ImpliesArrival() || StatusConfirmed.ImpliesArrival() {
		t.Error("ImpliesArrival boundary wrong")
	}
	if !StatusWithDoctor.ImpliesRoomOccupancy() || StatusCompleted.ImpliesRoomOccupancy() {
		t.Error("ImpliesRoomOccupancy boundary wrong")
	}
	if !StatusCancelled.IsTerminal() || !StatusCompleted.IsTerminal() || StatusSeenByMD.IsTerminal() {
		t.Error("IsTerminal boundary wrong")
	}
	if StatusCompleted.IsEscape() || !StatusRescheduled.IsEscape() {
		t.Error("IsEscape boundary wrong")
	}
	if Status("triaged").IsValid() {
		t.Error("foreign status considered valid")
	}
}
