package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/clinicflow/clinicd/internal/domain/visit"
)

var ref = time.Date(2025, 6, 28, 7, 0, 0, 0, time.Local)

func parseOne(t *testing.T, p *Parser, line string) visit.Draft {
	t.Helper()
	var reasons []string
	drafts := p.Parse(line, ref, func(r string) { reasons = append(reasons, r) })
	if len(drafts) != 1 {
		t.Fatalf("got %d drafts (skipped: %v), want 1", len(drafts), reasons)
	}
	return drafts[0]
}

func TestParseTabLayout(t *testing.T) {
	p := New(Options{})
	line := "06/28/2025\t09:00 AM\tConfirmed\tTONYA LEWIS\t04/03/1956\tOffice Visit\tINSURANCE 2025\t$0.00"

	d := parseOne(t, p, line)

	wantAppt := time.Date(2025, 6, 28, 9, 0, 0, 0, time.Local)
	if !d.AppointmentTime.Equal(wantAppt) {
		t.Errorf("appointmentTime = %v, want %v", d.AppointmentTime, wantAppt)
	}
	if d.DOB != "1956-04-03" {
		t.Errorf("dob = %q, want 1956-04-03", d.DOB)
	}
	if d.Status != visit.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", d.Status)
	}
	if d.CheckInTime != nil {
		t.Errorf("checkInTime = %v, want unset for a confirmed patient", d.CheckInTime)
	}
	if d.Name != "TONYA LEWIS" {
		t.Errorf("name = %q", d.Name)
	}
	if d.AppointmentType != "Office Visit" {
		t.Errorf("appointmentType = %q", d.AppointmentType)
	}
}

func TestParseRoomedDefaultsCheckInAndRoom(t *testing.T) {
	p := New(Options{})
	line := "06/28/2025\t10:30 AM\tRoomed\tMARCUS HALE\t01/15/1980\tFollow Up"

	d := parseOne(t, p, line)

	if d.Status != visit.StatusPrep {
		t.Fatalf("status = %s, want prep", d.Status)
	}
	wantCheckIn := time.Date(2025, 6, 28, 10, 0, 0, 0, time.Local)
	if d.CheckInTime == nil || !d.CheckInTime.Equal(wantCheckIn) {
		t.Errorf("checkInTime = %v, want %v (appointment - 30m)", d.CheckInTime, wantCheckIn)
	}
	if d.Room != "Waiting" {
		t.Errorf("room = %q, want Waiting", d.Room)
	}
}

func TestCheckInLeadIsOverridable(t *testing.T) {
	p := New(Options{CheckInLead: 10 * time.Minute})
	d := parseOne(t, p, "06/28/2025\t10:30 AM\tChecked In\tMARCUS HALE\t01/15/1980\tFollow Up")

	want := time.Date(2025, 6, 28, 10, 20, 0, 0, time.Local)
	if d.CheckInTime == nil || !d.CheckInTime.Equal(want) {
		t.Errorf("checkInTime = %v, want %v", d.CheckInTime, want)
	}
}

func TestParseClinicNoteLayout(t *testing.T) {
	p := New(Options{})
	line := "Dr. Rudman   9:00 AM   Checked In   TONYA LEWIS   04/03/1956   555-201-9987   Office Visit   $0.00"

	d := parseOne(t, p, line)

	wantAppt := time.Date(2025, 6, 28, 9, 0, 0, 0, time.Local) // date implied from ref
	if !d.AppointmentTime.Equal(wantAppt) {
		t.Errorf("appointmentTime = %v, want %v", d.AppointmentTime, wantAppt)
	}
	if d.Provider != "Dr. Rudman" {
		t.Errorf("provider = %q", d.Provider)
	}
	if d.Name != "TONYA LEWIS" {
		t.Errorf("name = %q", d.Name)
	}
	if d.DOB != "1956-04-03" {
		t.Errorf("dob = %q", d.DOB)
	}
	if d.Status != visit.StatusArrived {
		t.Errorf("status = %s, want arrived", d.Status)
	}
	if d.AppointmentType != "Office Visit" {
		t.Errorf("appointmentType = %q", d.AppointmentType)
	}
}

func TestParseClinicNoteWithExplicitDate(t *testing.T) {
	p := New(Options{})
	line := "06/29/2025   Dr. Osei   2:15 PM   Confirmed   RUTH OKAFOR   11/02/1947   555-443-0912   Annual Physical   $25.00"

	d := parseOne(t, p, line)

	wantAppt := time.Date(2025, 6, 29, 14, 15, 0, 0, time.Local)
	if !d.AppointmentTime.Equal(wantAppt) {
		t.Errorf("appointmentTime = %v, want %v", d.AppointmentTime, wantAppt)
	}
	if d.DOB != "1947-11-02" {
		t.Errorf("dob = %q", d.DOB)
	}
	if d.AppointmentType != "Annual Physical" {
		t.Errorf("appointmentType = %q", d.AppointmentType)
	}
}

func TestClinicNoteWithoutStatusDefaultsScheduled(t *testing.T) {
	p := New(Options{})
	d := parseOne(t, p, "Dr. Rudman   11:45 AM   LEE DENT   07/07/1991   555-009-1123   Office Visit   $0.00")

	if d.Status != visit.StatusScheduled {
		t.Errorf("status = %s, want scheduled", d.Status)
	}
	if d.Name != "LEE DENT" {
		t.Errorf("name = %q", d.Name)
	}
}

func TestMalformedLinesSkippedNotFatal(t *testing.T) {
	p := New(Options{})
	text := strings.Join([]string{
		"06/28/2025\t09:00 AM\tConfirmed\tTONYA LEWIS\t04/03/1956\tOffice Visit",
		"06/28/2025\t25:99 XM\tConfirmed\tBAD TIME\t04/03/1956\tOffice Visit", // no time match
		"06/28/2025\t09:30 AM\tConfirmed\tBAD DOB\t02/30/1956\tOffice Visit",  // impossible date
		"not a schedule line at all",
		"",
		"13/01/2025\t09:00 AM\tConfirmed\tBAD DATE\t04/03/1956\tOffice Visit", // month 13
		"06/28/2025\t10:00 AM\tChecked In\tMARCUS HALE\t01/15/1980\tFollow Up",
	}, "\n")

	var reasons []string
	drafts := p.Parse(text, ref, func(r string) { reasons = append(reasons, r) })

	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2 (skipped: %v)", len(drafts), reasons)
	}
	if len(reasons) != 4 {
		t.Errorf("got %d skip reasons, want 4: %v", len(reasons), reasons)
	}
	for _, r := range reasons {
		if !strings.Contains(r, "line ") {
			t.Errorf("skip reason %q does not name the line", r)
		}
	}
}

func TestZeroParseableLinesIsEmptyNotError(t *testing.T) {
	p := New(Options{})
	drafts := p.Parse("nothing\nuseful\nhere", ref, nil)
	if len(drafts) != 0 {
		t.Errorf("got %d drafts, want 0", len(drafts))
	}
}

func TestTwelveHourConversion(t *testing.T) {
	p := New(Options{})
	cases := []struct {
		tok  string
		hour int
	}{
		{"12:00 AM", 0},
		{"12:30 PM", 12},
		{"1:05 PM", 13},
		{"11:59 PM", 23},
		{"9:00 am", 9},
	}
	for _, tc := range cases {
		line := "06/28/2025\t" + tc.tok + "\tScheduled\tPAT TEST\t04/03/1956\tOffice Visit"
		d := parseOne(t, p, line)
		if d.AppointmentTime.Hour() != tc.hour {
			t.Errorf("%s: hour = %d, want %d", tc.tok, d.AppointmentTime.Hour(), tc.hour)
		}
	}
}

func TestCompletedStatusGetsCheckInButKeepsRoomEmptyDefaultOnlyWhenOccupying(t *testing.T) {
	p := New(Options{})
	d := parseOne(t, p, "06/28/2025\t08:00 AM\tChecked Out\tRUTH OKAFOR\t11/02/1947\tOffice Visit")

	if d.Status != visit.StatusCompleted {
		t.Fatalf("status = %s, want completed", d.Status)
	}
	if d.CheckInTime == nil {
		t.Error("completed patient should get a backdated check-in")
	}
	if d.Room != "" {
		t.Errorf("room = %q, want empty for a checked-out patient", d.Room)
	}
}
