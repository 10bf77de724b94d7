// Package schedule turns hand-pasted clinic schedule text into draft visit
// records. Operators paste from different export tools, so the parser
// auto-detects the layout per line and skips anything it cannot read: one
// malformed row must never block importing the rest of the batch.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clinicflow/clinicd/internal/domain/visit"
)

// Defaults for the parser's named heuristics. The check-in lead is a known
// approximation inherited from the clinic's workflow: exports that say a
// patient already arrived carry no check-in time, so one is backdated from
// the appointment slot.
const (
	DefaultCheckInLead     = 30 * time.Minute
	DefaultWaitingRoom     = "Waiting"
	DefaultAppointmentType = "Office Visit"
	DefaultChiefComplaint  = "General"
)

// Options tune the parser's defaulting heuristics. Zero values fall back to
// the package defaults.
type Options struct {
	CheckInLead     time.Duration
	AppointmentType string
	ChiefComplaint  string
	Location        *time.Location
}

// Parser converts raw schedule text into visit drafts.
type Parser struct {
	opts Options
}

// New creates a parser, filling unset options with package defaults.
func New(opts Options) *Parser {
	if opts.CheckInLead == 0 {
		opts.CheckInLead = DefaultCheckInLead
	}
	if opts.AppointmentType == "" {
		opts.AppointmentType = DefaultAppointmentType
	}
	if opts.ChiefComplaint == "" {
		opts.ChiefComplaint = DefaultChiefComplaint
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Parser{opts: opts}
}

var (
	timeRe   = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(AM|PM)\b`)
	dateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	phoneRe  = regexp.MustCompile(`^\(?\d{3}\)?[\s.-]?\d{3}[\s.-]\d{4}$`)
	amountRe = regexp.MustCompile(`^\$\d`)
	// Clinic-note fields are separated by tabs or runs of two-plus spaces.
	noteSplitRe = regexp.MustCompile(`\t+|\s{2,}`)
)

// Parse converts text into drafts. ref supplies "today" for layouts that
// omit the appointment date. Each unparseable line is reported through sink
// with line number and reason, then skipped. An empty result is not an
// error; the caller decides whether zero records is user-facing.
func (p *Parser) Parse(text string, ref time.Time, sink func(string)) []visit.Draft {
	if sink == nil {
		sink = func(string) {}
	}

	var drafts []visit.Draft
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var (
			d   visit.Draft
			err error
		)
		switch {
		case strings.Count(line, "\t") >= 5:
			d, err = p.parseTabLine(line)
		case p.looksLikeClinicNote(line):
			d, err = p.parseNoteLine(line, ref)
		default:
			err = fmt.Errorf("unrecognized layout")
		}
		if err != nil {
			sink(fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}

		p.applyHeuristics(&d)
		drafts = append(drafts, d)
	}
	return drafts
}

// parseTabLine handles the tab-separated export layout:
// Date, Time, Status, Name, DOB, Type, [free-text tail].
func (p *Parser) parseTabLine(line string) (visit.Draft, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 6 {
		return visit.Draft{}, fmt.Errorf("expected at least 6 tab-separated columns, got %d", len(cols))
	}
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	apptDate, err := p.parseDate(cols[0])
	if err != nil {
		return visit.Draft{}, fmt.Errorf("appointment date %q: %v", cols[0], err)
	}
	hour, minute, err := parseClockTime(cols[1])
	if err != nil {
		return visit.Draft{}, fmt.Errorf("appointment time %q: %v", cols[1], err)
	}
	dob, err := p.parseDOB(cols[4])
	if err != nil {
		return visit.Draft{}, fmt.Errorf("dob %q: %v", cols[4], err)
	}
	if cols[3] == "" {
		return visit.Draft{}, fmt.Errorf("missing patient name")
	}

	return visit.Draft{
		Name:            cols[3],
		DOB:             dob,
		AppointmentTime: time.Date(apptDate.Year(), apptDate.Month(), apptDate.Day(), hour, minute, 0, 0, p.opts.Location),
		Status:          visit.NormalizeStatus(cols[2]),
		AppointmentType: cols[5],
	}, nil
}

// looksLikeClinicNote detects the free-text layout: a time-like token, a
// date-like token, and a dollar amount on one line.
func (p *Parser) looksLikeClinicNote(line string) bool {
	return timeRe.MatchString(line) && dateRe.MatchString(line) && strings.Contains(line, "$")
}

// parseNoteLine handles the free-text "clinic note" layout. One line mixes
// provider, time, status, patient name, DOB, phone, visit type and a dollar
// amount, separated by inconsistent runs of whitespace. The DOB is the last
// date token after the time; a date token before the time, when present, is
// the appointment date, otherwise the reference date applies.
func (p *Parser) parseNoteLine(line string, ref time.Time) (visit.Draft, error) {
	fields := splitNoteFields(line)

	timeIdx := -1
	for i, f := range fields {
		if timeRe.MatchString(f) {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return visit.Draft{}, fmt.Errorf("no appointment time token")
	}
	hour, minute, err := parseClockTime(timeRe.FindString(fields[timeIdx]))
	if err != nil {
		return visit.Draft{}, fmt.Errorf("appointment time: %v", err)
	}

	dobIdx := -1
	for i := len(fields) - 1; i > timeIdx; i-- {
		if dateRe.MatchString(fields[i]) {
			dobIdx = i
			break
		}
	}
	if dobIdx < 0 {
		return visit.Draft{}, fmt.Errorf("no dob token")
	}
	dob, err := p.parseDOB(dateRe.FindString(fields[dobIdx]))
	if err != nil {
		return visit.Draft{}, fmt.Errorf("dob: %v", err)
	}

	apptDate := ref
	for i := 0; i < timeIdx; i++ {
		if m := dateRe.FindString(fields[i]); m != "" {
			d, derr := p.parseDate(m)
			if derr != nil {
				return visit.Draft{}, fmt.Errorf("appointment date %q: %v", m, derr)
			}
			apptDate = d
			break
		}
	}

	between := fields[timeIdx+1 : dobIdx]
	if len(between) == 0 {
		return visit.Draft{}, fmt.Errorf("missing patient name")
	}
	name := between[len(between)-1]
	status := strings.Join(between[:len(between)-1], " ")

	provider := strings.Join(stripDates(fields[:timeIdx]), " ")

	apptType := ""
	for _, f := range fields[dobIdx+1:] {
		if phoneRe.MatchString(f) || amountRe.MatchString(f) {
			continue
		}
		apptType = f
		break
	}

	return visit.Draft{
		Name:            name,
		DOB:             dob,
		Provider:        provider,
		AppointmentTime: time.Date(apptDate.Year(), apptDate.Month(), apptDate.Day(), hour, minute, 0, 0, p.opts.Location),
		Status:          visit.NormalizeStatus(status),
		AppointmentType: apptType,
	}, nil
}

// applyHeuristics fills the named defaults: backdated check-in for statuses
// implying arrival, the waiting-room placeholder, and generic labels for
// absent metadata.
func (p *Parser) applyHeuristics(d *visit.Draft) {
	if d.Status.ImpliesArrival() && d.CheckInTime == nil {
		t := d.AppointmentTime.Add(-p.opts.CheckInLead)
		d.CheckInTime = &t
	}
	if d.Status.ImpliesRoomOccupancy() && d.Room == "" {
		d.Room = DefaultWaitingRoom
	}
	if d.AppointmentType == "" {
		d.AppointmentType = p.opts.AppointmentType
	}
	if d.ChiefComplaint == "" {
		d.ChiefComplaint = p.opts.ChiefComplaint
	}
}

func splitNoteFields(line string) []string {
	var fields []string
	for _, f := range noteSplitRe.Split(strings.TrimSpace(line), -1) {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func stripDates(fields []string) []string {
	var out []string
	for _, f := range fields {
		if dateRe.MatchString(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// parseClockTime converts an H:MM AM/PM token to 24-hour figures.
func parseClockTime(s string) (hour, minute int, err error) {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("no H:MM AM/PM match")
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, fmt.Errorf("out of range")
	}
	meridiem := strings.ToUpper(m[3])
	if hour == 12 {
		hour = 0
	}
	if meridiem == "PM" {
		hour += 12
	}
	return hour, minute, nil
}

// parseDate parses an MM/DD/YYYY token, rejecting impossible dates.
func (p *Parser) parseDate(s string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || dateRe.FindString(strings.TrimSpace(s)) != strings.TrimSpace(s) {
		return time.Time{}, fmt.Errorf("not MM/DD/YYYY")
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.opts.Location)
	// time.Date normalizes overflow (02/30 becomes 03/02); treat that as malformed.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("impossible calendar date")
	}
	return t, nil
}

// parseDOB parses MM/DD/YYYY and renders it as YYYY-MM-DD.
func (p *Parser) parseDOB(s string) (string, error) {
	t, err := p.parseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
