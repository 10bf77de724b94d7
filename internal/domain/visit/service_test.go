package visit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fakeStore records snapshot saves for assertions.
type fakeStore struct {
	mu     sync.Mutex
	saved  [][]*PatientRecord
	loaded []*PatientRecord
	err    error
}

func (f *fakeStore) Save(_ context.Context, records []*PatientRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, records)
	return nil
}

func (f *fakeStore) Load(context.Context) ([]*PatientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded, f.err
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newTestService(parse ParseFunc, store SnapshotStore) (*Service, *fakeClock) {
	fc := &fakeClock{now: time.Date(2025, 6, 28, 8, 0, 0, 0, time.Local)}
	return NewService(NewMemoryRepo(), fc, parse, store, zerolog.Nop()), fc
}

func draft(name string, at time.Time) Draft {
	return Draft{
		Name:            name,
		DOB:             "1970-01-01",
		Provider:        "Dr. Rudman",
		AppointmentTime: at,
		Status:          StatusScheduled,
	}
}

func TestAddPatientAssignsID(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	rec, err := svc.AddPatient(ctx, draft("TONYA LEWIS", fc.now.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("id not assigned")
	}

	got, err := svc.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "TONYA LEWIS" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestAddPatientFoldsInvalidStatus(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	d := draft("A", fc.now)
	d.Status = Status("weird")

	rec, err := svc.AddPatient(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", rec.Status)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	rec, err := svc.AddPatient(ctx, draft("TONYA LEWIS", fc.now.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateStatus(ctx, rec.ID, StatusArrived)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusArrived || updated.CheckInTime == nil {
		t.Errorf("got %s / %v", updated.Status, updated.CheckInTime)
	}

	// Regression must surface and leave the stored record untouched.
	if _, err := svc.UpdateStatus(ctx, rec.ID, StatusConfirmed); !errors.Is(err, ErrInvalidRegression) {
		t.Errorf("got %v, want ErrInvalidRegression", err)
	}
	stored, _ := svc.GetByID(ctx, rec.ID)
	if stored.Status != StatusArrived {
		t.Errorf("stored status = %s after rejected transition", stored.Status)
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), StatusArrived)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSetCheckInTimeBypassesSetOnce(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	rec, _ := svc.AddPatient(ctx, draft("A", fc.now))
	if _, err := svc.UpdateStatus(ctx, rec.ID, StatusArrived); err != nil {
		t.Fatal(err)
	}

	corrected := fc.now.Add(-time.Hour)
	updated, err := svc.SetCheckInTime(ctx, rec.ID, corrected)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.CheckInTime.Equal(corrected) {
		t.Errorf("checkInTime = %v, want %v", updated.CheckInTime, corrected)
	}
}

func TestAssignRoomAndEditDemographics(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	rec, _ := svc.AddPatient(ctx, draft("A", fc.now))

	if _, err := svc.AssignRoom(ctx, rec.ID, "Exam 2"); err != nil {
		t.Fatal(err)
	}
	updated, err := svc.EditDemographics(ctx, rec.ID, "ANNA B", "", "Dr. Osei")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Room != "Exam 2" || updated.Name != "ANNA B" || updated.Provider != "Dr. Osei" {
		t.Errorf("edit result %+v", updated)
	}
	if updated.DOB != "1970-01-01" {
		t.Errorf("empty dob argument overwrote field: %q", updated.DOB)
	}
}

func TestGetByStatusAndDelete(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	a, _ := svc.AddPatient(ctx, draft("A", fc.now.Add(time.Hour)))
	b, _ := svc.AddPatient(ctx, draft("B", fc.now.Add(2*time.Hour)))
	if _, err := svc.UpdateStatus(ctx, b.ID, StatusArrived); err != nil {
		t.Fatal(err)
	}

	if got := svc.GetByStatus(ctx, StatusArrived); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("GetByStatus(arrived) = %v", got)
	}

	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if got := svc.GetAll(ctx); len(got) != 1 {
		t.Errorf("after delete: %d records", len(got))
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestImportTextAddsAndReplaces(t *testing.T) {
	at := time.Date(2025, 6, 28, 9, 0, 0, 0, time.Local)
	calls := 0
	parse := func(text string, ref time.Time, sink func(string)) []Draft {
		calls++
		if strings.Contains(text, "bad") {
			sink("line 1: unrecognized layout")
		}
		d := draft("TONYA LEWIS", at)
		d.Status = StatusConfirmed
		return []Draft{d}
	}

	svc, _ := newTestService(parse, nil)
	ctx := context.Background()

	added, replaced, skipped := svc.ImportText(ctx, "good")
	if added != 1 || replaced != 0 || skipped != 0 {
		t.Fatalf("first import: added=%d replaced=%d skipped=%d", added, replaced, skipped)
	}
	first := svc.GetAll(ctx)[0]

	// Same name and slot comes back with a later status: replace, keep id.
	added, replaced, skipped = svc.ImportText(ctx, "bad paste retry")
	if added != 0 || replaced != 1 || skipped != 1 {
		t.Fatalf("second import: added=%d replaced=%d skipped=%d", added, replaced, skipped)
	}
	all := svc.GetAll(ctx)
	if len(all) != 1 {
		t.Fatalf("%d records after re-import, want 1", len(all))
	}
	if all[0].ID != first.ID {
		t.Error("replacement changed the record id")
	}
	if calls != 2 {
		t.Errorf("parser invoked %d times", calls)
	}
}

func TestImportTextWithoutParser(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	if a, r, s := svc.ImportText(context.Background(), "whatever"); a != 0 || r != 0 || s != 0 {
		t.Errorf("got %d/%d/%d, want zeros", a, r, s)
	}
}

func TestImportExportJSONRoundTripThroughService(t *testing.T) {
	svc, fc := newTestService(nil, nil)
	ctx := context.Background()

	if _, err := svc.AddPatient(ctx, draft("TONYA LEWIS", fc.now.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	data, err := svc.ExportJSON(ctx)
	if err != nil {
		t.Fatal(err)
	}

	other, _ := newTestService(nil, nil)
	recs, err := other.ImportJSON(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Name != "TONYA LEWIS" {
		t.Errorf("round trip through service failed: %+v", recs)
	}

	var mfe *MissingFieldError
	if _, err := other.ImportJSON(ctx, []byte(`[{"name":"X"}]`)); !errors.As(err, &mfe) {
		t.Errorf("got %v, want MissingFieldError", err)
	}
}

func TestRestore(t *testing.T) {
	store := &fakeStore{loaded: []*PatientRecord{{ID: uuid.New(), Name: "SAVED", DOB: "1970-01-01", Provider: "P", Status: StatusScheduled}}}
	svc, _ := newTestService(nil, store)

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := svc.GetAll(context.Background()); len(got) != 1 || got[0].Name != "SAVED" {
		t.Errorf("restore loaded %v", got)
	}
}

func TestAutoPersistSavesOnTickMultiples(t *testing.T) {
	store := &fakeStore{}
	svc, fc := newTestService(nil, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.AddPatient(ctx, draft("A", fc.now)); err != nil {
		t.Fatal(err)
	}

	ticks := make(chan uint64)
	done := make(chan struct{})
	go func() {
		svc.AutoPersist(ctx, ticks, 3)
		close(done)
	}()

	ticks <- 1
	ticks <- 2
	if store.saveCount() != 0 {
		t.Error("saved before the interval elapsed")
	}
	ticks <- 3
	close(ticks)
	<-done

	if store.saveCount() != 1 {
		t.Errorf("saveCount = %d, want 1", store.saveCount())
	}

	// Clean state: another cycle with no mutations saves nothing.
	ticks2 := make(chan uint64)
	done2 := make(chan struct{})
	go func() {
		svc.AutoPersist(ctx, ticks2, 3)
		close(done2)
	}()
	ticks2 <- 6
	close(ticks2)
	<-done2
	if store.saveCount() != 1 {
		t.Errorf("clean registry still saved: %d", store.saveCount())
	}
}
