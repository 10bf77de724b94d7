package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record id is absent from the registry.
var ErrNotFound = errors.New("visit: patient record not found")

// ErrDuplicateID is returned when inserting a record whose id already exists.
var ErrDuplicateID = errors.New("visit: duplicate patient record id")

// Repository is the registry's record store. The canonical implementation is
// in-memory; implementations must hand out snapshots, never aliases of their
// internal state.
type Repository interface {
	Insert(rec *PatientRecord) error
	Get(id uuid.UUID) (*PatientRecord, error)
	Update(rec *PatientRecord) error
	Delete(id uuid.UUID) error
	All() []*PatientRecord
	ByStatus(s Status) []*PatientRecord
	FindByNameAndTime(name string, at time.Time) (*PatientRecord, error)
	ReplaceAll(records []*PatientRecord)
	Clear()
}

// SnapshotStore is the external persistence sink. The core treats it as
// fire-and-forget: a transition is confirmed before (and regardless of) any
// storage commit. Implementations only need to round-trip the record list
// faithfully.
type SnapshotStore interface {
	Save(ctx context.Context, records []*PatientRecord) error
	Load(ctx context.Context) ([]*PatientRecord, error)
}
