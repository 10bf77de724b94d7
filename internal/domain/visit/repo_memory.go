package visit

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo is the in-memory registry store. It hands out clones on every
// read so callers can hold snapshots while mutations continue.
type memoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*PatientRecord
}

// NewMemoryRepo creates an empty in-memory record store.
func NewMemoryRepo() Repository {
	return &memoryRepo{records: make(map[uuid.UUID]*PatientRecord)}
}

func (r *memoryRepo) Insert(rec *PatientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return ErrDuplicateID
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memoryRepo) Get(id uuid.UUID) (*PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memoryRepo) Update(rec *PatientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return ErrNotFound
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memoryRepo) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) All() []*PatientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PatientRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sortByAppointment(out)
	return out
}

func (r *memoryRepo) ByStatus(s Status) []*PatientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*PatientRecord
	for _, rec := range r.records {
		if rec.Status == s {
			out = append(out, rec.Clone())
		}
	}
	sortByAppointment(out)
	return out
}

func (r *memoryRepo) FindByNameAndTime(name string, at time.Time) (*PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if strings.EqualFold(rec.Name, name) && rec.AppointmentTime.Equal(at) {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) ReplaceAll(records []*PatientRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[uuid.UUID]*PatientRecord, len(records))
	for _, rec := range records {
		r.records[rec.ID] = rec.Clone()
	}
}

func (r *memoryRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[uuid.UUID]*PatientRecord)
}

func sortByAppointment(records []*PatientRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].AppointmentTime.Equal(records[j].AppointmentTime) {
			return records[i].Name < records[j].Name
		}
		return records[i].AppointmentTime.Before(records[j].AppointmentTime)
	})
}
