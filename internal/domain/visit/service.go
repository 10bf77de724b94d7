package visit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ParseFunc converts pasted schedule text into draft records relative to a
// reference time, reporting skipped lines through the sink. The schedule
// package provides the implementation; the indirection keeps the domain free
// of a dependency on the parsing layer.
type ParseFunc func(text string, ref time.Time, sink func(string)) []Draft

// Service is the patient registry: the single mutation point for visit
// records. Mutations are serialized per instance; reads return snapshots and
// may run concurrently with a mutation.
type Service struct {
	mu sync.Mutex // serializes mutations

	repo    Repository
	machine *Machine
	clock   TimeSource
	parse   ParseFunc
	store   SnapshotStore // optional
	log     zerolog.Logger

	dirty bool
}

// NewService builds a registry over the given store. store may be nil when no
// persistence collaborator is configured; parse may be nil if text import is
// unused (the operation then reports no records).
func NewService(repo Repository, clock TimeSource, parse ParseFunc, store SnapshotStore, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		machine: NewMachine(clock),
		clock:   clock,
		parse:   parse,
		store:   store,
		log:     log.With().Str("component", "registry").Logger(),
	}
}

// Machine exposes the service's state machine for derived-figure reads.
func (s *Service) Machine() *Machine { return s.machine }

// AddPatient assigns an id to the draft and inserts it. A draft with an
// unrecognized status has already been folded to scheduled by the caller's
// ingestion path.
func (s *Service) AddPatient(ctx context.Context, d Draft) (*PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.insertDraft(d)
	if err != nil {
		return nil, err
	}
	s.markDirty(ctx)
	return rec, nil
}

func (s *Service) insertDraft(d Draft) (*PatientRecord, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("visit: draft requires a name")
	}
	if !d.Status.IsValid() {
		d.Status = StatusScheduled
	}
	now := s.clock.Now()
	rec := &PatientRecord{
		ID:              uuid.New(),
		Name:            d.Name,
		DOB:             d.DOB,
		Provider:        d.Provider,
		AppointmentTime: d.AppointmentTime,
		Status:          d.Status,
		CheckInTime:     d.CheckInTime,
		Room:            d.Room,
		AppointmentType: d.AppointmentType,
		ChiefComplaint:  d.ChiefComplaint,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateStatus runs a state-machine transition. Illegal regressions surface
// as ErrInvalidRegression with the record unchanged.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (*PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.machine.Transition(rec, target); err != nil {
		return nil, err
	}
	if err := s.repo.Update(rec); err != nil {
		return nil, err
	}
	s.markDirty(ctx)
	return rec, nil
}

// AssignRoom sets or clears the record's room slot.
func (s *Service) AssignRoom(ctx context.Context, id uuid.UUID, room string) (*PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	rec.Room = room
	rec.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(rec); err != nil {
		return nil, err
	}
	s.markDirty(ctx)
	return rec, nil
}

// SetCheckInTime is the manual correction path. It bypasses the
// set-once-on-transition rule and overwrites any existing check-in time.
func (s *Service) SetCheckInTime(ctx context.Context, id uuid.UUID, at time.Time) (*PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	t := at
	rec.CheckInTime = &t
	rec.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(rec); err != nil {
		return nil, err
	}
	s.markDirty(ctx)
	return rec, nil
}

// EditDemographics is the explicit edit operation for identity fields.
// Empty arguments leave the corresponding field untouched.
func (s *Service) EditDemographics(ctx context.Context, id uuid.UUID, name, dob, provider string) (*PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		rec.Name = name
	}
	if dob != "" {
		rec.DOB = dob
	}
	if provider != "" {
		rec.Provider = provider
	}
	rec.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(rec); err != nil {
		return nil, err
	}
	s.markDirty(ctx)
	return rec, nil
}

// GetByID returns a snapshot of one record.
func (s *Service) GetByID(_ context.Context, id uuid.UUID) (*PatientRecord, error) {
	return s.repo.Get(id)
}

// GetAll returns a snapshot of every record, ordered by appointment time.
func (s *Service) GetAll(_ context.Context) []*PatientRecord {
	return s.repo.All()
}

// GetByStatus returns a snapshot of records in the given status.
func (s *Service) GetByStatus(_ context.Context, status Status) []*PatientRecord {
	return s.repo.ByStatus(status)
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.markDirty(ctx)
	return nil
}

// Clear empties the registry.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo.Clear()
	s.markDirty(ctx)
}

// ImportText parses pasted schedule text and upserts the resulting drafts.
// A draft matching an existing record's name and appointment time replaces
// that record in place, keeping its id. Malformed lines were already skipped
// and logged by the parser; zero drafts is not an error.
func (s *Service) ImportText(ctx context.Context, raw string) (added, replaced, skipped int) {
	if s.parse == nil {
		return 0, 0, 0
	}
	sink := func(reason string) {
		skipped++
		s.log.Warn().Str("reason", reason).Msg("schedule line skipped")
	}
	drafts := s.parse(raw, s.clock.Now(), sink)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range drafts {
		if existing, err := s.repo.FindByNameAndTime(d.Name, d.AppointmentTime); err == nil {
			updated := *existing
			updated.DOB = d.DOB
			if d.Provider != "" {
				updated.Provider = d.Provider
			}
			updated.Status = d.Status
			if d.CheckInTime != nil {
				updated.CheckInTime = d.CheckInTime
			}
			if d.Room != "" {
				updated.Room = d.Room
			}
			if d.AppointmentType != "" {
				updated.AppointmentType = d.AppointmentType
			}
			if d.ChiefComplaint != "" {
				updated.ChiefComplaint = d.ChiefComplaint
			}
			updated.UpdatedAt = s.clock.Now()
			if err := s.repo.Update(&updated); err == nil {
				replaced++
			}
			continue
		}
		if _, err := s.insertDraft(d); err != nil {
			skipped++
			s.log.Warn().Err(err).Str("name", d.Name).Msg("draft rejected")
			continue
		}
		added++
	}
	if added > 0 || replaced > 0 {
		s.markDirty(ctx)
	}
	return added, replaced, skipped
}

// ImportJSON replaces the registry contents with a machine-generated export.
// Any structural violation aborts the whole import; nothing is replaced.
func (s *Service) ImportJSON(ctx context.Context, data []byte) ([]*PatientRecord, error) {
	records, err := ImportJSON(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo.ReplaceAll(records)
	s.markDirty(ctx)
	return records, nil
}

// ExportJSON serializes the full registry.
func (s *Service) ExportJSON(_ context.Context) ([]byte, error) {
	return ExportJSON(s.repo.All())
}

// Metrics computes the aggregate board figures.
func (s *Service) Metrics(_ context.Context) MetricsSnapshot {
	return s.machine.Metrics(s.repo.All())
}

// Restore loads the last snapshot from the persistence collaborator, if one
// is configured.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("visit: restore snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo.ReplaceAll(records)
	s.dirty = false
	return nil
}

// markDirty notes unsaved state. Persistence is fire-and-forget: the
// operation that dirtied the registry has already been confirmed.
func (s *Service) markDirty(context.Context) {
	s.dirty = true
}

// AutoPersist drains clock ticks and saves the registry every everyTicks
// ticks while dirty. It returns when ticks closes or ctx is done. Failures
// are logged and retried on the next interval, never surfaced to mutators.
func (s *Service) AutoPersist(ctx context.Context, ticks <-chan uint64, everyTicks uint64) {
	if s.store == nil || everyTicks == 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return
		case n, ok := <-ticks:
			if !ok {
				return
			}
			if n%everyTicks == 0 {
				s.flush(ctx)
			}
		}
	}
}

func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	records := s.repo.All()
	s.dirty = false
	s.mu.Unlock()

	if err := s.store.Save(ctx, records); err != nil {
		s.log.Error().Err(err).Msg("snapshot save failed")
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}
