package visit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgSnapshotStore persists registry snapshots to the patient_visit table.
// Save replaces the whole table inside one transaction so a snapshot is
// always internally consistent.
type pgSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPgSnapshotStore returns a SnapshotStore backed by PostgreSQL.
func NewPgSnapshotStore(pool *pgxpool.Pool) SnapshotStore {
	return &pgSnapshotStore{pool: pool}
}

func (s *pgSnapshotStore) Save(ctx context.Context, records []*PatientRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE patient_visit`); err != nil {
		return fmt.Errorf("truncate patient_visit: %w", err)
	}

	for _, rec := range records {
		history, err := json.Marshal(rec.StatusHistory)
		if err != nil {
			return fmt.Errorf("marshal status history for %s: %w", rec.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO patient_visit (
				id, name, dob, provider, appointment_time, status,
				check_in_time, with_doctor_time, completed_time,
				room, appointment_type, chief_complaint,
				status_history, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			rec.ID, rec.Name, rec.DOB, rec.Provider, rec.AppointmentTime, string(rec.Status),
			rec.CheckInTime, rec.WithDoctorTime, rec.CompletedTime,
			rec.Room, rec.AppointmentType, rec.ChiefComplaint,
			history, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert patient_visit %s: %w", rec.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *pgSnapshotStore) Load(ctx context.Context) ([]*PatientRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, dob, provider, appointment_time, status,
		       check_in_time, with_doctor_time, completed_time,
		       room, appointment_type, chief_complaint,
		       status_history, created_at, updated_at
		FROM patient_visit
		ORDER BY appointment_time, name`)
	if err != nil {
		return nil, fmt.Errorf("query patient_visit: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*PatientRecord, error) {
		var rec PatientRecord
		var status string
		var history []byte
		if err := row.Scan(
			&rec.ID, &rec.Name, &rec.DOB, &rec.Provider, &rec.AppointmentTime, &status,
			&rec.CheckInTime, &rec.WithDoctorTime, &rec.CompletedTime,
			&rec.Room, &rec.AppointmentType, &rec.ChiefComplaint,
			&history, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		if len(history) > 0 {
			if err := json.Unmarshal(history, &rec.StatusHistory); err != nil {
				return nil, fmt.Errorf("unmarshal status history for %s: %w", rec.ID, err)
			}
		}
		return &rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan patient_visit rows: %w", err)
	}

	return records, nil
}
