package visit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MissingFieldError identifies the element and field that made a JSON import
// fail. Unlike pasted schedule text, JSON input is machine-generated, so a
// missing required field is a hard failure rather than a skipped row.
type MissingFieldError struct {
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("visit: record %d missing required field %q", e.Index, e.Field)
}

// jsonRecord mirrors PatientRecord with pointer fields so absence is
// distinguishable from zero values during import validation.
type jsonRecord struct {
	ID              *uuid.UUID     `json:"id"`
	Name            *string        `json:"name"`
	DOB             *string        `json:"dob"`
	Provider        *string        `json:"provider"`
	AppointmentTime *time.Time     `json:"appointmentTime"`
	Status          *string        `json:"status"`
	CheckInTime     *time.Time     `json:"checkInTime"`
	WithDoctorTime  *time.Time     `json:"withDoctorTime"`
	CompletedTime   *time.Time     `json:"completedTime"`
	Room            string         `json:"room"`
	AppointmentType string         `json:"appointmentType"`
	ChiefComplaint  string         `json:"chiefComplaint"`
	StatusHistory   []StatusChange `json:"statusHistory"`
	CreatedAt       *time.Time     `json:"createdAt"`
	UpdatedAt       *time.Time     `json:"updatedAt"`
}

// ImportJSON decodes an exported record set. Every element must carry id,
// name, dob, appointmentTime, provider and status; the first violation
// aborts the whole import with a MissingFieldError naming index and field.
// Status wording is still folded through NormalizeStatus for tolerance
// against external status vocabularies.
func ImportJSON(data []byte) ([]*PatientRecord, error) {
	var raw []jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("visit: decode import payload: %w", err)
	}

	records := make([]*PatientRecord, 0, len(raw))
	for i, jr := range raw {
		switch {
		case jr.ID == nil:
			return nil, &MissingFieldError{Index: i, Field: "id"}
		case jr.Name == nil || *jr.Name == "":
			return nil, &MissingFieldError{Index: i, Field: "name"}
		case jr.DOB == nil || *jr.DOB == "":
			return nil, &MissingFieldError{Index: i, Field: "dob"}
		case jr.AppointmentTime == nil:
			return nil, &MissingFieldError{Index: i, Field: "appointmentTime"}
		case jr.Provider == nil || *jr.Provider == "":
			return nil, &MissingFieldError{Index: i, Field: "provider"}
		case jr.Status == nil:
			return nil, &MissingFieldError{Index: i, Field: "status"}
		}

		rec := &PatientRecord{
			ID:              *jr.ID,
			Name:            *jr.Name,
			DOB:             *jr.DOB,
			Provider:        *jr.Provider,
			AppointmentTime: *jr.AppointmentTime,
			Status:          NormalizeStatus(*jr.Status),
			CheckInTime:     jr.CheckInTime,
			WithDoctorTime:  jr.WithDoctorTime,
			CompletedTime:   jr.CompletedTime,
			Room:            jr.Room,
			AppointmentType: jr.AppointmentType,
			ChiefComplaint:  jr.ChiefComplaint,
			StatusHistory:   jr.StatusHistory,
		}
		if jr.CreatedAt != nil {
			rec.CreatedAt = *jr.CreatedAt
		}
		if jr.UpdatedAt != nil {
			rec.UpdatedAt = *jr.UpdatedAt
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExportJSON serializes the full record set. ImportJSON(ExportJSON(r))
// yields an equal record set.
func ExportJSON(records []*PatientRecord) ([]byte, error) {
	if records == nil {
		records = []*PatientRecord{}
	}
	return json.Marshal(records)
}
