package scheduling

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

// Status is the scheduling state of a visit. Only a scheduled visit may
// receive a visit note.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
)

// ParseStatus accepts the two known statuses in any letter case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusScheduled:
		return StatusScheduled, nil
	}
	return "", apperrors.NewInvalidInputError("status must be 'pending' or 'scheduled'")
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Visit maps to the visits table.
type Visit struct {
	VisitID       int             `db:"visit_id" json:"visitID"`
	VisitType     string          `db:"visit_type" json:"visitType"`
	VisitTypeID   *int            `db:"visit_type_id" json:"visitTypeID,omitempty"`
	VisitDuration int             `db:"visit_duration" json:"visitDuration"`
	VisitDate     time.Time       `db:"visit_date" json:"visitDate"`
	VisitFee      decimal.Decimal `db:"visit_fee" json:"visitFee"`
	PatientID     int             `db:"patient_id" json:"patientID"`
	DoctorID      int             `db:"doctor_id" json:"doctorID"`
	Status        Status          `db:"status" json:"status"`
}

// FeeSchedule maps to the fee_schedule table.
type FeeSchedule struct {
	FeeID        int             `db:"fee_id" json:"feeID"`
	VisitType    string          `db:"visit_type" json:"visitType"`
	FeePerMinute decimal.Decimal `db:"fee_per_minute" json:"feePerMinute"`
}

// VisitFilter narrows List. Zero values mean "no filter".
type VisitFilter struct {
	Status    Status
	PatientID int
	DoctorID  int
	From      *time.Time
	To        *time.Time
}
