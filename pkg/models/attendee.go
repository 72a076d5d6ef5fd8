package models

import (
	"time"

	"github.com/google/uuid"
)

type ConfirmStatus string

const (
	ConfirmPending   ConfirmStatus = "pending"
	ConfirmConfirmed ConfirmStatus = "confirmed"
	ConfirmDeclined  ConfirmStatus = "declined"
)

// Attendee joins one event with one attending clinic. The (EventID,
// ClinicID) pair is unique; rows are replaced wholesale when the parent
// event's attendee set changes.
type Attendee struct {
	EventID       uuid.UUID     `json:"eventId" db:"event_id"`
	ClinicID      uuid.UUID     `json:"clinicId" db:"clinic_id"`
	ConfirmStatus ConfirmStatus `json:"confirmStatus" db:"confirm_status"`
	ConfirmedBy   *uuid.UUID    `json:"confirmedBy" db:"confirmed_by"`
	ConfirmedAt   *time.Time    `json:"confirmedAt" db:"confirmed_at"`
}

// ConfirmRequest identifies the clinic user acknowledging an event.
type ConfirmRequest struct {
	ClinicID uuid.UUID `json:"clinicId"`
	UserID   uuid.UUID `json:"userId"`
}
