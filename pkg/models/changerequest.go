package models

import (
	"time"

	"github.com/google/uuid"
)

type ChangeRequestStatus string

const (
	RequestOpen      ChangeRequestStatus = "open"
	RequestAccepted  ChangeRequestStatus = "accepted"
	RequestRejected  ChangeRequestStatus = "rejected"
	RequestCancelled ChangeRequestStatus = "cancelled"
)

// ChangeRequest is one reschedule negotiation raised by a clinic against
// an event. Resolved requests are kept for audit and never mutated again.
type ChangeRequest struct {
	ID               uuid.UUID           `json:"id" db:"id"`
	EventID          uuid.UUID           `json:"eventId" db:"event_id"`
	ClinicID         uuid.UUID           `json:"clinicId" db:"clinic_id"`
	RequestedBy      uuid.UUID           `json:"requestedBy" db:"requested_by"`
	Reason           string              `json:"reason" db:"reason"`
	SuggestedStartAt *time.Time          `json:"suggestedStartAt" db:"suggested_start_at"`
	SuggestedEndAt   *time.Time          `json:"suggestedEndAt" db:"suggested_end_at"`
	Status           ChangeRequestStatus `json:"status" db:"status"`
	HandledBy        *uuid.UUID          `json:"handledBy" db:"handled_by"`
	HandledAt        *time.Time          `json:"handledAt" db:"handled_at"`
	CreatedAt        time.Time           `json:"createdAt" db:"created_at"`
}

// RescheduleRequest is the payload a clinic sends to open a negotiation.
type RescheduleRequest struct {
	ClinicID         uuid.UUID  `json:"clinicId"`
	RequestedBy      uuid.UUID  `json:"requestedBy"`
	Reason           string     `json:"reason"`
	SuggestedStartAt *time.Time `json:"suggestedStartAt"`
	SuggestedEndAt   *time.Time `json:"suggestedEndAt"`
}

// ResolveRequest is the payload the owner sends to accept or reject. On
// accept StartAt/EndAt override the request's suggested time when set.
type ResolveRequest struct {
	HandledBy uuid.UUID  `json:"handledBy"`
	StartAt   *time.Time `json:"startAt"`
	EndAt     *time.Time `json:"endAt"`
}
