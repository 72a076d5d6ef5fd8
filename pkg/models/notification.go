package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SignalType tags one kind of outbound state-change signal.
type SignalType string

const (
	SignalEventCreated        SignalType = "event_created"
	SignalEventUpdated        SignalType = "event_updated"
	SignalEventCancelled      SignalType = "event_cancelled"
	SignalEventConfirmed      SignalType = "event_confirmed"
	SignalRescheduleRequested SignalType = "reschedule_requested"
	SignalRescheduleRejected  SignalType = "reschedule_rejected"
)

// Signal is the wire envelope posted to the webhook endpoint.
type Signal struct {
	Type    SignalType  `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventPayload accompanies event_created, event_updated and
// event_cancelled signals.
type EventPayload struct {
	EventID      uuid.UUID   `json:"eventId"`
	ConsultantID uuid.UUID   `json:"consultantId"`
	Title        string      `json:"title"`
	StartAt      time.Time   `json:"startAt"`
	EndAt        time.Time   `json:"endAt"`
	Status       EventStatus `json:"status"`
	ClinicIDs    []uuid.UUID `json:"clinicIds"`
}

// ConfirmPayload accompanies event_confirmed signals.
type ConfirmPayload struct {
	EventID  uuid.UUID   `json:"eventId"`
	ClinicID uuid.UUID   `json:"clinicId"`
	Status   EventStatus `json:"status"`
}

// ReschedulePayload accompanies reschedule_requested and
// reschedule_rejected signals.
type ReschedulePayload struct {
	RequestID        uuid.UUID  `json:"requestId"`
	EventID          uuid.UUID  `json:"eventId"`
	ClinicID         uuid.UUID  `json:"clinicId"`
	Reason           string     `json:"reason"`
	SuggestedStartAt *time.Time `json:"suggestedStartAt"`
	SuggestedEndAt   *time.Time `json:"suggestedEndAt"`
}

type NotificationTarget string

const (
	TargetConsultant NotificationTarget = "consultant"
	TargetClinic     NotificationTarget = "clinic"
)

// Notification is one persisted in-app inbox row. The engine only writes
// these, it never reads them back.
type Notification struct {
	ID        int64              `json:"id" db:"id"`
	Target    NotificationTarget `json:"target" db:"target"`
	ClinicID  *uuid.UUID         `json:"clinicId" db:"clinic_id"`
	ToUserID  *uuid.UUID         `json:"toUserId" db:"to_user_id"`
	Type      SignalType         `json:"type" db:"type"`
	Payload   json.RawMessage    `json:"payload" db:"payload"`
	ReadAt    *time.Time         `json:"readAt" db:"read_at"`
	CreatedAt time.Time          `json:"createdAt" db:"created_at"`
}
