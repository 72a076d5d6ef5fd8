package models

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventPendingConfirmation EventStatus = "pending_confirmation"
	EventConfirmed           EventStatus = "confirmed"
	EventRescheduleRequested EventStatus = "reschedule_requested"
	EventRescheduled         EventStatus = "rescheduled"
	EventCancelled           EventStatus = "cancelled"
)

// Event is one meeting owned by exactly one consultant. The interval is
// half-open: [StartAt, EndAt). Events are never deleted, only cancelled.
type Event struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	ConsultantID   uuid.UUID   `json:"consultantId" db:"consultant_id"`
	Title          string      `json:"title" db:"title"`
	Description    string      `json:"description" db:"description"`
	StartAt        time.Time   `json:"startAt" db:"start_at"`
	EndAt          time.Time   `json:"endAt" db:"end_at"`
	Timezone       string      `json:"timezone" db:"timezone"`
	Location       string      `json:"location" db:"location"`
	MeetingURL     string      `json:"meetingUrl" db:"meeting_url"`
	Status         EventStatus `json:"status" db:"status"`
	RecurrenceRule string      `json:"recurrenceRule" db:"recurrence_rule"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}

// EventRequest carries a create or partial-update payload. Nil fields are
// left untouched on update. ClinicIDs, when present, replaces the whole
// attendee set.
type EventRequest struct {
	ConsultantID   *uuid.UUID  `json:"consultantId" db:"consultant_id"`
	Title          *string     `json:"title" db:"title"`
	Description    *string     `json:"description" db:"description"`
	StartAt        *time.Time  `json:"startAt" db:"start_at"`
	EndAt          *time.Time  `json:"endAt" db:"end_at"`
	Timezone       *string     `json:"timezone" db:"timezone"`
	Location       *string     `json:"location" db:"location"`
	MeetingURL     *string     `json:"meetingUrl" db:"meeting_url"`
	RecurrenceRule *string     `json:"recurrenceRule" db:"recurrence_rule"`
	ClinicIDs      []uuid.UUID `json:"clinicIds" db:"-"`
}

// Interval is a half-open [Start, End) span of busy or free time.
type Interval struct {
	Start time.Time `json:"start" db:"start_at"`
	End   time.Time `json:"end" db:"end_at"`
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// WorkingHours bounds slot suggestions: allowed weekdays plus a daily
// window given as "15:04" wall-clock strings.
type WorkingHours struct {
	Days     []time.Weekday `json:"days"`
	DayStart string         `json:"dayStart"`
	DayEnd   string         `json:"dayEnd"`
}

// SuggestParams are the inputs of a free-slot search.
type SuggestParams struct {
	ConsultantID    uuid.UUID    `json:"consultantId"`
	DurationMinutes int          `json:"durationMinutes"`
	RangeStart      time.Time    `json:"rangeStart"`
	RangeEnd        time.Time    `json:"rangeEnd"`
	Working         WorkingHours `json:"workingHours"`
	BufferMinutes   int          `json:"bufferMinutes"`
	StepMinutes     int          `json:"stepMinutes"`
	Limit           int          `json:"limit"`
}
