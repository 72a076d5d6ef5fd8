// Package service implements the scheduling engine: event lifecycle,
// conflict detection, slot suggestion, attendance confirmation and the
// reschedule negotiation workflow.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avelichko/consulta/pkg/models"
)

// Relay signals committed state changes to external systems. Delivery is
// best-effort: errors are logged by the service and never surfaced.
type Relay interface {
	Publish(ctx context.Context, signal models.Signal) error
}

// BusySource contributes extra busy intervals to the slot search, e.g.
// from an external calendar.
type BusySource interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error)
}

// Store is the persistence surface the engine runs against. The multi-row
// methods (CreateEvent, UpdateEvent, ConfirmAttendance, DeclineAttendance,
// CreateChangeRequest, ResolveChangeRequest) must each execute as one
// atomic transaction, and CreateEvent/UpdateEvent must reject overlapping
// intervals at the storage level with models.ErrSchedulingConflict.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error)
	ListEventsForConsultant(ctx context.Context, consultantID uuid.UUID, from, to *time.Time) ([]models.Event, error)
	ListEventsForClinic(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]models.Event, error)
	Overlaps(ctx context.Context, consultantID uuid.UUID, startAt, endAt time.Time, excludeEventID *uuid.UUID) (bool, error)
	BusyIntervals(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]models.Interval, error)
	CreateEvent(ctx context.Context, event models.Event, clinicIDs []uuid.UUID) (models.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, event models.Event, clinicIDs []uuid.UUID, forceStatus *models.EventStatus) (models.Event, error)
	CancelEvent(ctx context.Context, id uuid.UUID) (models.Event, error)
	Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
	ConfirmAttendance(ctx context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error)
	DeclineAttendance(ctx context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error)
	CreateChangeRequest(ctx context.Context, req models.ChangeRequest) (models.ChangeRequest, error)
	GetChangeRequest(ctx context.Context, id uuid.UUID) (models.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, eventID uuid.UUID) ([]models.ChangeRequest, error)
	ResolveChangeRequest(ctx context.Context, id uuid.UUID, status models.ChangeRequestStatus, handledBy *uuid.UUID) (models.ChangeRequest, models.Event, error)
	SaveNotification(ctx context.Context, n models.Notification) error
}

type ScheduleService struct {
	log      *logrus.Entry
	store    Store
	relay    Relay
	external BusySource
}

func New(log *logrus.Logger, store Store, relay Relay) *ScheduleService {
	s := ScheduleService{
		log:   log.WithField("component", "service"),
		store: store,
		relay: relay,
	}
	return &s
}

// WithBusySource attaches an external busy-interval provider consulted by
// the slot suggester.
func (s *ScheduleService) WithBusySource(src BusySource) *ScheduleService {
	s.external = src
	return s
}
