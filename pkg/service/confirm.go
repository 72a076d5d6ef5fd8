package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// ConfirmAttendance marks one clinic's attendance confirmed and rolls the
// aggregate event status up to confirmed once every attendee has
// confirmed. The attendee update and the rollup run as one store
// transaction so concurrent confirmations cannot lose updates.
func (s *ScheduleService) ConfirmAttendance(ctx context.Context, eventID uuid.UUID, req models.ConfirmRequest) (models.Event, error) {
	if req.ClinicID == uuid.Nil {
		return models.Event{}, fmt.Errorf("%w: clinicId is required", models.ErrValidation)
	}
	event, err := s.store.ConfirmAttendance(ctx, eventID, req.ClinicID, req.UserID)
	if err != nil {
		return models.Event{}, fmt.Errorf("err confirming attendance: %w", err)
	}
	s.signal(ctx, models.SignalEventConfirmed, models.ConfirmPayload{
		EventID:  eventID,
		ClinicID: req.ClinicID,
		Status:   event.Status,
	}, []uuid.UUID{req.ClinicID})
	return event, nil
}

// DeclineAttendance marks one clinic's attendance declined. A declined
// attendee keeps the event out of the confirmed state; a previously
// confirmed event drops back to pending_confirmation.
func (s *ScheduleService) DeclineAttendance(ctx context.Context, eventID uuid.UUID, req models.ConfirmRequest) (models.Event, error) {
	if req.ClinicID == uuid.Nil {
		return models.Event{}, fmt.Errorf("%w: clinicId is required", models.ErrValidation)
	}
	event, err := s.store.DeclineAttendance(ctx, eventID, req.ClinicID, req.UserID)
	if err != nil {
		return models.Event{}, fmt.Errorf("err declining attendance: %w", err)
	}
	s.signal(ctx, models.SignalEventUpdated, models.ConfirmPayload{
		EventID:  eventID,
		ClinicID: req.ClinicID,
		Status:   event.Status,
	}, []uuid.UUID{req.ClinicID})
	return event, nil
}
