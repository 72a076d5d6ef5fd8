package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// CreateEvent validates the request, runs the advisory conflict check and
// inserts the event together with its pending attendee rows. The storage
// exclusion constraint backstops the check: a losing racer surfaces as the
// same models.ErrSchedulingConflict.
func (s *ScheduleService) CreateEvent(ctx context.Context, req models.EventRequest) (models.Event, error) {
	switch {
	case req.ConsultantID == nil:
		return models.Event{}, fmt.Errorf("%w: consultantId is required", models.ErrValidation)
	case req.Title == nil || *req.Title == "":
		return models.Event{}, fmt.Errorf("%w: title is required", models.ErrValidation)
	case req.StartAt == nil || req.EndAt == nil:
		return models.Event{}, fmt.Errorf("%w: startAt and endAt are required", models.ErrValidation)
	case !req.StartAt.Before(*req.EndAt):
		return models.Event{}, fmt.Errorf("%w: startAt must be before endAt", models.ErrValidation)
	case len(req.ClinicIDs) == 0:
		return models.Event{}, fmt.Errorf("%w: at least one clinic is required", models.ErrValidation)
	}
	busy, err := s.store.Overlaps(ctx, *req.ConsultantID, *req.StartAt, *req.EndAt, nil)
	if err != nil {
		return models.Event{}, fmt.Errorf("err checking conflicts: %w", err)
	}
	if busy {
		return models.Event{}, fmt.Errorf("%w: consultant is busy in [%s, %s)", models.ErrSchedulingConflict, req.StartAt, req.EndAt)
	}
	event := models.Event{
		ID:           uuid.New(),
		ConsultantID: *req.ConsultantID,
		Title:        *req.Title,
		StartAt:      *req.StartAt,
		EndAt:        *req.EndAt,
		Timezone:     "UTC",
		Status:       models.EventPendingConfirmation,
	}
	applyOptional(&event, req)
	created, err := s.store.CreateEvent(ctx, event, req.ClinicIDs)
	if err != nil {
		return models.Event{}, fmt.Errorf("err creating event: %w", err)
	}
	s.signal(ctx, models.SignalEventCreated, eventPayload(created, req.ClinicIDs), req.ClinicIDs)
	return created, nil
}

// UpdateEvent merges a partial update into the stored event, re-running
// the conflict check (excluding the event itself) whenever the interval or
// the consultant changes. A non-nil ClinicIDs replaces the attendee set
// wholesale and resets every confirmation to pending. forceStatus, when
// given, overrides the status transition; callers use it for the
// rescheduled transition.
func (s *ScheduleService) UpdateEvent(ctx context.Context, id uuid.UUID, req models.EventRequest, forceStatus *models.EventStatus) (models.Event, error) {
	current, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("err loading event %s: %w", id, err)
	}
	if current.Status == models.EventCancelled {
		return models.Event{}, fmt.Errorf("%w: event %s is cancelled", models.ErrNotFound, id)
	}
	merged := current
	timeTouched := false
	if req.ConsultantID != nil {
		merged.ConsultantID = *req.ConsultantID
		timeTouched = true
	}
	if req.StartAt != nil {
		merged.StartAt = *req.StartAt
		timeTouched = true
	}
	if req.EndAt != nil {
		merged.EndAt = *req.EndAt
		timeTouched = true
	}
	if req.Title != nil {
		if *req.Title == "" {
			return models.Event{}, fmt.Errorf("%w: title must not be empty", models.ErrValidation)
		}
		merged.Title = *req.Title
	}
	applyOptional(&merged, req)
	if !merged.StartAt.Before(merged.EndAt) {
		return models.Event{}, fmt.Errorf("%w: startAt must be before endAt", models.ErrValidation)
	}
	if req.ClinicIDs != nil && len(req.ClinicIDs) == 0 {
		return models.Event{}, fmt.Errorf("%w: attendee set must not be empty", models.ErrValidation)
	}
	if timeTouched {
		busy, err := s.store.Overlaps(ctx, merged.ConsultantID, merged.StartAt, merged.EndAt, &id)
		if err != nil {
			return models.Event{}, fmt.Errorf("err checking conflicts: %w", err)
		}
		if busy {
			return models.Event{}, fmt.Errorf("%w: consultant is busy in [%s, %s)", models.ErrSchedulingConflict, merged.StartAt, merged.EndAt)
		}
	}
	updated, err := s.store.UpdateEvent(ctx, id, merged, req.ClinicIDs, forceStatus)
	if err != nil {
		return models.Event{}, fmt.Errorf("err updating event %s: %w", id, err)
	}
	clinicIDs := req.ClinicIDs
	if clinicIDs == nil {
		if clinicIDs, err = s.attendeeClinics(ctx, id); err != nil {
			s.log.Warnf("err loading attendees for fan-out: %v", err)
		}
	}
	s.signal(ctx, models.SignalEventUpdated, eventPayload(updated, clinicIDs), clinicIDs)
	return updated, nil
}

// CancelEvent flips the event into its terminal state. No conflict check
// is needed, cancellation never creates an overlap.
func (s *ScheduleService) CancelEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	clinicIDs, err := s.attendeeClinics(ctx, id)
	if err != nil {
		s.log.Warnf("err loading attendees for fan-out: %v", err)
	}
	cancelled, err := s.store.CancelEvent(ctx, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("err cancelling event %s: %w", id, err)
	}
	s.signal(ctx, models.SignalEventCancelled, eventPayload(cancelled, clinicIDs), clinicIDs)
	return cancelled, nil
}

// Overlaps is the advisory conflict predicate: does the candidate
// interval collide with any non-cancelled event of the consultant? The
// storage exclusion constraint remains the backstop for the
// check-then-write race.
func (s *ScheduleService) Overlaps(ctx context.Context, consultantID uuid.UUID, startAt, endAt time.Time, excludeEventID *uuid.UUID) (bool, error) {
	if !startAt.Before(endAt) {
		return false, fmt.Errorf("%w: startAt must be before endAt", models.ErrValidation)
	}
	return s.store.Overlaps(ctx, consultantID, startAt, endAt, excludeEventID)
}

func (s *ScheduleService) GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *ScheduleService) ListEventsForConsultant(ctx context.Context, consultantID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	events, err := s.store.ListEventsForConsultant(ctx, consultantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("err listing consultant events: %w", err)
	}
	return events, nil
}

func (s *ScheduleService) ListEventsForClinic(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	events, err := s.store.ListEventsForClinic(ctx, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("err listing clinic events: %w", err)
	}
	return events, nil
}

func (s *ScheduleService) Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	return s.store.Attendees(ctx, eventID)
}

func (s *ScheduleService) attendeeClinics(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	attendees, err := s.store.Attendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(attendees))
	for _, a := range attendees {
		ids = append(ids, a.ClinicID)
	}
	return ids, nil
}

func applyOptional(event *models.Event, req models.EventRequest) {
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Timezone != nil {
		event.Timezone = *req.Timezone
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.MeetingURL != nil {
		event.MeetingURL = *req.MeetingURL
	}
	if req.RecurrenceRule != nil {
		event.RecurrenceRule = *req.RecurrenceRule
	}
}
