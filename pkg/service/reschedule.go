package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// RequestReschedule opens a negotiation: one change request row is
// inserted and the parent event moves to reschedule_requested, atomically.
func (s *ScheduleService) RequestReschedule(ctx context.Context, eventID uuid.UUID, req models.RescheduleRequest) (models.ChangeRequest, error) {
	switch {
	case req.ClinicID == uuid.Nil:
		return models.ChangeRequest{}, fmt.Errorf("%w: clinicId is required", models.ErrValidation)
	case req.Reason == "":
		return models.ChangeRequest{}, fmt.Errorf("%w: reason is required", models.ErrValidation)
	case req.SuggestedStartAt != nil && req.SuggestedEndAt != nil && !req.SuggestedStartAt.Before(*req.SuggestedEndAt):
		return models.ChangeRequest{}, fmt.Errorf("%w: suggested start must be before suggested end", models.ErrValidation)
	}
	created, err := s.store.CreateChangeRequest(ctx, models.ChangeRequest{
		ID:               uuid.New(),
		EventID:          eventID,
		ClinicID:         req.ClinicID,
		RequestedBy:      req.RequestedBy,
		Reason:           req.Reason,
		SuggestedStartAt: req.SuggestedStartAt,
		SuggestedEndAt:   req.SuggestedEndAt,
		Status:           models.RequestOpen,
	})
	if err != nil {
		return models.ChangeRequest{}, fmt.Errorf("err creating change request: %w", err)
	}
	s.signal(ctx, models.SignalRescheduleRequested, reschedulePayload(created), []uuid.UUID{created.ClinicID})
	return created, nil
}

// AcceptReschedule commits the owner's decision: the event is moved to the
// agreed time through UpdateEvent (forcing the rescheduled status when the
// time actually changed, which also fans event_updated out to every
// attending clinic), then the request is marked accepted.
func (s *ScheduleService) AcceptReschedule(ctx context.Context, requestID uuid.UUID, resolve models.ResolveRequest) (models.ChangeRequest, models.Event, error) {
	req, err := s.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("err loading change request %s: %w", requestID, err)
	}
	if req.Status != models.RequestOpen {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("%w: request %s is not open", models.ErrValidation, requestID)
	}
	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("err loading event %s: %w", req.EventID, err)
	}
	newStart, newEnd := event.StartAt, event.EndAt
	if req.SuggestedStartAt != nil {
		newStart = *req.SuggestedStartAt
	}
	if req.SuggestedEndAt != nil {
		newEnd = *req.SuggestedEndAt
	}
	if resolve.StartAt != nil {
		newStart = *resolve.StartAt
	}
	if resolve.EndAt != nil {
		newEnd = *resolve.EndAt
	}
	if !newStart.Equal(event.StartAt) || !newEnd.Equal(event.EndAt) {
		forced := models.EventRescheduled
		event, err = s.UpdateEvent(ctx, req.EventID, models.EventRequest{StartAt: &newStart, EndAt: &newEnd}, &forced)
		if err != nil {
			return models.ChangeRequest{}, models.Event{}, err
		}
	}
	handledBy := resolve.HandledBy
	accepted, _, err := s.store.ResolveChangeRequest(ctx, requestID, models.RequestAccepted, &handledBy)
	if err != nil {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("err accepting change request %s: %w", requestID, err)
	}
	return accepted, event, nil
}

// RejectReschedule declines the negotiation. When no other open requests
// remain the event status is recomputed from current attendee
// confirmations inside the same store transaction.
func (s *ScheduleService) RejectReschedule(ctx context.Context, requestID uuid.UUID, resolve models.ResolveRequest) (models.ChangeRequest, models.Event, error) {
	handledBy := resolve.HandledBy
	rejected, event, err := s.store.ResolveChangeRequest(ctx, requestID, models.RequestRejected, &handledBy)
	if err != nil {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("err rejecting change request %s: %w", requestID, err)
	}
	s.signal(ctx, models.SignalRescheduleRejected, reschedulePayload(rejected), []uuid.UUID{rejected.ClinicID})
	return rejected, event, nil
}

// CancelChangeRequest lets the requesting clinic withdraw an open request.
// Withdrawal of the last open request rolls the event status up exactly
// like a rejection, but no reschedule_rejected signal goes out.
func (s *ScheduleService) CancelChangeRequest(ctx context.Context, requestID, clinicID uuid.UUID) (models.ChangeRequest, error) {
	req, err := s.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		return models.ChangeRequest{}, fmt.Errorf("err loading change request %s: %w", requestID, err)
	}
	if req.ClinicID != clinicID {
		return models.ChangeRequest{}, fmt.Errorf("%w: request %s does not belong to clinic %s", models.ErrNotFound, requestID, clinicID)
	}
	cancelled, _, err := s.store.ResolveChangeRequest(ctx, requestID, models.RequestCancelled, nil)
	if err != nil {
		return models.ChangeRequest{}, fmt.Errorf("err cancelling change request %s: %w", requestID, err)
	}
	return cancelled, nil
}

func (s *ScheduleService) ListChangeRequests(ctx context.Context, eventID uuid.UUID) ([]models.ChangeRequest, error) {
	requests, err := s.store.ListChangeRequests(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("err listing change requests: %w", err)
	}
	return requests, nil
}
