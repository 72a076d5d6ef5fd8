package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// signal pushes a state-change notice through the relay and writes one
// in-app notification row per recipient. Both are best-effort: failures
// are logged and never reach the caller, the triggering change is already
// committed.
func (s *ScheduleService) signal(ctx context.Context, typ models.SignalType, payload interface{}, clinicIDs []uuid.UUID) {
	if s.relay != nil {
		if err := s.relay.Publish(ctx, models.Signal{Type: typ, Payload: payload}); err != nil {
			s.log.Errorf("err publishing %s signal: %v", typ, err)
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Errorf("err encoding %s payload: %v", typ, err)
		return
	}
	rows := make([]models.Notification, 0, len(clinicIDs)+1)
	rows = append(rows, models.Notification{Target: models.TargetConsultant, Type: typ, Payload: raw})
	for i := range clinicIDs {
		clinicID := clinicIDs[i]
		rows = append(rows, models.Notification{Target: models.TargetClinic, ClinicID: &clinicID, Type: typ, Payload: raw})
	}
	for _, n := range rows {
		if err := s.store.SaveNotification(ctx, n); err != nil {
			s.log.Errorf("err saving %s notification: %v", typ, err)
		}
	}
}

func eventPayload(event models.Event, clinicIDs []uuid.UUID) models.EventPayload {
	return models.EventPayload{
		EventID:      event.ID,
		ConsultantID: event.ConsultantID,
		Title:        event.Title,
		StartAt:      event.StartAt,
		EndAt:        event.EndAt,
		Status:       event.Status,
		ClinicIDs:    clinicIDs,
	}
}

func reschedulePayload(req models.ChangeRequest) models.ReschedulePayload {
	return models.ReschedulePayload{
		RequestID:        req.ID,
		EventID:          req.EventID,
		ClinicID:         req.ClinicID,
		Reason:           req.Reason,
		SuggestedStartAt: req.SuggestedStartAt,
		SuggestedEndAt:   req.SuggestedEndAt,
	}
}
