package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/consulta/pkg/logger"
	"github.com/avelichko/consulta/pkg/models"
)

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }
func uuidPtr(u uuid.UUID) *uuid.UUID { return &u }

func newTestService() (*ScheduleService, *fakeStore, *recordingRelay) {
	store := newFakeStore()
	relay := &recordingRelay{}
	return New(logger.New(), store, relay), store, relay
}

func createTestEvent(t *testing.T, svc *ScheduleService, consultantID uuid.UUID, start, end time.Time, clinics ...uuid.UUID) models.Event {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), models.EventRequest{
		ConsultantID: &consultantID,
		Title:        strPtr("quarterly review"),
		StartAt:      &start,
		EndAt:        &end,
		ClinicIDs:    clinics,
	})
	require.NoError(t, err)
	require.Equal(t, models.EventPendingConfirmation, event.Status)
	return event
}

func TestCreateEventValidation(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	consultant := uuid.New()
	start := monday.Add(10 * time.Hour)
	end := monday.Add(11 * time.Hour)

	cases := []struct {
		name string
		req  models.EventRequest
	}{
		{"missing consultant", models.EventRequest{Title: strPtr("x"), StartAt: &start, EndAt: &end, ClinicIDs: []uuid.UUID{uuid.New()}}},
		{"missing title", models.EventRequest{ConsultantID: &consultant, StartAt: &start, EndAt: &end, ClinicIDs: []uuid.UUID{uuid.New()}}},
		{"missing times", models.EventRequest{ConsultantID: &consultant, Title: strPtr("x"), ClinicIDs: []uuid.UUID{uuid.New()}}},
		{"inverted times", models.EventRequest{ConsultantID: &consultant, Title: strPtr("x"), StartAt: &end, EndAt: &start, ClinicIDs: []uuid.UUID{uuid.New()}}},
		{"no clinics", models.EventRequest{ConsultantID: &consultant, Title: strPtr("x"), StartAt: &start, EndAt: &end}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tc.req)
			require.ErrorIs(t, err, models.ErrValidation)
		})
	}
	require.Empty(t, store.events)
}

func TestCreateEventConflict(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	consultant := uuid.New()
	createTestEvent(t, svc, consultant, monday.Add(10*time.Hour), monday.Add(11*time.Hour), uuid.New())

	_, err := svc.CreateEvent(ctx, models.EventRequest{
		ConsultantID: &consultant,
		Title:        strPtr("overlapping"),
		StartAt:      timePtr(monday.Add(10*time.Hour + 30*time.Minute)),
		EndAt:        timePtr(monday.Add(11*time.Hour + 30*time.Minute)),
		ClinicIDs:    []uuid.UUID{uuid.New()},
	})
	require.ErrorIs(t, err, models.ErrSchedulingConflict)
	require.Len(t, store.events, 1)
}

func TestCreateEventBackToBack(t *testing.T) {
	svc, store, _ := newTestService()
	consultant := uuid.New()
	createTestEvent(t, svc, consultant, monday.Add(10*time.Hour), monday.Add(11*time.Hour), uuid.New())
	// Half-open intervals: [10,11) and [11,12) do not overlap.
	createTestEvent(t, svc, consultant, monday.Add(11*time.Hour), monday.Add(12*time.Hour), uuid.New())
	require.Len(t, store.events, 2)
}

func TestUpdateEventExcludesSelf(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	consultant := uuid.New()
	event := createTestEvent(t, svc, consultant, monday.Add(10*time.Hour), monday.Add(11*time.Hour), uuid.New())

	// Shifting inside its own interval must not conflict with itself.
	updated, err := svc.UpdateEvent(ctx, event.ID, models.EventRequest{
		StartAt: timePtr(monday.Add(10*time.Hour + 15*time.Minute)),
		EndAt:   timePtr(monday.Add(11*time.Hour + 15*time.Minute)),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, monday.Add(10*time.Hour+15*time.Minute), updated.StartAt)
	require.Equal(t, models.EventPendingConfirmation, updated.Status)
}

func TestUpdateEventConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	consultant := uuid.New()
	createTestEvent(t, svc, consultant, monday.Add(9*time.Hour), monday.Add(10*time.Hour), uuid.New())
	event := createTestEvent(t, svc, consultant, monday.Add(11*time.Hour), monday.Add(12*time.Hour), uuid.New())

	_, err := svc.UpdateEvent(ctx, event.ID, models.EventRequest{
		StartAt: timePtr(monday.Add(9*time.Hour + 30*time.Minute)),
		EndAt:   timePtr(monday.Add(10*time.Hour + 30*time.Minute)),
	}, nil)
	require.ErrorIs(t, err, models.ErrSchedulingConflict)
}

func TestUpdateEventReplacesAttendees(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA, clinicB, clinicC := uuid.New(), uuid.New(), uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA, clinicB)

	_, err := svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicA, UserID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.UpdateEvent(ctx, event.ID, models.EventRequest{ClinicIDs: []uuid.UUID{clinicB, clinicC}}, nil)
	require.NoError(t, err)

	attendees, err := svc.Attendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	for _, a := range attendees {
		require.Contains(t, []uuid.UUID{clinicB, clinicC}, a.ClinicID)
		require.Equal(t, models.ConfirmPending, a.ConfirmStatus)
	}
}

func TestConfirmationRollup(t *testing.T) {
	svc, _, relay := newTestService()
	ctx := context.Background()
	clinicA, clinicB := uuid.New(), uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA, clinicB)

	after, err := svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicA, UserID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.EventPendingConfirmation, after.Status)

	after, err = svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicB, UserID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.EventConfirmed, after.Status)
	require.Contains(t, relay.types(), models.SignalEventConfirmed)
}

func TestDeclineDropsConfirmed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	after, err := svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicA, UserID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.EventConfirmed, after.Status)

	after, err = svc.DeclineAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicA, UserID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.EventPendingConfirmation, after.Status)
}

func TestConfirmUnknownAttendee(t *testing.T) {
	svc, _, _ := newTestService()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), uuid.New())

	_, err := svc.ConfirmAttendance(context.Background(), event.ID, models.ConfirmRequest{ClinicID: uuid.New(), UserID: uuid.New()})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirmCancelledEvent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	_, err := svc.CancelEvent(ctx, event.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicA, UserID: uuid.New()})
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "conflict",
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRescheduleAccept(t *testing.T) {
	svc, _, relay := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID:         clinicA,
		RequestedBy:      uuid.New(),
		Reason:           "conflict",
		SuggestedStartAt: timePtr(monday.Add(14 * time.Hour)),
		SuggestedEndAt:   timePtr(monday.Add(15 * time.Hour)),
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestOpen, request.Status)

	current, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventRescheduleRequested, current.Status)

	owner := uuid.New()
	accepted, after, err := svc.AcceptReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: owner})
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, accepted.Status)
	require.Equal(t, uuidPtr(owner), accepted.HandledBy)
	require.NotNil(t, accepted.HandledAt)
	require.Equal(t, models.EventRescheduled, after.Status)
	require.Equal(t, monday.Add(14*time.Hour), after.StartAt)
	require.Contains(t, relay.types(), models.SignalRescheduleRequested)
	require.Contains(t, relay.types(), models.SignalEventUpdated)
}

func TestRescheduleAcceptUnchangedTime(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "double check",
	})
	require.NoError(t, err)

	// No suggested and no owner-provided time: nothing moves, the prior
	// status is kept.
	accepted, after, err := svc.AcceptReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.RequestAccepted, accepted.Status)
	require.Equal(t, models.EventRescheduleRequested, after.Status)
}

func TestRescheduleRejectRollup(t *testing.T) {
	svc, _, relay := newTestService()
	ctx := context.Background()
	clinicA, clinicB := uuid.New(), uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA, clinicB)

	_, err := svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinicB, UserID: uuid.New()})
	require.NoError(t, err)

	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "conflict",
	})
	require.NoError(t, err)

	rejected, after, err := svc.RejectReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.RequestRejected, rejected.Status)
	// Clinic A never confirmed, so the rollup lands on
	// pending_confirmation rather than confirmed.
	require.Equal(t, models.EventPendingConfirmation, after.Status)
	require.Contains(t, relay.types(), models.SignalRescheduleRejected)
}

func TestRescheduleRejectAllConfirmed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA, clinicB := uuid.New(), uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA, clinicB)

	for _, clinic := range []uuid.UUID{clinicA, clinicB} {
		_, err := svc.ConfirmAttendance(ctx, event.ID, models.ConfirmRequest{ClinicID: clinic, UserID: uuid.New()})
		require.NoError(t, err)
	}
	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "conflict",
	})
	require.NoError(t, err)

	_, after, err := svc.RejectReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, models.EventConfirmed, after.Status)
}

func TestRescheduleValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	_, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{ClinicID: clinicA, RequestedBy: uuid.New()})
	require.ErrorIs(t, err, models.ErrValidation)

	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "conflict",
	})
	require.NoError(t, err)

	_, _, err = svc.RejectReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: uuid.New()})
	require.NoError(t, err)

	// Resolved requests are terminal.
	_, _, err = svc.AcceptReschedule(ctx, request.ID, models.ResolveRequest{HandledBy: uuid.New()})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestCancelChangeRequest(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	clinicA := uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA)

	request, err := svc.RequestReschedule(ctx, event.ID, models.RescheduleRequest{
		ClinicID: clinicA, RequestedBy: uuid.New(), Reason: "conflict",
	})
	require.NoError(t, err)

	_, err = svc.CancelChangeRequest(ctx, request.ID, uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)

	cancelled, err := svc.CancelChangeRequest(ctx, request.ID, clinicA)
	require.NoError(t, err)
	require.Equal(t, models.RequestCancelled, cancelled.Status)

	after, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventPendingConfirmation, after.Status)
}

func TestCancelEventFansOut(t *testing.T) {
	svc, store, relay := newTestService()
	ctx := context.Background()
	clinicA, clinicB := uuid.New(), uuid.New()
	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), clinicA, clinicB)

	cancelled, err := svc.CancelEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, models.EventCancelled, cancelled.Status)
	require.Contains(t, relay.types(), models.SignalEventCancelled)

	// One consultant-side row plus one per clinic, for create and cancel.
	require.Len(t, store.notifications, 6)
}

func TestRelayFailureDoesNotSurface(t *testing.T) {
	store := newFakeStore()
	relay := &recordingRelay{fail: true}
	svc := New(logger.New(), store, relay)

	event := createTestEvent(t, svc, uuid.New(), monday.Add(10*time.Hour), monday.Add(11*time.Hour), uuid.New())
	require.NotEqual(t, uuid.Nil, event.ID)
	require.Len(t, store.events, 1)
}

func TestOverlapInvariantAfterSequence(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	consultant := uuid.New()

	for hour := 9; hour < 13; hour++ {
		createTestEvent(t, svc, consultant, monday.Add(time.Duration(hour)*time.Hour), monday.Add(time.Duration(hour+1)*time.Hour), uuid.New())
	}
	events, err := svc.ListEventsForConsultant(ctx, consultant, nil, nil)
	require.NoError(t, err)
	_, err = svc.UpdateEvent(ctx, events[0].ID, models.EventRequest{
		StartAt: timePtr(monday.Add(13 * time.Hour)),
		EndAt:   timePtr(monday.Add(14 * time.Hour)),
	}, nil)
	require.NoError(t, err)
	_, err = svc.CancelEvent(ctx, events[1].ID)
	require.NoError(t, err)

	var live []models.Event
	for _, e := range store.events {
		if e.Status != models.EventCancelled {
			live = append(live, e)
		}
	}
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			overlap := live[i].StartAt.Before(live[j].EndAt) && live[i].EndAt.After(live[j].StartAt)
			require.False(t, overlap, "events %s and %s overlap", live[i].ID, live[j].ID)
		}
	}
}
