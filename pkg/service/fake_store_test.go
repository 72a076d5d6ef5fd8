package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// fakeStore is an in-memory Store honouring the same contract as pgstore:
// multi-row methods behave atomically, and the overlap backstop rejects a
// racing writer with models.ErrSchedulingConflict.
type fakeStore struct {
	mu            sync.Mutex
	events        map[uuid.UUID]models.Event
	attendees     map[uuid.UUID][]models.Attendee
	requests      map[uuid.UUID]models.ChangeRequest
	notifications []models.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    make(map[uuid.UUID]models.Event),
		attendees: make(map[uuid.UUID][]models.Attendee),
		requests:  make(map[uuid.UUID]models.ChangeRequest),
	}
}

func (f *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return models.Event{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	return event, nil
}

func (f *fakeStore) ListEventsForConsultant(_ context.Context, consultantID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.Event
	for _, e := range f.events {
		if e.ConsultantID != consultantID {
			continue
		}
		if from != nil && !e.EndAt.After(*from) {
			continue
		}
		if to != nil && !e.StartAt.Before(*to) {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartAt.Before(events[j].StartAt) })
	return events, nil
}

func (f *fakeStore) ListEventsForClinic(_ context.Context, clinicID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.Event
	for id, list := range f.attendees {
		for _, a := range list {
			if a.ClinicID != clinicID {
				continue
			}
			e := f.events[id]
			if from != nil && !e.EndAt.After(*from) {
				continue
			}
			if to != nil && !e.StartAt.Before(*to) {
				continue
			}
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartAt.Before(events[j].StartAt) })
	return events, nil
}

func (f *fakeStore) Overlaps(_ context.Context, consultantID uuid.UUID, startAt, endAt time.Time, excludeEventID *uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlapsLocked(consultantID, startAt, endAt, excludeEventID), nil
}

func (f *fakeStore) overlapsLocked(consultantID uuid.UUID, startAt, endAt time.Time, excludeEventID *uuid.UUID) bool {
	for _, e := range f.events {
		if e.ConsultantID != consultantID || e.Status == models.EventCancelled {
			continue
		}
		if excludeEventID != nil && e.ID == *excludeEventID {
			continue
		}
		if e.StartAt.Before(endAt) && e.EndAt.After(startAt) {
			return true
		}
	}
	return false
}

func (f *fakeStore) BusyIntervals(_ context.Context, consultantID uuid.UUID, from, to time.Time) ([]models.Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var intervals []models.Interval
	for _, e := range f.events {
		if e.ConsultantID != consultantID || e.Status == models.EventCancelled {
			continue
		}
		if e.StartAt.Before(to) && e.EndAt.After(from) {
			intervals = append(intervals, models.Interval{Start: e.StartAt, End: e.EndAt})
		}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	return intervals, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, event models.Event, clinicIDs []uuid.UUID) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overlapsLocked(event.ConsultantID, event.StartAt, event.EndAt, nil) {
		return models.Event{}, fmt.Errorf("%w: events_no_overlap", models.ErrSchedulingConflict)
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	f.events[event.ID] = event
	f.attendees[event.ID] = pendingAttendees(event.ID, clinicIDs)
	return event, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, id uuid.UUID, event models.Event, clinicIDs []uuid.UUID, forceStatus *models.EventStatus) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.events[id]
	if !ok || current.Status == models.EventCancelled {
		return models.Event{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	if f.overlapsLocked(event.ConsultantID, event.StartAt, event.EndAt, &id) {
		return models.Event{}, fmt.Errorf("%w: events_no_overlap", models.ErrSchedulingConflict)
	}
	event.ID = id
	event.Status = current.Status
	if forceStatus != nil {
		event.Status = *forceStatus
	}
	event.UpdatedAt = time.Now()
	f.events[id] = event
	if clinicIDs != nil {
		f.attendees[id] = pendingAttendees(id, clinicIDs)
	}
	return event, nil
}

func (f *fakeStore) CancelEvent(_ context.Context, id uuid.UUID) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return models.Event{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	event.Status = models.EventCancelled
	f.events[id] = event
	return event, nil
}

func (f *fakeStore) Attendees(_ context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Attendee(nil), f.attendees[eventID]...), nil
}

func (f *fakeStore) ConfirmAttendance(_ context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error) {
	return f.setAttendance(eventID, clinicID, userID, models.ConfirmConfirmed)
}

func (f *fakeStore) DeclineAttendance(_ context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error) {
	return f.setAttendance(eventID, clinicID, userID, models.ConfirmDeclined)
}

func (f *fakeStore) setAttendance(eventID, clinicID, userID uuid.UUID, status models.ConfirmStatus) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok || event.Status == models.EventCancelled {
		return models.Event{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	found := false
	now := time.Now()
	for i, a := range f.attendees[eventID] {
		if a.ClinicID != clinicID {
			continue
		}
		a.ConfirmStatus = status
		a.ConfirmedBy = &userID
		a.ConfirmedAt = &now
		f.attendees[eventID][i] = a
		found = true
	}
	if !found {
		return models.Event{}, fmt.Errorf("attendee %w", models.ErrNotFound)
	}
	switch status {
	case models.ConfirmConfirmed:
		if f.allConfirmedLocked(eventID) &&
			(event.Status == models.EventPendingConfirmation || event.Status == models.EventRescheduled) {
			event.Status = models.EventConfirmed
		}
	case models.ConfirmDeclined:
		if event.Status == models.EventConfirmed {
			event.Status = models.EventPendingConfirmation
		}
	}
	f.events[eventID] = event
	return event, nil
}

func (f *fakeStore) allConfirmedLocked(eventID uuid.UUID) bool {
	for _, a := range f.attendees[eventID] {
		if a.ConfirmStatus != models.ConfirmConfirmed {
			return false
		}
	}
	return true
}

func (f *fakeStore) CreateChangeRequest(_ context.Context, req models.ChangeRequest) (models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[req.EventID]
	if !ok || event.Status == models.EventCancelled {
		return models.ChangeRequest{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	attending := false
	for _, a := range f.attendees[req.EventID] {
		if a.ClinicID == req.ClinicID {
			attending = true
		}
	}
	if !attending {
		return models.ChangeRequest{}, fmt.Errorf("attendee %w", models.ErrNotFound)
	}
	req.Status = models.RequestOpen
	req.CreatedAt = time.Now()
	f.requests[req.ID] = req
	event.Status = models.EventRescheduleRequested
	f.events[req.EventID] = event
	return req, nil
}

func (f *fakeStore) GetChangeRequest(_ context.Context, id uuid.UUID) (models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return models.ChangeRequest{}, fmt.Errorf("change request %w", models.ErrNotFound)
	}
	return req, nil
}

func (f *fakeStore) ListChangeRequests(_ context.Context, eventID uuid.UUID) ([]models.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var requests []models.ChangeRequest
	for _, req := range f.requests {
		if req.EventID == eventID {
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

func (f *fakeStore) ResolveChangeRequest(_ context.Context, id uuid.UUID, status models.ChangeRequestStatus, handledBy *uuid.UUID) (models.ChangeRequest, models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("change request %w", models.ErrNotFound)
	}
	if req.Status != models.RequestOpen {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("%w: request %s is not open", models.ErrValidation, id)
	}
	event, ok := f.events[req.EventID]
	if !ok || event.Status == models.EventCancelled {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("event %w", models.ErrNotFound)
	}
	now := time.Now()
	req.Status = status
	req.HandledBy = handledBy
	req.HandledAt = &now
	f.requests[id] = req
	if status == models.RequestRejected || status == models.RequestCancelled {
		open := 0
		for _, other := range f.requests {
			if other.EventID == req.EventID && other.Status == models.RequestOpen {
				open++
			}
		}
		if open == 0 {
			if f.allConfirmedLocked(req.EventID) {
				event.Status = models.EventConfirmed
			} else {
				event.Status = models.EventPendingConfirmation
			}
			f.events[req.EventID] = event
		}
	}
	return req, event, nil
}

func (f *fakeStore) SaveNotification(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.notifications) + 1)
	n.CreatedAt = time.Now()
	f.notifications = append(f.notifications, n)
	return nil
}

func pendingAttendees(eventID uuid.UUID, clinicIDs []uuid.UUID) []models.Attendee {
	attendees := make([]models.Attendee, 0, len(clinicIDs))
	for _, clinicID := range clinicIDs {
		attendees = append(attendees, models.Attendee{
			EventID:       eventID,
			ClinicID:      clinicID,
			ConfirmStatus: models.ConfirmPending,
		})
	}
	return attendees
}

// recordingRelay captures published signals; fail makes every publish
// error to prove relay failures never surface.
type recordingRelay struct {
	mu      sync.Mutex
	signals []models.Signal
	fail    bool
}

func (r *recordingRelay) Publish(_ context.Context, signal models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	if r.fail {
		return fmt.Errorf("relay down")
	}
	return nil
}

func (r *recordingRelay) types() []models.SignalType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.SignalType, 0, len(r.signals))
	for _, s := range r.signals {
		types = append(types, s.Type)
	}
	return types
}
