package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/avelichko/consulta/pkg/models"
)

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	var event models.Event
	query := `
SELECT * FROM events
WHERE id = $1;`
	var err error
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &event, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Event{}, ErrEventNotFound
		case err != nil:
			continue
		}
		return event, nil
	}
	return models.Event{}, fmt.Errorf("err getting event %s: %w", id, err)
}

func (s *Store) ListEventsForConsultant(ctx context.Context, consultantID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	var events []models.Event
	query := `
SELECT * FROM events
WHERE consultant_id = $1
  AND ($2::timestamptz IS NULL OR end_at > $2)
  AND ($3::timestamptz IS NULL OR start_at < $3)
ORDER BY start_at;`
	var err error
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &events, query, consultantID, from, to); err != nil {
			continue
		}
		return events, nil
	}
	return nil, fmt.Errorf("err listing events for consultant %s: %w", consultantID, err)
}

func (s *Store) ListEventsForClinic(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]models.Event, error) {
	var events []models.Event
	query := `
SELECT e.* FROM events e
JOIN attendees a ON a.event_id = e.id
WHERE a.clinic_id = $1
  AND ($2::timestamptz IS NULL OR e.end_at > $2)
  AND ($3::timestamptz IS NULL OR e.start_at < $3)
ORDER BY e.start_at;`
	var err error
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &events, query, clinicID, from, to); err != nil {
			continue
		}
		return events, nil
	}
	return nil, fmt.Errorf("err listing events for clinic %s: %w", clinicID, err)
}

// Overlaps is the half-open interval overlap test over non-cancelled
// events: existing.start_at < endAt AND existing.end_at > startAt.
func (s *Store) Overlaps(ctx context.Context, consultantID uuid.UUID, startAt, endAt time.Time, excludeEventID *uuid.UUID) (bool, error) {
	query := `
SELECT EXISTS(
    SELECT 1 FROM events
    WHERE consultant_id = $1
      AND status <> 'cancelled'
      AND start_at < $3
      AND end_at > $2
      AND ($4::uuid IS NULL OR id <> $4)
);`
	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, consultantID, startAt, endAt, excludeEventID); err != nil {
		return false, fmt.Errorf("err checking overlap for consultant %s: %w", consultantID, err)
	}
	return exists, nil
}

func (s *Store) BusyIntervals(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]models.Interval, error) {
	var intervals []models.Interval
	query := `
SELECT start_at, end_at FROM events
WHERE consultant_id = $1
  AND status <> 'cancelled'
  AND start_at < $3
  AND end_at > $2
ORDER BY start_at;`
	if err := s.db.SelectContext(ctx, &intervals, query, consultantID, from, to); err != nil {
		return nil, fmt.Errorf("err loading busy intervals for consultant %s: %w", consultantID, err)
	}
	return intervals, nil
}

// CreateEvent inserts the event and its pending attendee rows in one
// transaction. A racing overlap is rejected by the exclusion constraint
// and reported as models.ErrSchedulingConflict.
func (s *Store) CreateEvent(ctx context.Context, event models.Event, clinicIDs []uuid.UUID) (models.Event, error) {
	var created models.Event
	query := `
INSERT INTO events (id, consultant_id, title, description, start_at, end_at, timezone, location, meeting_url, status, recurrence_rule)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING *;`
	err := s.inTx(ctx, "CreateEvent", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &created, query,
			event.ID, event.ConsultantID, event.Title, event.Description, event.StartAt, event.EndAt,
			event.Timezone, event.Location, event.MeetingURL, event.Status, event.RecurrenceRule); err != nil {
			return err
		}
		return insertAttendees(ctx, tx, created.ID, clinicIDs)
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("err creating event: %w", asConflict(err))
	}
	return created, nil
}

// UpdateEvent rewrites the event row and, when clinicIDs is non-nil,
// replaces the whole attendee set with fresh pending rows. Cancelled
// events are not updatable.
func (s *Store) UpdateEvent(ctx context.Context, id uuid.UUID, event models.Event, clinicIDs []uuid.UUID, forceStatus *models.EventStatus) (models.Event, error) {
	var updated models.Event
	query := `
UPDATE events
SET consultant_id = $2,
    title = $3,
    description = $4,
    start_at = $5,
    end_at = $6,
    timezone = $7,
    location = $8,
    meeting_url = $9,
    recurrence_rule = $10,
    status = COALESCE($11, status),
    updated_at = now()
WHERE id = $1 AND status <> 'cancelled'
RETURNING *;`
	err := s.inTx(ctx, "UpdateEvent", func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &updated, query,
			id, event.ConsultantID, event.Title, event.Description, event.StartAt, event.EndAt,
			event.Timezone, event.Location, event.MeetingURL, event.RecurrenceRule, forceStatus)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}
		if clinicIDs == nil {
			return nil
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM attendees WHERE event_id = $1`, id); err != nil {
			return err
		}
		return insertAttendees(ctx, tx, id, clinicIDs)
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("err updating event %s: %w", id, asConflict(err))
	}
	return updated, nil
}

// CancelEvent moves the event into its terminal state. Cancelling an
// already cancelled event is a no-op that returns the row unchanged.
func (s *Store) CancelEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	var cancelled models.Event
	query := `
UPDATE events
SET status = 'cancelled',
    updated_at = now()
WHERE id = $1
RETURNING *;`
	err := s.db.GetContext(ctx, &cancelled, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Event{}, ErrEventNotFound
	case err != nil:
		return models.Event{}, fmt.Errorf("err cancelling event %s: %w", id, err)
	}
	return cancelled, nil
}

func (s *Store) Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	var attendees []models.Attendee
	query := `
SELECT * FROM attendees
WHERE event_id = $1
ORDER BY clinic_id;`
	if err := s.db.SelectContext(ctx, &attendees, query, eventID); err != nil {
		return nil, fmt.Errorf("err listing attendees for event %s: %w", eventID, err)
	}
	return attendees, nil
}

func insertAttendees(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, clinicIDs []uuid.UUID) error {
	for _, clinicID := range clinicIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendees (event_id, clinic_id) VALUES ($1, $2)`, eventID, clinicID); err != nil {
			return err
		}
	}
	return nil
}
