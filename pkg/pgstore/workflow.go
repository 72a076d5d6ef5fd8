package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/avelichko/consulta/pkg/models"
)

// ConfirmAttendance is the atomic confirm-then-rollup procedure: the
// attendee row flips to confirmed and, once no unconfirmed attendee
// remains, the event status rolls up to confirmed, all inside one
// transaction. The event row is locked first so concurrent confirmations
// serialize instead of losing the rollup.
func (s *Store) ConfirmAttendance(ctx context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error) {
	var event models.Event
	err := s.inTx(ctx, "ConfirmAttendance", func(tx *sqlx.Tx) error {
		if err := lockEvent(ctx, tx, eventID, &event); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE attendees
SET confirm_status = 'confirmed',
    confirmed_by = $3,
    confirmed_at = now()
WHERE event_id = $1 AND clinic_id = $2;`, eventID, clinicID, userID)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil {
			return err
		} else if affected == 0 {
			return ErrAttendeeNotFound
		}
		unconfirmed, err := countAttendees(ctx, tx, eventID, `confirm_status <> 'confirmed'`)
		if err != nil {
			return err
		}
		if unconfirmed > 0 {
			return nil
		}
		// Rollup only out of the quiet states; an open negotiation keeps
		// its reschedule_requested marker until resolved.
		if event.Status != models.EventPendingConfirmation && event.Status != models.EventRescheduled {
			return nil
		}
		return setEventStatus(ctx, tx, eventID, models.EventConfirmed, &event)
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("err confirming attendance (event %s, clinic %s): %w", eventID, clinicID, err)
	}
	return event, nil
}

// DeclineAttendance marks the attendee declined; a previously confirmed
// event falls back to pending_confirmation since not every attendee is
// confirmed anymore.
func (s *Store) DeclineAttendance(ctx context.Context, eventID, clinicID, userID uuid.UUID) (models.Event, error) {
	var event models.Event
	err := s.inTx(ctx, "DeclineAttendance", func(tx *sqlx.Tx) error {
		if err := lockEvent(ctx, tx, eventID, &event); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE attendees
SET confirm_status = 'declined',
    confirmed_by = $3,
    confirmed_at = now()
WHERE event_id = $1 AND clinic_id = $2;`, eventID, clinicID, userID)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil {
			return err
		} else if affected == 0 {
			return ErrAttendeeNotFound
		}
		if event.Status != models.EventConfirmed {
			return nil
		}
		return setEventStatus(ctx, tx, eventID, models.EventPendingConfirmation, &event)
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("err declining attendance (event %s, clinic %s): %w", eventID, clinicID, err)
	}
	return event, nil
}

// CreateChangeRequest atomically inserts the open request and moves the
// parent event to reschedule_requested. The requesting clinic must be an
// attendee of a non-cancelled event.
func (s *Store) CreateChangeRequest(ctx context.Context, req models.ChangeRequest) (models.ChangeRequest, error) {
	var created models.ChangeRequest
	err := s.inTx(ctx, "CreateChangeRequest", func(tx *sqlx.Tx) error {
		var event models.Event
		if err := lockEvent(ctx, tx, req.EventID, &event); err != nil {
			return err
		}
		var attending bool
		if err := tx.GetContext(ctx, &attending,
			`SELECT EXISTS(SELECT 1 FROM attendees WHERE event_id = $1 AND clinic_id = $2)`,
			req.EventID, req.ClinicID); err != nil {
			return err
		}
		if !attending {
			return ErrAttendeeNotFound
		}
		if err := tx.GetContext(ctx, &created, `
INSERT INTO change_requests (id, event_id, clinic_id, requested_by, reason, suggested_start_at, suggested_end_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'open')
RETURNING *;`,
			req.ID, req.EventID, req.ClinicID, req.RequestedBy, req.Reason,
			req.SuggestedStartAt, req.SuggestedEndAt); err != nil {
			return err
		}
		return setEventStatus(ctx, tx, req.EventID, models.EventRescheduleRequested, &event)
	})
	if err != nil {
		return models.ChangeRequest{}, fmt.Errorf("err creating change request for event %s: %w", req.EventID, err)
	}
	return created, nil
}

func (s *Store) GetChangeRequest(ctx context.Context, id uuid.UUID) (models.ChangeRequest, error) {
	var req models.ChangeRequest
	query := `
SELECT * FROM change_requests
WHERE id = $1;`
	var err error
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &req, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.ChangeRequest{}, ErrRequestNotFound
		case err != nil:
			continue
		}
		return req, nil
	}
	return models.ChangeRequest{}, fmt.Errorf("err getting change request %s: %w", id, err)
}

func (s *Store) ListChangeRequests(ctx context.Context, eventID uuid.UUID) ([]models.ChangeRequest, error) {
	var requests []models.ChangeRequest
	query := `
SELECT * FROM change_requests
WHERE event_id = $1
ORDER BY created_at DESC;`
	var err error
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &requests, query, eventID); err != nil {
			continue
		}
		return requests, nil
	}
	return nil, fmt.Errorf("err listing change requests for event %s: %w", eventID, err)
}

// OpenChangeRequests lists every open request across all events, oldest
// first. Used by the reconciliation poller.
func (s *Store) OpenChangeRequests(ctx context.Context) ([]models.ChangeRequest, error) {
	var requests []models.ChangeRequest
	query := `
SELECT * FROM change_requests
WHERE status = 'open'
ORDER BY created_at;`
	if err := s.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("err listing open change requests: %w", err)
	}
	return requests, nil
}

// ResolveChangeRequest closes an open request with the given terminal
// status. When a rejection or withdrawal leaves no open request on the
// event, the event status is recomputed from attendee confirmations in
// the same transaction: confirmed iff all confirmed, else
// pending_confirmation.
func (s *Store) ResolveChangeRequest(ctx context.Context, id uuid.UUID, status models.ChangeRequestStatus, handledBy *uuid.UUID) (models.ChangeRequest, models.Event, error) {
	var (
		resolved models.ChangeRequest
		event    models.Event
	)
	err := s.inTx(ctx, "ResolveChangeRequest", func(tx *sqlx.Tx) error {
		var current models.ChangeRequest
		err := tx.GetContext(ctx, &current, `SELECT * FROM change_requests WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if current.Status != models.RequestOpen {
			return fmt.Errorf("%w: request %s is not open", models.ErrValidation, id)
		}
		if err = lockEvent(ctx, tx, current.EventID, &event); err != nil {
			return err
		}
		if err = tx.GetContext(ctx, &resolved, `
UPDATE change_requests
SET status = $2,
    handled_by = $3,
    handled_at = now()
WHERE id = $1
RETURNING *;`, id, status, handledBy); err != nil {
			return err
		}
		if status != models.RequestRejected && status != models.RequestCancelled {
			return nil
		}
		var open int
		if err = tx.GetContext(ctx, &open,
			`SELECT count(*) FROM change_requests WHERE event_id = $1 AND status = 'open'`,
			current.EventID); err != nil {
			return err
		}
		if open > 0 {
			return nil
		}
		unconfirmed, err := countAttendees(ctx, tx, current.EventID, `confirm_status <> 'confirmed'`)
		if err != nil {
			return err
		}
		next := models.EventPendingConfirmation
		if unconfirmed == 0 {
			next = models.EventConfirmed
		}
		return setEventStatus(ctx, tx, current.EventID, next, &event)
	})
	if err != nil {
		return models.ChangeRequest{}, models.Event{}, fmt.Errorf("err resolving change request %s: %w", id, err)
	}
	return resolved, event, nil
}

func (s *Store) SaveNotification(ctx context.Context, n models.Notification) error {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (target, clinic_id, to_user_id, type, payload)
VALUES ($1, $2, $3, $4, $5);`,
		n.Target, n.ClinicID, n.ToUserID, n.Type, n.Payload); err != nil {
		return fmt.Errorf("err saving notification: %w", err)
	}
	return nil
}

// lockEvent loads a non-cancelled event FOR UPDATE so workflow procedures
// serialize against each other and against confirmations.
func lockEvent(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, event *models.Event) error {
	err := tx.GetContext(ctx, event,
		`SELECT * FROM events WHERE id = $1 AND status <> 'cancelled' FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	return err
}

func countAttendees(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, cond string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT count(*) FROM attendees WHERE event_id = $1 AND `+cond, eventID)
	return count, err
}

func setEventStatus(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, status models.EventStatus, event *models.Event) error {
	return tx.GetContext(ctx, event, `
UPDATE events
SET status = $2,
    updated_at = now()
WHERE id = $1
RETURNING *;`, eventID, status)
}
