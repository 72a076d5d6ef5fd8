// Package models holds the shared data shapes of the scheduling engine:
// events, attendees, change requests and outbound notifications.
package models

import "errors"

var (
	// ErrValidation marks malformed input detected before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrSchedulingConflict marks an overlap detected either pre-flight or
	// by the storage exclusion constraint.
	ErrSchedulingConflict = errors.New("scheduling conflict")
	// ErrNotFound marks a missing event, attendee or change request.
	ErrNotFound = errors.New("not found")
)
