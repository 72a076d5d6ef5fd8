package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avelichko/consulta/pkg/models"
)

// App is the engine surface the transport exposes.
type App interface {
	CreateEvent(ctx context.Context, req models.EventRequest) (models.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, req models.EventRequest, forceStatus *models.EventStatus) (models.Event, error)
	CancelEvent(ctx context.Context, id uuid.UUID) (models.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error)
	ListEventsForConsultant(ctx context.Context, consultantID uuid.UUID, from, to *time.Time) ([]models.Event, error)
	ListEventsForClinic(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]models.Event, error)
	Attendees(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
	ConfirmAttendance(ctx context.Context, eventID uuid.UUID, req models.ConfirmRequest) (models.Event, error)
	DeclineAttendance(ctx context.Context, eventID uuid.UUID, req models.ConfirmRequest) (models.Event, error)
	RequestReschedule(ctx context.Context, eventID uuid.UUID, req models.RescheduleRequest) (models.ChangeRequest, error)
	AcceptReschedule(ctx context.Context, requestID uuid.UUID, resolve models.ResolveRequest) (models.ChangeRequest, models.Event, error)
	RejectReschedule(ctx context.Context, requestID uuid.UUID, resolve models.ResolveRequest) (models.ChangeRequest, models.Event, error)
	CancelChangeRequest(ctx context.Context, requestID, clinicID uuid.UUID) (models.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, eventID uuid.UUID) ([]models.ChangeRequest, error)
	SuggestSlots(ctx context.Context, p models.SuggestParams) ([]models.Interval, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ResolutionResponse pairs a closed change request with the event as it
// stands after the owner's decision.
type ResolutionResponse struct {
	Request models.ChangeRequest `json:"request"`
	Event   models.Event         `json:"event"`
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) createEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.app.CreateEvent(ctx, req)
	if err != nil {
		s.writeError(w, "creating event", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, created)
}

func (s *Server) getEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	event, err := s.app.GetEvent(ctx, id)
	if err != nil {
		s.writeError(w, "getting event", err)
		return
	}
	s.writeResponse(w, http.StatusOK, event)
}

func (s *Server) updateEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.app.UpdateEvent(ctx, id, req, nil)
	if err != nil {
		s.writeError(w, "updating event", err)
		return
	}
	s.writeResponse(w, http.StatusOK, updated)
}

func (s *Server) cancelEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	cancelled, err := s.app.CancelEvent(ctx, id)
	if err != nil {
		s.writeError(w, "cancelling event", err)
		return
	}
	s.writeResponse(w, http.StatusOK, cancelled)
}

func (s *Server) attendeesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	attendees, err := s.app.Attendees(ctx, id)
	if err != nil {
		s.writeError(w, "listing attendees", err)
		return
	}
	s.writeResponse(w, http.StatusOK, attendees)
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	s.attendanceHandler(w, r, s.app.ConfirmAttendance)
}

func (s *Server) declineHandler(w http.ResponseWriter, r *http.Request) {
	s.attendanceHandler(w, r, s.app.DeclineAttendance)
}

func (s *Server) attendanceHandler(w http.ResponseWriter, r *http.Request, do func(context.Context, uuid.UUID, models.ConfirmRequest) (models.Event, error)) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	event, err := do(ctx, id, req)
	if err != nil {
		s.writeError(w, "updating attendance", err)
		return
	}
	s.writeResponse(w, http.StatusOK, event)
}

func (s *Server) rescheduleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.app.RequestReschedule(ctx, id, req)
	if err != nil {
		s.writeError(w, "requesting reschedule", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, created)
}

func (s *Server) listRequestsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	requests, err := s.app.ListChangeRequests(ctx, id)
	if err != nil {
		s.writeError(w, "listing change requests", err)
		return
	}
	s.writeResponse(w, http.StatusOK, requests)
}

func (s *Server) acceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	s.resolveRequestHandler(w, r, s.app.AcceptReschedule)
}

func (s *Server) rejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	s.resolveRequestHandler(w, r, s.app.RejectReschedule)
}

func (s *Server) resolveRequestHandler(w http.ResponseWriter, r *http.Request, do func(context.Context, uuid.UUID, models.ResolveRequest) (models.ChangeRequest, models.Event, error)) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var resolve models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&resolve); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	request, event, err := do(ctx, id, resolve)
	if err != nil {
		s.writeError(w, "resolving change request", err)
		return
	}
	s.writeResponse(w, http.StatusOK, ResolutionResponse{Request: request, Event: event})
}

func (s *Server) cancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		ClinicID uuid.UUID `json:"clinicId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	// A clinic token may omit the id; the claim is authoritative then.
	if body.ClinicID == uuid.Nil {
		if claims := s.getClaims(ctx); claims != nil && claims.ClinicID != nil {
			body.ClinicID = *claims.ClinicID
		}
	}
	cancelled, err := s.app.CancelChangeRequest(ctx, id, body.ClinicID)
	if err != nil {
		s.writeError(w, "cancelling change request", err)
		return
	}
	s.writeResponse(w, http.StatusOK, cancelled)
}

func (s *Server) consultantEventsHandler(w http.ResponseWriter, r *http.Request) {
	s.listEventsHandler(w, r, s.app.ListEventsForConsultant)
}

func (s *Server) clinicEventsHandler(w http.ResponseWriter, r *http.Request) {
	s.listEventsHandler(w, r, s.app.ListEventsForClinic)
}

func (s *Server) listEventsHandler(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID, *time.Time, *time.Time) ([]models.Event, error)) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	events, err := list(ctx, id, from, to)
	if err != nil {
		s.writeError(w, "listing events", err)
		return
	}
	s.writeResponse(w, http.StatusOK, events)
}

func (s *Server) suggestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	params, err := parseSuggestParams(r)
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	params.ConsultantID = id
	slots, err := s.app.SuggestSlots(ctx, params)
	if err != nil {
		s.writeError(w, "suggesting slots", err)
		return
	}
	s.writeResponse(w, http.StatusOK, slots)
}

func parseSuggestParams(r *http.Request) (models.SuggestParams, error) {
	q := r.URL.Query()
	var p models.SuggestParams
	var err error
	if p.DurationMinutes, err = strconv.Atoi(q.Get("duration")); err != nil {
		return p, fmt.Errorf("bad duration: %w", err)
	}
	if p.RangeStart, err = time.Parse(time.RFC3339, q.Get("from")); err != nil {
		return p, fmt.Errorf("bad from: %w", err)
	}
	if p.RangeEnd, err = time.Parse(time.RFC3339, q.Get("to")); err != nil {
		return p, fmt.Errorf("bad to: %w", err)
	}
	for _, raw := range strings.Split(q.Get("days"), ",") {
		if raw == "" {
			continue
		}
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day > 6 {
			return p, fmt.Errorf("bad days value %q", raw)
		}
		p.Working.Days = append(p.Working.Days, time.Weekday(day))
	}
	p.Working.DayStart = q.Get("dayStart")
	p.Working.DayEnd = q.Get("dayEnd")
	for param, target := range map[string]*int{
		"buffer": &p.BufferMinutes,
		"step":   &p.StepMinutes,
		"limit":  &p.Limit,
	} {
		if q.Get(param) == "" {
			continue
		}
		if *target, err = strconv.Atoi(q.Get(param)); err != nil {
			return p, fmt.Errorf("bad %s: %w", param, err)
		}
	}
	return p, nil
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", name, err)
	}
	return &parsed, nil
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, conflict 409, missing 404, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		s.writeResponse(w, http.StatusBadRequest, err)
	case errors.Is(err, models.ErrSchedulingConflict):
		s.writeResponse(w, http.StatusConflict, err)
	case errors.Is(err, models.ErrNotFound):
		s.writeResponse(w, http.StatusNotFound, err)
	default:
		s.log.Warnf("err during %s: %v", action, err)
		s.writeResponse(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if x, ok := data.(error); ok {
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: x.Error()}); err != nil {
			s.log.Warnf("err during encoding error: %v", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during encoding responce: %v", err)
	}
}
