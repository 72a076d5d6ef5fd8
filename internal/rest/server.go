package rest

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	log       *logrus.Entry
	app       App
	address   string
	version   string
	publicKey *rsa.PublicKey
}

func NewServer(log *logrus.Logger, app App, address, version string) *Server {
	s := Server{
		log:     log.WithField("component", "rest"),
		app:     app,
		address: address,
		version: version,
	}
	return &s
}

// WithPublicKey enables bearer-token authentication on the API routes.
// Without a key the API is open; role resolution happens upstream either
// way.
func (s *Server) WithPublicKey(key *rsa.PublicKey) *Server {
	s.publicKey = key
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/version", s.versionHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			if s.publicKey != nil {
				r.Use(s.jwtAuth)
			}
			r.Post("/events", s.createEventHandler)
			r.Get("/events/{id}", s.getEventHandler)
			r.Patch("/events/{id}", s.updateEventHandler)
			r.Delete("/events/{id}", s.cancelEventHandler)
			r.Get("/events/{id}/attendees", s.attendeesHandler)
			r.Post("/events/{id}/confirm", s.confirmHandler)
			r.Post("/events/{id}/decline", s.declineHandler)
			r.Post("/events/{id}/reschedule", s.rescheduleHandler)
			r.Get("/events/{id}/requests", s.listRequestsHandler)
			r.Post("/requests/{id}/accept", s.acceptRequestHandler)
			r.Post("/requests/{id}/reject", s.rejectRequestHandler)
			r.Post("/requests/{id}/cancel", s.cancelRequestHandler)
			r.Get("/consultants/{id}/events", s.consultantEventsHandler)
			r.Get("/consultants/{id}/slots", s.suggestHandler)
			r.Get("/clinics/{id}/events", s.clinicEventsHandler)
		})
	})
	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.address,
		Handler: s.router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during shutdown: %v", err)
		}
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
