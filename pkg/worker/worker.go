// Package worker runs the periodic reconciliation loop: open change
// requests are re-read on an interval and newly arrived ones are surfaced
// to the resource owner. This is a caller-side pattern around the engine,
// not part of any transactional unit.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avelichko/consulta/pkg/models"
)

type Store interface {
	OpenChangeRequests(ctx context.Context) ([]models.ChangeRequest, error)
}

// Texter pushes a short human-readable line to the owner's side channel.
type Texter interface {
	Text(ctx context.Context, msg string) error
}

type Worker struct {
	log      *logrus.Entry
	store    Store
	texter   Texter
	interval time.Duration
	seen     map[uuid.UUID]bool
}

func New(log *logrus.Logger, store Store, texter Texter, interval time.Duration) *Worker {
	return &Worker{
		log:      log.WithField("component", "worker"),
		store:    store,
		texter:   texter,
		interval: interval,
		seen:     make(map[uuid.UUID]bool),
	}
}

// Run polls until the context is cancelled. Poll failures are logged and
// the loop keeps going; a missed tick only delays the nudge.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.reconcile(ctx); err != nil {
			w.log.Warnf("err reconciling open change requests: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) reconcile(ctx context.Context) error {
	open, err := w.store.OpenChangeRequests(ctx)
	if err != nil {
		return fmt.Errorf("worker reconcile faild: %w", err)
	}
	fresh := 0
	for _, req := range open {
		if w.seen[req.ID] {
			continue
		}
		w.seen[req.ID] = true
		fresh++
	}
	if fresh == 0 || w.texter == nil {
		return nil
	}
	msg := fmt.Sprintf("%d new reschedule request(s) waiting, %d open in total", fresh, len(open))
	if err := w.texter.Text(ctx, msg); err != nil {
		return fmt.Errorf("worker reconcile faild: %w", err)
	}
	return nil
}
