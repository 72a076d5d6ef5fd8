// Package relay pushes state-change signals to external systems. Delivery
// is single-shot and best-effort: no retry, no ordering guarantee, and a
// missing endpoint is a silent no-op.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avelichko/consulta/pkg/metrics"
	"github.com/avelichko/consulta/pkg/models"
)

const requestTimeout = 5 * time.Second

// Webhook posts each signal as {"type": ..., "payload": ...} to one
// configured endpoint.
type Webhook struct {
	log      *logrus.Entry
	endpoint string
	client   *http.Client
}

func NewWebhook(log *logrus.Logger, endpoint string) *Webhook {
	return &Webhook{
		log:      log.WithField("component", "relay"),
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

func (w *Webhook) Publish(ctx context.Context, signal models.Signal) error {
	if w.endpoint == "" {
		return nil
	}
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("err encoding %s signal: %w", signal.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("err building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		metrics.RelayErrCount.WithLabelValues(string(signal.Type)).Inc()
		return fmt.Errorf("err posting %s signal: %w", signal.Type, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			w.log.Warnf("err closing webhook response body: %v", err)
		}
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		metrics.RelayErrCount.WithLabelValues(string(signal.Type)).Inc()
		return fmt.Errorf("webhook returned %s for %s signal", resp.Status, signal.Type)
	}
	return nil
}

// Multi fans one signal out to several sinks; every sink is attempted and
// the first error is reported for logging.
type Multi []interface {
	Publish(ctx context.Context, signal models.Signal) error
}

func (m Multi) Publish(ctx context.Context, signal models.Signal) error {
	var first error
	for _, sink := range m {
		if err := sink.Publish(ctx, signal); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dummy only logs signals; handy for tests and local runs without an
// endpoint.
type Dummy struct {
	log *logrus.Entry
}

func NewDummy(log *logrus.Logger) *Dummy {
	return &Dummy{
		log: log.WithField("component", "relay"),
	}
}

func (d *Dummy) Publish(_ context.Context, signal models.Signal) error {
	d.log.Infof("signal %s: %+v", signal.Type, signal.Payload)
	return nil
}
