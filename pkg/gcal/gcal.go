// Package gcal reads busy intervals from a Google Calendar so externally
// booked time is excluded from slot suggestions.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/avelichko/consulta/pkg/models"
)

type Calendar struct {
	log        *logrus.Entry
	srv        *calendar.Service
	calendarID string
}

// New builds a read-only calendar client from an OAuth client-secret file
// and a previously saved token file.
func New(ctx context.Context, log *logrus.Logger, credentialsPath, tokenPath, calendarID string) (*Calendar, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("err reading client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("err parsing client secret file: %w", err)
	}
	token, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("err reading oauth token: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("err building calendar client: %w", err)
	}
	return &Calendar{
		log:        log.WithField("component", "gcal"),
		srv:        srv,
		calendarID: calendarID,
	}, nil
}

// BusyIntervals lists timed events in [from, to] as busy spans. All-day
// entries carry no DateTime and are skipped.
func (c *Calendar) BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error) {
	events, err := c.srv.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("err listing calendar events: %w", err)
	}
	intervals := make([]models.Interval, 0, len(events.Items))
	for _, item := range events.Items {
		if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			c.log.Warnf("err parsing event %s start: %v", item.Id, err)
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			c.log.Warnf("err parsing event %s end: %v", item.Id, err)
			continue
		}
		intervals = append(intervals, models.Interval{Start: start, End: end})
	}
	return intervals, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}
