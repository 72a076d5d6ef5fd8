package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avelichko/consulta/pkg/models"
)

const (
	defaultStepMinutes = 30
	defaultSlotLimit   = 10
)

// SuggestSlots proposes free intervals for the consultant inside the
// requested range, honouring the working-hours rule and keeping a
// symmetric buffer around existing busy time. The result is chronological
// and holds at most Limit slots; an empty result is a valid answer.
func (s *ScheduleService) SuggestSlots(ctx context.Context, p models.SuggestParams) ([]models.Interval, error) {
	switch {
	case p.DurationMinutes < 1:
		return nil, fmt.Errorf("%w: durationMinutes must be at least 1", models.ErrValidation)
	case !p.RangeStart.Before(p.RangeEnd):
		return nil, fmt.Errorf("%w: rangeStart must be before rangeEnd", models.ErrValidation)
	case len(p.Working.Days) == 0:
		return nil, fmt.Errorf("%w: working days must not be empty", models.ErrValidation)
	}
	dayStart, err := parseClock(p.Working.DayStart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad dayStart: %v", models.ErrValidation, err)
	}
	dayEnd, err := parseClock(p.Working.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: bad dayEnd: %v", models.ErrValidation, err)
	}
	if dayEnd <= dayStart {
		return nil, fmt.Errorf("%w: dayEnd must be after dayStart", models.ErrValidation)
	}
	busy, err := s.store.BusyIntervals(ctx, p.ConsultantID, p.RangeStart, p.RangeEnd)
	if err != nil {
		return nil, fmt.Errorf("err loading busy intervals: %w", err)
	}
	if s.external != nil {
		ext, err := s.external.BusyIntervals(ctx, p.RangeStart, p.RangeEnd)
		if err != nil {
			// The external calendar is advisory; suggestions still come
			// from the store of record.
			s.log.Warnf("err loading external busy intervals: %v", err)
		} else {
			busy = append(busy, ext...)
		}
	}
	return freeSlots(busy, p, dayStart, dayEnd), nil
}

// freeSlots is the pure search: expand busy intervals by the buffer, walk
// eligible days and stepped candidate starts, keep candidates free of any
// expanded busy interval.
func freeSlots(busy []models.Interval, p models.SuggestParams, dayStartMin, dayEndMin int) []models.Interval {
	buffer := time.Duration(p.BufferMinutes) * time.Minute
	expanded := make([]models.Interval, 0, len(busy))
	for _, b := range busy {
		expanded = append(expanded, models.Interval{Start: b.Start.Add(-buffer), End: b.End.Add(buffer)})
	}

	step := time.Duration(p.StepMinutes) * time.Minute
	if p.StepMinutes <= 0 {
		step = defaultStepMinutes * time.Minute
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSlotLimit
	}
	duration := time.Duration(p.DurationMinutes) * time.Minute

	allowed := make(map[time.Weekday]bool, len(p.Working.Days))
	for _, d := range p.Working.Days {
		allowed[d] = true
	}

	slots := make([]models.Interval, 0, limit)
	lastDay := dateOf(p.RangeEnd)
	for day := dateOf(p.RangeStart); !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if !allowed[day.Weekday()] {
			continue
		}
		windowEnd := day.Add(time.Duration(dayEndMin) * time.Minute)
		for at := day.Add(time.Duration(dayStartMin) * time.Minute); ; at = at.Add(step) {
			slot := models.Interval{Start: at, End: at.Add(duration)}
			if slot.End.After(windowEnd) {
				break
			}
			free := true
			for _, b := range expanded {
				if slot.Overlaps(b) {
					free = false
					break
				}
			}
			if free {
				slots = append(slots, slot)
				if len(slots) == limit {
					return slots
				}
			}
		}
	}
	return slots
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// parseClock turns a "15:04" wall-clock string into minutes from
// midnight.
func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
