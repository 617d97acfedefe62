package models

import (
	"fmt"
	"time"
)

// DateLayout is the canonical wire/storage format for schedule dates.
const DateLayout = "2006-01-02"

// TimeLayout is the canonical format for shift start and custom slot times.
const TimeLayout = "15:04"

// Shift is a named working window. EndTime is derived from start + duration
// modulo 24h, so overnight shifts wrap past midnight.
type Shift struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	PositionID    string    `db:"position_id" json:"position_id"`
	StartTime     string    `db:"start_time" json:"start_time"`
	DurationHours float64   `db:"duration_hours" json:"duration_hours"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// StartOn anchors the shift start on the given calendar date.
func (s Shift) StartOn(date string) (time.Time, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse shift date %q: %w", date, err)
	}
	start, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse shift start %q: %w", s.StartTime, err)
	}
	return day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute), nil
}

// EndOn returns the shift end anchored on the given date. Overnight shifts end
// on the following day.
func (s Shift) EndOn(date string) (time.Time, error) {
	start, err := s.StartOn(date)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(s.DurationHours * float64(time.Hour))), nil
}

// EndTime reports the wall-clock end, wrapped mod 24h.
func (s Shift) EndTime() string {
	start, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return ""
	}
	return start.Add(time.Duration(s.DurationHours * float64(time.Hour))).Format(TimeLayout)
}
