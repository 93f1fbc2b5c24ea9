// Package trigger turns human-friendly frequency strings into explicit
// firing plans checked by the scheduler's tick loop.
package trigger

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedFrequency is wrapped by ParseFrequency for inputs outside
// the supported vocabulary.
var ErrUnsupportedFrequency = errors.New("unsupported frequency")

var intervalPattern = regexp.MustCompile(`^(\d+)([mh])$`)

// ClockTime is a wall-clock anchor for daily and weekly plans.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" in 24-hour form.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid time of day: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String formats the anchor back to "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// on places the anchor on the calendar day of t.
func (c ClockTime) on(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

// Plan is one recurring firing rule: a base interval plus an optional
// wall-clock anchor. Nil plans mean manual-only.
type Plan struct {
	Every time.Duration
	At    *ClockTime
}

// ParseFrequency resolves a frequency string and optional "HH:MM" anchor
// into a plan. Empty and "manual" frequencies yield a nil plan with no
// error. The anchor only applies to daily and weekly frequencies.
func ParseFrequency(frequency, at string) (*Plan, error) {
	freq := strings.ToLower(strings.TrimSpace(frequency))
	if freq == "" || freq == "manual" {
		return nil, nil
	}

	if m := intervalPattern.FindStringSubmatch(freq); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, frequency)
		}
		unit := time.Minute
		if m[2] == "h" {
			unit = time.Hour
		}
		return &Plan{Every: time.Duration(n) * unit}, nil
	}

	var every time.Duration
	switch freq {
	case "daily", "day", "1d":
		every = 24 * time.Hour
	case "weekly", "week", "1w":
		every = 7 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, frequency)
	}

	plan := &Plan{Every: every}
	if strings.TrimSpace(at) != "" {
		clock, err := ParseClockTime(at)
		if err != nil {
			return nil, err
		}
		plan.At = &clock
	}
	return plan, nil
}

// FirstFire computes the initial firing time for a plan registered at now.
// Interval plans wait one full interval. A daily anchor fires today when the
// anchor is still ahead, otherwise tomorrow; a weekly anchor fires one week
// out at the anchored time.
func (p *Plan) FirstFire(now time.Time) time.Time {
	if p.At == nil {
		return now.Add(p.Every)
	}
	if p.Every == 24*time.Hour {
		candidate := p.At.on(now)
		if candidate.After(now) {
			return candidate
		}
		return candidate.AddDate(0, 0, 1)
	}
	return p.At.on(now.Add(p.Every))
}

// NextAfter computes the firing time that follows a fire observed at fired.
func (p *Plan) NextAfter(fired time.Time) time.Time {
	next := fired.Add(p.Every)
	if p.At == nil {
		return next
	}
	return p.At.on(next)
}
