// Package notification models a single work/break reminder and the clock
// math derived from it.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// Description is the placeholder text every notification carries.
const Description = "sample"

// TimeLayout renders timestamps in local time for list and history tables.
const TimeLayout = "2006-01-02 15:04:05 -0700"

var ErrZeroDuration = errors.New("work_time and break_time both can not be zero")

// Notification is one scheduled reminder. Boundaries are computed once at
// construction so BreakExpiresAt >= WorkExpiresAt >= CreatedAt always holds.
type Notification struct {
	ID             uint16
	Description    string
	WorkMinutes    uint16
	BreakMinutes   uint16
	CreatedAt      time.Time
	WorkExpiresAt  time.Time
	BreakExpiresAt time.Time
}

// New builds a notification whose timeline begins at createdAt.
func New(id, workMinutes, breakMinutes uint16, createdAt time.Time) (Notification, error) {
	if workMinutes == 0 && breakMinutes == 0 {
		return Notification{}, ErrZeroDuration
	}
	work := createdAt.Add(minutes(workMinutes))
	return Notification{
		ID:             id,
		Description:    Description,
		WorkMinutes:    workMinutes,
		BreakMinutes:   breakMinutes,
		CreatedAt:      createdAt,
		WorkExpiresAt:  work,
		BreakExpiresAt: work.Add(minutes(breakMinutes)),
	}, nil
}

func minutes(m uint16) time.Duration { return time.Duration(m) * time.Minute }

// StartAt recovers the start of the timeline from the expiry columns alone.
func (n Notification) StartAt() time.Time {
	end := n.WorkExpiresAt
	if n.BreakExpiresAt.After(end) {
		end = n.BreakExpiresAt
	}
	return end.Add(-minutes(n.WorkMinutes) - minutes(n.BreakMinutes))
}

// WorkPercentage is 0 before StartAt, 100 from WorkExpiresAt on, and linear in between.
func (n Notification) WorkPercentage(now time.Time) float64 {
	start := n.StartAt()
	switch {
	case now.Before(start):
		return 0
	case !now.Before(n.WorkExpiresAt):
		return 100
	}
	total := n.WorkExpiresAt.Sub(start)
	return 100 * float64(now.Sub(start)) / float64(total)
}

// WorkRemaining is the time left until the work phase ends, never negative.
func (n Notification) WorkRemaining(now time.Time) time.Duration {
	return clampRemaining(n.WorkExpiresAt.Sub(now))
}

// BreakRemaining is the time left until the break phase ends, never negative.
// It counts from now, so it includes any remaining work time.
func (n Notification) BreakRemaining(now time.Time) time.Duration {
	return clampRemaining(n.BreakExpiresAt.Sub(now))
}

func clampRemaining(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// State names where a notification's timeline is at a given instant.
type State int

const (
	StateScheduled State = iota
	StateWorkRunning
	StateBreakRunning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateWorkRunning:
		return "work"
	case StateBreakRunning:
		return "break"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (n Notification) StateAt(now time.Time) State {
	switch {
	case now.Before(n.StartAt()):
		return StateScheduled
	case now.Before(n.WorkExpiresAt):
		return StateWorkRunning
	case now.Before(n.BreakExpiresAt):
		return StateBreakRunning
	default:
		return StateExpired
	}
}

// QueuedStart is the creation instant for a queued notification: right after
// the latest-expiring existing one, or now when there is none or it already ended.
func QueuedStart(latest *Notification, now time.Time) time.Time {
	if latest == nil {
		return now
	}
	end := latest.WorkExpiresAt
	if latest.BreakExpiresAt.After(end) {
		end = latest.BreakExpiresAt
	}
	if end.Before(now) {
		return now
	}
	return end
}

// FormatRemaining renders a remaining duration for a phase of the given length.
func FormatRemaining(phaseMinutes uint16, d time.Duration) string {
	if phaseMinutes == 0 {
		return "N/A"
	}
	if d <= 0 {
		return "00:00"
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func FormatTime(t time.Time) string { return t.Local().Format(TimeLayout) }
