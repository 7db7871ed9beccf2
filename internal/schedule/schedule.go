// Package schedule decides what a check's status is and when its next
// signal is due. Everything here is a pure function of the check's fields
// and the supplied clock reading; the stored alert_after column is only a
// cache of Deadline and is never trusted as source of truth.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/play-it-team/healthchecks/internal/domain/check"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Deadline computes the moment after which a check counts as overdue,
// starting from its most recent qualifying ping. For simple checks that is
// from+timeout+grace; for cron checks it is the first schedule occurrence
// strictly after from, plus grace.
func Deadline(c *check.Check, from time.Time) (time.Time, error) {
	switch c.Kind {
	case check.KindCron:
		sched, err := cronParser.Parse(c.Schedule)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse schedule %q: %w", c.Schedule, err)
		}
		return sched.Next(from).Add(c.Grace), nil
	default:
		return from.Add(c.Timeout).Add(c.Grace), nil
	}
}

// Status evaluates the check's current status. Rules, in order:
// paused is sticky until ingestion clears it on the next ping; a check with
// no pings yet is new; a fail ping forces down; otherwise the check is down
// strictly after its deadline and up otherwise. A signal landing exactly on
// the deadline is on time.
func Status(c *check.Check, now time.Time) check.Status {
	if c.Status == check.StatusPaused {
		return check.StatusPaused
	}
	if c.LastPing.IsZero() {
		return check.StatusNew
	}
	if c.LastPingWasFail {
		return check.StatusDown
	}
	deadline, err := Deadline(c, c.LastPing)
	if err != nil {
		// Unparseable schedules are rejected at creation; a legacy bad row
		// can't be meaningfully overdue, so report it up.
		return check.StatusUp
	}
	if now.After(deadline) {
		return check.StatusDown
	}
	return check.StatusUp
}

// Validate checks creation-time schedule inputs: durations must be
// non-negative (zero is legal and means "ping again immediately") and a
// cron-kind schedule has to parse.
func Validate(c *check.Check) error {
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %v", c.Timeout)
	}
	if c.Grace < 0 {
		return fmt.Errorf("negative grace %v", c.Grace)
	}
	if c.Kind == check.KindCron {
		if _, err := cronParser.Parse(c.Schedule); err != nil {
			return fmt.Errorf("parse schedule %q: %w", c.Schedule, err)
		}
	}
	return nil
}
