package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/schedule"
)

func simpleCheck(timeout, grace time.Duration) *check.Check {
	return &check.Check{
		Kind:    check.KindSimple,
		Timeout: timeout,
		Grace:   grace,
		Status:  check.StatusUp,
	}
}

func TestDeadline_Simple(t *testing.T) {
	c := simpleCheck(time.Hour, 15*time.Minute)
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := schedule.Deadline(c, from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(time.Hour+15*time.Minute), got)
}

func TestDeadline_SimpleZeroDurations(t *testing.T) {
	c := simpleCheck(0, 0)
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := schedule.Deadline(c, from)
	require.NoError(t, err)
	assert.Equal(t, from, got)
}

func TestDeadline_Cron(t *testing.T) {
	c := &check.Check{
		Kind:     check.KindCron,
		Schedule: "0 * * * *",
		Grace:    10 * time.Minute,
		Status:   check.StatusUp,
	}
	from := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	got, err := schedule.Deadline(c, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 10, 0, 0, time.UTC), got)
}

func TestDeadline_CronBadSchedule(t *testing.T) {
	c := &check.Check{Kind: check.KindCron, Schedule: "not a schedule"}

	_, err := schedule.Deadline(c, time.Now())
	assert.Error(t, err)
}

func TestStatus_NoPingsIsNew(t *testing.T) {
	c := simpleCheck(time.Hour, 0)
	c.Status = check.StatusNew

	assert.Equal(t, check.StatusNew, schedule.Status(c, time.Now()))
}

func TestStatus_PausedIsSticky(t *testing.T) {
	c := simpleCheck(time.Minute, 0)
	c.Status = check.StatusPaused
	c.LastPing = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Way past the deadline, still paused.
	now := c.LastPing.Add(48 * time.Hour)
	assert.Equal(t, check.StatusPaused, schedule.Status(c, now))
}

func TestStatus_FailPingForcesDown(t *testing.T) {
	c := simpleCheck(time.Hour, time.Hour)
	c.LastPing = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.LastPingWasFail = true

	// Immediately after the ping, nowhere near the deadline.
	now := c.LastPing.Add(time.Second)
	assert.Equal(t, check.StatusDown, schedule.Status(c, now))
}

func TestStatus_DeadlineIsExclusive(t *testing.T) {
	c := simpleCheck(60*time.Second, 10*time.Second)
	c.LastPing = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := c.LastPing.Add(70 * time.Second)

	// Exactly on the deadline counts as on time.
	assert.Equal(t, check.StatusUp, schedule.Status(c, deadline))
	// One nanosecond past and the check is overdue.
	assert.Equal(t, check.StatusDown, schedule.Status(c, deadline.Add(time.Nanosecond)))
}

func TestStatus_SimpleOverdue(t *testing.T) {
	c := simpleCheck(60*time.Second, 10*time.Second)
	c.LastPing = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	now := c.LastPing.Add(71 * time.Second)
	assert.Equal(t, check.StatusDown, schedule.Status(c, now))
}

func TestStatus_CronUpUntilNextOccurrence(t *testing.T) {
	c := &check.Check{
		Kind:     check.KindCron,
		Schedule: "*/15 * * * *",
		Grace:    5 * time.Minute,
		Status:   check.StatusUp,
	}
	c.LastPing = time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	// Next occurrence 12:15, plus grace 12:20.
	assert.Equal(t, check.StatusUp, schedule.Status(c, time.Date(2026, 3, 1, 12, 19, 0, 0, time.UTC)))
	assert.Equal(t, check.StatusDown, schedule.Status(c, time.Date(2026, 3, 1, 12, 20, 1, 0, time.UTC)))
}

func TestStatus_BadScheduleStaysUp(t *testing.T) {
	c := &check.Check{
		Kind:     check.KindCron,
		Schedule: "garbage",
		Status:   check.StatusUp,
	}
	c.LastPing = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, check.StatusUp, schedule.Status(c, c.LastPing.Add(100*time.Hour)))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, schedule.Validate(simpleCheck(time.Hour, 0)))
	assert.NoError(t, schedule.Validate(simpleCheck(0, 0)))
	assert.Error(t, schedule.Validate(simpleCheck(-time.Second, 0)))
	assert.Error(t, schedule.Validate(simpleCheck(time.Hour, -time.Second)))

	cron := &check.Check{Kind: check.KindCron, Schedule: "0 0 * * *"}
	assert.NoError(t, schedule.Validate(cron))

	cron.Schedule = "61 0 * * *"
	assert.Error(t, schedule.Validate(cron))
}
