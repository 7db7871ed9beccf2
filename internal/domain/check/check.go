package check

import (
	"strings"
	"time"
)

type Status string

const (
	StatusNew    Status = "new"
	StatusUp     Status = "up"
	StatusDown   Status = "down"
	StatusPaused Status = "paused"
)

type Kind string

const (
	KindSimple Kind = "simple"
	KindCron   Kind = "cron"
)

const (
	DefaultTimeout = 24 * time.Hour
	DefaultGrace   = time.Hour
)

// Check is a monitored liveness contract: a client is expected to ping it
// within the window derived from its kind, timeout/schedule and grace.
type Check struct {
	ID              int64         `json:"id"`
	Code            string        `json:"code"`
	ProjectID       int64         `json:"project_id"`
	Name            string        `json:"name"`
	Tags            string        `json:"tags"`
	Kind            Kind          `json:"kind"`
	Timeout         time.Duration `json:"timeout"`
	Grace           time.Duration `json:"grace"`
	Schedule        string        `json:"schedule"`
	PingCount       int64         `json:"ping_count"`
	LastStart       time.Time     `json:"last_start"`
	LastPing        time.Time     `json:"last_ping"`
	LastDuration    time.Duration `json:"last_duration"`
	LastPingWasFail bool          `json:"last_ping_was_fail"`
	AlertAfter      time.Time     `json:"alert_after"`
	Status          Status        `json:"status"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
}

// TagsList splits the space-delimited tag string, dropping empty entries.
func (c *Check) TagsList() []string {
	if c.Tags == "" {
		return nil
	}
	return strings.Fields(c.Tags)
}
