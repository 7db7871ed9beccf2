package postgres

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an optimistic-concurrency failure: someone else
	// advanced the row's version between our read and write.
	ErrConflict   = errors.New("conflict")
	ErrConstraint = errors.New("constraint violation")
)

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullTime(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return *p
}

func nullDur(d time.Duration) *int64 {
	if d == 0 {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
