package reaper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/outbox"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/services/reaper"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeChecks struct {
	check.Repo

	byCode  map[string]*check.Check
	overdue []string
}

func (f *fakeChecks) FetchOverdue(context.Context, time.Time, int) ([]*check.Check, error) {
	var out []*check.Check
	for _, code := range f.overdue {
		cp := *f.byCode[code]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeChecks) Update(_ context.Context, c *check.Check) error {
	cur, ok := f.byCode[c.Code]
	if !ok {
		return postgres.ErrNotFound
	}
	if cur.Version != c.Version {
		return postgres.ErrConflict
	}
	c.Version++
	cp := *c
	f.byCode[c.Code] = &cp
	return nil
}

type fakeOutbox struct {
	outbox.Repository

	keys []string
	data [][]byte
}

func (f *fakeOutbox) Enqueue(_ context.Context, key string, _ outbox.Kind, data []byte) error {
	for _, k := range f.keys {
		if k == key {
			return nil
		}
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func overdueCheck(code string, lastPing time.Time) *check.Check {
	c := &check.Check{
		ID:      1,
		Code:    code,
		Kind:    check.KindSimple,
		Timeout: 60 * time.Second,
		Grace:   10 * time.Second,
		Status:  check.StatusUp,
		Version: 1,
	}
	c.LastPing = lastPing
	c.AlertAfter = lastPing.Add(70 * time.Second)
	return c
}

func newFixture(t *testing.T, now time.Time, checks *fakeChecks) (*reaper.Usecase, *fakeOutbox, *fakeClock) {
	t.Helper()
	ob := &fakeOutbox{}
	clock := &fakeClock{now: now}
	return reaper.NewUC(checks, ob, passTx{}, clock, zap.NewNop()), ob, clock
}

func TestTick_FlipsOverdueCheck(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := overdueCheck("abc", t0)
	checks := &fakeChecks{byCode: map[string]*check.Check{"abc": c}, overdue: []string{"abc"}}

	// 71s after the ping: 60s timeout + 10s grace expired one second ago.
	uc, ob, _ := newFixture(t, t0.Add(71*time.Second), checks)

	fetched, flipped, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 1, flipped)
	assert.Equal(t, 0, errs)

	assert.Equal(t, check.StatusDown, checks.byCode["abc"].Status)
	require.Len(t, ob.keys, 1)
	assert.Contains(t, string(ob.data[0]), `"old":"up"`)
	assert.Contains(t, string(ob.data[0]), `"new":"down"`)
}

func TestTick_StaleCacheDoesNotFlip(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := overdueCheck("abc", t0)
	// The stored deadline says overdue, but a fresher ping moved the real
	// deadline out; only the cache is behind.
	c.LastPing = t0.Add(60 * time.Second)
	checks := &fakeChecks{byCode: map[string]*check.Check{"abc": c}, overdue: []string{"abc"}}

	uc, ob, _ := newFixture(t, t0.Add(71*time.Second), checks)

	fetched, flipped, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 0, flipped)
	assert.Equal(t, 0, errs)

	got := checks.byCode["abc"]
	assert.Equal(t, check.StatusUp, got.Status)
	// The cache got refreshed so the next sweep skips this row.
	assert.Equal(t, c.LastPing.Add(70*time.Second), got.AlertAfter)
	assert.Empty(t, ob.keys)
}

func TestTick_ExactDeadlineIsOnTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := overdueCheck("abc", t0)
	checks := &fakeChecks{byCode: map[string]*check.Check{"abc": c}, overdue: []string{"abc"}}

	uc, ob, _ := newFixture(t, t0.Add(70*time.Second), checks)

	_, flipped, _, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)
	assert.Equal(t, check.StatusUp, checks.byCode["abc"].Status)
	assert.Empty(t, ob.keys)
}

func TestTick_ConflictMeansRacerOwnsTransition(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := overdueCheck("abc", t0)
	checks := &fakeChecks{byCode: map[string]*check.Check{"abc": c}, overdue: []string{"abc"}}

	uc, ob, _ := newFixture(t, t0.Add(71*time.Second), checks)

	// A ping lands after the fetch: the stored row moves on.
	checks.byCode["abc"].Version = 2

	fetched, flipped, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 0, flipped)
	assert.Equal(t, 0, errs)
	assert.Empty(t, ob.keys)
}

func TestTick_EmptyBatch(t *testing.T) {
	checks := &fakeChecks{byCode: map[string]*check.Check{}}
	uc, ob, _ := newFixture(t, time.Now(), checks)

	fetched, flipped, errs, err := uc.Tick(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, fetched)
	assert.Zero(t, flipped)
	assert.Zero(t, errs)
	assert.Empty(t, ob.keys)
}
