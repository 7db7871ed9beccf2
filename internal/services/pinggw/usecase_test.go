package pinggw_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/outbox"
	"github.com/play-it-team/healthchecks/internal/domain/ping"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
	"github.com/play-it-team/healthchecks/internal/services/pinggw"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeChecks struct {
	check.Repo

	byCode map[string]*check.Check
}

func (f *fakeChecks) GetByCode(_ context.Context, code string) (*check.Check, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *c
	return &cp, nil
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

type fakePings struct {
	ping.Repo

	appended []*ping.Ping
}

func (f *fakePings) Append(_ context.Context, p *ping.Ping) error {
	cp := *p
	f.appended = append(f.appended, &cp)
	return nil
}

type fakeOutbox struct {
	outbox.Repository

	keys []string
	data [][]byte
}

func (f *fakeOutbox) Enqueue(_ context.Context, key string, _ outbox.Kind, data []byte) error {
	// Same idempotency behavior as the table: conflicting keys are dropped.
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

func newFixture(t *testing.T, c *check.Check) (*pinggw.Usecase, *fakeChecks, *fakePings, *fakeOutbox, *fakeClock) {
	t.Helper()
	checks := &fakeChecks{byCode: map[string]*check.Check{}}
	if c != nil {
		checks.byCode[c.Code] = c
	}
	pings := &fakePings{}
	ob := &fakeOutbox{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	uc := pinggw.NewUC(checks, pings, ob, passTx{}, clock, zap.NewNop())
	return uc, checks, pings, ob, clock
}

func upCheck(code string) *check.Check {
	return &check.Check{
		ID:      1,
		Code:    code,
		Kind:    check.KindSimple,
		Timeout: time.Hour,
		Grace:   15 * time.Minute,
		Status:  check.StatusUp,
		Version: 1,
	}
}

func TestRecordPing_UnknownCode(t *testing.T) {
	uc, _, _, _, _ := newFixture(t, nil)

	err := uc.RecordPing(context.Background(), "nope", pinggw.PingMeta{})
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

func TestRecordPing_AdvancesCheck(t *testing.T) {
	c := upCheck("abc")
	uc, checks, pings, ob, clock := newFixture(t, c)

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{
		Method: "GET", RemoteAddr: "10.0.0.5", UserAgent: "curl/8",
	})
	require.NoError(t, err)

	got := checks.byCode["abc"]
	assert.Equal(t, int64(1), got.PingCount)
	assert.Equal(t, clock.now, got.LastPing)
	assert.Equal(t, clock.now.Add(time.Hour+15*time.Minute), got.AlertAfter)
	assert.Equal(t, check.StatusUp, got.Status)
	assert.Equal(t, int64(2), got.Version)

	require.Len(t, pings.appended, 1)
	assert.Equal(t, int64(1), pings.appended[0].Seq)
	assert.Equal(t, "10.0.0.5", pings.appended[0].RemoteAddr)

	// up -> up produces no event.
	assert.Empty(t, ob.keys)
}

func TestRecordPing_FirstPingLeavesNewSilently(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusNew
	uc, checks, _, ob, _ := newFixture(t, c)

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{})
	require.NoError(t, err)

	assert.Equal(t, check.StatusUp, checks.byCode["abc"].Status)
	assert.Empty(t, ob.keys)
}

func TestRecordPing_RecoveryNotifies(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusDown
	c.PingCount = 5
	uc, checks, _, ob, _ := newFixture(t, c)

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{})
	require.NoError(t, err)

	assert.Equal(t, check.StatusUp, checks.byCode["abc"].Status)
	require.Len(t, ob.keys, 1)
	assert.Contains(t, ob.keys[0], "status:abc:")
	assert.Contains(t, string(ob.data[0]), `"old":"down"`)
	assert.Contains(t, string(ob.data[0]), `"new":"up"`)
}

func TestRecordPing_FailForcesDown(t *testing.T) {
	c := upCheck("abc")
	uc, checks, _, ob, _ := newFixture(t, c)

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{Kind: ping.KindFail})
	require.NoError(t, err)

	got := checks.byCode["abc"]
	assert.Equal(t, check.StatusDown, got.Status)
	assert.True(t, got.LastPingWasFail)
	require.Len(t, ob.keys, 1)
	assert.Contains(t, string(ob.data[0]), `"new":"down"`)
}

func TestRecordPing_StartThenPingMeasuresDuration(t *testing.T) {
	c := upCheck("abc")
	uc, checks, _, _, clock := newFixture(t, c)

	require.NoError(t, uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{Kind: ping.KindStart}))
	assert.Equal(t, clock.now, checks.byCode["abc"].LastStart)

	clock.now = clock.now.Add(42 * time.Second)
	require.NoError(t, uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{}))

	got := checks.byCode["abc"]
	assert.Equal(t, 42*time.Second, got.LastDuration)
	assert.True(t, got.LastStart.IsZero())
	assert.Equal(t, int64(2), got.PingCount)
}

func TestRecordPing_LiftsPause(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusPaused
	c.PingCount = 3
	c.LastPing = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	uc, checks, _, ob, _ := newFixture(t, c)

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{})
	require.NoError(t, err)

	assert.Equal(t, check.StatusUp, checks.byCode["abc"].Status)
	// paused -> up is a real transition and reaches subscribers.
	require.Len(t, ob.keys, 1)
	assert.Contains(t, string(ob.data[0]), `"old":"paused"`)
}

func TestRecordPing_SameTransitionEnqueuedOnce(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusDown
	uc, _, _, ob, _ := newFixture(t, c)

	// Two pings in the same clock instant; the second one is up -> up and
	// even a replay of the first collapses on the idempotency key.
	require.NoError(t, uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{}))
	require.NoError(t, uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{}))

	assert.Len(t, ob.keys, 1)
}

func TestPause(t *testing.T) {
	c := upCheck("abc")
	uc, checks, _, ob, _ := newFixture(t, c)

	require.NoError(t, uc.Pause(context.Background(), "abc"))

	got := checks.byCode["abc"]
	assert.Equal(t, check.StatusPaused, got.Status)
	assert.True(t, got.AlertAfter.IsZero())
	// Pausing never notifies.
	assert.Empty(t, ob.keys)

	// Idempotent.
	require.NoError(t, uc.Pause(context.Background(), "abc"))
}

func TestResume(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusPaused
	c.LastPing = time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)
	uc, checks, _, ob, _ := newFixture(t, c)

	require.NoError(t, uc.Resume(context.Background(), "abc"))

	got := checks.byCode["abc"]
	// Half an hour since the last ping, well inside the 1h15m window.
	assert.Equal(t, check.StatusUp, got.Status)
	assert.Equal(t, c.LastPing.Add(time.Hour+15*time.Minute), got.AlertAfter)
	// Same as a ping lifting the pause: paused -> up reaches subscribers.
	require.Len(t, ob.keys, 1)
	assert.Contains(t, string(ob.data[0]), `"old":"paused"`)
	assert.Contains(t, string(ob.data[0]), `"new":"up"`)

	// Not paused: nothing to do.
	require.NoError(t, uc.Resume(context.Background(), "abc"))
	assert.Len(t, ob.keys, 1)
}

func TestResume_OverdueWhilePausedPublishesDown(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusPaused
	// Last ping two hours back, past the 1h15m window. The sweeper skips
	// paused rows, so this is the only place the flip can surface.
	c.LastPing = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uc, checks, _, ob, _ := newFixture(t, c)

	require.NoError(t, uc.Resume(context.Background(), "abc"))

	assert.Equal(t, check.StatusDown, checks.byCode["abc"].Status)
	require.Len(t, ob.keys, 1)
	assert.Contains(t, string(ob.data[0]), `"old":"paused"`)
	assert.Contains(t, string(ob.data[0]), `"new":"down"`)
}

func TestResume_NeverPinged(t *testing.T) {
	c := upCheck("abc")
	c.Status = check.StatusPaused
	uc, checks, _, ob, _ := newFixture(t, c)

	require.NoError(t, uc.Resume(context.Background(), "abc"))
	assert.Equal(t, check.StatusNew, checks.byCode["abc"].Status)
	// paused -> new is not a notifiable transition.
	assert.Empty(t, ob.keys)
}

type conflictOnce struct {
	*fakeChecks

	conflicts int
}

func (f *conflictOnce) Update(ctx context.Context, c *check.Check) error {
	if f.conflicts > 0 {
		f.conflicts--
		return postgres.ErrConflict
	}
	return f.fakeChecks.Update(ctx, c)
}

func TestRecordPing_RetriesOnConflict(t *testing.T) {
	c := upCheck("abc")
	checks := &conflictOnce{
		fakeChecks: &fakeChecks{byCode: map[string]*check.Check{"abc": c}},
		conflicts:  1,
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	uc := pinggw.NewUC(checks, &fakePings{}, &fakeOutbox{}, passTx{}, clock, zap.NewNop())

	err := uc.RecordPing(context.Background(), "abc", pinggw.PingMeta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), checks.byCode["abc"].PingCount)
}
