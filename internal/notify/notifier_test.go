package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
	"github.com/play-it-team/healthchecks/internal/notify"
)

type fakeChannels struct {
	channel.Repo

	mu         sync.Mutex
	channels   []*channel.Channel
	lastErrors map[int64]string
}

func (f *fakeChannels) ListForCheck(context.Context, int64) ([]*channel.Channel, error) {
	return f.channels, nil
}

func (f *fakeChannels) UpdateLastError(_ context.Context, channelID int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErrors == nil {
		f.lastErrors = make(map[int64]string)
	}
	f.lastErrors[channelID] = lastError
	return nil
}

type fakeNotifs struct {
	notification.Repo

	mu        sync.Mutex
	nextID    int64
	created   []*notification.Notification
	updates   map[int64]string
	updateLog []string
}

func (f *fakeNotifs) Create(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	cp := *n
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeNotifs) UpdateError(_ context.Context, id int64, errText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[int64]string)
	}
	f.updates[id] = errText
	f.updateLog = append(f.updateLog, errText)
	return nil
}

type fakeTransport struct {
	noop bool
	err  error

	mu    sync.Mutex
	calls int
}

func (f *fakeTransport) IsNoop(*channel.Channel, *check.Check) bool { return f.noop }

func (f *fakeTransport) Notify(context.Context, *channel.Channel, *check.Check, *notification.Notification) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func testChannel(id int64, code string, kind channel.Kind, cfg channel.Config) *channel.Channel {
	return &channel.Channel{ID: id, Code: code, Kind: kind, Config: cfg}
}

func webhookCfg() channel.Config {
	return channel.Config{Webhook: &channel.WebhookConfig{URLDown: "http://example.org"}}
}

func TestNotifier_DeliversAndRecords(t *testing.T) {
	chans := &fakeChannels{channels: []*channel.Channel{
		testChannel(1, "wh-1", channel.KindWebhook, webhookCfg()),
	}}
	notifs := &fakeNotifs{}
	wh := &fakeTransport{}

	nf := notify.NewNotifier(zap.NewNop(), chans, notifs, &fakeTransport{}, wh, &fakeTransport{})
	results := nf.Notify(context.Background(), downCheck())

	require.Len(t, results, 1)
	assert.Empty(t, results["wh-1"])
	assert.Equal(t, 1, wh.calls)

	// Audit row starts in the sending state and ends cleared.
	require.Len(t, notifs.created, 1)
	assert.Equal(t, notification.ErrSending, notifs.created[0].Error)
	assert.Equal(t, "down", notifs.created[0].CheckStatus)
	assert.Equal(t, "", notifs.updates[notifs.created[0].ID])
	assert.Equal(t, "", chans.lastErrors[1])
}

func TestNotifier_NoopLeavesNoRow(t *testing.T) {
	chans := &fakeChannels{channels: []*channel.Channel{
		testChannel(1, "wh-1", channel.KindWebhook, webhookCfg()),
	}}
	notifs := &fakeNotifs{}
	wh := &fakeTransport{noop: true}

	nf := notify.NewNotifier(zap.NewNop(), chans, notifs, &fakeTransport{}, wh, &fakeTransport{})
	results := nf.Notify(context.Background(), downCheck())

	assert.Empty(t, results)
	assert.Empty(t, notifs.created)
	assert.Equal(t, 0, wh.calls)
}

func TestNotifier_ChannelsAreIndependent(t *testing.T) {
	chans := &fakeChannels{channels: []*channel.Channel{
		testChannel(1, "wh-bad", channel.KindWebhook, webhookCfg()),
		testChannel(2, "sh-ok", channel.KindShell, channel.Config{Shell: &channel.ShellConfig{CmdDown: "true"}}),
	}}
	notifs := &fakeNotifs{}
	wh := &fakeTransport{err: errors.New("Connection failed")}
	sh := &fakeTransport{}

	nf := notify.NewNotifier(zap.NewNop(), chans, notifs, &fakeTransport{}, wh, sh)
	results := nf.Notify(context.Background(), downCheck())

	require.Len(t, results, 2)
	assert.Equal(t, "Connection failed", results["wh-bad"])
	assert.Empty(t, results["sh-ok"])
	assert.Equal(t, 1, sh.calls)
	assert.Equal(t, "Connection failed", chans.lastErrors[1])
	assert.Equal(t, "", chans.lastErrors[2])
}

func TestNotifier_EmailOutcomeIsSettledByTheSend(t *testing.T) {
	mailer := &fakeMailer{done: make(chan struct{}), err: errors.New("smtp: connection refused")}
	notifs := &fakeNotifs{}

	ch := emailChannel(true, &channel.EmailConfig{Address: "ops@example.org", NotifyDown: true})
	ch.ID = 1
	chans := &fakeChannels{channels: []*channel.Channel{ch}}

	email := notify.NewEmail(mailer, notifs, chans, "http://hc.local", zap.NewNop())
	nf := notify.NewNotifier(zap.NewNop(), chans, notifs, email, &fakeTransport{}, &fakeTransport{})

	results := nf.Notify(context.Background(), downCheck())

	// The triggering flow sees no error; the outcome is still pending.
	require.Len(t, results, 1)
	assert.Empty(t, results["em-1"])

	waitClosed(t, mailer.done)
	require.Eventually(t, func() bool {
		notifs.mu.Lock()
		defer notifs.mu.Unlock()
		return len(notifs.updateLog) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Exactly one settle, written by the send itself. An extra empty write
	// from the dispatcher would record mail that was never sent, and it
	// would have landed before Notify returned.
	notifs.mu.Lock()
	assert.Equal(t, []string{"smtp: connection refused"}, notifs.updateLog)
	notifs.mu.Unlock()

	require.Eventually(t, func() bool {
		chans.mu.Lock()
		defer chans.mu.Unlock()
		return chans.lastErrors[1] == "smtp: connection refused"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifier_UnknownKindGetsAuditRow(t *testing.T) {
	// A legacy row whose kind was retired: no Config member is set.
	chans := &fakeChannels{channels: []*channel.Channel{
		testChannel(1, "old-1", channel.Kind("pushover"), channel.Config{}),
	}}
	notifs := &fakeNotifs{}

	nf := notify.NewNotifier(zap.NewNop(), chans, notifs, &fakeTransport{}, &fakeTransport{}, &fakeTransport{})
	results := nf.Notify(context.Background(), downCheck())

	require.Len(t, results, 1)
	assert.Contains(t, results["old-1"], "unknown channel kind")
	require.Len(t, notifs.created, 1)
	assert.Contains(t, notifs.created[0].Error, "unknown channel kind")
	assert.Contains(t, chans.lastErrors[1], "unknown channel kind")
}
