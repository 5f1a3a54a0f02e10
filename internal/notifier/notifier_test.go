package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"todoreminder/internal/eventbus"
	logx "todoreminder/pkg/logx"
)

type recordingChannel struct {
	name string
	fail int // fail this many sends first

	mu    sync.Mutex
	calls int
	sent  []Notification
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.fail {
		return errors.New("unavailable")
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *recordingChannel) delivered() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.sent...)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		QueueSize:     8,
		RatePerSec:    100,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		DedupWindow:   time.Minute,
	}
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return e.Data.(Event)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestNotifyDeliversToEveryChannel(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	s := New(testConfig(), []Channel{a, b}, logx.Nop(), bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	n := Notification{Title: "Todo reminder from todo.txt", Body: "task ", Key: "* task [^1:remind me in 1 s]\n"}
	require.NoError(t, s.Notify(ctx, n))

	waitEvent(t, events, EventSent)
	waitEvent(t, events, EventSent)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)

	assert.Equal(t, []Notification{n}, a.delivered())
	assert.Equal(t, []Notification{n}, b.delivered())
	assert.Len(t, s.Snapshot(), 2)
}

func TestNotifyDedupsByKey(t *testing.T) {
	ch := &recordingChannel{name: "a"}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	s := New(testConfig(), []Channel{ch}, logx.Nop(), bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	n := Notification{Title: "t", Body: "b", Key: "same line"}
	require.NoError(t, s.Notify(ctx, n))
	require.NoError(t, s.Notify(ctx, n))

	ev := waitEvent(t, events, EventDeduped)
	assert.Equal(t, "same line", ev.Key)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	assert.Len(t, ch.delivered(), 1)
}

func TestRetryThenSucceed(t *testing.T) {
	ch := &recordingChannel{name: "flaky", fail: 2}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	s := New(testConfig(), []Channel{ch}, logx.Nop(), bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.Notify(ctx, Notification{Title: "t", Body: "b", Key: "k"}))
	waitEvent(t, events, EventSent)
	assert.Len(t, ch.delivered(), 1)
}

func TestRetryExhaustedPublishesFailure(t *testing.T) {
	ch := &recordingChannel{name: "down", fail: 100}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	s := New(testConfig(), []Channel{ch}, logx.Nop(), bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.NoError(t, s.Notify(ctx, Notification{Title: "t", Body: "b", Key: "k"}))
	ev := waitEvent(t, events, EventFailed)
	assert.Equal(t, "down", ev.Channel)
	assert.Equal(t, "unavailable", ev.Error)

	ch.mu.Lock()
	assert.Equal(t, 3, ch.calls, "one attempt plus two retries")
	ch.mu.Unlock()
}

func TestNotifyStates(t *testing.T) {
	ctx := context.Background()

	off := New(Config{Enabled: false}, nil, logx.Nop(), nil, nil)
	assert.ErrorIs(t, off.Notify(ctx, Notification{Key: "k"}), ErrDisabled)

	idle := New(testConfig(), nil, logx.Nop(), nil, nil)
	assert.ErrorIs(t, idle.Notify(ctx, Notification{Key: "k"}), ErrStopped)
}

type blockingChannel struct{ release chan struct{} }

func (b blockingChannel) Name() string { return "blocking" }

func (b blockingChannel) Send(ctx context.Context, _ Notification) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestNotifyQueueFull(t *testing.T) {
	block := blockingChannel{release: make(chan struct{})}
	cfg := testConfig()
	cfg.QueueSize = 1
	cfg.DedupWindow = 0

	s := New(cfg, []Channel{block}, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer close(block.release)

	var full bool
	for i := 0; i < 10 && !full; i++ {
		full = errors.Is(s.Notify(ctx, Notification{Key: "k"}), ErrQueueFull)
	}
	assert.True(t, full, "a stuck worker must not make Notify block")
}

func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 6; attempt++ {
		d := retryDelay(cfg, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.LessOrEqual(t, retryDelay(cfg, 1), 130*time.Millisecond)
}

func TestDesktopCommand(t *testing.T) {
	t.Parallel()
	n := Notification{Title: "Todo reminder from todo.txt", Body: `say "hi"`}

	name, args, err := desktopCommand("linux", n)
	require.NoError(t, err)
	assert.Equal(t, "notify-send", name)
	assert.Equal(t, []string{"--app-name=todoreminder", "--", n.Title, n.Body}, args)

	name, args, err = desktopCommand("darwin", n)
	require.NoError(t, err)
	assert.Equal(t, "osascript", name)
	assert.Equal(t, `display notification "say \"hi\"" with title "Todo reminder from todo.txt"`, args[1])

	_, _, err = desktopCommand("plan9", n)
	assert.Error(t, err)
}

func TestDesktopSendRunsCommand(t *testing.T) {
	t.Parallel()
	var gotName string
	var gotArgs []string
	d := &Desktop{goos: "linux", run: func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}}
	require.NoError(t, d.Send(context.Background(), Notification{Title: "t", Body: "b"}))
	assert.Equal(t, "notify-send", gotName)
	assert.Equal(t, "b", gotArgs[len(gotArgs)-1])
}

type fakeBot struct {
	to   tele.Recipient
	text string
	opts []interface{}
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.to = to
	f.text, _ = what.(string)
	f.opts = opts
	return &tele.Message{ID: 1}, nil
}

func TestTelegramSend(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := &Telegram{cfg: TelegramConfig{Token: "x", ChatID: 42, ThreadID: 7}, bot: bot}

	require.NoError(t, tg.Send(context.Background(), Notification{Title: "Todo reminder", Body: "call mom "}))
	assert.Equal(t, "42", bot.to.Recipient())
	assert.Equal(t, "Todo reminder\ncall mom", bot.text)
	require.Len(t, bot.opts, 1)
	opts := bot.opts[0].(*tele.SendOptions)
	assert.Equal(t, 7, opts.ThreadID)
}

func TestTelegramConfigRequired(t *testing.T) {
	t.Parallel()
	_, err := NewTelegram(TelegramConfig{})
	assert.Error(t, err)
	_, err = NewTelegram(TelegramConfig{Token: "x"})
	assert.Error(t, err)
}

func TestTelegramTextTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("é", telegramTextLimit)
	got := telegramText(Notification{Body: body})
	assert.LessOrEqual(t, len(got), telegramTextLimit)
	assert.True(t, strings.HasPrefix(body, got))
}

func TestLogChannel(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	l := NewLog(logx.NewWriter(&buf, "info"))
	require.NoError(t, l.Send(context.Background(), Notification{Title: "T", Body: "task "}))
	assert.Contains(t, buf.String(), `"body":"task "`)
	assert.Contains(t, buf.String(), `"title":"T"`)
}
