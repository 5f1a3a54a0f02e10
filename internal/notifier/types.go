package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Notification is one reminder ready to show.
type Notification struct {
	Title string
	Body  string
	Key   string    // reminder identity; used for dedup
	At    time.Time // when it was due
}

// Sink accepts notifications. Implementations must not block the caller on
// delivery.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Channel is one delivery target.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

type HistoryItem struct {
	At      time.Time
	Channel string
	Title   string
	Body    string
}

const (
	EventQueued  = "notifier.queued"
	EventDeduped = "notifier.deduped"
	EventDropped = "notifier.dropped"
	EventSent    = "notifier.sent"
	EventFailed  = "notifier.failed"
)

// Event is the Data of notifier events on the bus.
// Keep it small; subscribers may log or persist it.
type Event struct {
	Channel string    `json:"channel,omitempty"`
	Key     string    `json:"key"`
	Title   string    `json:"title,omitempty"`
	Body    string    `json:"body,omitempty"`
	DueAt   time.Time `json:"due_at,omitzero"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
