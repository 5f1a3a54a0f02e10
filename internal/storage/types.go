package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": jsonl files next to Path
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery is one audit record.
// Keep it compact and schema-stable.
type Delivery struct {
	At      time.Time `json:"at"`
	Event   string    `json:"event"` // reminder.fired, notifier.sent, notifier.failed
	Key     string    `json:"key"`
	Channel string    `json:"channel,omitempty"`
	Title   string    `json:"title,omitempty"`
	Body    string    `json:"body,omitempty"`
	DueAt   time.Time `json:"due_at,omitzero"`
	DryRun  bool      `json:"dry_run,omitempty"`
	Error   string    `json:"error,omitempty"`
}
