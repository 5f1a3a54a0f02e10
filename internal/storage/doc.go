// Package storage records what the daemon delivered.
//
// Two things are kept:
//   - delivery records (append-only; fired reminders and notifier outcomes)
//   - notifier dedup windows, so a restart does not deliver a reminder twice
//
// The task file stays the only source of truth for scheduling. Nothing here
// is read back by the scheduler.
package storage
