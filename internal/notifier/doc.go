// Package notifier delivers reminder notifications.
//
// Service is an async pipeline: bounded queue, worker pool, rate limit,
// retry with jittered backoff and a dedup window keyed by the reminder. It
// fans every accepted notification out to its channels (desktop popup,
// Telegram chat, log).
//
// Lifecycle events are published on the event bus:
//
//	notifier.queued   accepted into the queue (once per channel)
//	notifier.deduped  suppressed by the dedup window
//	notifier.dropped  queue full
//	notifier.sent     a channel delivered it
//	notifier.failed   a channel gave up after retries
package notifier
