// Package watch reports changes to a single file.
//
// Two implementations exist: Notify (fsnotify, the default) and Poll (stat on
// a cron schedule, for filesystems where change notification is unreliable).
package watch

import (
	"context"
	"math/rand"
	"os"
	"time"
)

// Change is what happened to the watched path.
type Change int

const (
	// Modified means the file was written in place.
	Modified Change = iota + 1
	// Renamed means the path now points at a different file (editor save via rename).
	Renamed
	// Deleted means the path no longer exists.
	Deleted
)

func (c Change) String() string {
	switch c {
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Observer delivers file changes. Only the latest pending change is kept, so a
// slow consumer sees the current state rather than a backlog.
type Observer interface {
	Changes() <-chan Change
}

// Runner is an Observer that needs a goroutine to run.
type Runner interface {
	Observer
	Run(ctx context.Context) error
}

// mailbox is a one-slot, latest-wins channel.
type mailbox chan Change

func newMailbox() mailbox { return make(mailbox, 1) }

func (m mailbox) publish(c Change) {
	select {
	case m <- c:
		return
	default:
	}
	// drop the stale change, then push the newest
	select {
	case <-m:
	default:
	}
	select {
	case m <- c:
	default:
	}
}

// fileState is the part of a stat result used to detect changes.
type fileState struct {
	info    os.FileInfo
	exists  bool
	size    int64
	modTime time.Time
}

func statFile(path string) (fileState, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, nil
		}
		return fileState{}, err
	}
	return fileState{info: fi, exists: true, size: fi.Size(), modTime: fi.ModTime()}, nil
}

// classify compares two stats of the same path. ok is false when nothing changed.
func classify(prev, cur fileState, replaced bool) (Change, bool) {
	switch {
	case !cur.exists:
		return Deleted, true
	case !prev.exists:
		return Renamed, true
	case replaced || !os.SameFile(prev.info, cur.info):
		return Renamed, true
	case prev.size != cur.size || !prev.modTime.Equal(cur.modTime):
		return Modified, true
	default:
		return 0, false
	}
}

// backoff is a jittered exponential restart delay.
type backoff struct {
	base, max, cur time.Duration
	rng            *rand.Rand
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, cur: base, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (b *backoff) next() time.Duration {
	wait := b.cur + time.Duration(b.rng.Int63n(int64(b.cur/2)+1))
	if b.cur < b.max {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	return wait
}

func (b *backoff) reset() { b.cur = b.base }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
