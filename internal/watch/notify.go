package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "todoreminder/pkg/logx"
)

const (
	defaultDebounce    = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Notify watches a file through fsnotify.
//
// The parent directory is watched and events are filtered by basename, so
// editors that save by writing a new file and renaming it over the old one
// are still followed.
type Notify struct {
	path     string
	dir      string
	file     string
	debounce time.Duration
	log      logx.Logger

	out mailbox

	mu       sync.Mutex
	timer    *time.Timer
	last     fileState
	wrote    bool
	replaced bool
}

type NotifyOption func(*Notify)

func WithDebounce(d time.Duration) NotifyOption {
	return func(n *Notify) {
		if d > 0 {
			n.debounce = d
		}
	}
}

func WithLogger(log logx.Logger) NotifyOption {
	return func(n *Notify) { n.log = log }
}

func NewNotify(path string, opts ...NotifyOption) *Notify {
	n := &Notify{
		path:     path,
		dir:      filepath.Dir(path),
		file:     filepath.Base(path),
		debounce: defaultDebounce,
		log:      logx.Nop(),
		out:      newMailbox(),
	}
	for _, o := range opts {
		o(n)
	}
	if n.log.IsZero() {
		n.log = logx.Nop()
	}
	return n
}

func (n *Notify) Changes() <-chan Change { return n.out }

// Run watches until ctx is canceled. The fsnotify watcher is recreated with a
// jittered backoff whenever it breaks.
func (n *Notify) Run(ctx context.Context) error {
	st, err := statFile(n.path)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.last = st
	n.mu.Unlock()
	defer n.stopTimer()

	bo := newBackoff(restartBackoffBase, restartBackoffMax)
	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			n.log.Warn("watch init failed", logx.Err(err), logx.String("dir", n.dir))
			if !sleepCtx(ctx, bo.next()) {
				return nil
			}
			continue
		}
		if err := w.Add(n.dir); err != nil {
			_ = w.Close()
			n.log.Warn("watch add failed", logx.Err(err), logx.String("dir", n.dir))
			if !sleepCtx(ctx, bo.next()) {
				return nil
			}
			continue
		}

		bo.reset()
		n.log.Debug("watcher started", logx.String("dir", n.dir), logx.String("file", n.file))

		// inner loop runs until the watcher breaks, then the outer loop recreates it
		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) != n.file {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					n.schedule(ev.Op)
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means events were lost; re-check the file once.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					n.log.Warn("watch overflow; forcing check", logx.Err(err))
					n.schedule(fsnotify.Write)
					continue
				}
				n.log.Warn("watch error", logx.Err(err), logx.String("dir", n.dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		wait := bo.next()
		n.log.Warn("watcher stopped; restarting", logx.String("dir", n.dir), logx.Duration("backoff", wait))
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

// schedule debounces bursts of events (editors often write in several steps).
func (n *Notify) schedule(op fsnotify.Op) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if op&fsnotify.Write != 0 {
		n.wrote = true
	}
	if op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
		n.replaced = true
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.debounce, n.emit)
}

func (n *Notify) emit() {
	cur, err := statFile(n.path)
	if err != nil {
		n.log.Warn("stat failed", logx.Err(err), logx.String("path", n.path))
		return
	}

	n.mu.Lock()
	c, ok := classify(n.last, cur, n.replaced)
	if !ok && n.wrote {
		c, ok = Modified, true
	}
	n.last = cur
	n.wrote = false
	n.replaced = false
	n.mu.Unlock()

	if !ok {
		return
	}
	n.log.Debug("file change", logx.String("path", n.path), logx.String("change", c.String()))
	n.out.publish(c)
}

func (n *Notify) stopTimer() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()
}
