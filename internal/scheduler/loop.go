// Package scheduler runs the scan / arm / fire loop over one task file.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"todoreminder/internal/eventbus"
	"todoreminder/internal/grammar"
	"todoreminder/internal/notifier"
	"todoreminder/internal/taskfile"
	"todoreminder/internal/watch"
	logx "todoreminder/pkg/logx"
)

// ErrFileDeleted stops the loop when the task file disappears.
var ErrFileDeleted = errors.New("task file deleted")

const (
	EventInvalid   = "reminder.invalid"
	EventRewritten = "taskfile.rewritten"
	EventFired     = "reminder.fired"
)

// InvalidEvent is the Data of reminder.invalid.
type InvalidEvent struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
	Err  string `json:"err"`
}

// RewrittenEvent is the Data of taskfile.rewritten.
type RewrittenEvent struct {
	Path    string `json:"path"`
	Stamped int    `json:"stamped"`
	Fired   int    `json:"fired"`
}

// FiredEvent is the Data of reminder.fired.
type FiredEvent struct {
	Path   string    `json:"path"`
	Key    string    `json:"key"`
	Body   string    `json:"body"`
	DueAt  time.Time `json:"due_at"`
	At     time.Time `json:"at"`
	DryRun bool      `json:"dry_run,omitempty"`
}

type Config struct {
	Path   string
	DryRun bool
	Title  string // notification title; defaults to "Todo reminder from <Path>"
}

type Deps struct {
	Parser   *grammar.Parser
	Observer watch.Observer
	Writer   taskfile.Writer
	Sink     notifier.Sink
	Bus      eventbus.Bus
	Log      logx.Logger
	Now      func() time.Time
}

// Loop owns the task file while it runs. It is not safe for concurrent use;
// Run is the only entry point.
type Loop struct {
	cfg    Config
	parser *grammar.Parser
	obs    watch.Observer
	writer taskfile.Writer
	sink   notifier.Sink
	bus    eventbus.Bus
	log    logx.Logger
	now    func() time.Time

	pending *queue

	// hash of the file content the loop last wrote or scanned
	lastHash uint64
	hashed   bool

	// dry run never writes '!', so fired lines are remembered here instead
	dryFired map[string]struct{}
}

func New(cfg Config, deps Deps) *Loop {
	if cfg.Title == "" {
		cfg.Title = "Todo reminder from " + cfg.Path
	}
	l := &Loop{
		cfg:      cfg,
		parser:   deps.Parser,
		obs:      deps.Observer,
		writer:   deps.Writer,
		sink:     deps.Sink,
		bus:      deps.Bus,
		log:      deps.Log,
		now:      deps.Now,
		pending:  newQueue(),
		dryFired: map[string]struct{}{},
	}
	if l.parser == nil {
		l.parser = grammar.MustNew()
	}
	if l.writer == nil {
		l.writer = taskfile.CopyWriter{}
	}
	if l.sink == nil {
		l.sink = notifier.SinkFunc(func(context.Context, notifier.Notification) error { return nil })
	}
	if l.bus == nil {
		l.bus = eventbus.Nop{}
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	l.log = l.log.With(logx.String("path", cfg.Path))
	return l
}

// Pending returns the number of armed reminders.
func (l *Loop) Pending() int { return l.pending.len() }

// Run scans the file, then alternates between waiting and working until ctx
// is canceled or a fatal error occurs.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.scan(true); err != nil {
		return err
	}

	var changes <-chan watch.Change
	if l.obs != nil {
		changes = l.obs.Changes()
	}

	for {
		// ARMED: a nil timer channel means wait on file changes alone
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if next, ok := l.pending.peek(); ok {
			d := max(next.At.Sub(l.now()), 0)
			timer = time.NewTimer(d)
			timerC = timer.C
			l.log.Debug("armed", logx.Time("due", next.At), logx.Duration("in", d), logx.Int("pending", l.pending.len()))
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil

		case c, ok := <-changes:
			stopTimer(timer)
			if !ok {
				changes = nil
				continue
			}
			switch c {
			case watch.Deleted:
				l.log.Error("task file deleted")
				return fmt.Errorf("%s: %w", l.cfg.Path, ErrFileDeleted)
			case watch.Renamed:
				if err := l.scan(true); err != nil {
					return err
				}
			default:
				if err := l.scan(false); err != nil {
					return err
				}
			}

		case <-timerC:
			if err := l.fire(ctx); err != nil {
				return err
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// scan rebuilds the pending set from the file. Unless force is set, a file
// whose content matches what the loop itself last wrote is skipped.
func (l *Loop) scan(force bool) error {
	content, err := os.ReadFile(l.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", l.cfg.Path, ErrFileDeleted)
		}
		return fmt.Errorf("read task file: %w", err)
	}
	sum := hashContent(content)
	if !force && l.hashed && sum == l.lastHash {
		l.log.Debug("content unchanged; scan skipped")
		return nil
	}

	now := l.now()
	entries, err := taskfile.ScanAll(bytes.NewReader(content), l.parser, now)
	if err != nil {
		return fmt.Errorf("scan task file: %w", err)
	}

	pending := newQueue()
	lines := make([]string, len(entries))
	stamped := 0
	for i, e := range entries {
		lines[i] = e.Text
		switch {
		case e.Kind == taskfile.Invalid:
			l.reportInvalid(e)
		case e.Schedulable():
			line := e.Text
			if e.IsNew {
				line = taskfile.Stamp(e.Text, e.At)
				lines[i] = line
				stamped++
				l.log.Info("reminder stamped", logx.Int("line", e.LineNo), logx.Time("due", e.At), logx.Bool("dry_run", l.cfg.DryRun))
			}
			if l.cfg.DryRun && l.firedInDryRun(e.Text, line) {
				continue
			}
			pending.push(Reminder{At: e.At, Line: line, Source: e.Text, LineNo: e.LineNo})
		}
	}
	l.pending = pending

	if stamped > 0 && !l.cfg.DryRun {
		if err := l.persist(lines); err != nil {
			return err
		}
		l.bus.Publish(eventbus.Event{Type: EventRewritten, Data: RewrittenEvent{Path: l.cfg.Path, Stamped: stamped}})
	} else {
		l.remember(sum)
	}
	l.log.Debug("scanned", logx.Int("lines", len(entries)), logx.Int("pending", pending.len()), logx.Int("stamped", stamped))
	return nil
}

func (l *Loop) reportInvalid(e taskfile.Entry) {
	text := strings.TrimRight(e.Text, "\r\n")
	l.log.Warn("invalid reminder",
		logx.Int("line", e.LineNo),
		logx.String("text", text),
		logx.Err(e.Err),
	)
	l.bus.Publish(eventbus.Event{Type: EventInvalid, Data: InvalidEvent{
		Path: l.cfg.Path,
		Line: e.LineNo,
		Text: text,
		Err:  e.Err.Error(),
	}})
}

// fire handles the earliest reminder, then rescans.
func (l *Loop) fire(ctx context.Context) error {
	r, ok := l.pending.pop()
	if !ok {
		return nil
	}
	firedAt := l.now()

	if l.cfg.DryRun {
		l.dryFired[r.Line] = struct{}{}
		l.dryFired[r.Source] = struct{}{}
	} else {
		marked, err := l.markFired(r.Line)
		if err != nil {
			return err
		}
		if marked == 0 {
			l.log.Warn("fired line not found in task file", logx.Int("line", r.LineNo))
		}
	}

	body := taskfile.NotificationBody(r.Line)
	l.log.Info("reminder fired",
		logx.Int("line", r.LineNo),
		logx.String("body", body),
		logx.Time("due", r.At),
		logx.Bool("dry_run", l.cfg.DryRun),
	)
	if !l.cfg.DryRun {
		n := notifier.Notification{Title: l.cfg.Title, Body: body, Key: r.Line, At: r.At}
		if err := l.sink.Notify(ctx, n); err != nil {
			// delivery is best-effort
			l.log.Warn("notification not delivered", logx.Err(err), logx.Int("line", r.LineNo))
		}
	}
	l.bus.Publish(eventbus.Event{Type: EventFired, Time: firedAt, Data: FiredEvent{
		Path:   l.cfg.Path,
		Key:    r.Line,
		Body:   body,
		DueAt:  r.At,
		At:     firedAt,
		DryRun: l.cfg.DryRun,
	}})

	return l.scan(true)
}

// markFired flips '^' to '!' on every line equal to key and persists the file.
func (l *Loop) markFired(key string) (int, error) {
	lines, err := taskfile.ReadLines(l.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", l.cfg.Path, ErrFileDeleted)
		}
		return 0, fmt.Errorf("read task file: %w", err)
	}
	marked := 0
	for i, line := range lines {
		if line != key {
			continue
		}
		if out, ok := taskfile.MarkFired(line); ok {
			lines[i] = out
			marked++
		}
	}
	if marked == 0 {
		return 0, nil
	}
	if err := l.persist(lines); err != nil {
		return 0, err
	}
	l.bus.Publish(eventbus.Event{Type: EventRewritten, Data: RewrittenEvent{Path: l.cfg.Path, Fired: marked}})
	return marked, nil
}

func (l *Loop) persist(lines []string) error {
	if err := l.writer.WriteLines(l.cfg.Path, lines); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	l.remember(hashContent([]byte(strings.Join(lines, ""))))
	return nil
}

func (l *Loop) remember(sum uint64) {
	l.lastHash = sum
	l.hashed = true
}

func (l *Loop) firedInDryRun(keys ...string) bool {
	for _, k := range keys {
		if _, ok := l.dryFired[k]; ok {
			return true
		}
	}
	return false
}

func hashContent(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
