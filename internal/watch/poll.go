package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "todoreminder/pkg/logx"
)

// DefaultPollInterval is used when the poll cadence is empty.
const DefaultPollInterval = 2 * time.Second

var pollParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCadence accepts a Go duration ("2s") or a cron spec ("@every 5s",
// "*/10 * * * * *").
func ParseCadence(s string) (cron.Schedule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return cron.Every(DefaultPollInterval), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("poll interval must be positive: %q", s)
		}
		return cron.Every(d), nil
	}
	sched, err := pollParser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse poll cadence %q: %w", s, err)
	}
	return sched, nil
}

// Poll detects changes by comparing stat results on a schedule.
type Poll struct {
	path  string
	sched cron.Schedule
	log   logx.Logger
	now   func() time.Time
	out   mailbox
}

func NewPoll(path string, sched cron.Schedule, log logx.Logger) *Poll {
	if sched == nil {
		sched = cron.Every(DefaultPollInterval)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poll{path: path, sched: sched, log: log, now: time.Now, out: newMailbox()}
}

func (p *Poll) Changes() <-chan Change { return p.out }

func (p *Poll) Run(ctx context.Context) error {
	last, err := statFile(p.path)
	if err != nil {
		return err
	}
	p.log.Debug("poller started", logx.String("path", p.path))

	for {
		now := p.now()
		wait := p.sched.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		if !sleepCtx(ctx, wait) {
			return nil
		}

		cur, err := statFile(p.path)
		if err != nil {
			p.log.Warn("stat failed", logx.Err(err), logx.String("path", p.path))
			continue
		}
		c, ok := classify(last, cur, false)
		last = cur
		if !ok {
			continue
		}
		p.log.Debug("file change", logx.String("path", p.path), logx.String("change", c.String()))
		p.out.publish(c)
	}
}
