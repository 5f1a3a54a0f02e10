// Package app wires the reminder daemon together: logging, storage, the
// notifier, the file observer and the scheduler loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todoreminder/internal/config"
	"todoreminder/internal/daemon"
	"todoreminder/internal/eventbus"
	"todoreminder/internal/grammar"
	"todoreminder/internal/notifier"
	"todoreminder/internal/runtime/supervisor"
	"todoreminder/internal/scheduler"
	"todoreminder/internal/storage"
	"todoreminder/internal/watch"
	logx "todoreminder/pkg/logx"
)

const (
	notifierDrain = 3 * time.Second
	stopWait      = 5 * time.Second
)

type App struct {
	cfg *config.Config

	log  logx.Logger
	logs *logx.Sinks
	bus  eventbus.Bus

	store storage.Store
	notif *notifier.Service
	obs   watch.Runner
	loop  *scheduler.Loop

	channels []notifier.Channel
	// sdNotify is false in tests so nothing talks to systemd.
	sdNotify bool
}

// Option adjusts New.
type Option func(*App)

// WithChannels replaces the channels named in the settings.
func WithChannels(chs ...notifier.Channel) Option {
	return func(a *App) { a.channels = chs }
}

// WithoutSystemd disables sd_notify.
func WithoutSystemd() Option { return func(a *App) { a.sdNotify = false } }

// New builds every component from cfg. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	a := &App{cfg: cfg, sdNotify: true}
	for _, o := range opts {
		o(a)
	}

	logs, root, err := logx.Open(logConfig(cfg))
	if err != nil {
		return nil, err
	}
	a.logs = logs
	a.log = root.With(logx.String("comp", "app"))
	a.bus = eventbus.New()

	ok := false
	defer func() {
		if !ok {
			a.closeStore()
			_ = a.logs.Close()
		}
	}()

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	chs := a.channels
	if chs == nil {
		if chs, err = buildChannels(cfg, root.With(logx.String("comp", "notifier"))); err != nil {
			return nil, err
		}
	}
	a.notif = notifier.New(ncfg, chs, root.With(logx.String("comp", "notifier")), a.bus, a.store)

	obs, err := newObserver(cfg, root.With(logx.String("comp", "watch")))
	if err != nil {
		return nil, err
	}
	a.obs = obs

	parser, err := grammar.New()
	if err != nil {
		return nil, err
	}
	var sink notifier.Sink
	if ncfg.Enabled {
		sink = a.notif
	}
	a.loop = scheduler.New(scheduler.Config{
		Path:   cfg.TodoFile,
		DryRun: cfg.DryRun,
		Title:  cfg.Title,
	}, scheduler.Deps{
		Parser:   parser,
		Observer: obs,
		Sink:     sink,
		Bus:      a.bus,
		Log:      root.With(logx.String("comp", "scheduler")),
	})

	ok = true
	return a, nil
}

// Logger returns the root logger tagged comp=app.
func (a *App) Logger() logx.Logger { return a.log }

// Bus exposes lifecycle events.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Run blocks until ctx ends or a component fails, then shuts everything
// down. A canceled ctx is a clean stop and returns nil.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	c := sup.Context()

	if a.store != nil {
		events, unsub := a.bus.Subscribe(128)
		rec := recorder{store: a.store, log: a.log.With(logx.String("comp", "audit"))}
		sup.Go("audit", func(ctx context.Context) error {
			defer unsub()
			return rec.run(ctx, events)
		})
	}

	if a.notif.Enabled() {
		// started before the loop so reminders due at startup are accepted
		a.notif.Start(c)
		sup.Go("notifier", func(ctx context.Context) error { return a.notif.Run(ctx, notifierDrain) })
	} else {
		a.log.Info("notifier disabled; reminders are only logged")
	}

	sup.GoRestart("watch", a.obs.Run,
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		supervisor.WithStopOnCleanExit(true),
	)
	sup.Go("scheduler", a.loop.Run)

	a.log.Info("reminder daemon started",
		logx.String("todo_file", a.cfg.TodoFile),
		logx.String("watch", a.cfg.Watch.Mode),
		logx.Any("channels", a.notif.Channels()),
		logx.Bool("dry_run", a.cfg.DryRun),
	)
	if a.sdNotify {
		daemon.NotifyReady(a.log)
	}

	<-sup.Done()
	if a.sdNotify {
		daemon.NotifyStopping(a.log)
	}

	err := sup.Err()
	reason := stopReason(ctx, err)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	wctx, cancel := context.WithTimeout(context.Background(), stopWait)
	defer cancel()
	if werr := sup.Wait(wctx); errors.Is(werr, context.DeadlineExceeded) {
		a.log.Warn("shutdown incomplete", logx.Err(werr))
	}
	err = sup.Err()

	a.closeStore()
	a.log.Info("stopped", logx.String("reason", string(reason)))
	_ = a.logs.Close()
	return err
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage failed", logx.Err(err))
	}
	a.store = nil
}
