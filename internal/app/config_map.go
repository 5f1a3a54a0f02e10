package app

import (
	"fmt"
	"strings"
	"time"

	"todoreminder/internal/config"
	"todoreminder/internal/notifier"
	"todoreminder/internal/storage"
	"todoreminder/internal/watch"
	logx "todoreminder/pkg/logx"
)

// mapNotifierConfig turns notifier settings into the runtime config.
// An omitted section means enabled with defaults.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{
		Enabled:         true,
		Workers:         2,
		QueueSize:       128,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       500 * time.Millisecond,
		RetryMaxDelay:   10 * time.Second,
		SendTimeout:     10 * time.Second,
		DedupWindow:     time.Minute,
		DedupMaxEntries: 2000,
	}
	if cfg == nil || cfg.Notifier == nil {
		return out, nil
	}
	n := cfg.Notifier
	out.Enabled = n.IsEnabled()
	out.PersistDedup = n.PersistDedup
	if n.Workers != 0 {
		out.Workers = n.Workers
	}
	if n.QueueSize != 0 {
		out.QueueSize = n.QueueSize
	}
	if n.RatePerSec != 0 {
		out.RatePerSec = n.RatePerSec
	}
	if n.RetryMax != 0 {
		out.RetryMax = n.RetryMax
	}
	if n.DedupMaxEntries != 0 {
		out.DedupMaxEntries = n.DedupMaxEntries
	}

	var err error
	if out.RetryBase, err = config.Duration("notifier.retry_base", n.RetryBase, out.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.Duration("notifier.retry_max_delay", n.RetryMaxDelay, out.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.SendTimeout, err = config.Duration("notifier.send_timeout", n.SendTimeout, out.SendTimeout); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.Duration("notifier.dedup_window", n.DedupWindow, out.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

// buildChannels creates the delivery channels named in the settings.
// Desktop is the default.
func buildChannels(cfg *config.Config, log logx.Logger) ([]notifier.Channel, error) {
	names := []string{"desktop"}
	if cfg.Notifier != nil && len(cfg.Notifier.Channels) > 0 {
		names = cfg.Notifier.Channels
	}

	seen := map[string]bool{}
	var out []notifier.Channel
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "desktop":
			out = append(out, notifier.NewDesktop())
		case "log":
			out = append(out, notifier.NewLog(log.With(logx.String("channel", "log"))))
		case "telegram":
			if cfg.Notifier == nil || cfg.Notifier.Telegram == nil {
				return nil, fmt.Errorf("notifier.telegram is required for the telegram channel")
			}
			tc := cfg.Notifier.Telegram
			ch, err := notifier.NewTelegram(notifier.TelegramConfig{Token: tc.Token, ChatID: tc.ChatID, ThreadID: tc.ThreadID})
			if err != nil {
				return nil, fmt.Errorf("notifier.telegram: %w", err)
			}
			out = append(out, ch)
		default:
			return nil, fmt.Errorf("notifier.channels: unknown channel %q", raw)
		}
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// newObserver builds the file watcher selected by watch.mode.
func newObserver(cfg *config.Config, log logx.Logger) (watch.Runner, error) {
	switch cfg.Watch.Mode {
	case "", "notify":
		debounce, err := config.Duration("watch.debounce", cfg.Watch.Debounce, 0)
		if err != nil {
			return nil, err
		}
		return watch.NewNotify(cfg.TodoFile, watch.WithDebounce(debounce), watch.WithLogger(log)), nil
	case "poll":
		sched, err := watch.ParseCadence(cfg.Watch.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("watch.poll_interval: %w", err)
		}
		return watch.NewPoll(cfg.TodoFile, sched, log), nil
	default:
		return nil, fmt.Errorf("watch.mode: want notify or poll, got %q", cfg.Watch.Mode)
	}
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
