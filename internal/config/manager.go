package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "todoreminder/pkg/logx"
)

var (
	ErrSettingsMissing = errors.New("settings file missing")
	ErrTaskFileMissing = errors.New("task file missing")
)

// DefaultDir holds the settings file and the pid file.
const DefaultDir = "~/.config/vim-todo"

func DefaultSettingsPath() string { return ExpandHome(filepath.Join(DefaultDir, "config.txt")) }

func DefaultPidFile() string { return ExpandHome(filepath.Join(DefaultDir, ".pid")) }

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	log logx.Logger
}

func NewManager(path string) *Manager {
	if strings.TrimSpace(path) == "" {
		path = DefaultSettingsPath()
	}
	return &Manager{path: ExpandHome(path), log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Path() string { return m.path }

// Overrides are command-line values applied on top of the settings file.
type Overrides struct {
	TodoFile string
	DryRun   bool
	LogLevel string
}

// Parse reads the settings file and applies defaults. It does not check that
// the task file exists.
func (m *Manager) Parse() (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	return m.finish(cfg, Overrides{})
}

func (m *Manager) read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", m.path, ErrSettingsMissing)
		}
		return nil, err
	}

	cfg, err := decodeSettings(FormatOf(m.path), b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return cfg, nil
}

func (m *Manager) finish(cfg *Config, o Overrides) (*Config, error) {
	if v := strings.TrimSpace(o.TodoFile); v != "" {
		cfg.TodoFile = v
	}
	if o.DryRun {
		cfg.DryRun = true
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return cfg, nil
}

// Resolve loads the settings file, applies o and commits the result. When
// o.TodoFile is set a missing settings file is not an error.
func (m *Manager) Resolve(o Overrides) (*Config, error) {
	cfg, err := m.read()
	switch {
	case err == nil:
	case errors.Is(err, ErrSettingsMissing) && strings.TrimSpace(o.TodoFile) != "":
		m.log.Debug("settings file missing; using defaults", logx.String("path", m.path))
		cfg = &Config{}
	default:
		return nil, err
	}
	cfg, err = m.finish(cfg, o)
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

// parseLegacy reads the one-line format: the first line is the task file path.
func parseLegacy(b []byte) (*Config, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("settings file is empty")
	}
	path := strings.TrimSpace(sc.Text())
	if path == "" {
		return nil, errors.New("first line must be the task file path")
	}
	return &Config{TodoFile: path}, nil
}

func applyDefaults(cfg *Config) {
	cfg.TodoFile = ExpandHome(cfg.TodoFile)
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.File.Path = ExpandHome(cfg.Logging.File.Path)
	if strings.TrimSpace(cfg.Watch.Mode) == "" {
		cfg.Watch.Mode = "notify"
	}
	cfg.Watch.Mode = strings.ToLower(strings.TrimSpace(cfg.Watch.Mode))
	if cfg.Storage != nil {
		cfg.Storage.Path = ExpandHome(cfg.Storage.Path)
	}
	if strings.TrimSpace(cfg.Daemon.PidFile) == "" {
		cfg.Daemon.PidFile = DefaultPidFile()
	}
	cfg.Daemon.PidFile = ExpandHome(cfg.Daemon.PidFile)
	cfg.Daemon.LogFile = ExpandHome(cfg.Daemon.LogFile)
}

// Validate checks the fields that defaults cannot fix.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.TodoFile) == "" {
		return errors.New("todo_file is required")
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Watch.Mode {
	case "notify", "poll":
	default:
		return fmt.Errorf("watch.mode: want notify or poll, got %q", cfg.Watch.Mode)
	}
	if _, err := Duration("watch.debounce", cfg.Watch.Debounce, 0); err != nil {
		return err
	}
	if _, err := Duration("daemon.stop_timeout", cfg.Daemon.StopTimeout, 0); err != nil {
		return err
	}
	if n := cfg.Notifier; n != nil {
		for _, f := range []struct{ name, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.send_timeout", n.SendTimeout},
			{"notifier.dedup_window", n.DedupWindow},
		} {
			if _, err := Duration(f.name, f.raw, 0); err != nil {
				return err
			}
		}
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			return errors.New("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0")
		}
		for _, ch := range n.Channels {
			switch strings.ToLower(strings.TrimSpace(ch)) {
			case "desktop", "log":
			case "telegram":
				if n.Telegram == nil {
					return errors.New("notifier.telegram is required for the telegram channel")
				}
			default:
				return fmt.Errorf("notifier.channels: unknown channel %q", ch)
			}
		}
	}
	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("storage.path is required when storage.driver=%s", s.Driver)
			}
		default:
			return fmt.Errorf("unknown storage.driver: %s", s.Driver)
		}
		if _, err := Duration("storage.busy_timeout", s.BusyTimeout, 0); err != nil {
			return err
		}
	}
	return nil
}

// Load parses and commits the settings.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	m.log.Debug("settings loaded", logx.String("path", m.path), logx.String("todo_file", cfg.TodoFile))
	return cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// CheckTaskFile reports ErrTaskFileMissing when the task file does not exist.
func (c *Config) CheckTaskFile() error {
	fi, err := os.Stat(c.TodoFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", c.TodoFile, ErrTaskFileMissing)
		}
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory: %w", c.TodoFile, ErrTaskFileMissing)
	}
	return nil
}
