package config

// Config is the daemon's settings file.
//
// The legacy settings file is a single line holding the task file path; it
// loads into a Config with every other field at its default. YAML and JSON
// settings files use the layout below and reject unknown keys.
//
// Example (YAML):
//
//	todo_file: ~/notes/todo.txt
//	watch:
//	  mode: notify
//	notifier:
//	  channels: [desktop, telegram]
//	  telegram:
//	    token: "123:abc"
//	    chat_id: 42
//	storage:
//	  driver: sqlite
//	  path: ~/.config/vim-todo/deliveries.db
type Config struct {
	TodoFile string `json:"todo_file"`
	DryRun   bool   `json:"dry_run,omitempty"`
	// Title overrides the notification title ("Todo reminder from <todo_file>").
	Title string `json:"title,omitempty"`

	Logging  LoggingConfig   `json:"logging"`
	Watch    WatchConfig     `json:"watch"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Daemon   DaemonConfig    `json:"daemon"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console *bool       `json:"console,omitempty"` // default true
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WatchConfig selects how task file changes are detected.
//
// Mode is "notify" (fsnotify, default) or "poll". PollInterval is a Go
// duration ("2s") or a cron spec ("@every 5s"); Debounce is a Go duration.
type WatchConfig struct {
	Mode         string `json:"mode,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	Debounce     string `json:"debounce,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier is enabled with the
// desktop channel.
type NotifierConfig struct {
	Enabled         *bool           `json:"enabled,omitempty"`
	Channels        []string        `json:"channels,omitempty"` // desktop, telegram, log
	Workers         int             `json:"workers,omitempty"`
	QueueSize       int             `json:"queue_size,omitempty"`
	RatePerSec      int             `json:"rate_per_sec,omitempty"`
	RetryMax        int             `json:"retry_max,omitempty"`
	RetryBase       string          `json:"retry_base,omitempty"`
	RetryMaxDelay   string          `json:"retry_max_delay,omitempty"`
	SendTimeout     string          `json:"send_timeout,omitempty"`
	DedupWindow     string          `json:"dedup_window,omitempty"`
	DedupMaxEntries int             `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool            `json:"persist_dedup,omitempty"`
	Telegram        *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig controls the optional delivery audit.
//
// Example:
//
//	"storage": { "driver": "file", "path": "~/.config/vim-todo/deliveries" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type DaemonConfig struct {
	PidFile string `json:"pid_file,omitempty"`
	// LogFile receives the detached process's stdout and stderr.
	LogFile string `json:"log_file,omitempty"`
	// StopTimeout is how long --stop waits before SIGKILL.
	StopTimeout string `json:"stop_timeout,omitempty"`
}

// ConsoleEnabled reports logging.console with its default applied.
func (l LoggingConfig) ConsoleEnabled() bool { return l.Console == nil || *l.Console }

// IsEnabled reports notifier.enabled with its default applied.
func (n *NotifierConfig) IsEnabled() bool { return n == nil || n.Enabled == nil || *n.Enabled }
