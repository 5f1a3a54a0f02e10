package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultFile = "todoreminder.log"

// Sinks owns the log file opened for the daemon's lifetime.
type Sinks struct {
	file *os.File
}

// Open builds the daemon logger: console lines on stderr and, when enabled,
// JSON lines appended to a file. With neither enabled it falls back to the
// console.
func Open(cfg Config) (*Sinks, Logger, error) {
	s := &Sinks{}
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultFile
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, Logger{}, fmt.Errorf("log file %s: %w", path, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, Logger{}, fmt.Errorf("log file %s: %w", path, err)
		}
		s.file = f
		writers = append(writers, zerolog.SyncWriter(f))
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	return s, newLogger(zerolog.MultiLevelWriter(writers...), parseLevel(cfg.Level, zerolog.InfoLevel)), nil
}

// Close closes the log file. Loggers from Open keep working but the file
// output is lost.
func (s *Sinks) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
