// Package daemon runs the reminder loop as a background process: pid file,
// detach, stop and systemd readiness.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	logx "todoreminder/pkg/logx"
)

var (
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrNotRunning     = errors.New("no daemon running")
)

const DefaultStopTimeout = 5 * time.Second

// PidFile records the pid of the foreground process.
type PidFile struct {
	Path string
}

// Read returns the recorded pid. A missing file is ErrNotRunning.
func (p PidFile) Read() (int, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s: bad contents %q", p.Path, strings.TrimSpace(string(b)))
	}
	return pid, nil
}

func (p PidFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

func (p PidFile) Remove() error {
	err := os.Remove(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Running returns the recorded pid if that process is alive.
func (p PidFile) Running() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// Acquire claims the pid file for the current process. A stale file (dead
// pid) is taken over; a live one is ErrAlreadyRunning.
func (p PidFile) Acquire() (release func(), err error) {
	if pid, ok := p.Running(); ok && pid != os.Getpid() {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)
	}
	self := os.Getpid()
	if err := p.Write(self); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() {
		// leave a file that a newer process already took over
		if pid, err := p.Read(); err == nil && pid == self {
			_ = p.Remove()
		}
	}, nil
}

// StartOptions describe the detached child.
type StartOptions struct {
	Pid PidFile
	// Args are passed to the re-executed binary; they should include
	// the foreground flag.
	Args []string
	// LogFile receives the child's stdout and stderr; empty means /dev/null.
	LogFile string
	Log     logx.Logger
}

// Start re-executes the current binary in a new session and returns its pid
// without waiting for it.
func Start(opts StartOptions) (int, error) {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	if pid, ok := opts.Pid.Running(); ok {
		return 0, fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	out, err := openOutput(opts.LogFile)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	in, err := os.Open(os.DevNull)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	cmd := exec.Command(exe, opts.Args...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = detachAttr()
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// the child outlives us; nothing to wait for
	_ = cmd.Process.Release()
	log.Info("daemon started", logx.Int("pid", pid), logx.String("pid_file", opts.Pid.Path))
	return pid, nil
}

func openOutput(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Stop sends SIGTERM to the recorded pid, waits up to timeout, then kills it.
func Stop(p PidFile, timeout time.Duration, log logx.Logger) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	pid, err := p.Read()
	if err != nil {
		return err
	}
	if !alive(pid) {
		log.Info("removing stale pid file", logx.Int("pid", pid))
		_ = p.Remove()
		return fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
	}

	if err := terminate(pid); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	if waitExit(pid, timeout) {
		log.Info("daemon stopped", logx.Int("pid", pid))
	} else {
		log.Warn("daemon did not exit; killing", logx.Int("pid", pid), logx.Duration("waited", timeout))
		if err := kill(pid); err != nil {
			return fmt.Errorf("kill pid %d: %w", pid, err)
		}
		waitExit(pid, time.Second)
	}
	return p.Remove()
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !alive(pid)
}

// NotifyReady tells systemd (when present) that startup finished.
func NotifyReady(log logx.Logger) { sdNotify(log, sddaemon.SdNotifyReady) }

// NotifyStopping tells systemd (when present) that shutdown began.
func NotifyStopping(log logx.Logger) { sdNotify(log, sddaemon.SdNotifyStopping) }

func sdNotify(log logx.Logger, state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}
