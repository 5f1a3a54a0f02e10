package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todoreminder/internal/app"
	"todoreminder/internal/config"
	"todoreminder/internal/daemon"
	"todoreminder/internal/grammar"
	"todoreminder/internal/taskfile"
	logx "todoreminder/pkg/logx"
)

var errVerifyFailed = errors.New("task file has invalid reminders")

type options struct {
	restart  bool
	stop     bool
	noDaemon bool
	verify   bool
	dryRun   bool
	file     string
	config   string
	logLevel string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	var opts options
	cmd := newRootCmd(&opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errVerifyFailed) {
		fmt.Fprintln(stderr, "todoreminder:", err)
	}
	return exitCode(err)
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todoreminder",
		Short:         "Monitors your todo.txt file for reminders",
		Long:          "Watches a plain-text task list, stamps reminder annotations with their due time and shows a notification when each one comes due.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.restart, "restart", false, "restarts daemon which monitors todo file")
	f.BoolVar(&opts.stop, "stop", false, "stops daemon which monitors todo file")
	f.BoolVar(&opts.noDaemon, "no-daemon", false, "run in the foreground")
	f.BoolVar(&opts.verify, "verify", false, "verify your todo file and then exit")
	f.BoolVar(&opts.dryRun, "dry-run", false, "never write the todo file or send notifications")
	f.StringVar(&opts.file, "file", "", "todo file (overrides the settings file)")
	f.StringVar(&opts.config, "config", "", "settings file (default "+config.DefaultSettingsPath()+")")
	f.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error")
	cmd.MarkFlagsMutuallyExclusive("restart", "stop", "no-daemon", "verify")
	return cmd
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, daemon.ErrAlreadyRunning):
		return 2
	case errors.Is(err, config.ErrSettingsMissing):
		return 3
	case errors.Is(err, config.ErrTaskFileMissing):
		return 4
	default:
		// also ErrNotRunning and errVerifyFailed
		return 1
	}
}

func run(cmd *cobra.Command, opts *options) error {
	level := opts.logLevel
	if level == "" {
		level = "info"
	}
	if !logx.ValidLevel(level) {
		return fmt.Errorf("--log-level: unknown level %q", opts.logLevel)
	}
	log := logx.NewConsole(level).With(logx.String("comp", "cli"))

	m := config.NewManager(opts.config)
	m.SetLogger(log.With(logx.String("comp", "config")))
	overrides := config.Overrides{TodoFile: opts.file, DryRun: opts.dryRun, LogLevel: opts.logLevel}

	if opts.stop {
		pid, timeout := stopSettings(m, overrides)
		return daemon.Stop(pid, timeout, log)
	}

	cfg, err := m.Resolve(overrides)
	if err != nil {
		return err
	}
	if err := cfg.CheckTaskFile(); err != nil {
		return err
	}

	if opts.verify {
		return verify(cmd.ErrOrStderr(), cfg.TodoFile)
	}

	pid := daemon.PidFile{Path: cfg.Daemon.PidFile}
	if opts.restart {
		timeout, err := config.Duration("daemon.stop_timeout", cfg.Daemon.StopTimeout, daemon.DefaultStopTimeout)
		if err != nil {
			return err
		}
		// no pid file at all is an error; a stale one is replaced
		if _, err := pid.Read(); err != nil {
			return err
		}
		if err := daemon.Stop(pid, timeout, log); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
			return err
		}
	}

	if !opts.noDaemon {
		child, err := daemon.Start(daemon.StartOptions{
			Pid:     pid,
			Args:    childArgs(opts, m.Path(), cfg.TodoFile),
			LogFile: cfg.Daemon.LogFile,
			Log:     log,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reminder daemon started (pid %d)\n", child)
		return nil
	}

	release, err := pid.Acquire()
	if err != nil {
		return err
	}
	defer release()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return a.Run(ctx)
}

// stopSettings reads the pid file location; --stop works without a usable
// settings file.
func stopSettings(m *config.Manager, o config.Overrides) (daemon.PidFile, time.Duration) {
	cfg, err := m.Resolve(o)
	if err != nil {
		return daemon.PidFile{Path: config.DefaultPidFile()}, daemon.DefaultStopTimeout
	}
	timeout, err := config.Duration("daemon.stop_timeout", cfg.Daemon.StopTimeout, daemon.DefaultStopTimeout)
	if err != nil {
		timeout = daemon.DefaultStopTimeout
	}
	return daemon.PidFile{Path: cfg.Daemon.PidFile}, timeout
}

func verify(w io.Writer, path string) error {
	bad, err := taskfile.Verify(path, grammar.MustNew(), time.Now())
	if err != nil {
		return err
	}
	for _, e := range bad {
		fmt.Fprintln(w, taskfile.FormatError(path, e))
	}
	if len(bad) > 0 {
		return errVerifyFailed
	}
	return nil
}

// childArgs rebuilds the command line for the detached process.
func childArgs(opts *options, settings, todoFile string) []string {
	args := []string{"--no-daemon", "--config", settings, "--file", todoFile}
	if opts.dryRun {
		args = append(args, "--dry-run")
	}
	if opts.logLevel != "" {
		args = append(args, "--log-level", opts.logLevel)
	}
	return args
}
