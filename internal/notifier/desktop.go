package notifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop shows a popup through the platform's notification command:
// notify-send on Linux and the BSDs, osascript on macOS.
type Desktop struct {
	goos string
	run  func(ctx context.Context, name string, args ...string) error
}

func NewDesktop() *Desktop {
	return &Desktop{goos: runtime.GOOS, run: runCommand}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Send(ctx context.Context, n Notification) error {
	name, args, err := desktopCommand(d.goos, n)
	if err != nil {
		return err
	}
	return d.run(ctx, name, args...)
}

func desktopCommand(goos string, n Notification) (string, []string, error) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(n.Body), appleScriptString(n.Title))
		return "osascript", []string{"-e", script}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send", []string{"--app-name=todoreminder", "--", n.Title, n.Body}, nil
	default:
		return "", nil, errors.New("desktop notifications not supported on " + goos)
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
