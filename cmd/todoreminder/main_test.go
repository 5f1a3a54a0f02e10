package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoreminder/internal/config"
	"todoreminder/internal/daemon"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("pid 1: %w", daemon.ErrNotRunning), 1},
		{errVerifyFailed, 1},
		{fmt.Errorf("pid 1: %w", daemon.ErrAlreadyRunning), 2},
		{fmt.Errorf("x: %w", config.ErrSettingsMissing), 3},
		{fmt.Errorf("x: %w", config.ErrTaskFileMissing), 4},
		{errors.New("other"), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

func TestVerifyReportsInvalidLines(t *testing.T) {
	dir := t.TempDir()
	content := "* fine [remind me in 2 hours]\n* broken [remind me at noon]\n"
	todo := writeFile(t, dir, "todo.txt", content)
	settings := filepath.Join(dir, "missing.txt")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--verify", "--file", todo, "--config", settings}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), todo+":2 in line * broken [remind me at noon] ERROR")

	b, err := os.ReadFile(todo)
	require.NoError(t, err)
	assert.Equal(t, content, string(b), "verify never writes")
}

func TestVerifyCleanFile(t *testing.T) {
	dir := t.TempDir()
	todo := writeFile(t, dir, "todo.txt", "* fine [remind me in 2 hours]\nplain line\n")
	settings := writeFile(t, dir, "config.txt", todo+"\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, execute([]string{"--verify", "--config", settings}, &stdout, &stderr))
	assert.Empty(t, stderr.String())
}

func TestSettingsAndTaskFileMissing(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 3, execute([]string{"--verify", "--config", filepath.Join(dir, "nope.txt")}, &stdout, &stderr))

	settings := writeFile(t, dir, "config.txt", filepath.Join(dir, "todo.txt")+"\n")
	assert.Equal(t, 4, execute([]string{"--verify", "--config", settings}, &stdout, &stderr))
}

func TestStopWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	settings := writeFile(t, dir, "config.yaml", fmt.Sprintf("todo_file: %s\ndaemon:\n  pid_file: %s\n",
		filepath.Join(dir, "todo.txt"), filepath.Join(dir, ".pid")))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, execute([]string{"--stop", "--config", settings}, &stdout, &stderr))
}

func TestStartRefusesWhenDaemonRunning(t *testing.T) {
	dir := t.TempDir()
	todo := writeFile(t, dir, "todo.txt", "")
	pidPath := filepath.Join(dir, ".pid")
	require.NoError(t, daemon.PidFile{Path: pidPath}.Write(os.Getppid()))
	settings := writeFile(t, dir, "config.yaml", fmt.Sprintf("todo_file: %s\ndaemon:\n  pid_file: %s\n", todo, pidPath))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, execute([]string{"--config", settings}, &stdout, &stderr))
	assert.Equal(t, 2, execute([]string{"--no-daemon", "--config", settings}, &stdout, &stderr))
}

func TestFlagsAreExclusive(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, execute([]string{"--stop", "--verify"}, &stdout, &stderr))
}

func TestChildArgs(t *testing.T) {
	t.Parallel()
	args := childArgs(&options{dryRun: true, logLevel: "debug"}, "/s/config.txt", "/t/todo.txt")
	assert.Equal(t, []string{"--no-daemon", "--config", "/s/config.txt", "--file", "/t/todo.txt", "--dry-run", "--log-level", "debug"}, args)
}
