package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "todoreminder/pkg/logx"
)

func TestPidFileReadWrite(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), "sub", ".pid")}

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, p.Write(4242))
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is fine")
}

func TestPidFileBadContents(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}
	require.NoError(t, os.WriteFile(p.Path, []byte("nope\n"), 0o644))
	_, err := p.Read()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestAcquireRejectsLiveProcess(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}
	// the parent of the test binary is alive for the whole test
	require.NoError(t, p.Write(os.Getppid()))
	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireTakesOverOwnAndStaleFiles(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}

	release, err := p.Acquire()
	require.NoError(t, err)
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	release()
	_, err = os.Stat(p.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseLeavesForeignPidFile(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}
	release, err := p.Acquire()
	require.NoError(t, err)

	require.NoError(t, p.Write(os.Getppid()))
	release()
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), pid)
}

func TestStopWithoutPidFile(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}
	err := Stop(p, time.Second, logx.Nop())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStartRefusesWhenRunning(t *testing.T) {
	t.Parallel()
	p := PidFile{Path: filepath.Join(t.TempDir(), ".pid")}
	require.NoError(t, p.Write(os.Getppid()))
	_, err := Start(StartOptions{Pid: p, Args: []string{"--no-daemon"}})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestNotifyOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	NotifyReady(logx.Nop())
	NotifyStopping(logx.Nop())
}
