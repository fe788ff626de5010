package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is high enough that no live process should own it.
const deadPID = 999999

func newPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return NewPIDFile(filepath.Join(t.TempDir(), "run", "codelens-serve.pid"))
}

func TestWriteAndRead(t *testing.T) {
	pf := newPIDFile(t)

	require.NoError(t, pf.WritePID(12345))
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)

	require.NoError(t, pf.Write())
	pid, err = pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestRead_Errors(t *testing.T) {
	pf := newPIDFile(t)
	_, err := pf.Read()
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(pf.Path), 0o755))
	for _, content := range []string{"not-a-number\n", "0\n", "-4\n"} {
		require.NoError(t, os.WriteFile(pf.Path, []byte(content), 0o644))
		_, err := pf.Read()
		require.Error(t, err, content)
		assert.Contains(t, err.Error(), "invalid PID file content")
	}
}

func TestRemove(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.WritePID(1))

	require.NoError(t, pf.Remove())
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	assert.NoError(t, pf.Remove())
}

func TestIsRunning(t *testing.T) {
	pf := newPIDFile(t)

	pid, running := pf.IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)

	require.NoError(t, pf.Write())
	pid, running = pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.WritePID(deadPID))
	pid, running = pf.IsRunning()
	assert.Equal(t, deadPID, pid)
	assert.False(t, running)
}

func TestAcquire(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		pf := newPIDFile(t)
		require.NoError(t, pf.Acquire())
		pid, err := pf.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("stale file replaced", func(t *testing.T) {
		pf := newPIDFile(t)
		require.NoError(t, pf.WritePID(deadPID))
		require.NoError(t, pf.Acquire())
		pid, err := pf.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("own pid is reacquired", func(t *testing.T) {
		pf := newPIDFile(t)
		require.NoError(t, pf.Write())
		assert.NoError(t, pf.Acquire())
	})

	t.Run("live owner", func(t *testing.T) {
		pf := newPIDFile(t)
		require.NoError(t, pf.WritePID(os.Getppid()))
		err := pf.Acquire()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})
}

func TestWaitExit(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.WritePID(deadPID))
	assert.True(t, pf.WaitExit(time.Second))

	require.NoError(t, pf.Write())
	start := time.Now()
	assert.False(t, pf.WaitExit(250*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestSignal(t *testing.T) {
	pf := newPIDFile(t)

	err := pf.Signal(syscall.Signal(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")

	require.NoError(t, pf.Write())
	assert.NoError(t, pf.Signal(syscall.Signal(0)))
}
