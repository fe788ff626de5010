package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codelens/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "codelens-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "codelens-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
	assert.Contains(t, outString(), "not running")
}

func TestServeStatusRun_StalePIDFile(t *testing.T) {
	dir := testEnv(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "codelens-serve.pid"))
	require.NoError(t, pf.WritePID(999999))

	require.NoError(t, serveStatusRun())
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := daemon.NewPIDFile(filepath.Join(dir, "codelens-serve.pid"))
	require.NoError(t, pf.Write())
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeRun_InvalidConfig(t *testing.T) {
	testEnv(t)

	// No API key or JWT secret: startup must fail before anything listens.
	err := serveRun(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "api key")
	assert.Contains(t, err.Error(), "jwt secret")

	_, statErr := os.Stat(pidFile().Path)
	assert.True(t, os.IsNotExist(statErr), "no PID file should be written")
}

func TestViperAddr(t *testing.T) {
	testEnv(t)
	assert.Equal(t, "127.0.0.1:8000", viperAddr())

	viper.Set("server.host", "0.0.0.0")
	viper.Set("server.port", 9001)
	assert.Equal(t, "127.0.0.1:9001", viperAddr())
}
