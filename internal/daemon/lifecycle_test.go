package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	cfg := testConfig(t)
	daemon, _ := createTestDaemon(t, cfg)

	lm := NewLifecycleManager(daemon)
	assert.NotNil(t, lm)
	assert.Equal(t, daemon, lm.daemon)
	assert.Equal(t, filepath.Join(cfg.DataDir, "lynae.pid"), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	daemon, _ := createTestDaemon(t, testConfig(t))
	lm := NewLifecycleManager(daemon)

	require.NoError(t, lm.Start())

	_, err := os.Stat(lm.pidFile)
	assert.NoError(t, err)
	assert.True(t, lm.IsRunning())

	require.NoError(t, lm.Stop())

	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, lm.IsRunning())
}

func TestLifecycleManagerGetPID(t *testing.T) {
	daemon, _ := createTestDaemon(t, testConfig(t))
	lm := NewLifecycleManager(daemon)

	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLifecycleManagerReplacesStalePIDFile(t *testing.T) {
	cfg := testConfig(t)
	daemon, _ := createTestDaemon(t, cfg)
	lm := NewLifecycleManager(daemon)

	// PIDs this large are never assigned.
	require.NoError(t, os.WriteFile(lm.pidFile, []byte("999999999"), 0644))

	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "ok.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(42)+"\n"), 0644))
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, 42, pid)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))
	_, err = ReadPID(bad)
	assert.Error(t, err)

	_, err = ReadPID(filepath.Join(dir, "missing.pid"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessRunning(t *testing.T) {
	assert.True(t, ProcessRunning(os.Getpid()))
	assert.False(t, ProcessRunning(0))
	assert.False(t, ProcessRunning(-1))
}
