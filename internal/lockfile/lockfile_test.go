package lockfile_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updownbot/internal/lockfile"
)

func TestAcquire_WritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	lock, err := lockfile.Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	// PID inverosímil: el propietario anterior ya no existe.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	lock, err := lockfile.Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestAcquire_GarbageLockIsOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	lock, err := lockfile.Acquire(path)
	require.NoError(t, err)
	lock.Release()
}

func TestRelease_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	lock, err := lockfile.Acquire(path)
	require.NoError(t, err)
	lock.Release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_ReacquireBySamePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	first, err := lockfile.Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	// El mismo proceso re-adquiere sin auto-desalojarse.
	second, err := lockfile.Acquire(path)
	require.NoError(t, err)
	_ = second
}
