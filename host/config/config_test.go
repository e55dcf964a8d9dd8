package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pillbox/app"
	"pillbox/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pillbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
device_name: KITCHEN
buttons:
  - pin: 5
  - pin: 6
    active_high: true
leds: [20]
load_cells: []
debounce_ms: 30
long_press_ms: 2000
`)
	cfg, err := New(zap.NewNop().Sugar(), path).Load()
	require.NoError(t, err)

	assert.Equal(t, "KITCHEN", cfg.DeviceName)
	require.Len(t, cfg.Buttons, 2)
	assert.Equal(t, app.ButtonConfig{Pin: 6, ActiveHigh: true}, cfg.Buttons[1])
	assert.Equal(t, []uint32{20}, cfg.LEDs)
	assert.Empty(t, cfg.LoadCells)
	assert.Equal(t, uint32(30), cfg.DebounceMS)
	assert.Equal(t, uint32(2000), cfg.LongPressMS)
	assert.Equal(t, DefaultSPPDevice, cfg.SPPDevice)
	assert.Equal(t, app.DefaultRecordCapacity, cfg.RecordCapacity)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "device_name: FILE\n")
	t.Setenv("PILLBOX_DEVICE_NAME", "ENV")
	t.Setenv("PILLBOX_LONG_PRESS_MS", "700")

	cfg, err := New(zap.NewNop().Sugar(), path).Load()
	require.NoError(t, err)
	assert.Equal(t, "ENV", cfg.DeviceName)
	assert.Equal(t, uint32(700), cfg.LongPressMS)
	assert.Len(t, cfg.Buttons, 2, "board default buttons")
}

func TestLoadMissingSearchPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := New(zap.NewNop().Sugar(), "").Load()
	require.NoError(t, err)
	assert.Equal(t, app.DefaultDeviceName, cfg.DeviceName)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "debounce_ms: 900\nlong_press_ms: 800\n")
	_, err := New(zap.NewNop().Sugar(), path).Load()
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	path = writeConfig(t, "buttons: [\n")
	_, err = New(zap.NewNop().Sugar(), path).Load()
	assert.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	defer core.SetDebugEnabled(false)

	atom := zap.NewAtomicLevel()
	require.NoError(t, SetLevel(atom, "debug"))
	assert.Equal(t, zapcore.DebugLevel, atom.Level())
	assert.True(t, core.IsDebugEnabled())

	require.NoError(t, SetLevel(atom, "warn"))
	assert.Equal(t, zapcore.WarnLevel, atom.Level())
	assert.False(t, core.IsDebugEnabled())

	assert.Error(t, SetLevel(atom, "loud"))
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")
	loader := New(zap.NewNop().Sugar(), path)
	_, err := loader.Load()
	require.NoError(t, err)

	var reloaded atomic.Value
	done := make(chan struct{})
	go func() {
		defer close(done)
		loader.Watch(func(cfg *app.Config) { reloaded.Store(cfg.LogLevel) })
	}()

	// Rewrite until the watcher is installed and picks a write up
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
		level, _ := reloaded.Load().(string)
		return level == "debug"
	}, 10*time.Second, 200*time.Millisecond)

	loader.Stop()
	loader.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}
