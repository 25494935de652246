package config_test

import (
	"testing"
	"time"

	"github.com/rentfleet/aigw/config"
	"github.com/rentfleet/aigw/server/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func withLevel(level string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = level
	return cfg
}

func TestWatchLogLevel(t *testing.T) {
	watcher := mocks.NewMockConfigWatcher(withLevel("info"))
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	done := make(chan struct{})
	go func() {
		config.WatchLogLevel(watcher, level, zaptest.NewLogger(t))
		close(done)
	}()

	watcher.UpdateConfig(withLevel("debug"))
	require.Eventually(t, func() bool { return level.Level() == zapcore.DebugLevel }, 2*time.Second, 5*time.Millisecond)

	// an invalid level is skipped, later valid ones still apply
	watcher.UpdateConfig(withLevel("loud"))
	watcher.UpdateConfig(withLevel("warn"))
	require.Eventually(t, func() bool { return level.Level() == zapcore.WarnLevel }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, watcher.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchLogLevel did not return after Close")
	}
	assert.Equal(t, "warn", watcher.GetCurrentConfig().Logging.Level)
}
