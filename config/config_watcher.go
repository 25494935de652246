package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verify at compile time that ConfigWatcher implements Watcher
var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes and hands
// every successfully validated config to its subscribers.
type ConfigWatcher struct {
	currentConfig atomic.Value
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initialConfig, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}
	cw.currentConfig.Store(initialConfig)

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel receiving each reloaded config. Slow
// subscribers miss intermediate versions rather than blocking the watcher.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// GetCurrentConfig returns the current configuration thread-safely
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load().(*Config)
}

func (cw *ConfigWatcher) watchConfig() {
	defer cw.closeSubscribers()
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				cw.handleConfigChange()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.logger.Info("Detected config file change, reloading...")

	newConfig, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to load new config, keeping the current one", zap.Error(err))
		return
	}

	cw.currentConfig.Store(newConfig)

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		// replace a stale unread config with the newest one
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- newConfig:
		default:
		}
	}
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
}

func (cw *ConfigWatcher) closeSubscribers() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, sub := range cw.subscribers {
		close(sub)
	}
	cw.subscribers = nil
}

// Close stops watching. Subscriber channels are closed once the watch loop exits.
func (cw *ConfigWatcher) Close() error {
	return cw.watcher.Close()
}

// WatchLogLevel applies logging.level from every config published by w to
// level. It returns when the subscription channel is closed.
func WatchLogLevel(w Watcher, level zap.AtomicLevel, logger *zap.Logger) {
	for cfg := range w.Subscribe() {
		var next zapcore.Level
		if err := next.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", cfg.Logging.Level))
			continue
		}
		if next != level.Level() {
			logger.Info("Log level changed",
				zap.Stringer("from", level.Level()),
				zap.Stringer("to", next),
			)
			level.SetLevel(next)
		}
	}
}
