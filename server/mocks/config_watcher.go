package mocks

import (
	"sync"
	"sync/atomic"

	"github.com/rentfleet/aigw/config"
)

// MockConfigWatcher is an in-memory config.Watcher. UpdateConfig plays the
// role of an edited config file.
type MockConfigWatcher struct {
	currentConfig atomic.Value

	mu          sync.Mutex
	subscribers []chan *config.Config
}

var _ config.Watcher = (*MockConfigWatcher)(nil)

// NewMockConfigWatcher creates a watcher holding cfg.
func NewMockConfigWatcher(cfg *config.Config) *MockConfigWatcher {
	m := &MockConfigWatcher{}
	m.currentConfig.Store(cfg)
	return m
}

func (m *MockConfigWatcher) GetCurrentConfig() *config.Config {
	return m.currentConfig.Load().(*config.Config)
}

// Subscribe returns a channel that already holds the current config.
func (m *MockConfigWatcher) Subscribe() <-chan *config.Config {
	ch := make(chan *config.Config, 1)
	ch <- m.GetCurrentConfig()

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Close closes every subscription.
func (m *MockConfigWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	return nil
}

// UpdateConfig stores cfg and delivers it to subscribers, blocking until
// each has room for it.
func (m *MockConfigWatcher) UpdateConfig(cfg *config.Config) {
	m.currentConfig.Store(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		ch <- cfg
	}
}
