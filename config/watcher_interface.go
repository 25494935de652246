package config

// Watcher publishes configuration updates. ConfigWatcher is the file-backed
// implementation; tests use mocks.MockConfigWatcher.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
