package approval

import "fmt"

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON or YAML; start from DefaultConfig, every field is
// required and checked by Validate.
type Config struct {
	Router   RouterConfig   `json:"router" yaml:"router"`
	Saga     SagaConfig     `json:"saga" yaml:"saga"`
	Notifier NotifierConfig `json:"notifier" yaml:"notifier"`
}

type RouterConfig struct {
	WorkerCount int `json:"workers" yaml:"workers"`
}

type SagaConfig struct {
	// MaxSaveAttempts bounds the reload-and-retry loop on store conflicts.
	MaxSaveAttempts int `json:"maxSaveAttempts" yaml:"maxSaveAttempts"`
}

type NotifierConfig struct {
	// TimeoutMs bounds a single notification publish.
	TimeoutMs int `json:"timeoutMs" yaml:"timeoutMs"`
}

// DefaultConfig returns a Config populated with the same defaults the
// individual service constructors use.
func DefaultConfig() *Config {
	return &Config{
		Router:   RouterConfig{WorkerCount: 5},
		Saga:     SagaConfig{MaxSaveAttempts: 5},
		Notifier: NotifierConfig{TimeoutMs: 5000},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Router.WorkerCount <= 0 {
		return fmt.Errorf("router.workers must be > 0")
	}
	if c.Saga.MaxSaveAttempts <= 0 {
		return fmt.Errorf("saga.maxSaveAttempts must be > 0")
	}
	if c.Notifier.TimeoutMs <= 0 {
		return fmt.Errorf("notifier.timeoutMs must be > 0")
	}
	return nil
}
