package testsupport

import (
	"path/filepath"
	"testing"

	"adforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockFile = filepath.Join(base, "adforged.lock")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Dispatch.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFastMode flips the pipeline-wide fast mode default.
func WithFastMode() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.FastMode = true
	}
}

// WithRetryBudget overrides the default retry budget handed to new projects.
func WithRetryBudget(budget int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.DefaultRetryBudget = budget
	}
}
