package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adforge/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pipeline.DefaultRetryBudget > cfg.Pipeline.MaxRetryBudget {
		t.Fatalf("default budget %d exceeds max %d", cfg.Pipeline.DefaultRetryBudget, cfg.Pipeline.MaxRetryBudget)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("exists = true for absent file")
	}
	if resolved == "" {
		t.Fatal("resolved path empty")
	}
	if cfg.Paths.APIBind == "" {
		t.Fatal("defaults not applied")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
api_bind = "127.0.0.1:9999"

[pipeline]
default_retry_budget = 1
max_retry_budget = 3
fast_mode = true

[watch]
poll_interval_seconds = 5
backoff_ceiling_seconds = 60
backoff_multiplier = 3.0
degraded_threshold = 4
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for present file")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api_bind = %s", cfg.Paths.APIBind)
	}
	if !cfg.Pipeline.FastMode || cfg.Pipeline.DefaultRetryBudget != 1 {
		t.Fatalf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Watch.BackoffMultiplier != 3.0 || cfg.Watch.DegradedThreshold != 4 {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty data dir", func(c *config.Config) { c.Paths.DataDir = "" }},
		{"empty api bind", func(c *config.Config) { c.Paths.APIBind = " " }},
		{"budget above max", func(c *config.Config) { c.Pipeline.DefaultRetryBudget = c.Pipeline.MaxRetryBudget + 1 }},
		{"negative max budget", func(c *config.Config) { c.Pipeline.MaxRetryBudget = -1 }},
		{"dispatch without redis", func(c *config.Config) { c.Dispatch.Enabled = true; c.Dispatch.RedisAddr = "" }},
		{"zero poll interval", func(c *config.Config) { c.Watch.PollIntervalSeconds = 0 }},
		{"ceiling below interval", func(c *config.Config) { c.Watch.BackoffCeilingSeconds = 1; c.Watch.PollIntervalSeconds = 5 }},
		{"multiplier below one", func(c *config.Config) { c.Watch.BackoffMultiplier = 0.5 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %s not created: %v", dir, err)
		}
	}
}

func TestEnvVarResolvesConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.toml")
	contents := strings.ReplaceAll(`[paths]
data_dir = "DIR/data"
api_bind = "127.0.0.1:7001"
`, "DIR", dir)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ADFORGE_CONFIG", path)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %s exists = %t", resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7001" {
		t.Fatalf("api_bind = %s", cfg.Paths.APIBind)
	}
}
