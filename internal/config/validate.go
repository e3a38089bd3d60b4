package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxRetryBudget < 0 {
		return errors.New("pipeline.max_retry_budget must not be negative")
	}
	if c.Pipeline.DefaultRetryBudget < 0 || c.Pipeline.DefaultRetryBudget > c.Pipeline.MaxRetryBudget {
		return fmt.Errorf("pipeline.default_retry_budget must be within [0, %d]", c.Pipeline.MaxRetryBudget)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if !c.Dispatch.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Dispatch.RedisAddr) == "" {
		return errors.New("dispatch.redis_addr must be set when dispatch.enabled is true")
	}
	if c.Dispatch.TaskTimeoutMin <= 0 {
		return errors.New("dispatch.task_timeout_minutes must be positive")
	}
	if c.Dispatch.WorkerConcurrent <= 0 {
		return errors.New("dispatch.worker_concurrency must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.PollIntervalSeconds <= 0 {
		return errors.New("watch.poll_interval_seconds must be positive")
	}
	if c.Watch.BackoffCeilingSeconds < c.Watch.PollIntervalSeconds {
		return errors.New("watch.backoff_ceiling_seconds must be at least the poll interval")
	}
	if c.Watch.BackoffMultiplier < 1 {
		return errors.New("watch.backoff_multiplier must be at least 1")
	}
	if c.Watch.DegradedThreshold <= 0 {
		return errors.New("watch.degraded_threshold must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
