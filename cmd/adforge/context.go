package main

import (
	"fmt"
	"strings"

	"adforge/internal/api"
	"adforge/internal/config"
)

// commandContext carries lazily resolved configuration and the daemon client
// shared by all subcommands.
type commandContext struct {
	addrFlag   *string
	configFlag *string

	cfg    *config.Config
	client *api.Client
}

func newCommandContext(addrFlag, configFlag *string) *commandContext {
	return &commandContext{addrFlag: addrFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// apiClient resolves the daemon address from the --addr flag, falling back
// to the configured bind address.
func (c *commandContext) apiClient() (*api.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	addr := ""
	if c.addrFlag != nil {
		addr = strings.TrimSpace(*c.addrFlag)
	}
	if addr == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.Paths.APIBind
	}
	if addr == "" {
		return nil, fmt.Errorf("no daemon address configured; pass --addr or set paths.api_bind")
	}
	c.client = api.NewClient(addr)
	return c.client, nil
}
