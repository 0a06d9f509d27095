package config

import (
	"errors"
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

type configBuilder struct {
	endpoint Endpoint
	configs  []*ClientConfig
	warnings []error
}

func newConfigBuilder(endpoint Endpoint) *configBuilder {
	return &configBuilder{
		endpoint: endpoint,
		configs:  make([]*ClientConfig, 0, 2),
	}
}

// build merges the collected layers in order; later layers override earlier ones.
// Invalid log settings never fail the build: they fall back to the defaults and
// are recorded in Warnings.
func (b *configBuilder) build() (*ClientConfig, error) {
	cfg := new(ClientConfig)
	for _, layer := range b.configs {
		if err := mergo.Merge(cfg, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}
	cfg.Endpoint = b.endpoint

	if err := cfg.validate(); err != nil {
		b.warnings = append(b.warnings, fmt.Errorf("using default log settings: %w", err))
		cfg.Log = defaultLog()
	}
	cfg.Warnings = b.warnings

	return cfg, nil
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, &ClientConfig{
		Timeouts: DefaultTimeouts(),
		Log:      defaultLog(),
	})
	return b
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &ClientConfig{}
	if err := parseEnv(envCfg); err != nil {
		b.warnings = append(b.warnings, fmt.Errorf("ignoring environment: %w", err))
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

// parseEnv fills the CHAT_LOG_* fields of cfg from the environment.
func parseEnv(cfg *ClientConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}
	return nil
}

var validLogLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {}, "fatal": {}, "panic": {}, "disabled": {},
}

func (c *ClientConfig) validate() error {
	var errs []error

	if _, ok := validLogLevels[strings.ToLower(c.Log.Level)]; !ok {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level))
	}
	if strings.TrimSpace(c.Log.File) == "" {
		errs = append(errs, ErrEmptyLogFile)
	}

	return errors.Join(errs...)
}
