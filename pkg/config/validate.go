package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

// Validate reports every problem found in the configuration, joined.
// Providers without an API key are not an error; they fail when used.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := provider.Lookup(c.DefaultProvider); !ok {
		errs = append(errs, fmt.Errorf("default_provider: unknown provider %q (supported: %v)",
			c.DefaultProvider, provider.SupportedProviders()))
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := c.Providers[name]
		info, ok := provider.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("providers.%s: unknown provider", name))
			continue
		}
		if p.APIKey != "" && !strings.HasPrefix(p.APIKey, info.KeyPrefix) {
			errs = append(errs, fmt.Errorf("providers.%s.api_key: expected a key starting with %q", name, info.KeyPrefix))
		}
		if t := p.DefaultTemperature; t != nil && (*t < 0 || *t > 2) {
			errs = append(errs, fmt.Errorf("providers.%s.default_temperature: %v out of range [0, 2]", name, *t))
		}
		if p.DefaultMaxTokens < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.default_max_tokens: must not be negative", name))
		}
	}

	if _, err := c.HTTPTimeout(); err != nil {
		errs = append(errs, err)
	}

	switch c.Events.Provider {
	case "", "nop":
	case "kafka":
		if len(c.Events.BrokerList()) == 0 {
			errs = append(errs, errors.New("events.brokers: required when events.provider is kafka"))
		}
		if c.Events.Topic == "" {
			errs = append(errs, errors.New("events.topic: required when events.provider is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.provider: unknown provider %q (supported: nop, kafka)", c.Events.Provider))
	}

	return errors.Join(errs...)
}

// HTTPTimeout parses http.timeout. Zero means no timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if c.HTTP.Timeout == "" || c.HTTP.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 0, fmt.Errorf("http.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("http.timeout: must not be negative")
	}
	return d, nil
}

// ProviderConfigs converts the provider sections into provider layer
// configuration.
func (c *Config) ProviderConfigs() map[string]provider.Config {
	out := make(map[string]provider.Config, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = provider.Config{
			APIKey:             p.APIKey,
			BaseURL:            p.BaseURL,
			DefaultModel:       p.DefaultModel,
			DefaultTemperature: p.DefaultTemperature,
			DefaultMaxTokens:   p.DefaultMaxTokens,
		}
	}
	return out
}
