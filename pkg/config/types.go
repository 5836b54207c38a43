package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

// Config represents the persistent llmux configuration stored as config.toml
// in the .llmux/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version         int                       `toml:"version"`
	DefaultProvider string                    `toml:"default_provider,omitempty"`
	Server          ServerConfig              `toml:"server"`
	Stream          StreamConfig              `toml:"stream"`
	HTTP            HTTPConfig                `toml:"http"`
	Events          EventsConfig              `toml:"events"`
	Providers       map[string]ProviderConfig `toml:"providers,omitempty"`
}

// ServerConfig holds the listen addresses of "llmux serve".
type ServerConfig struct {
	Listen   string `toml:"listen,omitempty"`
	WSListen string `toml:"ws_listen,omitempty"`
}

// StreamConfig holds stream normalization settings.
type StreamConfig struct {
	// StrictTermination reports streams that end without [DONE] or a
	// finish reason as errors instead of ending them quietly.
	StrictTermination bool `toml:"strict_termination,omitempty"`
}

// HTTPConfig holds settings for upstream provider calls.
type HTTPConfig struct {
	// Timeout bounds a whole upstream call, streaming included, as a Go
	// duration string. Empty or "0" disables it.
	Timeout string `toml:"timeout,omitempty"`
}

// EventsConfig selects where session events are published.
type EventsConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of Kafka broker addresses.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList returns Brokers split on commas.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ProviderConfig holds the settings of one provider. Empty fields keep the
// provider's built-in defaults.
type ProviderConfig struct {
	APIKey             string   `toml:"api_key,omitempty"`
	BaseURL            string   `toml:"base_url,omitempty"`
	DefaultModel       string   `toml:"default_model,omitempty"`
	DefaultTemperature *float64 `toml:"default_temperature,omitempty"`
	DefaultMaxTokens   int      `toml:"default_max_tokens,omitempty"`
}

// Provider returns the settings of the named provider.
func (c *Config) Provider(name string) ProviderConfig {
	return c.Providers[strings.ToLower(name)]
}

func (c *Config) updateProvider(name string, fn func(p *ProviderConfig)) {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	p := c.Providers[name]
	fn(&p)
	c.Providers[name] = p
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by "config list".
	secret bool
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = buildConfigKeys()

func buildConfigKeys() map[string]configKeyInfo {
	keys := map[string]configKeyInfo{
		"default_provider": {
			get: func(c *Config) string { return c.DefaultProvider },
			set: func(c *Config, v string) error {
				if _, ok := provider.Lookup(v); !ok {
					return fmt.Errorf("invalid value for default_provider: unknown provider %q", v)
				}
				c.DefaultProvider = strings.ToLower(v)
				return nil
			},
		},
		"server.listen": {
			get: func(c *Config) string { return c.Server.Listen },
			set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
		},
		"server.ws_listen": {
			get: func(c *Config) string { return c.Server.WSListen },
			set: func(c *Config, v string) error { c.Server.WSListen = v; return nil },
		},
		"stream.strict_termination": {
			get: func(c *Config) string { return strconv.FormatBool(c.Stream.StrictTermination) },
			set: func(c *Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("invalid value for stream.strict_termination: %w", err)
				}
				c.Stream.StrictTermination = b
				return nil
			},
		},
		"http.timeout": {
			get: func(c *Config) string { return c.HTTP.Timeout },
			set: func(c *Config, v string) error { c.HTTP.Timeout = v; return nil },
		},
		"events.provider": {
			get: func(c *Config) string { return c.Events.Provider },
			set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
		},
		"events.brokers": {
			get: func(c *Config) string { return c.Events.Brokers },
			set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
		},
		"events.topic": {
			get: func(c *Config) string { return c.Events.Topic },
			set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
		},
	}

	for _, name := range provider.SupportedProviders() {
		prefix := "providers." + name + "."
		keys[prefix+"api_key"] = configKeyInfo{
			get: func(c *Config) string { return c.Provider(name).APIKey },
			set: func(c *Config, v string) error {
				c.updateProvider(name, func(p *ProviderConfig) { p.APIKey = v })
				return nil
			},
			secret: true,
		}
		keys[prefix+"base_url"] = configKeyInfo{
			get: func(c *Config) string { return c.Provider(name).BaseURL },
			set: func(c *Config, v string) error {
				c.updateProvider(name, func(p *ProviderConfig) { p.BaseURL = v })
				return nil
			},
		}
		keys[prefix+"default_model"] = configKeyInfo{
			get: func(c *Config) string { return c.Provider(name).DefaultModel },
			set: func(c *Config, v string) error {
				c.updateProvider(name, func(p *ProviderConfig) { p.DefaultModel = v })
				return nil
			},
		}
		keys[prefix+"default_temperature"] = configKeyInfo{
			get: func(c *Config) string {
				if t := c.Provider(name).DefaultTemperature; t != nil {
					return strconv.FormatFloat(*t, 'f', -1, 64)
				}
				return ""
			},
			set: func(c *Config, v string) error {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("invalid value for %sdefault_temperature: %w", prefix, err)
				}
				c.updateProvider(name, func(p *ProviderConfig) { p.DefaultTemperature = &f })
				return nil
			},
		}
		keys[prefix+"default_max_tokens"] = configKeyInfo{
			get: func(c *Config) string {
				if n := c.Provider(name).DefaultMaxTokens; n > 0 {
					return strconv.Itoa(n)
				}
				return ""
			},
			set: func(c *Config, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("invalid value for %sdefault_max_tokens: %w", prefix, err)
				}
				c.updateProvider(name, func(p *ProviderConfig) { p.DefaultMaxTokens = n })
				return nil
			},
		}
	}
	return keys
}
