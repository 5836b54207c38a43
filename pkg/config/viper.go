package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/llmux/pkg/dotdir"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
)

const envPrefix = "LLMUX"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the LLMUX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LLMUX_SERVER_LISTEN, LLMUX_PROVIDERS_GROQ_API_KEY, etc.),
//     then the conventional provider key variables (GROQ_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: LLMUX_SERVER_LISTEN, LLMUX_STREAM_STRICT_TERMINATION, etc.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys also come from the variables each vendor documents.
	for _, name := range provider.SupportedProviders() {
		info, _ := provider.Lookup(name)
		key := "providers." + name + ".api_key"
		_ = v.BindEnv(key, envPrefix+"_PROVIDERS_"+strings.ToUpper(name)+"_API_KEY", info.EnvKey)
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("default_provider", d.DefaultProvider)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.ws_listen", d.Server.WSListen)

	// Stream
	v.SetDefault("stream.strict_termination", d.Stream.StrictTermination)

	// HTTP
	v.SetDefault("http.timeout", d.HTTP.Timeout)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Providers: register every key so AutomaticEnv can find them.
	for _, name := range provider.SupportedProviders() {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"default_model", "")
		v.SetDefault(prefix+"default_max_tokens", 0)
	}
}

// FromViper resolves the effective Config from v.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version:         v.GetInt("version"),
		DefaultProvider: strings.ToLower(v.GetString("default_provider")),
		Server: ServerConfig{
			Listen:   v.GetString("server.listen"),
			WSListen: v.GetString("server.ws_listen"),
		},
		Stream: StreamConfig{
			StrictTermination: v.GetBool("stream.strict_termination"),
		},
		HTTP: HTTPConfig{
			Timeout: v.GetString("http.timeout"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Providers: map[string]ProviderConfig{},
	}

	for _, name := range provider.SupportedProviders() {
		prefix := "providers." + name + "."
		p := ProviderConfig{
			APIKey:           v.GetString(prefix + "api_key"),
			BaseURL:          v.GetString(prefix + "base_url"),
			DefaultModel:     v.GetString(prefix + "default_model"),
			DefaultMaxTokens: v.GetInt(prefix + "default_max_tokens"),
		}
		if v.IsSet(prefix + "default_temperature") {
			t := v.GetFloat64(prefix + "default_temperature")
			p.DefaultTemperature = &t
		}
		if p != (ProviderConfig{}) {
			cfg.Providers[name] = p
		}
	}
	return cfg
}
