package config

const (
	defaultProvider = "openai"
	defaultListen   = ":8080"
	defaultWSListen = ":8081"

	defaultHTTPTimeout = "120s"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "llmux.sessions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version:         CurrentV,
		DefaultProvider: defaultProvider,
		Server: ServerConfig{
			Listen:   defaultListen,
			WSListen: defaultWSListen,
		},
		HTTP: HTTPConfig{
			Timeout: defaultHTTPTimeout,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
