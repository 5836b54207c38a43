package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/llmux/pkg/llm/provider"
	"github.com/papercomputeco/llmux/pkg/stream"
)

// NewProviderClient builds a provider client from c: one provider per
// configured section, the default provider, the HTTP timeout and the stream
// termination policy. A non-nil rawTee receives the raw upstream bytes of
// raw-SSE providers.
func (c *Config) NewProviderClient(log *slog.Logger, rawTee io.Writer) (*provider.Client, error) {
	timeout, err := c.HTTPTimeout()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: timeout}

	configs := c.ProviderConfigs()
	for name, pc := range configs {
		pc.HTTPClient = httpClient
		pc.RawTee = rawTee
		configs[name] = pc
	}
	// Providers without a section still get the shared HTTP client and tee.
	for _, name := range provider.SupportedProviders() {
		if _, ok := configs[name]; !ok {
			configs[name] = provider.Config{HTTPClient: httpClient, RawTee: rawTee}
		}
	}

	policy := stream.TerminationLenient
	if c.Stream.StrictTermination {
		policy = stream.TerminationStrict
	}

	client, err := provider.NewClient(configs,
		provider.WithDefaultProvider(c.DefaultProvider),
		provider.WithSessionOptions(stream.WithTerminationPolicy(policy)),
		provider.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("creating provider client: %w", err)
	}
	return client, nil
}
