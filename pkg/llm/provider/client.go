package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/logger"
	"github.com/papercomputeco/llmux/pkg/stream"
)

// Client dispatches requests to configured providers and returns normalized
// stream responses. It is safe for concurrent use once constructed.
type Client struct {
	providers       map[string]Provider
	configured      map[string]bool
	defaultModels   map[string]string
	defaultProvider string
	sessionOpts     []stream.Option
	logger          *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultProvider selects the provider used when a call names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = normalize(name)
	}
}

// WithSessionOptions applies opts to every session the client opens.
func WithSessionOptions(opts ...stream.Option) ClientOption {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithLogger sets the client's logger. Sessions log through it too.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProvider registers p under its name, replacing any existing entry.
func WithProvider(p Provider) ClientOption {
	return func(c *Client) {
		name := normalize(p.Name())
		c.providers[name] = p
		c.configured[name] = true
	}
}

// NewClient builds a client with one provider per entry of configs. Every
// supported provider is registered; those without an API key fail with
// ErrMissingAPIKey when used.
func NewClient(configs map[string]Config, opts ...ClientOption) (*Client, error) {
	c := &Client{
		providers:       map[string]Provider{},
		configured:      map[string]bool{},
		defaultModels:   map[string]string{},
		defaultProvider: OpenAI,
		logger:          logger.Nop(),
	}

	normalized := make(map[string]Config, len(configs))
	for name, cfg := range configs {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProvider, name, SupportedProviders())
		}
		normalized[normalize(name)] = cfg
	}

	for _, name := range SupportedProviders() {
		cfg := normalized[name]
		p, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		c.providers[name] = p
		c.configured[name] = cfg.APIKey != ""
		if info, ok := Lookup(name); ok {
			c.defaultModels[name] = info.Endpoint(cfg).DefaultModel
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	if _, ok := c.providers[c.defaultProvider]; !ok {
		return nil, fmt.Errorf("%w: default provider %q", ErrUnknownProvider, c.defaultProvider)
	}
	return c, nil
}

// DefaultProvider returns the name used when a call names no provider.
func (c *Client) DefaultProvider() string {
	return c.defaultProvider
}

// Provider returns the named provider.
func (c *Client) Provider(name string) (Provider, bool) {
	p, ok := c.providers[normalize(name)]
	return p, ok
}

// Model returns the model a request for model is sent with on the named
// provider: aliases resolved, and the provider's default model when model is
// empty. An empty name means the default provider.
func (c *Client) Model(name, model string) string {
	if name == "" {
		name = c.defaultProvider
	}
	name = normalize(name)
	if model == "" {
		return c.defaultModels[name]
	}
	return ResolveModel(name, model)
}

// Configured reports whether the named provider has credentials.
func (c *Client) Configured(name string) bool {
	return c.configured[normalize(name)]
}

// Stream opens a streaming completion on the named provider, or the default
// provider when name is empty. Failures to open the stream are delivered as
// the response's error chunk, so the result can always be projected.
func (c *Client) Stream(ctx context.Context, name string, req *llm.ChatRequest) *stream.Response {
	if name == "" {
		name = c.defaultProvider
	}
	name = normalize(name)

	opts := append([]stream.Option{stream.WithLogger(c.logger)}, c.sessionOpts...)

	p, ok := c.providers[name]
	if !ok {
		err := fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProvider, name, SupportedProviders())
		return stream.Open(name, stream.Failed(stream.FamilyTypedEvent, err), opts...)
	}
	if !c.configured[name] {
		err := fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
		return stream.Open(name, stream.Failed(p.Family(), err), opts...)
	}
	if req == nil {
		req = &llm.ChatRequest{}
	}
	if err := req.Validate(); err != nil {
		return stream.Open(name, stream.Failed(p.Family(), fmt.Errorf("invalid request: %w", err)), opts...)
	}

	resolved := *req
	resolved.Model = ResolveModel(name, req.Model)

	c.logger.Debug("opening stream", "provider", name, "model", resolved.Model)
	t, err := p.Stream(ctx, &resolved)
	if err != nil {
		c.logger.Warn("opening stream failed", "provider", name, "error", err)
		t = stream.Failed(p.Family(), err)
	}
	return stream.Open(name, t, opts...)
}

// Complete streams a completion and collects it in full.
func (c *Client) Complete(ctx context.Context, name string, req *llm.ChatRequest) stream.Result {
	return c.Stream(ctx, name, req).CollectFull()
}
