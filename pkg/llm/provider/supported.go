package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/llm/provider/openai"
	"github.com/papercomputeco/llmux/pkg/llm/provider/rawsse"
	"github.com/papercomputeco/llmux/pkg/stream"
)

// Supported provider name constants
const (
	OpenAI     = "openai"
	Perplexity = "perplexity"
	Groq       = "groq"
	Ali        = "ali"
	Gemini     = "gemini"
)

// Info is the built-in description of a supported provider.
type Info struct {
	Name         string
	BaseURL      string
	DefaultModel string
	Defaults     llm.Sampling

	// KeyPrefix is the prefix every valid API key for the provider has.
	KeyPrefix string

	// EnvKey is the conventional environment variable holding the API key.
	EnvKey string

	SupportsTopK      bool
	SupportsPenalties bool
}

var builtin = map[string]Info{
	OpenAI: {
		Name:              OpenAI,
		BaseURL:           "https://api.openai.com/v1",
		DefaultModel:      "gpt-4-1106-preview",
		Defaults:          llm.Sampling{Temperature: llm.Float(0.7), TopP: llm.Float(1)},
		KeyPrefix:         "sk-",
		EnvKey:            "OPENAI_API_KEY",
		SupportsPenalties: true,
	},
	Perplexity: {
		Name:         Perplexity,
		BaseURL:      "https://api.perplexity.ai",
		DefaultModel: "llama-3.1-sonar-small-128k-online",
		Defaults: llm.Sampling{
			Temperature:      llm.Float(0.2),
			TopP:             llm.Float(0.9),
			PresencePenalty:  llm.Float(0),
			FrequencyPenalty: llm.Float(1),
		},
		KeyPrefix:         "pplx-",
		EnvKey:            "PERPLEXITY_API_KEY",
		SupportsTopK:      true,
		SupportsPenalties: true,
	},
	Groq: {
		Name:              Groq,
		BaseURL:           "https://api.groq.com/openai/v1",
		DefaultModel:      "llama-3.1-70b-versatile",
		Defaults:          llm.Sampling{Temperature: llm.Float(0.2), TopP: llm.Float(1)},
		KeyPrefix:         "gsk_",
		EnvKey:            "GROQ_API_KEY",
		SupportsPenalties: true,
	},
	Ali: {
		Name:              Ali,
		BaseURL:           "https://dashscope.aliyuncs.com/compatible-mode/v1",
		DefaultModel:      "deepseek-v3",
		Defaults:          llm.Sampling{Temperature: llm.Float(0.2), TopP: llm.Float(1)},
		KeyPrefix:         "sk-",
		EnvKey:            "ALI_API_KEY",
		SupportsPenalties: true,
	},
	Gemini: {
		Name:         Gemini,
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
		DefaultModel: "gemini-2.5-flash-lite",
		Defaults:     llm.Sampling{Temperature: llm.Float(0.2), TopP: llm.Float(1)},
		KeyPrefix:    "AIza",
		EnvKey:       "GEMINI_API_KEY",
	},
}

// SupportedProviders returns the list of all supported provider names.
func SupportedProviders() []string {
	return []string{OpenAI, Perplexity, Groq, Ali, Gemini}
}

// Lookup returns the built-in description of a provider. Names are matched
// case-insensitively.
func Lookup(name string) (Info, bool) {
	info, ok := builtin[normalize(name)]
	return info, ok
}

// Family returns the provider's family as registered in stream.Families,
// which decides the transport New builds.
func (i Info) Family() stream.Family {
	family, _ := stream.Families.Classify(i.Name)
	return family
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Config overrides the built-in settings of one provider. Zero values keep
// the built-in default.
type Config struct {
	APIKey             string
	BaseURL            string
	DefaultModel       string
	DefaultTemperature *float64
	DefaultMaxTokens   int

	// HTTPClient is used for upstream calls. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// RawTee receives a copy of the raw upstream stream of raw-SSE providers.
	RawTee io.Writer
}

// Endpoint merges cfg over the provider's built-in settings.
func (i Info) Endpoint(cfg Config) llm.Endpoint {
	e := llm.Endpoint{
		Name:              i.Name,
		BaseURL:           i.BaseURL,
		APIKey:            cfg.APIKey,
		DefaultModel:      i.DefaultModel,
		Defaults:          i.Defaults,
		SupportsTopK:      i.SupportsTopK,
		SupportsPenalties: i.SupportsPenalties,
		HTTPClient:        cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		e.BaseURL = cfg.BaseURL
	}
	if cfg.DefaultModel != "" {
		e.DefaultModel = ResolveModel(i.Name, cfg.DefaultModel)
	}
	if cfg.DefaultTemperature != nil {
		e.Defaults.Temperature = cfg.DefaultTemperature
	}
	if cfg.DefaultMaxTokens > 0 {
		e.Defaults.MaxTokens = llm.Int(cfg.DefaultMaxTokens)
	}
	return e
}

// New creates the named provider. Names are case-insensitive.
func New(name string, cfg Config) (Provider, error) {
	info, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownProvider, name, SupportedProviders())
	}

	endpoint := info.Endpoint(cfg)
	switch info.Family() {
	case stream.FamilyTypedEvent:
		return openai.New(endpoint), nil
	case stream.FamilyRawSSE:
		var opts []rawsse.Option
		if cfg.RawTee != nil {
			opts = append(opts, rawsse.WithTee(cfg.RawTee))
		}
		return rawsse.New(endpoint, opts...), nil
	default:
		return nil, fmt.Errorf("provider %q has unsupported family %s", name, info.Family())
	}
}
