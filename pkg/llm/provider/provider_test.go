package provider_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/llm/provider"
	"github.com/papercomputeco/llmux/pkg/stream"
)

var _ = Describe("Supported providers", func() {
	DescribeTable("New builds each provider with its family",
		func(name string, family stream.Family) {
			p, err := provider.New(name, provider.Config{APIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal(strings.ToLower(name)))
			Expect(p.Family()).To(Equal(family))

			registered, ok := stream.Families.Classify(name)
			Expect(ok).To(BeTrue())
			Expect(registered).To(Equal(family))
		},
		Entry("openai", "openai", stream.FamilyTypedEvent),
		Entry("perplexity", "Perplexity", stream.FamilyTypedEvent),
		Entry("gemini", "GEMINI", stream.FamilyTypedEvent),
		Entry("groq", "groq", stream.FamilyRawSSE),
		Entry("ali", "ali", stream.FamilyRawSSE),
	)

	It("builds the transport registered in the family table", func() {
		stream.Families.Register("groq", stream.FamilyTypedEvent)
		DeferCleanup(func() { stream.Families.Register("groq", stream.FamilyRawSSE) })

		info, _ := provider.Lookup("groq")
		Expect(info.Family()).To(Equal(stream.FamilyTypedEvent))

		p, err := provider.New("groq", provider.Config{APIKey: "gsk_k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("groq"))
		Expect(p.Family()).To(Equal(stream.FamilyTypedEvent))
	})

	It("rejects unknown providers", func() {
		_, err := provider.New("mistral", provider.Config{})
		Expect(err).To(MatchError(provider.ErrUnknownProvider))
		Expect(err.Error()).To(ContainSubstring("supported"))
	})

	It("merges configuration over built-in defaults", func() {
		info, ok := provider.Lookup("groq")
		Expect(ok).To(BeTrue())

		endpoint := info.Endpoint(provider.Config{
			APIKey:             "gsk_x",
			DefaultModel:       "llama-3.1-8b",
			DefaultTemperature: llm.Float(0.9),
			DefaultMaxTokens:   256,
		})
		Expect(endpoint.BaseURL).To(Equal("https://api.groq.com/openai/v1"))
		Expect(endpoint.DefaultModel).To(Equal("llama-3.1-8b-instant"))
		Expect(*endpoint.Defaults.Temperature).To(Equal(0.9))
		Expect(*endpoint.Defaults.MaxTokens).To(Equal(256))
	})

	It("keeps gemini from sending penalties", func() {
		info, _ := provider.Lookup("gemini")
		Expect(info.SupportsPenalties).To(BeFalse())
	})

	It("resolves model aliases", func() {
		Expect(provider.ResolveModel("groq", "llama-3.1-8b")).To(Equal("llama-3.1-8b-instant"))
		Expect(provider.ResolveModel("ALI", "qwen2.5-72b")).To(Equal("qwen2.5-72b-instruct"))
		Expect(provider.ResolveModel("openai", "gpt-4o")).To(Equal("gpt-4o"))
		Expect(provider.ModelAliases("perplexity")).To(HaveKey("sonar-small"))
	})
})

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
	)

	BeforeEach(func() {
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&received)
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"pong\"},\"finish_reason\":\"stop\"}]}\n\n")
			io.WriteString(w, "data: [DONE]\n\n")
		}))
		DeferCleanup(server.Close)
	})

	newClient := func(opts ...provider.ClientOption) *provider.Client {
		c, err := provider.NewClient(map[string]provider.Config{
			"groq":   {APIKey: "gsk_test", BaseURL: server.URL},
			"openai": {APIKey: "sk-test", BaseURL: server.URL},
		}, opts...)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("completes through a raw-SSE provider with alias resolution", func() {
		c := newClient()
		req := llm.NewPrompt("", "ping")
		req.Model = "llama-3.1-8b"

		res := c.Complete(context.Background(), "Groq", req)
		Expect(res.Success).To(BeTrue())
		Expect(res.Content).To(Equal("pong"))
		Expect(received).To(HaveKeyWithValue("model", "llama-3.1-8b-instant"))
		Expect(req.Model).To(Equal("llama-3.1-8b"))
	})

	It("streams through the default provider", func() {
		c := newClient(provider.WithDefaultProvider("openai"))
		Expect(c.DefaultProvider()).To(Equal("openai"))

		var frames []string
		for frame := range c.Stream(context.Background(), "", llm.NewPrompt("", "ping")).EventStream() {
			frames = append(frames, frame)
		}
		Expect(frames).To(HaveLen(3))
		Expect(frames[0]).To(ContainSubstring(`"content":"pong"`))
		Expect(frames[1]).To(ContainSubstring(`"type":"finish"`))
		Expect(frames[2]).To(Equal("data: [DONE]\n\n"))
	})

	It("reports the model a request is sent with", func() {
		c, err := provider.NewClient(map[string]provider.Config{
			"groq": {APIKey: "gsk_test", BaseURL: server.URL, DefaultModel: "llama-3.1-8b"},
		}, provider.WithDefaultProvider("groq"))
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Model("", "")).To(Equal("llama-3.1-8b-instant"))
		Expect(c.Model("groq", "mixtral-8x7b")).To(Equal("mixtral-8x7b-32768"))
		Expect(c.Model("ali", "")).To(Equal("deepseek-v3"))
		Expect(c.Model("mistral", "")).To(BeEmpty())
	})

	It("reports a provider without a key through the error chunk", func() {
		c := newClient()
		Expect(c.Configured("ali")).To(BeFalse())

		res := c.Complete(context.Background(), "ali", llm.NewPrompt("", "ping"))
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(Equal("ali: missing API key"))
		Expect(res.Metadata).To(HaveKeyWithValue("provider", "ali"))
		Expect(received).To(BeNil())
	})

	It("reports unknown providers through the error chunk", func() {
		res := newClient().Complete(context.Background(), "mistral", llm.NewPrompt("", "ping"))
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("unknown provider"))
	})

	It("reports invalid requests through the error chunk", func() {
		res := newClient().Complete(context.Background(), "groq", &llm.ChatRequest{})
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("invalid request"))
		Expect(received).To(BeNil())
	})

	It("applies session options", func() {
		c := newClient(provider.WithSessionOptions(stream.WithTerminationPolicy(stream.TerminationStrict)))
		resp := c.Stream(context.Background(), "groq", llm.NewPrompt("", "ping"))
		Expect(resp.CollectFull().Success).To(BeTrue())
	})

	It("rejects unknown configuration entries and default providers", func() {
		_, err := provider.NewClient(map[string]provider.Config{"mistral": {}})
		Expect(err).To(MatchError(provider.ErrUnknownProvider))

		_, err = provider.NewClient(nil, provider.WithDefaultProvider("mistral"))
		Expect(err).To(MatchError(provider.ErrUnknownProvider))
	})
})
