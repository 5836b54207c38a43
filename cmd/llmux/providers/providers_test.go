package providerscmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	providerscmder "github.com/papercomputeco/llmux/cmd/llmux/providers"
	"github.com/papercomputeco/llmux/pkg/config"
)

var _ = Describe("providers command", func() {
	It("lists every provider with its family", func() {
		cfg := config.NewDefaultConfig()
		cfg.DefaultProvider = "ali"
		cfg.Providers = map[string]config.ProviderConfig{"ali": {APIKey: "sk-1"}}

		entries := providerscmder.Entries(cfg)
		Expect(entries).To(HaveLen(5))

		byName := map[string]providerscmder.Entry{}
		for _, e := range entries {
			byName[e.Name] = e
		}
		Expect(byName["ali"].Configured).To(BeTrue())
		Expect(byName["ali"].Default).To(BeTrue())
		Expect(byName["ali"].Family).To(Equal("raw-sse"))
		Expect(byName["gemini"].Family).To(Equal("typed-event"))
		Expect(byName["gemini"].Configured).To(BeFalse())
		Expect(byName["groq"].Aliases).To(ContainElement("llama-3.1-70b"))
	})

	It("prints JSON", func() {
		dir := GinkgoT().TempDir()
		var out bytes.Buffer
		cmd := providerscmder.NewProvidersCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json"})
		Expect(cmd.Execute()).To(Succeed())

		var entries []providerscmder.Entry
		Expect(json.Unmarshal(out.Bytes(), &entries)).To(Succeed())
		Expect(entries).To(HaveLen(5))
		Expect(entries[0].Name).To(Equal("openai"))
		Expect(entries[0].Default).To(BeTrue())
	})
})
