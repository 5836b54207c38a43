package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/llmux/cmd/llmux/init"
	"github.com/papercomputeco/llmux/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".llmux", "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{}
		Expect(toml.Unmarshal(data, cfg)).To(Succeed())
		return cfg
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	It("creates a .llmux directory with a default config", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Writing config.toml"))
		Expect(out).To(ContainSubstring("Initialized .llmux directory"))

		info, err := os.Stat(filepath.Join(tmpDir, ".llmux"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := readConfig()
		Expect(cfg.DefaultProvider).To(Equal("openai"))
		Expect(cfg.Server.Listen).To(Equal(":8080"))
	})

	It("is idempotent", func() {
		_, err := run()
		Expect(err).NotTo(HaveOccurred())

		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Already initialized"))
	})

	It("writes the preset provider", func() {
		out, err := run("--preset", "groq")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("groq"))

		cfg := readConfig()
		Expect(cfg.DefaultProvider).To(Equal("groq"))
		Expect(cfg.Providers["groq"].DefaultModel).To(Equal("llama-3.1-70b-versatile"))
	})

	It("overwrites an existing config when a preset is given", func() {
		_, err := run()
		Expect(err).NotTo(HaveOccurred())

		_, err = run("--preset", "gemini")
		Expect(err).NotTo(HaveOccurred())
		Expect(readConfig().DefaultProvider).To(Equal("gemini"))
	})

	It("rejects unknown presets without creating anything", func() {
		_, err := run("--preset", "anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))

		_, statErr := os.Stat(filepath.Join(tmpDir, ".llmux"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
