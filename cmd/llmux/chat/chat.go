// Package chatcmder provides the chat command, which streams a prompt from a
// provider to the terminal.
package chatcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/llmux/pkg/cliui"
	"github.com/papercomputeco/llmux/pkg/config"
	"github.com/papercomputeco/llmux/pkg/dotdir"
	"github.com/papercomputeco/llmux/pkg/llm"
	"github.com/papercomputeco/llmux/pkg/logger"
	"github.com/papercomputeco/llmux/pkg/stream"
	"github.com/papercomputeco/llmux/pkg/utils"
)

var assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")

type chatCommander struct {
	provider          string
	providerSet       bool
	model             string
	system            string
	temperature       float64
	maxTokens         int
	strictTermination bool
	timeout           string

	collect   bool
	sse       bool
	raw       bool
	markdown  bool
	resume    bool
	reset     bool
	configDir string
	debug     bool

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	viper  *viper.Viper
	logger *slog.Logger
}

const chatLongDesc string = `Stream a prompt from a provider to the terminal.

The prompt is taken from the arguments, or from stdin when no arguments are
given or the only argument is "-".

Output modes:
  (default)   content as it arrives, followed by a one-line summary on stderr
  --collect   the collected result as JSON
  --sse       the normalized text/event-stream frames, ending in [DONE]

Each successful exchange is saved to .llmux/conversation.json. Pass
--continue to send the saved history with the new prompt, or --reset to
clear it.

Examples:
  llmux chat "Why is the sky blue?"
  llmux chat -p groq -m llama-3.1-8b "Write a haiku"
  echo "Summarize this" | llmux chat --collect
  llmux chat --continue "And in French?"`

const chatShortDesc string = "Stream a prompt from a provider"

var chatFlags = []string{
	config.FlagProvider,
	config.FlagStrictTermination,
	config.FlagHTTPTimeout,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.collect && cmder.sse {
				return errors.New("--collect and --sse are mutually exclusive")
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.providerSet = cmd.Flags().Changed(config.Flags[config.FlagProvider].Name)
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.in = cmd.InOrStdin()

			var temperature *float64
			if cmd.Flags().Changed("temperature") {
				temperature = &cmder.temperature
			}
			return cmder.run(cmd.Context(), args, temperature)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrictTermination, &cmder.strictTermination)
	config.AddStringFlag(cmd, config.Flags, config.FlagHTTPTimeout, &cmder.timeout)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name or alias (default: the provider's default model)")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt")
	cmd.Flags().Float64VarP(&cmder.temperature, "temperature", "t", 0, "Sampling temperature (default: the provider's default)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate (default: the provider's default)")
	cmd.Flags().BoolVar(&cmder.collect, "collect", false, "Print the collected result as JSON")
	cmd.Flags().BoolVar(&cmder.sse, "sse", false, "Print normalized event-stream frames")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Copy raw upstream SSE bytes to stderr (groq, ali)")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the completed answer as markdown")
	cmd.Flags().BoolVarP(&cmder.resume, "continue", "c", false, "Send the saved conversation with the prompt")
	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Clear the saved conversation")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, args []string, temperature *float64) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
		logger.WithSource(c.debug),
	)

	ddm := dotdir.NewManager()
	if c.reset {
		if err := ddm.ClearConversation(c.configDir); err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintf(c.errOut, "%s Conversation cleared\n", cliui.SuccessMark)
			return nil
		}
	}

	prompt, err := c.readPrompt(args)
	if err != nil {
		return err
	}

	cfg := config.FromViper(c.viper)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var conv *dotdir.Conversation
	if c.resume {
		conv, err = ddm.LoadConversation(c.configDir)
		if err != nil {
			return err
		}
	}
	if conv == nil {
		conv = &dotdir.Conversation{}
	}

	// A continued conversation stays on its provider unless -p says otherwise.
	providerName := cfg.DefaultProvider
	if conv.Provider != "" && !c.providerSet {
		providerName = conv.Provider
	}

	req := c.buildRequest(conv, providerName, prompt, temperature)

	var tee io.Writer
	if c.raw {
		tee = c.errOut
	}
	client, err := cfg.NewProviderClient(c.logger, tee)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c.logger.Debug("sending prompt",
		"provider", providerName,
		"model", req.Model,
		"history", len(conv.Messages),
		"prompt", utils.Truncate(prompt, 60),
	)

	resp := client.Stream(ctx, providerName, req)

	var content string
	switch {
	case c.collect:
		content, err = c.printCollected(resp)
	case c.sse:
		content, err = c.printEventStream(resp)
	default:
		content, err = c.printContent(resp)
	}
	if err != nil {
		return err
	}

	sess := resp.Session()
	conv.Provider = sess.Provider()
	conv.Model = client.Model(conv.Provider, req.Model)
	conv.Append(llm.RoleUser, prompt)
	conv.Append(llm.RoleAssistant, content)
	if err := ddm.SaveConversation(conv, c.configDir); err != nil {
		c.logger.Warn("could not save conversation", "error", err)
	}
	return nil
}

// readPrompt joins args, or reads stdin when there are none or args is "-".
func (c *chatCommander) readPrompt(args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}

	if f, ok := c.in.(*os.File); ok && cliui.IsTerminal(f) {
		return "", errors.New("no prompt given: pass it as an argument or on stdin")
	}

	data, err := io.ReadAll(c.in)
	if err != nil {
		return "", fmt.Errorf("reading prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given: pass it as an argument or on stdin")
	}
	return prompt, nil
}

func (c *chatCommander) buildRequest(conv *dotdir.Conversation, providerName, prompt string, temperature *float64) *llm.ChatRequest {
	req := &llm.ChatRequest{Model: c.model}
	if c.system != "" {
		req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleSystem, c.system))
	}
	for _, m := range conv.Messages {
		req.Messages = append(req.Messages, llm.NewTextMessage(m.Role, m.Content))
	}
	req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleUser, prompt))

	if req.Model == "" && strings.EqualFold(conv.Provider, providerName) {
		req.Model = conv.Model
	}
	req.Temperature = temperature
	if c.maxTokens > 0 {
		req.MaxTokens = llm.Int(c.maxTokens)
	}
	return req
}

func (c *chatCommander) printCollected(resp *stream.Response) (string, error) {
	result := resp.CollectFull()

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}

	if !result.Success {
		return "", fmt.Errorf("stream failed: %s", result.Error)
	}
	return result.Content, nil
}

func (c *chatCommander) printEventStream(resp *stream.Response) (string, error) {
	if err := resp.WriteEventStream(c.out); err != nil {
		return "", err
	}

	sess := resp.Session()
	if err := sess.Err(); err != nil {
		return "", fmt.Errorf("stream failed: %w", err)
	}
	return sess.Content(), nil
}

func (c *chatCommander) printContent(resp *stream.Response) (string, error) {
	sess := resp.Session()
	defer sess.Close()

	interactive := false
	if f, ok := c.out.(*os.File); ok && cliui.IsTerminal(f) {
		interactive = true
		fmt.Fprint(c.out, assistantPrompt)
	}

	var b strings.Builder
	for {
		chunk, status := sess.Next()
		if status == stream.StatusEnd {
			break
		}
		if status == stream.StatusError {
			fmt.Fprintln(c.out)
			return "", fmt.Errorf("stream failed: %s", chunk.Error)
		}

		b.WriteString(chunk.Content)
		if !c.markdown {
			fmt.Fprint(c.out, chunk.Content)
		}
	}

	content := b.String()
	if c.markdown {
		rendered, err := cliui.RenderMarkdown(content)
		if err != nil {
			c.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprint(c.out, rendered)
	} else {
		fmt.Fprintln(c.out)
	}

	if interactive {
		summary := sess.Summary()
		fmt.Fprintf(c.errOut, "%s\n", cliui.DimStyle.Render(fmt.Sprintf("%s · %d chunks · %s · %s",
			summary.Provider,
			summary.ChunkCount,
			orDash(summary.FinishReason),
			cliui.FormatDuration(summary.Duration),
		)))
	}
	return content, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
