// Package servecmder provides the serve command for running the llmux HTTP
// and websocket servers.
package servecmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/llmux/pkg/config"
	"github.com/papercomputeco/llmux/pkg/eventstream"
	"github.com/papercomputeco/llmux/pkg/eventstream/kafka"
	"github.com/papercomputeco/llmux/pkg/eventstream/nop"
	"github.com/papercomputeco/llmux/pkg/logger"
	"github.com/papercomputeco/llmux/server"
)

type ServeCommander struct {
	listen            string
	wsListen          string
	provider          string
	strictTermination bool
	timeout           string
	eventsProvider    string
	eventsBrokers     string
	eventsTopic       string

	debug   bool
	json    bool
	logFile string

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the llmux servers.

The HTTP server exposes:
  GET|POST /v1/stream     Normalized chunks as text/event-stream, ending in [DONE]
  POST     /v1/complete   The collected completion as JSON
  GET      /v1/providers  Supported providers and whether they have keys
  GET      /ping          Liveness

The websocket server exposes /v1/ws, sending one message per chunk.

Every completed session is published as an llmux.session.completed event to
the configured events provider (nop or kafka).

Examples:
  llmux serve
  llmux serve --provider groq --listen :9000
  llmux serve --events-provider kafka --events-brokers localhost:9092`

const serveShortDesc string = "Run the llmux servers"

var serveFlags = []string{
	config.FlagListen,
	config.FlagWSListen,
	config.FlagProvider,
	config.FlagStrictTermination,
	config.FlagHTTPTimeout,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagWSListen, &cmder.wsListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrictTermination, &cmder.strictTermination)
	config.AddStringFlag(cmd, config.Flags, config.FlagHTTPTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Emit JSON logs")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run() error {
	log, closeLog, err := NewLogger(os.Stderr, c.logFile, c.debug, c.json)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	cfg := config.FromViper(c.viper)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := cfg.NewProviderClient(c.logger, nil)
	if err != nil {
		return err
	}

	publisher, err := NewPublisher(cfg.Events)
	if err != nil {
		return err
	}

	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		WSListenAddr:   cfg.Server.WSListen,
		RequestTimeout: timeout,
		Publisher:      publisher,
	}, client, c.logger)
	if err != nil {
		publisher.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	defer srv.Close()

	c.logger.Info("starting llmux",
		"listen", cfg.Server.Listen,
		"ws_listen", cfg.Server.WSListen,
		"default_provider", cfg.DefaultProvider,
		"events_provider", cfg.Events.Provider,
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// NewLogger returns the serve logger: pretty (or JSON) records on console,
// plus JSON records appended to logFile when one is given. Debug also adds
// source locations. The returned func closes the log file.
func NewLogger(console io.Writer, logFile string, debug, jsonLogs bool) (*slog.Logger, func() error, error) {
	consoleLog := logger.New(
		logger.WithWriter(console),
		logger.WithDebug(debug),
		logger.WithJSON(jsonLogs),
		logger.WithPretty(!jsonLogs),
		logger.WithSource(debug),
	)
	if logFile == "" {
		return consoleLog, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	fileLog := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(debug),
	)
	return logger.Multi(consoleLog, fileLog), f.Close, nil
}

// NewPublisher returns the session event publisher selected by cfg.
func NewPublisher(cfg config.EventsConfig) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.BrokerList(),
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Provider)
	}
}
