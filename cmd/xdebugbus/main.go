// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/xdebugbus/bridge"
	"github.com/bureau-foundation/xdebugbus/lib/config"
	"github.com/bureau-foundation/xdebugbus/lib/logging"
	"github.com/bureau-foundation/xdebugbus/lib/process"
	"github.com/bureau-foundation/xdebugbus/lib/version"
	"github.com/bureau-foundation/xdebugbus/messaging"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// flags holds the command line. Only flags the user set override the
// loaded configuration.
type flags struct {
	configPath    string
	listen        string
	ideKey        string
	proxy         string
	relay         string
	wampURL       string
	realm         string
	topic         string
	controlTopic  string
	serialization string
	logLevels     []string
	logOutput     string
	metricsListen string
	color         string
}

func (f *flags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.configPath, "config", "c", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&f.listen, "listen", "l", "", "DBGp listen address host:port (default: 127.0.0.1:9000)")
	flagSet.StringVar(&f.ideKey, "ide-key", "", "IDE key sent to the DBGp proxy (default: XdebugWamp)")
	flagSet.StringVar(&f.proxy, "proxy", "", "register with the DBGp proxy at host:port")
	flagSet.StringVar(&f.relay, "relay", "", "mirror every debugger connection to the IDE at host:port")
	flagSet.StringVar(&f.wampURL, "wamp-url", "", "WAMP router websocket URL (default: ws://127.0.0.1:9090/)")
	flagSet.StringVar(&f.realm, "realm", "", "WAMP realm (default: debug)")
	flagSet.StringVar(&f.topic, "topic", "", "topic debugger events are published to (default: bdk.debug.xdebug)")
	flagSet.StringVar(&f.controlTopic, "control-topic", "", "topic commands are read from (default: the event topic)")
	flagSet.StringVar(&f.serialization, "serialization", "", "WAMP serialization, json or cbor (default: json)")
	flagSet.StringSliceVar(&f.logLevels, "log-levels", nil, "comma-separated levels written to the console (default: all)")
	flagSet.StringVar(&f.logOutput, "log-output", "", "also write JSON log records to this file")
	flagSet.StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on host:port")
	flagSet.StringVar(&f.color, "color", "auto", "console colours: auto, always or never")
	flagSet.BoolP("help", "h", false, "show help")
}

// apply copies the flags that were set onto cfg.
func (f *flags) apply(flagSet *pflag.FlagSet, cfg *config.Config) error {
	if flagSet.Changed("listen") {
		host, portText, err := net.SplitHostPort(f.listen)
		if err != nil {
			return fmt.Errorf("--listen: %w", err)
		}
		port, err := strconv.Atoi(portText)
		if err != nil {
			return fmt.Errorf("--listen: port %q is not a number", portText)
		}
		cfg.DBGP.Host = host
		cfg.DBGP.Port = port
	}
	if flagSet.Changed("ide-key") {
		cfg.DBGP.IDEKey = f.ideKey
	}
	if flagSet.Changed("proxy") {
		cfg.DBGPProxy.Enabled = f.proxy != ""
		if f.proxy != "" {
			cfg.DBGPProxy.URI = f.proxy
		}
	}
	if flagSet.Changed("relay") {
		cfg.DBGPRepeat.Enabled = f.relay != ""
		if f.relay != "" {
			cfg.DBGPRepeat.URI = f.relay
		}
	}
	if flagSet.Changed("wamp-url") {
		cfg.WAMP.URL = f.wampURL
	}
	if flagSet.Changed("realm") {
		cfg.WAMP.Realm = f.realm
	}
	if flagSet.Changed("topic") {
		cfg.WAMP.Topic = f.topic
	}
	if flagSet.Changed("control-topic") {
		cfg.WAMP.ControlTopic = f.controlTopic
	}
	if flagSet.Changed("serialization") {
		cfg.WAMP.Serialization = f.serialization
	}
	if flagSet.Changed("log-levels") {
		cfg.LogLevels = f.logLevels
	}
	if flagSet.Changed("log-output") {
		cfg.LogFile = f.logOutput
	}
	if flagSet.Changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	return nil
}

func (f *flags) colorMode() (logging.ColorMode, error) {
	switch f.color {
	case "auto":
		return logging.ColorAuto, nil
	case "always":
		return logging.ColorAlways, nil
	case "never":
		return logging.ColorNever, nil
	default:
		return 0, fmt.Errorf("--color: unknown mode %q (want auto, always or never)", f.color)
	}
}

// loadConfig reads the configuration file, applies the flags and
// validates the result.
func (f *flags) loadConfig(flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := f.apply(flagSet, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printVersion writes the --version output.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "xdebugbus %s\n", version.Full())
}

func run() error {
	var commandLine flags
	flagSet := pflag.NewFlagSet("xdebugbus", pflag.ContinueOnError)
	commandLine.register(flagSet)

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersion(os.Stdout)
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := commandLine.loadConfig(flagSet)
	if err != nil {
		return err
	}
	colorMode, err := commandLine.colorMode()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, colorMode)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger)
}

// newLogger builds the console logger, fanned out to a JSON file when
// one is configured.
func newLogger(cfg *config.Config, colorMode logging.ColorMode) (*slog.Logger, func(), error) {
	levels, err := logging.ParseLevels(cfg.LogLevels)
	if err != nil {
		return nil, nil, err
	}
	var handler slog.Handler = logging.NewConsoleHandler(os.Stderr, logging.ConsoleOptions{
		Levels: levels,
		Color:  colorMode,
	})
	if cfg.LogFile == "" {
		return slog.New(handler), func() {}, nil
	}
	fileHandler, cleanup, err := logging.OpenFileHandler(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(logging.FanoutHandler{handler, fileHandler}), cleanup, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := messaging.NewClient(messaging.ClientConfig{
		URL:                  cfg.WAMP.URL,
		Realm:                cfg.WAMP.Realm,
		Serialization:        cfg.WAMP.Serialization,
		Logger:               logger.With("component", "wamp"),
		MaxReconnectInterval: cfg.WAMP.MaxInterval(),
	})
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		process.FatalLogged(logger, "message bus unreachable", err)
		return err
	}

	b := &bridge.Bridge{
		ListenAddr:        cfg.DBGP.Address(),
		IDEKey:            cfg.DBGP.IDEKey,
		TransactionPrefix: cfg.DBGP.TransactionPrefix,
		Publisher:         &bridge.TopicPublisher{Client: client, Topic: cfg.WAMP.Topic},
		Metrics:           bridge.NewMetrics(registry),
		Logger:            logger.With("component", "dbgp"),
	}
	if cfg.DBGPProxy.Enabled {
		b.ProxyAddr = cfg.DBGPProxy.URI
	}
	if cfg.DBGPRepeat.Enabled {
		b.RelayAddr = cfg.DBGPRepeat.URI
		b.RelayTimeout = cfg.DBGPRepeat.Timeout()
	}
	if err := b.Start(ctx); err != nil {
		process.FatalLogged(logger, "dbgp listener unavailable", err)
		return err
	}
	defer b.Stop()

	if err := client.Subscribe(ctx, cfg.WAMP.CommandTopic(), b.HandleEvent); err != nil {
		return err
	}
	busDone := make(chan error, 1)
	go func() {
		busDone <- client.Run(ctx)
	}()

	if cfg.Metrics.Listen != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "listen", cfg.Metrics.Listen, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	logging.Notice(logger, "xdebugbus running",
		"version", version.Info(),
		"dbgp", b.Addr().String(),
		"wamp", cfg.WAMP.URL,
		"topic", cfg.WAMP.Topic,
		"control_topic", cfg.WAMP.CommandTopic(),
	)

	select {
	case <-ctx.Done():
		logging.Notice(logger, "shutting down")
		<-busDone
		return nil
	case err := <-busDone:
		if err != nil {
			logging.Critical(logger, "message bus session abandoned", "error", err)
			return err
		}
		return nil
	}
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return mux
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `xdebugbus - bridge DBGp debugger engines to a WAMP message bus

Debugger engines connect to the DBGp listener. Breaks, variable
listings and property values are published to the event topic as
[event, args, meta]; commands [appId, command, params, data] published
on the control topic are sent to the matching engine.

Configuration is read from --config or $%s, then overridden by
any flag given on the command line.

Usage:
  xdebugbus [flags]

Examples:
  # Listen on the default port and publish to a local router
  xdebugbus

  # Register with a DBGp proxy and mirror sessions to the IDE
  xdebugbus --listen 127.0.0.1:9003 --proxy 127.0.0.1:9001 --relay 127.0.0.1:9002

  # Only warnings and worse
  xdebugbus --log-levels emergency,alert,critical,error,warning

Flags:
`, config.EnvironmentVariable)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
