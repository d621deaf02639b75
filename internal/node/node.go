package node

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/serverless/function-gateway/internal/config"
	"github.com/serverless/function-gateway/internal/console"
	"github.com/serverless/function-gateway/internal/httpapi"
	"github.com/serverless/function-gateway/internal/logging"
	"github.com/serverless/function-gateway/internal/sync"
	"github.com/serverless/function-gateway/registry"
)

// Flags shared by all node binaries.
type Flags struct {
	ShowVersion     *bool
	ConfigPath      *string
	LogLevel        *zapcore.Level
	DevelopmentMode *bool
}

// RegisterFlags defines the shared flags on the default flag set.
func RegisterFlags() *Flags {
	return &Flags{
		ShowVersion:     flag.Bool("version", false, "Show version."),
		ConfigPath:      flag.String("config", config.DefaultPath, "Path to configuration file."),
		LogLevel:        zap.LevelFlag("log-level", zap.InfoLevel, `The level of logging to show after the node has started. The available log levels are "debug", "info", "warn", and "error". Overrides logging.minimumSeverity.`),
		DevelopmentMode: flag.Bool("dev", false, "Human readable logging for development."),
	}
}

// Setup prints the version and exits if asked to, otherwise loads configuration and builds the logger.
func Setup(name, version string, flags *Flags) (*config.Config, *zap.Logger) {
	if *flags.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(*flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Logging.MinimumSeverity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if isFlagSet("log-level") {
		level = *flags.LogLevel
	}

	opts := logging.Options{
		Level:       level,
		Development: *flags.DevelopmentMode,
		Console:     cfg.Logging.ConsoleLogging,
		FilePath:    cfg.Logging.FilePath,
		Tag:         name,
	}
	if cfg.Logging.SyslogEnabled {
		opts.SyslogAddr = cfg.Logging.SyslogAddr()
	}

	log, err := logging.New(opts)
	if err != nil {
		panic(err)
	}
	log = log.With(zap.String("node", name))
	log.Info("Starting node.", zap.String("version", version), zap.String("config", *flags.ConfigPath))
	return cfg, log
}

// LoadRegistry loads applications from the configured source.
func LoadRegistry(cfg *config.Config, log *zap.Logger) (*registry.Registry, error) {
	if cfg.Registry.Source != config.SourceKV {
		return registry.New(cfg.Applications, log)
	}

	kv, err := registry.NewKV(cfg.Registry.DBHosts)
	if err != nil {
		return nil, err
	}
	defer kv.Close()
	return registry.LoadKV(kv, cfg.Registry.Prefix, log)
}

// HandleSignals initiates shutdown on SIGINT or SIGTERM.
func HandleSignals(guard *sync.ShutdownGuard, log *zap.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signals:
			log.Info("Shutting down.", zap.String("signal", sig.String()))
			guard.InitiateShutdown()
		case <-guard.ShuttingDown:
		}
		signal.Stop(signals)
	}()
}

// StartMetrics serves prometheus metrics on their own port, if one is configured.
func StartMetrics(cfg *config.Config, log *zap.Logger, guard *sync.ShutdownGuard) {
	if cfg.Metrics.TCPPort == 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpapi.Start(httpapi.Config{
		Log:           log,
		Port:          cfg.Metrics.TCPPort,
		ShutdownGuard: guard,
	}, "Metrics", mux, nil)
}

// StartConsole runs the interactive console when stdin is a terminal. Quitting the console shuts the node down.
func StartConsole(guard *sync.ShutdownGuard, register func(c *console.Console)) {
	if !console.IsTerminal(os.Stdin) {
		return
	}

	c := console.New(os.Stdin, os.Stdout)
	register(c)
	go func() {
		c.Run()
		guard.InitiateShutdown()
	}()
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
