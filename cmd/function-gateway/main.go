package main

import (
	"encoding/json"
	"flag"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/internal/console"
	"github.com/serverless/function-gateway/internal/httpapi"
	"github.com/serverless/function-gateway/internal/node"
	"github.com/serverless/function-gateway/internal/sync"
	"github.com/serverless/function-gateway/router"
)

var version = "dev"

func main() {
	flags := node.RegisterFlags()
	flag.Parse()

	cfg, log := node.Setup("gateway", version, flags)
	defer log.Sync()

	shutdownGuard := sync.NewShutdownGuard()
	node.HandleSignals(shutdownGuard, log)

	reg, err := node.LoadRegistry(cfg, log)
	if err != nil {
		log.Fatal("Cannot load function registry.", zap.Error(err))
	}
	log.Info("Function registry loaded.", zap.Int("applications", len(reg.Applications())), zap.Int("functions", len(reg.Definitions())))

	session := bus.New(bus.Config{
		Role:      bus.RoleGateway,
		Transport: bus.NewWebsocketTransport(cfg.MessageBus.Hostname, cfg.MessageBus.TCPPort, false),
		Channels: bus.Channels{
			Main:       cfg.MessageBus.Channels.Main,
			Health:     cfg.MessageBus.Channels.Health,
			Invocation: cfg.MessageBus.Channels.Invocation,
		},
		SyncTimeout: cfg.MessageBus.SyncTimeout(),
		Observer:    bus.LogObserver{Log: log},
		Log:         log,
	})
	shutdownGuard.Go(session.Run)

	gateway := router.New(router.Config{
		Registry:   reg,
		Dispatcher: session,
		Session:    session,
		Channel:    cfg.MessageBus.Channels.Invocation,
		Version:    version,
		Debug:      cfg.Webserver.Debug,
		Log:        log,
	})
	go func() {
		<-shutdownGuard.ShuttingDown
		gateway.Drain()
	}()

	serverConfig := httpapi.Config{
		Log:           log,
		Hostname:      cfg.Webserver.Hostname,
		Port:          cfg.Webserver.TCPPort,
		ShutdownGuard: shutdownGuard,
	}
	if cfg.Webserver.TLSEnabled {
		serverConfig.TLSCrt = cfg.Webserver.TLSCert
		serverConfig.TLSKey = cfg.Webserver.TLSKey
	}
	httpapi.Start(serverConfig, "Gateway", gateway.Handler(), nil)

	node.StartMetrics(cfg, log, shutdownGuard)
	node.StartConsole(shutdownGuard, func(c *console.Console) {
		c.Handle("session", "show message bus session", func(c *console.Console, args []string) {
			out, _ := json.MarshalIndent(session.Status(), "", "  ")
			c.Printf("%s\n", out)
		})
	})

	shutdownGuard.Wait()
}
