package main

import (
	"encoding/json"
	"flag"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/function"
	"github.com/serverless/function-gateway/internal/console"
	"github.com/serverless/function-gateway/internal/node"
	"github.com/serverless/function-gateway/internal/sync"
	_ "github.com/serverless/function-gateway/runtime/awslambda"
	"github.com/serverless/function-gateway/runtime/goplugin"
	_ "github.com/serverless/function-gateway/runtime/http"
	"github.com/serverless/function-gateway/worker"
)

var version = "dev"

func main() {
	flags := node.RegisterFlags()
	flag.Parse()

	cfg, log := node.Setup("worker", version, flags)
	defer log.Sync()

	shutdownGuard := sync.NewShutdownGuard()
	node.HandleSignals(shutdownGuard, log)

	plugins := goplugin.New(log)
	defer plugins.Close()
	function.RegisterRuntime(goplugin.Type, plugins)

	handler := &worker.Handler{Invoker: worker.NewInvoker(log), Log: log}
	session := bus.New(bus.Config{
		Role:      bus.RoleWorker,
		Transport: bus.NewWebsocketTransport(cfg.MessageBus.Hostname, cfg.MessageBus.TCPPort, false),
		Channels: bus.Channels{
			Main:       cfg.MessageBus.Channels.Main,
			Health:     cfg.MessageBus.Channels.Health,
			Invocation: cfg.MessageBus.Channels.Invocation,
		},
		SyncTimeout: cfg.MessageBus.SyncTimeout(),
		Handler:     handler.HandleSync,
		Observer:    bus.LogObserver{Log: log},
		Log:         log,
	})
	shutdownGuard.Go(session.Run)

	node.StartMetrics(cfg, log, shutdownGuard)
	node.StartConsole(shutdownGuard, func(c *console.Console) {
		c.Handle("session", "show message bus session", func(c *console.Console, args []string) {
			out, _ := json.MarshalIndent(session.Status(), "", "  ")
			c.Printf("%s\n", out)
		})
	})

	shutdownGuard.Wait()
}
