package main

import (
	"flag"
	"strings"

	"github.com/serverless/function-gateway/broker"
	"github.com/serverless/function-gateway/internal/console"
	"github.com/serverless/function-gateway/internal/httpapi"
	"github.com/serverless/function-gateway/internal/node"
	"github.com/serverless/function-gateway/internal/sync"
)

var version = "dev"

func main() {
	hostname := flag.String("hostname", "*", "Hostname to bind the broker to.")
	flags := node.RegisterFlags()
	flag.Parse()

	cfg, log := node.Setup("broker", version, flags)
	defer log.Sync()

	shutdownGuard := sync.NewShutdownGuard()
	node.HandleSignals(shutdownGuard, log)

	channels := cfg.MessageBus.Channels
	b := broker.New(broker.Config{
		Channels:    broker.DefaultChannels(channels.Main, channels.Health, channels.Invocation),
		Credentials: broker.NewCredentials(),
		Log:         log,
	})

	httpapi.Start(httpapi.Config{
		Log:           log,
		Hostname:      *hostname,
		Port:          cfg.MessageBus.TCPPort,
		ShutdownGuard: shutdownGuard,
	}, "Broker", broker.NewAPI(b, broker.NewHandler(b, log)), b.Close)

	node.StartMetrics(cfg, log, shutdownGuard)
	node.StartConsole(shutdownGuard, func(c *console.Console) {
		c.Handle("clients", "list connected clients", func(c *console.Console, args []string) {
			for _, client := range b.Clients() {
				c.Printf("  %s %s %s\n", client.ID, client.Name, client.Email)
			}
		})
		c.Handle("channels", "list channels", func(c *console.Console, args []string) {
			for _, channel := range b.Channels() {
				c.Printf("  %s (%s) members: %d subscribers: %d\n", channel.Name, channel.Kind, channel.Members, channel.Subscribers)
			}
		})
		c.Handle("members", "list members of a channel", func(c *console.Console, args []string) {
			listChannel(c, args, b.Members)
		})
		c.Handle("subscribers", "list subscribers of a channel", func(c *console.Console, args []string) {
			listChannel(c, args, b.Subscribers)
		})
		c.Handle("create", "create a channel: create <name> <broadcast|unicast>", func(c *console.Console, args []string) {
			if len(args) != 2 {
				c.Printf("usage: create <name> <broadcast|unicast>\n")
				return
			}
			if err := b.AddChannel(args[0], args[1]); err != nil {
				c.Printf("%s\n", err)
			}
		})
		c.Handle("destroy", "destroy a channel", func(c *console.Console, args []string) {
			name := strings.Join(args, " ")
			if name == "" {
				var ok bool
				if name, ok = c.Prompt("Channel"); !ok {
					return
				}
			}
			if err := b.DestroyChannel(name); err != nil {
				c.Printf("%s\n", err)
			}
		})
	})

	shutdownGuard.Wait()
}

func listChannel(c *console.Console, args []string, list func(string) ([]string, error)) {
	name := strings.Join(args, " ")
	if name == "" {
		var ok bool
		if name, ok = c.Prompt("Channel"); !ok {
			return
		}
	}

	clients, err := list(name)
	if err != nil {
		c.Printf("%s\n", err)
		return
	}
	for _, client := range clients {
		c.Printf("  %s\n", client)
	}
}
