package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/server"
	"github.com/m4xw311/telegram-mcp/telegram"
	"github.com/m4xw311/telegram-mcp/telegram/telegramtest"
)

func main() {
	transportFlag := flag.String("transport", "", "Transport to serve on: 'stdio' or 'http'")
	hostFlag := flag.String("host", "", "Bind address for the HTTP transport")
	portFlag := flag.Int("port", 0, "Bind port for the HTTP transport")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	testModeFlag := flag.Bool("test-mode", false, "Serve an in-memory sample account instead of connecting to Telegram")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	if *transportFlag != "" {
		cfg.Transport = *transportFlag
	}
	if *hostFlag != "" {
		cfg.Host = *hostFlag
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *debugFlag {
		cfg.Debug = true
	}
	cfg.TestMode = *testModeFlag
	if cfg.TestMode {
		cfg.Transport = config.TransportHTTP
		cfg.Host = "127.0.0.1"
		cfg.AuthRequired = false
	}

	logger.Initialize(cfg.Debug)

	connector, err := selectConnector(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, connector).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

// selectConnector picks the platform client factory. Test mode serves a
// seeded in-memory account; otherwise the MTProto connector registered at
// build time is used.
func selectConnector(cfg *config.Config) (telegram.Connector, error) {
	if cfg.TestMode {
		logger.Infow("test mode: serving in-memory sample account")
		return telegramtest.Connector(func(token string) *telegramtest.FakeClient {
			return telegramtest.SampleClient()
		}), nil
	}
	return platformConnector(cfg)
}
