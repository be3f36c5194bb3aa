package main

import (
	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/telegram"
)

// registeredConnector is the MTProto client factory linked into the build.
// Client implementations register themselves from an init function; the
// binary carries none by default so that the core stays free of any one
// MTProto library.
var registeredConnector telegram.Connector

// RegisterConnector installs the platform client factory. Must be called
// before main runs; the last registration wins.
func RegisterConnector(c telegram.Connector) {
	registeredConnector = c
}

func platformConnector(cfg *config.Config) (telegram.Connector, error) {
	if registeredConnector == nil {
		return nil, errors.New("no Telegram client is linked into this build; run with --test-mode or register a connector")
	}
	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		return nil, errors.New("API_ID and API_HASH must be configured; see the telegram section of config.yaml")
	}
	return registeredConnector, nil
}
