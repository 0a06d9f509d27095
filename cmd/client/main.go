package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/toy-line-chat/internal/chat"
	"github.com/omochice/toy-line-chat/internal/config"
	"github.com/omochice/toy-line-chat/internal/console"
	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/repl"
	"github.com/omochice/toy-line-chat/internal/transport"
)

func main() {
	// Usage: client [host] [port]
	cfg, err := config.GetClientConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", warning)
	}

	log := logger.NewClientLogger("client", logger.FileOptions{
		Path:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := cfg.Endpoint.Address()
	screen := console.New(os.Stdout)
	client := chat.New(address, transport.DialerFor(address), screen, log, cfg.Timeouts)

	log.Info().Str("address", address).Msg("starting chat client")

	session := repl.NewSession(client, screen, os.Stdin, cfg.Endpoint.String(), log)
	if err := session.Run(ctx); err != nil {
		log.Error().Err(err).Msg("session ended with error")
		stop()
		os.Exit(1)
	}

	log.Info().Msg("chat client stopped")
}
