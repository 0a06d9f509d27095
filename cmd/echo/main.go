package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/omochice/toy-line-chat/internal/config"
	"github.com/omochice/toy-line-chat/internal/echo"
	"github.com/omochice/toy-line-chat/internal/logger"
)

func main() {
	// Parse command-line flags
	addr := flag.String("addr", config.DefaultEchoAddress, "Address to listen on for both TCP and WebSocket (e.g., :20480)")
	level := flag.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.NewLogger("echo", zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}, *level)

	srv := echo.New(*addr, log)
	if err := srv.Listen(); err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatal().Err(err).Msg("echo server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
	}

	log.Info().Msg("echo server stopped")
}
