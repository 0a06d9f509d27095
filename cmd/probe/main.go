package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/omochice/toy-line-chat/internal/config"
	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/probe"
	"github.com/omochice/toy-line-chat/internal/transport"
)

func main() {
	// Usage: probe [-message text] [-timeout 10s] [host] [port]
	message := flag.String("message", config.DefaultProbeMessage, "Message to send")
	timeout := flag.Duration("timeout", config.DefaultConnectTimeout, "Bound for the whole exchange")
	flag.Parse()

	endpoint, err := config.ParseArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	address := endpoint.Address()
	p := probe.New(transport.DialerFor(address), os.Stdout, logger.Nop(), config.DefaultProbeReplyMax)

	if _, err := p.Run(ctx, address, *message); err != nil {
		cancel()
		os.Exit(1)
	}
}
