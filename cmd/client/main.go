package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/milosgajdos/go-tftp/internal/config"
	"github.com/milosgajdos/go-tftp/internal/logging"
	"github.com/milosgajdos/go-tftp/pkg/client"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	defer logger.Sync() //nolint:errcheck

	l := logger.Sugar()
	c := client.NewClient(l)

	defer func(c client.Connector) {
		if err := c.Close(); err != nil {
			l.Error(err.Error())
		}
	}(c)

	if err := c.Connect(net.JoinHostPort(cfg.Hostname, fmt.Sprintf("%d", cfg.Port))); err != nil {
		l.Fatalf("error while connecting: %s", err.Error())
	}

	if cfg.Dest == "" {
		client.NewCli(l, c).Read()

		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.File == "" {
		if err := c.Put(ctx, cfg.Dest); err != nil {
			l.Fatalf("error while uploading standard input to %s: %s", cfg.Dest, err.Error())
		}

		return
	}

	if err := c.Get(ctx, cfg.File, cfg.Dest); err != nil {
		l.Fatalf("error while downloading %s to %s: %s", cfg.File, cfg.Dest, err.Error())
	}
}
