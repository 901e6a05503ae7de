package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/milosgajdos/go-tftp/internal/audit"
	"github.com/milosgajdos/go-tftp/internal/config"
	"github.com/milosgajdos/go-tftp/internal/logging"
	"github.com/milosgajdos/go-tftp/internal/stopflag"
	"github.com/milosgajdos/go-tftp/pkg/server"
)

func main() {
	cfg, err := config.LoadServer(os.Args[1:])
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

	var auditLogger *audit.Logger

	if cfg.AuditEnabled {
		path := cfg.AuditDBPath
		if path == "" {
			path = filepath.Join(cfg.RootDir, "tftp-audit.db")
		}

		auditLogger, err = audit.Open(path)
		if err != nil {
			l.Fatalf("error while opening audit log: %s", err.Error())
		}

		defer auditLogger.Close() //nolint:errcheck
	}

	stop := stopflag.New()
	srv := server.New(l, fmt.Sprintf("%d", cfg.Port), cfg.RootDir, cfg.ReadTimeout, auditLogger, stop)

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	l.Infof("listening on port %d, serving %s", cfg.Port, cfg.RootDir)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalChan:
		l.Info("shutdown signal received")
		stop.Stop()

		if err := srv.Close(); err != nil {
			l.Errorf("error while closing listening socket: %s", err.Error())
		}

		<-errCh
	case err := <-errCh:
		if err != nil {
			l.Errorf("server exited: %s", err.Error())
		}
	}
}
