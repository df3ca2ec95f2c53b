package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/vulnsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/vulnsync/internal/app"
	"github.com/custodia-labs/vulnsync/internal/config"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

func bootstrap(ctx context.Context, cfgPath string, verbose bool) (*cli.Services, io.Closer, error) {
	if cfgPath == "" {
		if def, err := config.DefaultPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				cfgPath = def
			}
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Verbose = true
	}

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s := &cli.Services{
		Ingestor: a.Ingestor,
		Merger:   a.Merger,
		History:  a.History,
	}
	if a.Transformer != nil {
		s.Transformer = a.Transformer
	}
	return s, a, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetBootstrap(bootstrap)
	if err := cli.ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}
