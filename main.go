package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xharvest/internal/api"
	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/store"
)

func main() {
	config.SetLogLevel(config.ParseLogLevel(os.Getenv("LOG_LEVEL")))

	cfg := config.LoadOrCreate()

	history, err := store.New(config.Resolve(cfg.Files.Database))
	if err != nil {
		logrus.Warnf("Job history disabled: %v", err)
	} else {
		defer history.Close()
	}

	a := app.New(app.Options{Config: cfg, History: history})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logrus.Info("xharvest starting...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return api.Start(ctx, cfg.Server.ListenAddress, a, cfg.Server.Profiling) })

	if err := g.Wait(); err != nil {
		logrus.Errorf("Shutting down: %v", err)
		os.Exit(1)
	}
	logrus.Info("Bye")
}
