package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerrooms/internal/config"
	"github.com/lox/pokerrooms/internal/ledger"
	"github.com/lox/pokerrooms/internal/randutil"
	"github.com/lox/pokerrooms/internal/room"
	"github.com/lox/pokerrooms/internal/server"
)

var CLI struct {
	Config   string `short:"c" default:"pokerrooms.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		kctx.Exit(1)
	}
	addr := cfg.Addr()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	ctx := signalContext(logger)

	chips := ledger.NewMemoryLedger()
	var store room.Store = room.NewMemoryStore()
	if cfg.Server.DataDir != "" {
		fs, err := room.NewFileStore(cfg.Server.DataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening data dir: %v\n", err)
			kctx.Exit(1)
		}
		store = fs
	}
	srv := server.NewServer(addr, chips, cfg.Table.BuyIn, logger)
	reg := room.NewRegistry(ctx, room.Params{
		Capacity:    cfg.Table.Capacity,
		SmallBlind:  cfg.Table.SmallBlind,
		BigBlind:    cfg.Table.BigBlind,
		DealDelay:   time.Duration(cfg.Table.DealDelayMS) * time.Millisecond,
		StreetDelay: time.Duration(cfg.Table.StreetDelayMS) * time.Millisecond,
	}, room.RegistryDeps{
		Logger:    logger,
		Chips:     chips,
		Notifier:  srv,
		Store:     store,
		Directory: srv,
		RNG:       randutil.New(time.Now().UnixNano()),
	})
	srv.SetRegistry(reg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		kctx.Exit(1)
	}
}

// signalContext creates a context cancelled on interrupt signals
func signalContext(logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
		cancel()
	}()

	return ctx
}
