package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cardroom/cardroom/pkg/bot"
	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/utils"
)

func realMain() error {
	var (
		configPath = flag.String("config", "", "Path to config file")
		serverURL  = flag.String("server", "", "Websocket server URL (overrides config)")
		nickname   = flag.String("nick", "", "Nickname (overrides config)")
		tableID    = flag.String("table", "", "Table to join (overrides config)")
		kind       = flag.String("kind", "", "Game kind to host when no table is given")
		seats      = flag.Int("seats", 0, "Seats at the hosted table (0 = kind default)")
		debugLevel = flag.String("debuglevel", "", "Log level spec (overrides config)")
	)
	flag.Parse()

	cfg, err := bot.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *nickname != "" {
		cfg.Nickname = *nickname
	}
	if *tableID != "" {
		cfg.TableID = *tableID
	}
	if *kind != "" {
		cfg.CreateKind = *kind
	}
	if *seats != 0 {
		cfg.CreateSeats = *seats
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}

	if err := utils.EnsureDataDirExists(cfg.DataDir); err != nil {
		return err
	}
	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:    filepath.Join(cfg.DataDir, "logs", "bot.log"),
		DebugLevel: cfg.DebugLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	cfg.LogBackend = logBackend

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg)
	if err != nil {
		return err
	}
	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
