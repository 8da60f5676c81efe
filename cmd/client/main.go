package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cardroom/cardroom/pkg/client"
	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/ui"
)

func realMain() error {
	var (
		configPath = flag.String("config", "", "Path to config file")
		serverURL  = flag.String("server", "", "Websocket server URL (overrides config)")
		nickname   = flag.String("nick", "", "Nickname (overrides config)")
		debugLevel = flag.String("debuglevel", "", "Log level spec (overrides config)")
	)
	flag.Parse()

	cfg, err := client.LoadConfig(*configPath, "cardroom")
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *nickname != "" {
		cfg.Nickname = *nickname
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}

	// Log to a file only; stdout belongs to the TUI.
	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:    cfg.LogPath("client"),
		DebugLevel: cfg.DebugLevel,
		NoStdout:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	cfg.LogBackend = logBackend
	cfg.Notifications = client.NewNotificationManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	go func() {
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			logBackend.Logger("MAIN").Errorf("client stopped: %v", err)
		}
	}()

	ui.Run(ctx, c)
	return nil
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
