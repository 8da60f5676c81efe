package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/server"
	"github.com/cardroom/cardroom/pkg/utils"
)

type srvConfig struct {
	Listen      string
	DataDir     string
	DebugLevel  string
	RNGSeed     int64
	RateLimit   float64
	RateBurst   int
	GraceWindow time.Duration
	BootAfter   int
	AutoBoot    time.Duration
	Reminder    time.Duration
	AIDelay     time.Duration
}

// loadConfig merges defaults, the optional YAML file and CARDSRV_*
// environment variables.
func loadConfig(path string) (*srvConfig, error) {
	v := viper.New()
	v.SetDefault("listen", ":8080")
	v.SetDefault("datadir", utils.AppDataDir("cardsrv"))
	v.SetDefault("logging.debuglevel", "info")
	v.SetDefault("rng.seed", 0)
	v.SetDefault("rate.limit", 20.0)
	v.SetDefault("rate.burst", 40)
	v.SetDefault("rooms.gracewindow", 0)
	v.SetDefault("rooms.bootthreshold", 0)
	v.SetDefault("rooms.autobootdelay", 0)
	v.SetDefault("rooms.reminderinterval", 0)
	v.SetDefault("rooms.aidelay", 0)

	v.SetEnvPrefix("cardsrv")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("datadir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	return &srvConfig{
		Listen:      v.GetString("listen"),
		DataDir:     v.GetString("datadir"),
		DebugLevel:  v.GetString("logging.debuglevel"),
		RNGSeed:     v.GetInt64("rng.seed"),
		RateLimit:   v.GetFloat64("rate.limit"),
		RateBurst:   v.GetInt("rate.burst"),
		GraceWindow: v.GetDuration("rooms.gracewindow"),
		BootAfter:   v.GetInt("rooms.bootthreshold"),
		AutoBoot:    v.GetDuration("rooms.autobootdelay"),
		Reminder:    v.GetDuration("rooms.reminderinterval"),
		AIDelay:     v.GetDuration("rooms.aidelay"),
	}, nil
}

func realMain() error {
	var (
		configPath = flag.String("config", "", "Path to config file")
		listen     = flag.String("listen", "", "Listen address (overrides config)")
		debugLevel = flag.String("debuglevel", "", "Log level spec (overrides config)")
		seed       = flag.Int64("seed", 0, "Deterministic shuffle seed (0 = random)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}
	if *seed != 0 {
		cfg.RNGSeed = *seed
	}

	if err := utils.EnsureDataDirExists(cfg.DataDir); err != nil {
		return err
	}
	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:    filepath.Join(cfg.DataDir, "logs", "cardsrv.log"),
		DebugLevel: cfg.DebugLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log := logBackend.Logger("MAIN")

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		LogBackend:       logBackend,
		RNGSeed:          cfg.RNGSeed,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
		ReminderInterval: cfg.Reminder,
		BootThreshold:    cfg.BootAfter,
		AutoBootDelay:    cfg.AutoBoot,
		GraceWindow:      cfg.GraceWindow,
		AIDelay:          cfg.AIDelay,
	})

	log.Infof("cardsrv starting on %s", cfg.Listen)
	if err := srv.Run(ctx, cfg.Listen); err != nil {
		return err
	}
	log.Infof("cardsrv shut down")
	return nil
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
