package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/utils"
)

// Config controls one autoplayer.
type Config struct {
	// ServerURL is the websocket endpoint.
	ServerURL string

	// Nickname shown at the table.
	Nickname string

	// DataDir holds the persisted identity and logs.
	DataDir string

	// DebugLevel is the slog level spec.
	DebugLevel string

	// TableID joins an existing table. When empty and CreateKind is set,
	// the bot creates its own table instead.
	TableID string

	// CreateKind is the game to host when no TableID is given.
	CreateKind string

	// CreateSeats is the table size when hosting; zero takes the kind's
	// default.
	CreateSeats int

	// AutoStart starts the game as soon as the hosted table is full.
	AutoStart bool

	// AutoRestart restarts finished games when the bot is host.
	AutoRestart bool

	// ThinkDelay is the base pause before each action; a little jitter is
	// added on top so the bot does not metronome.
	ThinkDelay time.Duration

	// ActionsPerSecond caps the outbound action rate, defending the
	// server's per-connection limiter.
	ActionsPerSecond float64

	LogBackend *logging.LogBackend
}

// LoadConfig reads the bot configuration from the given file, CARDBOT_*
// environment variables and defaults. A missing default file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.url", "ws://localhost:8080/ws")
	v.SetDefault("nickname", "")
	v.SetDefault("datadir", utils.AppDataDir("cardbot"))
	v.SetDefault("logging.debuglevel", "info")
	v.SetDefault("table.id", "")
	v.SetDefault("table.kind", "")
	v.SetDefault("table.seats", 0)
	v.SetDefault("table.autostart", true)
	v.SetDefault("table.autorestart", false)
	v.SetDefault("think.delay", 700*time.Millisecond)
	v.SetDefault("think.actionspersecond", 4.0)

	v.SetEnvPrefix("cardbot")
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

	return &Config{
		ServerURL:        v.GetString("server.url"),
		Nickname:         v.GetString("nickname"),
		DataDir:          v.GetString("datadir"),
		DebugLevel:       v.GetString("logging.debuglevel"),
		TableID:          v.GetString("table.id"),
		CreateKind:       v.GetString("table.kind"),
		CreateSeats:      v.GetInt("table.seats"),
		AutoStart:        v.GetBool("table.autostart"),
		AutoRestart:      v.GetBool("table.autorestart"),
		ThinkDelay:       v.GetDuration("think.delay"),
		ActionsPerSecond: v.GetFloat64("think.actionspersecond"),
	}, nil
}
