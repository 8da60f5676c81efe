package client

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/utils"
)

// Config holds everything a Client needs. ServerURL, Nickname and DataDir
// normally come from LoadConfig; Notifications must be supplied by the
// caller, LogBackend is optional.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string

	// Nickname shown to other players. The server falls back to a
	// generated one when empty.
	Nickname string

	// DataDir holds the persisted identity and log files.
	DataDir string

	// DebugLevel is the slog level spec, e.g. "info" or "CLNT=debug".
	DebugLevel string

	Notifications *NotificationManager
	LogBackend    *logging.LogBackend
}

// LoadConfig reads the client configuration from the given file (YAML), the
// environment (CARDROOM_*) and built-in defaults, in that precedence order
// reversed. An empty path looks for config.yaml in the default datadir; a
// missing file is not an error.
func LoadConfig(path, appName string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.url", "ws://localhost:8080/ws")
	v.SetDefault("nickname", "")
	v.SetDefault("datadir", utils.AppDataDir(appName))
	v.SetDefault("logging.debuglevel", "info")

	v.SetEnvPrefix("cardroom")
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
		ServerURL:  v.GetString("server.url"),
		Nickname:   v.GetString("nickname"),
		DataDir:    v.GetString("datadir"),
		DebugLevel: v.GetString("logging.debuglevel"),
	}, nil
}

// LogPath returns the default log file location under the datadir.
func (cfg *Config) LogPath(name string) string {
	return filepath.Join(cfg.DataDir, "logs", name+".log")
}
