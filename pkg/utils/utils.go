package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cardroom/cardroom/pkg/games/cards"
)

// FormatCards is a helper function for displaying a hand on one line.
func FormatCards(hand []cards.Card) string {
	if len(hand) == 0 {
		return "None"
	}

	result := ""
	for i, card := range hand {
		if i > 0 {
			result += " "
		}
		result += card.String()
	}

	return result
}

// EnsureDataDirExists creates the datadir and necessary subdirectories if they don't exist
func EnsureDataDirExists(datadir string) error {
	// Create main datadir
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return fmt.Errorf("failed to create datadir %s: %v", datadir, err)
	}

	// Create logs subdirectory
	logsDir := filepath.Join(datadir, "logs")
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return fmt.Errorf("failed to create logs directory %s: %v", logsDir, err)
	}

	return nil
}

// AppDataDir returns the default data directory for the given app name under
// the user's home directory (~/.<appname>). Falls back to the current
// directory when the home directory cannot be resolved.
func AppDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}
