package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogConfig holds the knobs for a LogBackend.
type LogConfig struct {
	// LogFile is the path of the rotated log file. Empty means log to
	// stdout only.
	LogFile string

	// DebugLevel is either a single level name applied to every subsystem
	// ("info") or a comma separated list of subsystem=level pairs with an
	// optional default ("ROOM=trace,GATE=debug,info").
	DebugLevel string

	// MaxLogFiles is how many rotated files to keep.
	MaxLogFiles int

	// MaxLogSizeKB is the rotation threshold. Zero means 10 MB.
	MaxLogSizeKB int64

	// NoStdout suppresses the stdout copy. Set by TUI binaries that own
	// the terminal.
	NoStdout bool
}

// LogBackend creates subsystem loggers that write to stdout and, when
// configured, a rotating log file. Loggers are cached per subsystem tag so
// repeated calls return the same instance with its level intact.
type LogBackend struct {
	mtx     sync.Mutex
	backend *slog.Backend
	rotator *rotator.Rotator
	loggers map[string]slog.Logger
	levels  map[string]slog.Level
	defLvl  slog.Level
}

// logWriter fans log writes out to stdout and the rotator.
type logWriter struct {
	r        *rotator.Rotator
	noStdout bool
}

func (w logWriter) Write(p []byte) (int, error) {
	if !w.noStdout {
		os.Stdout.Write(p)
	}
	if w.r != nil {
		w.r.Write(p)
	}
	return len(p), nil
}

// NewLogBackend creates a backend from cfg. The log directory is created if
// needed.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	lb := &LogBackend{
		loggers: make(map[string]slog.Logger),
		levels:  make(map[string]slog.Level),
		defLvl:  slog.LevelInfo,
	}

	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		maxRolls := cfg.MaxLogFiles
		if maxRolls <= 0 {
			maxRolls = 3
		}
		sizeKB := cfg.MaxLogSizeKB
		if sizeKB <= 0 {
			sizeKB = 10 * 1024
		}
		r, err := rotator.New(cfg.LogFile, sizeKB, false, maxRolls)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %w", err)
		}
		lb.rotator = r
	}

	var w io.Writer = logWriter{r: lb.rotator, noStdout: cfg.NoStdout}
	lb.backend = slog.NewBackend(w)

	if err := lb.parseDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}
	return lb, nil
}

func (lb *LogBackend) parseDebugLevels(spec string) error {
	if spec == "" {
		return nil
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "=") {
			lvl, ok := slog.LevelFromString(part)
			if !ok {
				return fmt.Errorf("invalid debug level %q", part)
			}
			lb.defLvl = lvl
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		lvl, ok := slog.LevelFromString(kv[1])
		if !ok {
			return fmt.Errorf("invalid debug level %q for subsystem %q", kv[1], kv[0])
		}
		lb.levels[strings.ToUpper(kv[0])] = lvl
	}
	return nil
}

// Logger returns the logger for the given subsystem tag, creating it on
// first use.
func (lb *LogBackend) Logger(subsys string) slog.Logger {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()

	if log, ok := lb.loggers[subsys]; ok {
		return log
	}
	log := lb.backend.Logger(subsys)
	lvl := lb.defLvl
	if l, ok := lb.levels[strings.ToUpper(subsys)]; ok {
		lvl = l
	}
	log.SetLevel(lvl)
	lb.loggers[subsys] = log
	return log
}

// SetDebugLevel reparses spec and applies it to existing and future loggers.
func (lb *LogBackend) SetDebugLevel(spec string) error {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()

	lb.levels = make(map[string]slog.Level)
	lb.defLvl = slog.LevelInfo
	if err := lb.parseDebugLevels(spec); err != nil {
		return err
	}
	for tag, log := range lb.loggers {
		lvl := lb.defLvl
		if l, ok := lb.levels[strings.ToUpper(tag)]; ok {
			lvl = l
		}
		log.SetLevel(lvl)
	}
	return nil
}

// Subsystems returns the tags of all loggers created so far, sorted.
func (lb *LogBackend) Subsystems() []string {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()

	tags := make([]string, 0, len(lb.loggers))
	for tag := range lb.loggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Close flushes and closes the rotating log file, if any.
func (lb *LogBackend) Close() error {
	if lb.rotator != nil {
		return lb.rotator.Close()
	}
	return nil
}
