// Package config provides player configuration with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Playback PlaybackConfig
	Remote   RemoteConfig
	AutoSkip AutoSkipConfig
	Library  LibraryConfig

	// Args are the positional arguments left after flag parsing.
	Args []string
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk locations.
type DataConfig struct {
	// BasePath holds the library database, the session journal and the lock file.
	BasePath string
}

// LibraryDBPath is the SQLite library database.
func (d DataConfig) LibraryDBPath() string {
	return filepath.Join(d.BasePath, "library.db")
}

// JournalPath is the Badger session journal directory.
func (d DataConfig) JournalPath() string {
	return filepath.Join(d.BasePath, "sessions")
}

// LockPath is the single-instance lock file.
func (d DataConfig) LockPath() string {
	return filepath.Join(d.BasePath, "player.lock")
}

// PlaybackConfig holds coordinator tuning.
type PlaybackConfig struct {
	TickInterval       time.Duration // position sampling interval (default: 500ms)
	PersistEveryTicks  int           // commit position every N ticks (default: 10)
	SkipForward        float64       // seconds (default: 30)
	SkipBack           float64       // seconds (default: 15)
	FinishThreshold    float64       // progress counted as played on switch (default: 0.95)
	DefaultRate        float64       // initial playback rate (default: 1.0)
	NowPlayingInterval time.Duration // periodic now-playing refresh (default: 5s)
	NowPlayingBurst    int           // change-driven now-playing publishes allowed back to back (default: 4)
}

// RemoteConfig holds remote-control API configuration.
type RemoteConfig struct {
	Enabled           bool          // Serve the remote-control API (default: true)
	Name              string        // Instance name advertised over mDNS
	Port              string        // API port (default: 8484)
	ReadTimeout       time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout      time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout       time.Duration // HTTP idle timeout (default: 60s)
	AdvertiseMDNS     bool          // Advertise via mDNS/Zeroconf (default: true)
	RequestsPerSecond float64       // Per-client command rate (default: 10)
	Burst             int           // Per-client burst (default: 20)
}

// LibraryConfig holds folder watching configuration.
type LibraryConfig struct {
	WatchPath   string        // Folder imported at startup and watched for new files. Empty disables.
	AutoQueue   bool          // Append newly imported episodes to the queue (default: true)
	SettleDelay time.Duration // How long a new file must stay unchanged before import (default: 2s)
}

// AutoSkipConfig holds auto-skip rule configuration.
type AutoSkipConfig struct {
	// RulesPath is a TOML rule file. Empty disables rules.
	RulesPath string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("podplayer", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the library database and session journal")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	// Playback flags
	tickInterval := fs.String("tick-interval", "", "Position sampling interval (default: 500ms)")
	persistEvery := fs.String("persist-every", "", "Commit position every N ticks (default: 10)")
	skipForward := fs.String("skip-forward", "", "Skip forward seconds (default: 30)")
	skipBack := fs.String("skip-back", "", "Skip back seconds (default: 15)")
	finishThreshold := fs.String("finish-threshold", "", "Progress counted as played (default: 0.95)")
	defaultRate := fs.String("rate", "", "Initial playback rate (default: 1.0)")
	nowPlayingInterval := fs.String("now-playing-interval", "", "Now-playing refresh interval (default: 5s)")

	// Remote flags
	remoteEnabled := fs.String("remote", "", "Serve the remote-control API (default: true)")
	remoteName := fs.String("name", "", "Instance name advertised over mDNS")
	remotePort := fs.String("port", "", "Remote API port (default: 8484)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")

	rulesPath := fs.String("skip-rules", "", "Path to auto-skip rules (TOML)")

	// Library flags
	watchPath := fs.String("watch", "", "Folder to import and watch for new audio files")
	autoQueue := fs.String("auto-queue", "", "Queue newly imported episodes (default: true)")
	settleDelay := fs.String("settle-delay", "", "Wait for new files to stop changing (default: 2s)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Playback: PlaybackConfig{
			PersistEveryTicks: getIntConfigValue(*persistEvery, "PERSIST_EVERY_TICKS", 10),
			NowPlayingBurst:   getIntConfigValue("", "NOW_PLAYING_BURST", 4),
		},
		Remote: RemoteConfig{
			Enabled:       getBoolConfigValue(*remoteEnabled, "REMOTE_ENABLED", true),
			Name:          getConfigValue(*remoteName, "PLAYER_NAME", hostnameOr("ListenUp Player")),
			Port:          getConfigValue(*remotePort, "REMOTE_PORT", "8484"),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
			Burst:         getIntConfigValue("", "REMOTE_BURST", 20),
		},
		AutoSkip: AutoSkipConfig{
			RulesPath: getConfigValue(*rulesPath, "SKIP_RULES_PATH", ""),
		},
		Library: LibraryConfig{
			WatchPath: getConfigValue(*watchPath, "WATCH_PATH", ""),
			AutoQueue: getBoolConfigValue(*autoQueue, "AUTO_QUEUE", true),
		},
		Args: fs.Args(),
	}

	var err error
	floats := []struct {
		dst      *float64
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Playback.SkipForward, *skipForward, "SKIP_FORWARD", "30"},
		{&cfg.Playback.SkipBack, *skipBack, "SKIP_BACK", "15"},
		{&cfg.Playback.FinishThreshold, *finishThreshold, "FINISH_THRESHOLD", "0.95"},
		{&cfg.Playback.DefaultRate, *defaultRate, "DEFAULT_RATE", "1.0"},
		{&cfg.Remote.RequestsPerSecond, "", "REMOTE_RPS", "10"},
	}
	for _, f := range floats {
		if *f.dst, err = getFloatConfigValue(f.flag, f.envKey, f.fallback); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Playback.TickInterval, *tickInterval, "TICK_INTERVAL", "500ms"},
		{&cfg.Playback.NowPlayingInterval, *nowPlayingInterval, "NOW_PLAYING_INTERVAL", "5s"},
		{&cfg.Remote.ReadTimeout, *readTimeout, "REMOTE_READ_TIMEOUT", "15s"},
		{&cfg.Remote.WriteTimeout, *writeTimeout, "REMOTE_WRITE_TIMEOUT", "15s"},
		{&cfg.Remote.IdleTimeout, *idleTimeout, "REMOTE_IDLE_TIMEOUT", "60s"},
		{&cfg.Library.SettleDelay, *settleDelay, "SETTLE_DELAY", "2s"},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationConfigValue(d.flag, d.envKey, d.fallback); err != nil {
			return nil, err
		}
	}

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.AutoSkip.RulesPath != "" {
		if cfg.AutoSkip.RulesPath, err = expandPath(cfg.AutoSkip.RulesPath, ""); err != nil {
			return nil, fmt.Errorf("invalid rules path: %w", err)
		}
	}

	if cfg.Library.WatchPath != "" {
		if cfg.Library.WatchPath, err = expandPath(cfg.Library.WatchPath, ""); err != nil {
			return nil, fmt.Errorf("invalid watch path: %w", err)
		}
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	p := c.Playback
	if p.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("tick interval %s is too small (minimum 10ms)", p.TickInterval)
	}
	if p.PersistEveryTicks < 1 {
		return fmt.Errorf("persist-every must be at least 1, got %d", p.PersistEveryTicks)
	}
	if p.SkipForward <= 0 || p.SkipBack <= 0 {
		return errors.New("skip intervals must be positive")
	}
	if p.FinishThreshold <= 0 || p.FinishThreshold > 1 {
		return fmt.Errorf("finish threshold must be in (0, 1], got %v", p.FinishThreshold)
	}
	if p.DefaultRate < 0.5 || p.DefaultRate > 3.0 {
		return fmt.Errorf("default rate must be between 0.5 and 3.0, got %v", p.DefaultRate)
	}
	if p.NowPlayingInterval <= 0 {
		return errors.New("now-playing interval must be positive")
	}

	if c.Library.WatchPath != "" && c.Library.SettleDelay <= 0 {
		return errors.New("settle delay must be positive")
	}

	if c.Remote.Enabled {
		port, err := strconv.Atoi(c.Remote.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid remote port: %s", c.Remote.Port)
		}
		if c.Remote.RequestsPerSecond <= 0 || c.Remote.Burst < 1 {
			return errors.New("remote rate limit must be positive")
		}
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ListenUp", "player")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

func hostnameOr(fallback string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return fallback
	}
	return name
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue parses a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey, defaultValue string) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
