// Package config resolves runtime settings from defaults, an optional YAML
// file, ASSETWATCH_* environment variables and command-line flags, in that
// order of precedence. The source of every value is recorded.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"assetwatch/internal/debounce"
	"assetwatch/internal/fileserver"
	"assetwatch/internal/logging"
)

const (
	DefaultWatchPort  = 6270
	DefaultFilePort   = 6271
	DefaultMaxWatches = 8192
	envPrefix         = "ASSETWATCH_"
	envConfigFile     = envPrefix + "CONFIG"
)

var (
	ErrInvalidPort     = errors.New("invalid port")
	ErrInvalidDuration = errors.New("invalid duration")
)

type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

type Config struct {
	Root                 string
	WatchPort            int
	FilePort             int
	QuietPeriod          time.Duration
	IgnorePatterns       []string
	Extension            string
	FollowNewDirectories bool
	MaxWatches           int
	AllowedOrigins       []string
	LogLevel             logging.Level
	ConfigFile           string
	Verbose              bool
	Quiet                bool
	ShowVersion          bool
	Sources              map[string]Source
}

func Defaults() Config {
	return Config{
		WatchPort:   DefaultWatchPort,
		FilePort:    DefaultFilePort,
		QuietPeriod: debounce.DefaultQuietPeriod,
		Extension:   fileserver.DefaultExtension,
		MaxWatches:  DefaultMaxWatches,
		LogLevel:    logging.LevelInfo,
		Sources: map[string]Source{
			"root":                   SourceDefault,
			"watch-port":             SourceDefault,
			"file-port":              SourceDefault,
			"quiet-period":           SourceDefault,
			"ignore":                 SourceDefault,
			"extension":              SourceDefault,
			"follow-new-directories": SourceDefault,
			"max-watches":            SourceDefault,
			"allowed-origins":        SourceDefault,
			"log-level":              SourceDefault,
		},
	}
}

// Load resolves the configuration for args (without the program name).
// It returns flag.ErrHelp after printing usage when -h or --help is given.
func Load(args []string) (Config, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	configFile := strings.TrimSpace(os.Getenv(envConfigFile))
	if flags.Set["config"] {
		configFile = strings.TrimSpace(flags.ConfigFile)
	}
	if configFile != "" {
		values, err := readFile(configFile)
		if err != nil {
			return Config{}, err
		}
		if err := cfg.applyFile(values); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", configFile, err)
		}
		cfg.ConfigFile = configFile
	}

	cfg.applyEnv()
	if err := cfg.applyFlags(flags); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved values. The root is validated separately since
// it may still be prompted for.
func (c Config) Validate() error {
	if err := validatePort("watch-port", c.WatchPort); err != nil {
		return err
	}
	if err := validatePort("file-port", c.FilePort); err != nil {
		return err
	}
	if c.WatchPort == c.FilePort {
		return fmt.Errorf("watch-port and file-port are both %d: %w", c.WatchPort, ErrInvalidPort)
	}
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("quiet-period must be > 0: %w", ErrInvalidDuration)
	}
	if c.MaxWatches < 0 {
		return fmt.Errorf("invalid max-watches: must be >= 0")
	}
	return nil
}

// EffectiveLogLevel applies --verbose and --quiet on top of the configured level.
func (c Config) EffectiveLogLevel() logging.Level {
	switch {
	case c.Verbose:
		return logging.LevelDebug
	case c.Quiet:
		return logging.LevelWarning
	case c.LogLevel == "":
		return logging.LevelInfo
	default:
		return c.LogLevel
	}
}

func (c Config) WatchAddr() string {
	return ":" + strconv.Itoa(c.WatchPort)
}

func (c Config) FileAddr() string {
	return ":" + strconv.Itoa(c.FilePort)
}

func (c *Config) applyEnv() {
	if raw := strings.TrimSpace(os.Getenv(envPrefix + "ROOT")); raw != "" {
		c.Root = raw
		c.Sources["root"] = SourceEnv
	}
	if port, ok := envInt("WATCH_PORT"); ok && port > 0 {
		c.WatchPort = port
		c.Sources["watch-port"] = SourceEnv
	}
	if port, ok := envInt("FILE_PORT"); ok && port > 0 {
		c.FilePort = port
		c.Sources["file-port"] = SourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv(envPrefix + "QUIET_PERIOD")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			c.QuietPeriod = parsed
			c.Sources["quiet-period"] = SourceEnv
		}
	}
	if patterns := splitList(os.Getenv(envPrefix + "IGNORE")); len(patterns) > 0 {
		c.IgnorePatterns = patterns
		c.Sources["ignore"] = SourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv(envPrefix + "EXTENSION")); raw != "" {
		c.Extension = raw
		c.Sources["extension"] = SourceEnv
	}
	if raw := strings.TrimSpace(os.Getenv(envPrefix + "FOLLOW_NEW_DIRECTORIES")); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			c.FollowNewDirectories = parsed
			c.Sources["follow-new-directories"] = SourceEnv
		}
	}
	if limit, ok := envInt("MAX_WATCHES"); ok && limit >= 0 {
		c.MaxWatches = limit
		c.Sources["max-watches"] = SourceEnv
	}
	if origins := splitList(os.Getenv(envPrefix + "ALLOWED_ORIGINS")); len(origins) > 0 {
		c.AllowedOrigins = origins
		c.Sources["allowed-origins"] = SourceEnv
	}
	if level, ok := logging.ParseLevel(os.Getenv(envPrefix + "LOG_LEVEL")); ok {
		c.LogLevel = level
		c.Sources["log-level"] = SourceEnv
	}
}

func (c *Config) applyFlags(flags flagValues) error {
	if flags.Root != "" {
		c.Root = flags.Root
		c.Sources["root"] = SourceFlag
	}
	if flags.Set["watch-port"] {
		c.WatchPort = flags.WatchPort
		c.Sources["watch-port"] = SourceFlag
	}
	if flags.Set["file-port"] {
		c.FilePort = flags.FilePort
		c.Sources["file-port"] = SourceFlag
	}
	if flags.Set["quiet-period"] {
		c.QuietPeriod = flags.QuietPeriod
		c.Sources["quiet-period"] = SourceFlag
	}
	if flags.Set["ignore"] {
		c.IgnorePatterns = append([]string(nil), flags.Ignore...)
		c.Sources["ignore"] = SourceFlag
	}
	if flags.Set["extension"] {
		trimmed := strings.TrimSpace(flags.Extension)
		if trimmed == "" {
			return fmt.Errorf("invalid --extension: value cannot be empty")
		}
		c.Extension = trimmed
		c.Sources["extension"] = SourceFlag
	}
	if flags.Set["follow-new-dirs"] {
		c.FollowNewDirectories = flags.FollowNewDirectories
		c.Sources["follow-new-directories"] = SourceFlag
	}
	if flags.Set["max-watches"] {
		c.MaxWatches = flags.MaxWatches
		c.Sources["max-watches"] = SourceFlag
	}
	if flags.Set["allowed-origin"] {
		c.AllowedOrigins = append([]string(nil), flags.AllowedOrigins...)
		c.Sources["allowed-origins"] = SourceFlag
	}
	if flags.Set["log-level"] {
		level, ok := logging.ParseLevel(flags.LogLevel)
		if !ok {
			return fmt.Errorf("invalid --log-level %q", flags.LogLevel)
		}
		c.LogLevel = level
		c.Sources["log-level"] = SourceFlag
	}
	c.Verbose = flags.Verbose
	c.Quiet = flags.Quiet
	c.ShowVersion = flags.Version
	return nil
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s %d: %w", name, port, ErrInvalidPort)
	}
	return nil
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + name))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
