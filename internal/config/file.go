package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"assetwatch/internal/logging"

	"gopkg.in/yaml.v3"
)

// fileValues mirrors the YAML config file. Pointers distinguish an absent key
// from a zero value.
type fileValues struct {
	Root                 *string  `yaml:"root"`
	WatchPort            *int     `yaml:"watch-port"`
	FilePort             *int     `yaml:"file-port"`
	QuietPeriod          *string  `yaml:"quiet-period"`
	Ignore               []string `yaml:"ignore"`
	Extension            *string  `yaml:"extension"`
	FollowNewDirectories *bool    `yaml:"follow-new-directories"`
	MaxWatches           *int     `yaml:"max-watches"`
	AllowedOrigins       []string `yaml:"allowed-origins"`
	LogLevel             *string  `yaml:"log-level"`
}

func readFile(path string) (fileValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileValues{}, fmt.Errorf("read config file: %w", err)
	}
	var values fileValues
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return fileValues{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) applyFile(values fileValues) error {
	if values.Root != nil && strings.TrimSpace(*values.Root) != "" {
		c.Root = strings.TrimSpace(*values.Root)
		c.Sources["root"] = SourceFile
	}
	if values.WatchPort != nil {
		if err := validatePort("watch-port", *values.WatchPort); err != nil {
			return err
		}
		c.WatchPort = *values.WatchPort
		c.Sources["watch-port"] = SourceFile
	}
	if values.FilePort != nil {
		if err := validatePort("file-port", *values.FilePort); err != nil {
			return err
		}
		c.FilePort = *values.FilePort
		c.Sources["file-port"] = SourceFile
	}
	if values.QuietPeriod != nil {
		parsed, err := time.ParseDuration(strings.TrimSpace(*values.QuietPeriod))
		if err != nil || parsed <= 0 {
			return fmt.Errorf("quiet-period %q: %w", *values.QuietPeriod, ErrInvalidDuration)
		}
		c.QuietPeriod = parsed
		c.Sources["quiet-period"] = SourceFile
	}
	if len(values.Ignore) > 0 {
		c.IgnorePatterns = append([]string(nil), values.Ignore...)
		c.Sources["ignore"] = SourceFile
	}
	if values.Extension != nil && strings.TrimSpace(*values.Extension) != "" {
		c.Extension = strings.TrimSpace(*values.Extension)
		c.Sources["extension"] = SourceFile
	}
	if values.FollowNewDirectories != nil {
		c.FollowNewDirectories = *values.FollowNewDirectories
		c.Sources["follow-new-directories"] = SourceFile
	}
	if values.MaxWatches != nil {
		if *values.MaxWatches < 0 {
			return fmt.Errorf("invalid max-watches: must be >= 0")
		}
		c.MaxWatches = *values.MaxWatches
		c.Sources["max-watches"] = SourceFile
	}
	if len(values.AllowedOrigins) > 0 {
		c.AllowedOrigins = append([]string(nil), values.AllowedOrigins...)
		c.Sources["allowed-origins"] = SourceFile
	}
	if values.LogLevel != nil {
		level, ok := logging.ParseLevel(*values.LogLevel)
		if !ok {
			return fmt.Errorf("invalid log-level %q", *values.LogLevel)
		}
		c.LogLevel = level
		c.Sources["log-level"] = SourceFile
	}
	return nil
}
