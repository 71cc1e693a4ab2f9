package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"assetwatch/internal/logging"
)

type flagValues struct {
	Root                 string
	ConfigFile           string
	WatchPort            int
	FilePort             int
	QuietPeriod          time.Duration
	Ignore               stringList
	Extension            string
	FollowNewDirectories bool
	MaxWatches           int
	AllowedOrigins       stringList
	LogLevel             string
	Verbose              bool
	Quiet                bool
	Help                 bool
	Version              bool
	Set                  map[string]bool
}

type helpOption struct {
	Name string
	Desc string
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, splitList(value)...)
	return nil
}

func parseFlags(args []string) (flagValues, error) {
	defaults := Defaults()
	values := flagValues{}
	fs := flag.NewFlagSet("assetwatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&values.ConfigFile, "config", "", "YAML config file")
	fs.IntVar(&values.WatchPort, "watch-port", defaults.WatchPort, "Websocket subscription port")
	fs.IntVar(&values.FilePort, "file-port", defaults.FilePort, "Static file server port")
	fs.DurationVar(&values.QuietPeriod, "quiet-period", defaults.QuietPeriod, "Debounce quiet period")
	fs.Var(&values.Ignore, "ignore", "Extra ignore pattern (repeatable)")
	fs.StringVar(&values.Extension, "extension", defaults.Extension, "Extension served by the file server")
	fs.BoolVar(&values.FollowNewDirectories, "follow-new-dirs", false, "Watch directories created after startup")
	fs.IntVar(&values.MaxWatches, "max-watches", defaults.MaxWatches, "Max directory watches")
	fs.Var(&values.AllowedOrigins, "allowed-origin", "Allowed websocket origin (repeatable)")
	fs.StringVar(&values.LogLevel, "log-level", string(defaults.LogLevel), "Log level")
	fs.BoolVar(&values.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&values.Quiet, "quiet", false, "Reduce logging to warnings")
	fs.BoolVar(&values.Help, "help", false, "Show help")
	fs.BoolVar(&values.Help, "h", false, "Show help")
	fs.BoolVar(&values.Version, "version", false, "Print version and exit")
	fs.BoolVar(&values.Version, "v", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(fs.Output(), defaults)
	}

	// Allow the directory argument before, between or after flags.
	var positional []string
	remaining := args
	for {
		if err := fs.Parse(remaining); err != nil {
			return flagValues{}, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		remaining = rest[1:]
	}
	if len(positional) > 1 {
		return flagValues{}, fmt.Errorf("expected at most one directory argument, got %d", len(positional))
	}
	if len(positional) == 1 {
		values.Root = strings.TrimSpace(positional[0])
	}

	set := make(map[string]bool)
	fs.Visit(func(flag *flag.Flag) {
		set[flag.Name] = true
	})
	values.Set = set

	if values.Help {
		fs.SetOutput(os.Stdout)
		fs.Usage()
		return values, flag.ErrHelp
	}
	return values, nil
}

// PrintHelp writes usage to out.
func PrintHelp(out io.Writer) {
	printHelp(out, Defaults())
}

func printHelp(out io.Writer, defaults Config) {
	fmt.Fprintln(out, "Usage: assetwatch [options] [directory]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Watches a widget asset directory, tells connected designers to rerender")
	fmt.Fprintln(out, "on material changes and serves the scripts in it.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Without a directory argument you are prompted for one.")

	writeOptionGroup(out, "Servers", []helpOption{
		{
			Name: "--watch-port PORT",
			Desc: fmt.Sprintf("Websocket subscription port (env: ASSETWATCH_WATCH_PORT, default: %d)", defaults.WatchPort),
		},
		{
			Name: "--file-port PORT",
			Desc: fmt.Sprintf("Static file server port (env: ASSETWATCH_FILE_PORT, default: %d)", defaults.FilePort),
		},
		{
			Name: "--extension EXT",
			Desc: fmt.Sprintf("Extension served by the file server (env: ASSETWATCH_EXTENSION, default: %s)", defaults.Extension),
		},
		{
			Name: "--allowed-origin ORIGIN",
			Desc: "Allowed websocket origin, repeatable (env: ASSETWATCH_ALLOWED_ORIGINS, default: any)",
		},
	})

	writeOptionGroup(out, "Watching", []helpOption{
		{
			Name: "--quiet-period DURATION",
			Desc: fmt.Sprintf("Debounce quiet period (env: ASSETWATCH_QUIET_PERIOD, default: %s)", defaults.QuietPeriod),
		},
		{
			Name: "--ignore PATTERN",
			Desc: "Extra ignore glob, repeatable (env: ASSETWATCH_IGNORE)",
		},
		{
			Name: "--follow-new-dirs",
			Desc: "Watch directories created after startup (env: ASSETWATCH_FOLLOW_NEW_DIRECTORIES, default: false)",
		},
		{
			Name: "--max-watches N",
			Desc: fmt.Sprintf("Max directory watches (env: ASSETWATCH_MAX_WATCHES, default: %d)", defaults.MaxWatches),
		},
	})

	writeOptionGroup(out, "Config", []helpOption{
		{
			Name: "--config FILE",
			Desc: "YAML config file (env: ASSETWATCH_CONFIG)",
		},
	})

	writeOptionGroup(out, "Logging", []helpOption{
		{
			Name: "--log-level LEVEL",
			Desc: fmt.Sprintf("debug, info, warning or error (env: ASSETWATCH_LOG_LEVEL, default: %s)", defaults.LogLevel),
		},
		{
			Name: "--verbose",
			Desc: "Enable verbose logging",
		},
		{
			Name: "--quiet",
			Desc: "Reduce logging to warnings",
		},
	})

	writeOptionGroup(out, "Other", []helpOption{
		{
			Name: "--help, -h",
			Desc: "Show help and exit",
		},
		{
			Name: "--version, -v",
			Desc: "Print version and exit",
		},
	})
}

func writeOptionGroup(out io.Writer, title string, options []helpOption) {
	if len(options) == 0 {
		return
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, title+":")
	for _, option := range options {
		fmt.Fprintf(out, "  %-26s %s\n", option.Name, option.Desc)
	}
}

// LogStartup records every value that did not come from the defaults.
func LogStartup(logger *logging.Logger, cfg Config) {
	if logger == nil {
		return
	}
	fields := map[string]string{}
	add := func(key, value string) {
		if source, ok := cfg.Sources[key]; ok && source != SourceDefault {
			fields[key] = value + " (" + string(source) + ")"
		}
	}
	add("root", cfg.Root)
	add("watch-port", fmt.Sprint(cfg.WatchPort))
	add("file-port", fmt.Sprint(cfg.FilePort))
	add("quiet-period", cfg.QuietPeriod.String())
	add("ignore", strings.Join(cfg.IgnorePatterns, ","))
	add("extension", cfg.Extension)
	add("follow-new-directories", fmt.Sprint(cfg.FollowNewDirectories))
	add("max-watches", fmt.Sprint(cfg.MaxWatches))
	add("allowed-origins", strings.Join(cfg.AllowedOrigins, ","))
	add("log-level", string(cfg.LogLevel))
	if cfg.ConfigFile != "" {
		fields["config"] = cfg.ConfigFile
	}
	if len(fields) == 0 {
		logger.Debug("configuration uses defaults", nil)
		return
	}
	logger.Info("configuration overrides", fields)
}
