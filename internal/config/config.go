// Package config loads evq settings from a YAML or TOML file with EVQ_*
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
)

// Config is the resolved evq configuration.
type Config struct {
	Driver        string        `yaml:"driver" toml:"driver"`
	Path          string        `yaml:"path" toml:"path"`
	Key           string        `yaml:"key" toml:"key"`
	PollInterval  time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	CorruptPolicy string        `yaml:"corrupt_policy" toml:"corrupt_policy"`
	LogLevel      string        `yaml:"log_level" toml:"log_level"`
	Fsync         string        `yaml:"fsync" toml:"fsync"`
	MaxPerDrain   int           `yaml:"max_per_drain" toml:"max_per_drain"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Driver:        kv.DriverSQLite,
		Path:          "evq.db",
		Key:           "evq",
		PollInterval:  100 * time.Millisecond,
		CorruptPolicy: queue.CorruptPolicyFail.String(),
		LogLevel:      "info",
	}
}

// Load reads path (if non-empty), fills defaults and applies environment
// overrides. The format follows the file extension: .toml for TOML,
// anything else for YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	fillDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var raw fileTOML
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse config %s: unknown field %q", path, undecoded[0].String())
		}
		return raw.apply(cfg)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fileTOML mirrors Config with the interval as a string; BurntSushi/toml
// has no native time.Duration support.
type fileTOML struct {
	Driver        string `toml:"driver"`
	Path          string `toml:"path"`
	Key           string `toml:"key"`
	PollInterval  string `toml:"poll_interval"`
	CorruptPolicy string `toml:"corrupt_policy"`
	LogLevel      string `toml:"log_level"`
	Fsync         string `toml:"fsync"`
	MaxPerDrain   int    `toml:"max_per_drain"`
}

func (f fileTOML) apply(cfg *Config) error {
	setString(&cfg.Driver, f.Driver)
	setString(&cfg.Path, f.Path)
	setString(&cfg.Key, f.Key)
	setString(&cfg.CorruptPolicy, f.CorruptPolicy)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.Fsync, f.Fsync)
	if f.MaxPerDrain != 0 {
		cfg.MaxPerDrain = f.MaxPerDrain
	}
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Environment variables consulted by Load.
const (
	EnvDriver        = "EVQ_DRIVER"
	EnvPath          = "EVQ_DB"
	EnvKey           = "EVQ_KEY"
	EnvPollInterval  = "EVQ_POLL_INTERVAL"
	EnvCorruptPolicy = "EVQ_CORRUPT_POLICY"
	EnvLogLevel      = "EVQ_LOG_LEVEL"
	EnvFsync         = "EVQ_FSYNC"
	EnvMaxPerDrain   = "EVQ_MAX_PER_DRAIN"
)

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}

	if v, ok := get(EnvDriver); ok {
		cfg.Driver = v
	}
	if v, ok := get(EnvPath); ok {
		cfg.Path = v
	}
	if v, ok := get(EnvKey); ok {
		cfg.Key = v
	}
	if v, ok := get(EnvCorruptPolicy); ok {
		cfg.CorruptPolicy = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := get(EnvFsync); ok {
		cfg.Fsync = v
	}
	if v, ok := get(EnvPollInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.PollInterval = d
	}
	if v, ok := get(EnvMaxPerDrain); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxPerDrain, err)
		}
		cfg.MaxPerDrain = n
	}
	return nil
}

func fillDefaults(cfg *Config) {
	def := Default()
	setDefault(&cfg.Driver, def.Driver)
	setDefault(&cfg.Key, def.Key)
	setDefault(&cfg.CorruptPolicy, def.CorruptPolicy)
	setDefault(&cfg.LogLevel, def.LogLevel)
	if cfg.Path == "" && cfg.Driver != kv.DriverMemory {
		cfg.Path = def.Path
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Driver {
	case kv.DriverSQLite, kv.DriverPebble, kv.DriverMemory:
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if strings.TrimSpace(c.Key) == "" {
		return errors.New("config: key must be non-empty")
	}
	if _, err := queue.ParseCorruptPolicy(c.CorruptPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxPerDrain < 0 {
		return fmt.Errorf("config: max_per_drain must be >= 0, got %d", c.MaxPerDrain)
	}
	return nil
}

// Policy returns the parsed corrupt-state policy.
func (c Config) Policy() queue.CorruptPolicy {
	p, _ := queue.ParseCorruptPolicy(c.CorruptPolicy)
	return p
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	l, _ := ParseLogLevel(c.LogLevel)
	return l
}

// KV returns the backend options for kv.Open.
func (c Config) KV() kv.Options {
	return kv.Options{Driver: c.Driver, Path: c.Path, Fsync: c.Fsync}
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
