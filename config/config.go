/*
Package config loads the payroll host configuration.

PURPOSE:
  One TOML file configures the HTTP server, the SQLite database, the
  employer printed on P9 certificates, extra statutory schedule files and
  logging. Every field has a default, so an empty or missing file is valid.

EXAMPLE (payroll.toml):
  [server]
  addr = ":8080"
  shutdown_timeout = "10s"

  [database]
  path = "./data/payroll.db"

  [employer]
  tax_id = "P051234567X"
  name   = "Warp Logistics Ltd"

  [statutory]
  schedules  = ["schedules/2025.toml"]
  floor_year = 2020

  [audit]
  enabled  = true
  interval = "1h"

  [log]
  level       = "info"
  development = false

SEE ALSO:
  - cmd/payroll: Flags override file values
  - factory: Loads the schedule files listed here
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full host configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Employer  EmployerConfig  `toml:"employer"`
	Statutory StatutoryConfig `toml:"statutory"`
	Audit     AuditConfig     `toml:"audit"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // ":memory:" for an ephemeral database
}

type EmployerConfig struct {
	TaxID string `toml:"tax_id"`
	Name  string `toml:"name"`
}

type StatutoryConfig struct {
	Schedules []string `toml:"schedules"` // extra schedule files, TOML or JSON

	// FloorYear backfills tax years before the earliest schedule with that
	// schedule's rates. Zero leaves earlier years unresolved.
	FloorYear int `toml:"floor_year"`
}

// AuditConfig drives the background disbursement report audit.
type AuditConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

type LogConfig struct {
	Level       string `toml:"level"` // debug, info, warn, error
	Development bool   `toml:"development"`
}

// Duration decodes TOML strings like "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns safe host defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{Path: "./payroll.db"},
		Audit:    AuditConfig{Enabled: true, Interval: Duration{time.Hour}},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over DefaultConfig. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if c.Audit.Enabled && c.Audit.Interval.Duration <= 0 {
		return errors.New("audit.interval must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if fy := c.Statutory.FloorYear; fy != 0 && (fy < 1000 || fy > 9999) {
		return fmt.Errorf("statutory.floor_year %d is not a four-digit year", fy)
	}
	for _, path := range c.Statutory.Schedules {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("statutory.schedules: %w", err)
		}
	}
	return nil
}

// NewLogger builds the zap logger described by the log section.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
