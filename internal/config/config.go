package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/criticalpoint/syncbridge/internal/fault"
)

type Config struct {
	Native    NativeConfig    `toml:"native"`
	Session   SessionConfig   `toml:"session"`
	Logging   LoggingConfig   `toml:"logging"`
	Journal   JournalConfig   `toml:"journal"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Scripting ScriptingConfig `toml:"scripting"`
}

type NativeConfig struct {
	LogPath          string `toml:"log_path"`
	ResourceRoot     string `toml:"resource_root"`
	ResourceManifest string `toml:"resource_manifest"` // relative to resource_root
	IDManifest       string `toml:"id_manifest"`       // relative to resource_root
	PointerSize      int    `toml:"pointer_size"`      // 0 = host, else 4 or 8
}

type SessionConfig struct {
	TicksPerSecond uint32 `toml:"ticks_per_second"`
	InitialScene   string `toml:"initial_scene"`
	MaxTicks       uint64 `toml:"max_ticks"` // 0 = run until interrupted
}

// TickInterval is the wall-clock period of one tick.
func (s SessionConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TicksPerSecond)
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type JournalConfig struct {
	Driver    string `toml:"driver"` // "", "sqlite3" or "pgx"
	DSN       string `toml:"dsn"`
	BatchSize int    `toml:"batch_size"`
	MaxConns  int32  `toml:"max_conns"`
}

func (j JournalConfig) Enabled() bool { return j.Driver != "" }

type MonitorConfig struct {
	BindAddress string `toml:"bind_address"` // empty disables the monitor
}

type ScriptingConfig struct {
	ScriptsDir string `toml:"scripts_dir"` // empty disables scripted factories
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Native.PointerSize {
	case 0, 4, 8:
	default:
		return fault.Configuration("config", "validate", "native.pointer_size %d not in {0, 4, 8}", c.Native.PointerSize)
	}
	if c.Native.ResourceRoot == "" {
		return fault.Configuration("config", "validate", "native.resource_root is empty")
	}
	if c.Session.TicksPerSecond == 0 {
		return fault.Configuration("config", "validate", "session.ticks_per_second must be positive")
	}
	if c.Session.InitialScene == "" {
		return fault.Configuration("config", "validate", "session.initial_scene is empty")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fault.Configuration("config", "validate", "logging.format %q not in {json, console}", c.Logging.Format)
	}
	switch c.Journal.Driver {
	case "":
	case "sqlite3", "pgx":
		if c.Journal.DSN == "" {
			return fault.Configuration("config", "validate", "journal.dsn is empty for driver %s", c.Journal.Driver)
		}
		if c.Journal.BatchSize <= 0 {
			return fault.Configuration("config", "validate", "journal.batch_size must be positive")
		}
	default:
		return fault.Configuration("config", "validate", "journal.driver %q not in {sqlite3, pgx}", c.Journal.Driver)
	}
	return nil
}

func Default() *Config {
	return &Config{
		Native: NativeConfig{
			LogPath:          "./critical_point.log",
			ResourceRoot:     "./Assets/CriticalPoint/",
			ResourceManifest: "resource.yml",
			IDManifest:       "id.yml",
		},
		Session: SessionConfig{
			TicksPerSecond: 60,
			InitialScene:   "Prefab.Scene.1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Journal: JournalConfig{
			BatchSize: 60,
			MaxConns:  4,
		},
	}
}
