package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for reaper.
type Config struct {
	BaseDir      string `toml:"base_dir" validate:"required"`
	LogDir       string `toml:"log_dir"`
	GraveyardDir string `toml:"graveyard_dir" validate:"required"`
	ScanRoot     string `toml:"scan_root,omitempty"`

	Storage   StorageConfig   `toml:"storage"`
	Scan      ScanConfig      `toml:"scan"`
	Classify  ClassifyConfig  `toml:"classify"`
	Undo      UndoConfig      `toml:"undo"`
	HashCache HashCacheConfig `toml:"hash_cache"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// StorageConfig selects where the operation log and whitelist live.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type    string `toml:"type" validate:"oneof=file sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_unless=Type memory"`
}

// ScanConfig holds directory walk settings.
type ScanConfig struct {
	Ignore        []string `toml:"ignore"`
	ProgressEvery int      `toml:"progress_every"` // negative disables progress events
	BulkLimit     int      `toml:"bulk_limit"`     // negative means no cap
}

// ClassifyConfig holds the default classification behaviour.
type ClassifyConfig struct {
	Policy      string `toml:"policy" validate:"omitempty,oneof=accumulating priority"`
	Hashing     bool   `toml:"hashing"`
	QuickFilter bool   `toml:"quick_filter"`
}

type UndoConfig struct {
	Window        Duration `toml:"window" validate:"gt=0"`
	SweepInterval Duration `toml:"sweep_interval" validate:"gt=0"`
}

// HashCacheConfig enables the persistent digest cache.
type HashCacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir,omitempty" validate:"required_if=Enabled true"`
}

// MetricsConfig holds the Prometheus textfile path; empty disables export.
type MetricsConfig struct {
	Textfile string `toml:"textfile,omitempty"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

var validate = validator.New()

// Validate checks field constraints, reporting the first failing fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewConfig creates a new Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		GraveyardDir: filepath.Join(baseDir, "graveyard"),
		Storage: StorageConfig{
			Type:    "file",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Scan: ScanConfig{
			Ignore:        []string{".git", "node_modules"},
			ProgressEvery: 100,
			BulkLimit:     1000,
		},
		Classify: ClassifyConfig{
			Policy:      "accumulating",
			Hashing:     true,
			QuickFilter: true,
		},
		Undo: UndoConfig{
			Window:        Duration(5 * time.Second),
			SweepInterval: Duration(time.Second),
		},
		HashCache: HashCacheConfig{
			Dir: filepath.Join(baseDir, "hashcache"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
