package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/reaper")
	original.ScanRoot = "/home/user"
	original.Storage = StorageConfig{Type: "sqlite", DataDir: "/data/reaper"}
	original.Scan.Ignore = []string{"*.part", ".git"}
	original.Classify.Policy = "priority"
	original.Undo.Window = Duration(30 * time.Second)
	original.Metrics.Textfile = "/var/lib/node_exporter/reaper.prom"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `window = "30s"`) {
		t.Errorf("durations should be written as strings, got:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.GraveyardDir != original.GraveyardDir {
		t.Errorf("GraveyardDir = %q, want %q", got.GraveyardDir, original.GraveyardDir)
	}
	if got.ScanRoot != "/home/user" {
		t.Errorf("ScanRoot = %q, want %q", got.ScanRoot, "/home/user")
	}
	if got.Storage != original.Storage {
		t.Errorf("Storage = %+v, want %+v", got.Storage, original.Storage)
	}
	if len(got.Scan.Ignore) != 2 {
		t.Fatalf("len(Scan.Ignore) = %d, want 2", len(got.Scan.Ignore))
	}
	if got.Classify.Policy != "priority" {
		t.Errorf("Classify.Policy = %q, want %q", got.Classify.Policy, "priority")
	}
	if got.Undo.Window.Std() != 30*time.Second {
		t.Errorf("Undo.Window = %v, want 30s", got.Undo.Window.Std())
	}
	if got.Undo.SweepInterval.Std() != time.Second {
		t.Errorf("Undo.SweepInterval = %v, want 1s", got.Undo.SweepInterval.Std())
	}
	if got.Metrics.Textfile != original.Metrics.Textfile {
		t.Errorf("Metrics.Textfile = %q, want %q", got.Metrics.Textfile, original.Metrics.Textfile)
	}
}

func TestManager_Read_BadDuration(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("[undo]\nwindow = \"soon\"\n"))
	if err == nil {
		t.Fatal("Read() expected error for unparsable duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/reaper")

	if cfg.LogDir != "/data/reaper/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/reaper/log")
	}
	if cfg.GraveyardDir != "/data/reaper/graveyard" {
		t.Errorf("GraveyardDir = %q, want %q", cfg.GraveyardDir, "/data/reaper/graveyard")
	}
	if cfg.Storage.Type != "file" || cfg.Storage.DataDir != "/data/reaper/data" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Undo.Window.Std() != 5*time.Second {
		t.Errorf("Undo.Window = %v, want 5s", cfg.Undo.Window.Std())
	}
	if cfg.Scan.ProgressEvery != 100 || cfg.Scan.BulkLimit != 1000 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "memory storage needs no data dir",
			modify: func(c *Config) { c.Storage = StorageConfig{Type: "memory"} },
		},
		{
			name:    "sqlite storage needs a data dir",
			modify:  func(c *Config) { c.Storage = StorageConfig{Type: "sqlite"} },
			wantErr: true,
		},
		{
			name:    "unknown storage type",
			modify:  func(c *Config) { c.Storage.Type = "s3" },
			wantErr: true,
		},
		{
			name:    "unknown policy",
			modify:  func(c *Config) { c.Classify.Policy = "random" },
			wantErr: true,
		},
		{
			name:   "empty policy means default",
			modify: func(c *Config) { c.Classify.Policy = "" },
		},
		{
			name:    "zero undo window",
			modify:  func(c *Config) { c.Undo.Window = 0 },
			wantErr: true,
		},
		{
			name: "enabled hash cache needs a dir",
			modify: func(c *Config) {
				c.HashCache = HashCacheConfig{Enabled: true}
			},
			wantErr: true,
		},
		{
			name:    "missing graveyard",
			modify:  func(c *Config) { c.GraveyardDir = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/reaper")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "reaper.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reaper.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		cfg := NewConfig(dir)
		cfg.Storage.Type = "tape"

		if err := Init(filepath.Join(dir, "reaper.toml"), cfg); err == nil {
			t.Fatal("Init() expected validation error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reaper.toml")
		cfg := NewConfig(dir)
		cfg.Storage = StorageConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Storage.Type != "memory" {
			t.Errorf("Storage.Type = %q, want %q", got.Storage.Type, "memory")
		}
	})

	t.Run("rejects invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reaper.toml")
		if err := os.WriteFile(path, []byte("base_dir = \"/x\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected validation error")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/reaper.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
