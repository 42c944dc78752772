package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir()) // no ember.toml in sight

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 6379 {
		t.Errorf("default port = %d, want 6379", cfg.Server.Port)
	}
	if cfg.Store.MaxKeys != 10000 {
		t.Errorf("default max_keys = %d, want 10000", cfg.Store.MaxKeys)
	}
	if cfg.Persistence.AOFPath != "mini_redis.aof" {
		t.Errorf("default aof_path = %q", cfg.Persistence.AOFPath)
	}
	if cfg.Persistence.RDBPath != "mini_redis_dump.rdb" {
		t.Errorf("default rdb_path = %q", cfg.Persistence.RDBPath)
	}
	if cfg.Server.Pool {
		t.Error("pool driver enabled by default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "ember.conf")
	body := "# test config\n" +
		"[server]\n" +
		"port = 7000\n" +
		"pool = true\n" +
		"[store]\n" +
		"max_keys = 50\n" +
		"[persistence]\n" +
		"aof_path = \"custom.aof\"\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Server.Port)
	}
	if !cfg.Server.Pool {
		t.Error("pool = false, want true")
	}
	if cfg.Store.MaxKeys != 50 {
		t.Errorf("max_keys = %d, want 50", cfg.Store.MaxKeys)
	}
	if cfg.Persistence.AOFPath != "custom.aof" {
		t.Errorf("aof_path = %q, want custom.aof", cfg.Persistence.AOFPath)
	}
	// Untouched fields keep their defaults.
	if cfg.Persistence.RDBPath != "mini_redis_dump.rdb" {
		t.Errorf("rdb_path = %q, want default", cfg.Persistence.RDBPath)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.conf")); err == nil {
		t.Error("Load() of a missing explicit config file succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"Port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"MaxKeys zero", func(c *Config) { c.Store.MaxKeys = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server: ServerConfig{Port: 6379},
				Store:  StoreConfig{MaxKeys: 10000},
			}
			tt.mutate(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
