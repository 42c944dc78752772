package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the server
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Replication ReplicationConfig `mapstructure:"replication"`
	GC          GCConfig          `mapstructure:"gc"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds the network settings and the listener driver choice
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Pool selects the fixed-size worker pool driver instead of one
	// goroutine per connection.
	Pool     bool `mapstructure:"pool"`
	PoolSize int  `mapstructure:"pool_size"` // 0 means one worker per CPU
}

// StoreConfig defines the keyspace bounds
type StoreConfig struct {
	MaxKeys int `mapstructure:"max_keys"` // per-database LRU eviction threshold
}

// PersistenceConfig locates the journal and snapshot files. An empty
// AOFPath disables the journal.
type PersistenceConfig struct {
	AOFPath string `mapstructure:"aof_path"`
	RDBPath string `mapstructure:"rdb_path"`
}

// ReplicationConfig lists downstream replicas to connect at startup
type ReplicationConfig struct {
	ReplicaOf []string `mapstructure:"replicaof"` // "host:port" entries
}

// GCConfig defines the parameters for the background active expiration
type GCConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	Interval        string  `mapstructure:"interval"`
	SamplesPerCheck int     `mapstructure:"samples_per_check"`
	MatchThreshold  float64 `mapstructure:"match_threshold"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration: defaults, then an optional config file,
// then EMBER_-prefixed environment variables, then any bound CLI flags.
// file may be empty, in which case ember.toml is searched in the working
// directory.
func Load(file string) (*Config, error) {
	setDefaults()

	if file != "" {
		viper.SetConfigFile(file)
		if filepath.Ext(file) == "" || filepath.Ext(file) == ".conf" {
			// Plain "key = value" files with '#' comments.
			viper.SetConfigType("toml")
		}
	} else {
		viper.SetConfigName("ember")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("EMBER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing search-path config is fine; an explicit one is not.
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Store.MaxKeys < 1 {
		return fmt.Errorf("max_keys must be at least 1, got %d", c.Store.MaxKeys)
	}
	return nil
}

// setDefaults populates viper with fallback values if they are not provided
// via file, ENV, or flags
func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 6379)
	viper.SetDefault("server.pool", false)
	viper.SetDefault("server.pool_size", 0)

	// Store
	viper.SetDefault("store.max_keys", 10000)

	// Persistence
	viper.SetDefault("persistence.aof_path", "mini_redis.aof")
	viper.SetDefault("persistence.rdb_path", "mini_redis_dump.rdb")

	// Replication
	viper.SetDefault("replication.replicaof", []string{})

	// GC
	viper.SetDefault("gc.enabled", true)
	viper.SetDefault("gc.interval", "1s")
	viper.SetDefault("gc.samples_per_check", 20)
	viper.SetDefault("gc.match_threshold", 0.25)

	// Logger
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}
