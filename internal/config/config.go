// Package config loads the storage core's runtime configuration (§6), the
// same viper + mapstructure pattern the teacher's internal/config.go uses
// for its server/storage settings.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the storage core's tunables (§6 Configuration). engine.Open
// reads PoolSize, ReplacerK, LeafMaxSize and InternalMaxSize. BucketSize,
// PageSize and DiskPath are loaded but not read: hash buckets hold 4
// entries, pages are storage.PageSize bytes (fixed per build), and the page
// file is <dataDir>/data.db.
type Config struct {
	PoolSize        int    `mapstructure:"pool_size"`
	ReplacerK       int    `mapstructure:"replacer_k"`
	BucketSize      int    `mapstructure:"bucket_size"`
	LeafMaxSize     int    `mapstructure:"leaf_max_size"`
	InternalMaxSize int    `mapstructure:"internal_max_size"`
	PageSize        int    `mapstructure:"page_size"`
	DiskPath        string `mapstructure:"disk_path"`
}

// Defaults mirror the spec's illustrative scenarios (§8): a 7-frame pool
// with k=2 in the worked examples, generalized here to production-sized
// defaults.
func Defaults() Config {
	return Config{
		PoolSize:        64,
		ReplacerK:       2,
		BucketSize:      4,
		LeafMaxSize:     4,
		InternalMaxSize: 4,
		PageSize:        4096,
		DiskPath:        "novasql.db",
	}
}

// Load reads a YAML config file at path, overlaying Defaults() for any key
// the file omits.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
