// Package config loads service configuration from an optional YAML
// file plus BLOBCACHE_* environment variables, with sane defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Postgres holds the component parts of the job-history DSN.
type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	DB       string `mapstructure:"db"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Config describes the blobcached runtime.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	BaseDir         string        `mapstructure:"base_dir"`
	APIToken        string        `mapstructure:"api_token"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	ProbeURL        string        `mapstructure:"probe_url"`
	ProbeInterval   time.Duration `mapstructure:"probe_interval"`
	Repo            string        `mapstructure:"repo"` // inmem | postgres
	Postgres        Postgres      `mapstructure:"postgres"`
	LogFile         string        `mapstructure:"log_file"`
	LogMaxSizeMB    int           `mapstructure:"log_max_size_mb"`
	LogMaxBackups   int           `mapstructure:"log_max_backups"`
}

// Load reads configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("blobcache")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Repo != "inmem" && cfg.Repo != "postgres" {
		return nil, fmt.Errorf("invalid repo %q (allowed: inmem|postgres)", cfg.Repo)
	}

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	cfg.BaseDir = abs

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":9090")
	v.SetDefault("base_dir", "./cache")
	v.SetDefault("api_token", "")
	v.SetDefault("transfer_timeout", "60s")
	v.SetDefault("probe_url", "https://clients3.google.com/generate_204")
	v.SetDefault("probe_interval", "15s")
	v.SetDefault("repo", "inmem")
	v.SetDefault("postgres.host", "postgres")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.db", "blobcache")
	v.SetDefault("postgres.user", "blobcache")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 10)
}
