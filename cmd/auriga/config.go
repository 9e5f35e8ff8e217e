package main

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full backend configuration, bound from file and
// AURIGA_-prefixed environment variables.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Log        LogConfig        `mapstructure:"log"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	WALMode      bool   `mapstructure:"wal_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type NATSConfig struct {
	// Embedded runs a NATS server inside the process; URL is ignored.
	Embedded bool   `mapstructure:"embedded"`
	URL      string `mapstructure:"url"`
}

type SecretsConfig struct {
	// KeeperURL selects the gocloud secrets backend sealing config
	// secrets, e.g. "base64key://<key>" or a cloud KMS URL. Empty keeps
	// secrets in plaintext.
	KeeperURL string `mapstructure:"keeper_url"`
}

type ProjectionConfig struct {
	DiscoverInterval time.Duration `mapstructure:"discover_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults() {
	viper.SetDefault("database.dsn", "auriga.db")
	viper.SetDefault("database.wal_mode", true)
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("nats.embedded", true)
	viper.SetDefault("nats.url", "nats://127.0.0.1:4222")
	viper.SetDefault("secrets.keeper_url", "")
	viper.SetDefault("projection.discover_interval", 15*time.Second)
	viper.SetDefault("projection.poll_interval", 5*time.Second)
	viper.SetDefault("log.development", false)
}

func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
