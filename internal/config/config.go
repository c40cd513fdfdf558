package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Log      LogConfig         `mapstructure:"log"`
	Ledger   LedgerConfig      `mapstructure:"ledger"`
	Engine   map[string]string `mapstructure:"engine"` // file-level defaults for the KV settings
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug or release
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads config.yaml from "." and configPath, then MEDIASORTER_* env vars.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 默认值
	v.SetDefault("server.port", 8307)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.path", "data/mediasorter.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("ledger.path", "data/processed.txt")

	// 配置文件路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	// 环境变量替换 (使用 MEDIASORTER_ 前缀)
	// 比如 MEDIASORTER_SERVER_PORT=9090
	v.SetEnvPrefix("MEDIASORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Engine == nil {
		cfg.Engine = map[string]string{}
	}
	return cfg, nil
}
