package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
}

type StorageConfig struct {
	Path     string         `mapstructure:"path"`
	Memgraph MemgraphConfig `mapstructure:"memgraph"`
}

type MemgraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	ReadOnly bool   `mapstructure:"read_only"`
	APIToken string `mapstructure:"api_token"`
}

type GraphConfig struct {
	DefaultDepth int `mapstructure:"default_depth"`
}

type ScenarioConfig struct {
	DefaultProbability float64 `mapstructure:"default_probability"`
}

// Load reads the configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".riskmap"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("riskmap")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RISKMAP")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("storage.path", "./data/riskmap.db")
	viper.SetDefault("storage.memgraph.enabled", false)
	viper.SetDefault("storage.memgraph.uri", "bolt://localhost:7687")
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("graph.default_depth", 3)
	viper.SetDefault("scenario.default_probability", 0.1)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Tokens may reference environment variables.
	cfg.Server.APIToken = os.ExpandEnv(cfg.Server.APIToken)
	cfg.Storage.Memgraph.Password = os.ExpandEnv(cfg.Storage.Memgraph.Password)

	return &cfg, nil
}
