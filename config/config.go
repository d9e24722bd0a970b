package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the askdb front end
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	PageTitle string `mapstructure:"page_title"`
}

// UpstreamConfig points at the SQL assistant service the pipeline talks to.
// All three stage endpoints live under BaseURL + RequestPrefix.
type UpstreamConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	RequestPrefix string        `mapstructure:"request_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (u UpstreamConfig) Validate() error {
	if strings.TrimSpace(u.BaseURL) == "" {
		return fmt.Errorf("upstream.base_url required")
	}
	if !strings.HasPrefix(u.BaseURL, "http://") && !strings.HasPrefix(u.BaseURL, "https://") {
		return fmt.Errorf("upstream.base_url must be an http(s) URL")
	}
	return nil
}

// HistoryConfig selects the question-history backend.
type HistoryConfig struct {
	Backend string      `mapstructure:"backend"` // memory or redis
	Limit   int         `mapstructure:"limit"`
	Redis   RedisConfig `mapstructure:"redis"`
}

func (h HistoryConfig) Validate() error {
	switch h.Backend {
	case "", "memory":
		return nil
	case "redis":
		return h.Redis.Validate()
	default:
		return fmt.Errorf("history.backend must be memory or redis, got %q", h.Backend)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("history.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("history.redis.port required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10080")
	viper.SetDefault("server.page_title", "AskDB")
	viper.SetDefault("upstream.base_url", "http://localhost:5000")
	viper.SetDefault("upstream.request_prefix", "/api/v0")
	viper.SetDefault("upstream.timeout", 10*time.Minute)
	viper.SetDefault("history.backend", "memory")
	viper.SetDefault("history.limit", 50)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                      // bin/
		viper.AddConfigPath(filepath.Join(exeDir, "..")) // repo root
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ASKDB")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (ASKDB_*)

	if err := viper.ReadInConfig(); err != nil {
		// defaults plus env are enough to run against a local assistant
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Upstream.Validate(); err != nil {
		panic(err)
	}
	if err := config.History.Validate(); err != nil {
		panic(err)
	}
	return &config
}
