// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Rewards     RewardsConfig     `mapstructure:"rewards"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Store       StoreConfig       `mapstructure:"store"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// EngineConfig holds progression-engine thresholds. All three must be >= 1.
type EngineConfig struct {
	QuizPassThreshold int `mapstructure:"quiz_pass_threshold"`
	VoteThreshold     int `mapstructure:"vote_threshold"`
	ReferralTierSize  int `mapstructure:"referral_tier_size"`
}

// RewardsConfig holds coin amounts for each crediting event.
type RewardsConfig struct {
	Welcome        int64 `mapstructure:"welcome"`
	QuizBase       int64 `mapstructure:"quiz_base"`
	QuizPerfect    int64 `mapstructure:"quiz_perfect"`
	ReportVerified int64 `mapstructure:"report_verified"`
	ReferralTrial  int64 `mapstructure:"referral_trial"`
	ReferralTier   int64 `mapstructure:"referral_tier"`
	ScenarioPoint  int64 `mapstructure:"scenario_point"`
}

// LeaderboardConfig holds aggregator tuning.
// RefreshInterval bounds how stale the cached ranked views may be.
type LeaderboardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	TopSize         int           `mapstructure:"top_size"`
}

// StoreConfig bounds persistence calls.
type StoreConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, ENGINE_QUIZ_PASS_THRESHOLD.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (e *EngineConfig) validate() error {
	if e.QuizPassThreshold < 1 {
		return fmt.Errorf("engine.quiz_pass_threshold must be >= 1, got %d", e.QuizPassThreshold)
	}
	if e.VoteThreshold < 1 {
		return fmt.Errorf("engine.vote_threshold must be >= 1, got %d", e.VoteThreshold)
	}
	if e.ReferralTierSize < 1 {
		return fmt.Errorf("engine.referral_tier_size must be >= 1, got %d", e.ReferralTierSize)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scamguard")
	v.SetDefault("database.name", "scamguard")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Engine defaults
	v.SetDefault("engine.quiz_pass_threshold", 3)
	v.SetDefault("engine.vote_threshold", 3)
	v.SetDefault("engine.referral_tier_size", 3)

	// Reward defaults
	v.SetDefault("rewards.welcome", 10)
	v.SetDefault("rewards.quiz_base", 10)
	v.SetDefault("rewards.quiz_perfect", 5)
	v.SetDefault("rewards.report_verified", 30)
	v.SetDefault("rewards.referral_trial", 20)
	v.SetDefault("rewards.referral_tier", 50)
	v.SetDefault("rewards.scenario_point", 5)

	// Leaderboard defaults
	v.SetDefault("leaderboard.refresh_interval", "30s")
	v.SetDefault("leaderboard.top_size", 10)

	// Store defaults
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.max_retries", 3)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
