package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken           string          `yaml:"discord_token" env:"DISCORD_TOKEN"`
	DatabaseURL            string          `yaml:"database_url" env:"DATABASE_URL"`
	LogLevel               string          `yaml:"log_level" env:"LOG_LEVEL"`
	Prefix                 string          `yaml:"prefix" env:"PREFIX"`
	OwnerIDs               []string        `yaml:"owner_ids" env:"OWNER_IDS" envSeparator:","`
	GuildConfigPath        string          `yaml:"guild_config_path" env:"GUILD_CONFIG_PATH"`
	CommandCooldownSeconds int             `yaml:"command_cooldown_seconds" env:"COMMAND_COOLDOWN_SECONDS"`
	RetentionDays          int             `yaml:"retention_days" env:"RETENTION_DAYS"`
	ErrorWebhookURL        string          `yaml:"error_webhook_url" env:"ERROR_WEBHOOK_URL"`
	Health                 HealthConfig    `yaml:"health" envPrefix:"HEALTH_"`
	Wizard                 WizardConfig    `yaml:"wizard" envPrefix:"WIZARD_"`
	Giveaway               GiveawayConfig  `yaml:"giveaway" envPrefix:"GIVEAWAY_"`
	Starboard              StarboardConfig `yaml:"starboard" envPrefix:"STARBOARD_"`
	Levels                 LevelsConfig    `yaml:"levels" envPrefix:"LEVELS_"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

type WizardConfig struct {
	TimeoutSeconds   int     `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	DeleteBatchSize  int     `yaml:"delete_batch_size" env:"DELETE_BATCH_SIZE"`
	DeletesPerSecond float64 `yaml:"delete_per_second" env:"DELETE_PER_SECOND"`
}

type GiveawayConfig struct {
	Emoji              string `yaml:"emoji" env:"EMOJI"`
	EligibilityWorkers int    `yaml:"eligibility_workers" env:"ELIGIBILITY_WORKERS"`
}

type StarboardConfig struct {
	Emoji string `yaml:"emoji" env:"EMOJI"`
}

type LevelsConfig struct {
	MinXP             int64 `yaml:"min_xp" env:"MIN_XP"`
	MaxXP             int64 `yaml:"max_xp" env:"MAX_XP"`
	XPCooldownSeconds int   `yaml:"xp_cooldown_seconds" env:"XP_COOLDOWN_SECONDS"`
	TopLimit          int   `yaml:"top_limit" env:"TOP_LIMIT"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL:            "/data/guildwarden.db",
		LogLevel:               "info",
		Prefix:                 "!",
		GuildConfigPath:        "/data/guilds.json",
		CommandCooldownSeconds: 5,
		RetentionDays:          30,
		Health:                 HealthConfig{Enabled: false, Addr: ":8080"},
		Wizard:                 WizardConfig{TimeoutSeconds: 180, DeleteBatchSize: 100, DeletesPerSecond: 1},
		Giveaway:               GiveawayConfig{Emoji: "🎁", EligibilityWorkers: 8},
		Starboard:              StarboardConfig{Emoji: "⭐"},
		Levels:                 LevelsConfig{MinXP: 15, MaxXP: 25, XPCooldownSeconds: 60, TopLimit: 10},
	}
}

// Load layers the YAML file at CONFIG_PATH over the defaults, then the
// environment over both. A .env file is read into the environment first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Wizard.DeleteBatchSize <= 0 || cfg.Wizard.DeleteBatchSize > 100 {
		cfg.Wizard.DeleteBatchSize = 100
	}
	if cfg.Wizard.TimeoutSeconds <= 0 {
		cfg.Wizard.TimeoutSeconds = 180
	}
	if cfg.Wizard.DeletesPerSecond <= 0 {
		cfg.Wizard.DeletesPerSecond = 1
	}
	if cfg.Giveaway.EligibilityWorkers <= 0 {
		cfg.Giveaway.EligibilityWorkers = 1
	}
	if cfg.Levels.MaxXP < cfg.Levels.MinXP {
		cfg.Levels.MaxXP = cfg.Levels.MinXP
	}
	if cfg.CommandCooldownSeconds < 0 {
		cfg.CommandCooldownSeconds = 0
	}
}

func (c Config) CommandCooldown() time.Duration {
	return time.Duration(c.CommandCooldownSeconds) * time.Second
}

func (c WizardConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c LevelsConfig) XPCooldown() time.Duration {
	return time.Duration(c.XPCooldownSeconds) * time.Second
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
