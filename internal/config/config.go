package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type DatabaseConfig struct {
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"` // "mongo" or "memory"
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether media URLs can be signed.
func (c S3Config) Enabled() bool {
	return c.BucketName != "" && c.AccessKeyID != ""
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// MaxAuthAge rejects init-data signed longer ago than this. Zero disables the check.
	MaxAuthAge time.Duration `mapstructure:"max_auth_age"`
}

type AppConfig struct {
	// Timezone is the IANA zone used for calendar days (streaks, schedule, early bird).
	Timezone string `mapstructure:"timezone"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CacheConfig struct {
	SizeBytes int           `mapstructure:"size_bytes"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Location resolves App.Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var (
	ErrMissingJWTSecret   = errors.New("jwt.secret (JWT_SECRET) must be set")
	ErrMissingBotToken    = errors.New("telegram.bot_token (TELEGRAM_BOT_TOKEN) must be set")
	ErrUnknownDriver      = errors.New("database.driver must be \"mongo\" or \"memory\"")
	ErrUnknownTimezone    = errors.New("app.timezone is not a known IANA zone")
	ErrNonPositiveExpires = errors.New("jwt.expiration must be positive")
)

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	if c.JWT.Expiration <= 0 {
		return ErrNonPositiveExpires
	}
	if c.Telegram.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.Database.Driver != DriverMongo && c.Database.Driver != DriverMemory {
		return ErrUnknownDriver
	}
	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			return ErrUnknownTimezone
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "fittrainer")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.expiration", "720h") // 30 days
	v.SetDefault("telegram.max_auth_age", "0s")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.size_bytes", 16*1024*1024)
	v.SetDefault("cache.ttl", "5m")
}

// Env-only deployments need every key known to viper before Unmarshal.
var envKeys = []string{
	"jwt.secret",
	"telegram.bot_token",
	"s3.endpoint",
	"s3.region",
	"s3.access_key_id",
	"s3.secret_access_key",
	"s3.bucket_name",
}

// LoadConfig reads configuration from file or environment variables.
// Nested keys map to env vars with dots replaced, e.g. jwt.expiration -> JWT_EXPIRATION.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	for _, key := range envKeys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Config file is optional; env vars and defaults are enough.
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings ("60m", "720h") decode straight into time.Duration.
	err = v.Unmarshal(&config)
	if err != nil {
		return
	}
	config.Database.Driver = strings.ToLower(config.Database.Driver)
	return config, nil
}
