package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SessionStoreDB    = "db"
	SessionStoreRedis = "redis"

	CodecJSON  = "json"
	CodecComma = "comma"
)

var (
	Module = fx.Provide(NewConfig)
)

type (
	Config struct {
		Host  string `mapstructure:"HOST"`
		Port  string `mapstructure:"PORT"`
		Debug bool   `mapstructure:"DEBUG"`

		DBDriver   string `mapstructure:"DB_DRIVER"`
		DBPath     string `mapstructure:"DB_PATH"`
		DBHost     string `mapstructure:"DB_HOST"`
		DBPort     string `mapstructure:"DB_PORT"`
		DBUser     string `mapstructure:"DB_USER"`
		DBPassword string `mapstructure:"DB_PASSWORD"`
		DBName     string `mapstructure:"DB_NAME"`
		DBSSLMode  string `mapstructure:"DB_SSL_MODE"`

		BcryptCost    int           `mapstructure:"BCRYPT_COST"`
		SessionStore  string        `mapstructure:"SESSION_STORE"`
		SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
		RedisAddr     string        `mapstructure:"REDIS_ADDR"`
		RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
		RedisDB       int           `mapstructure:"REDIS_DB"`

		BookmarkCodec string `mapstructure:"BOOKMARK_CODEC"`
		RequireToken  bool   `mapstructure:"REQUIRE_TOKEN"`
	}
)

var defaults = map[string]interface{}{
	"HOST":  "0.0.0.0",
	"PORT":  "1323",
	"DEBUG": false,

	"DB_DRIVER":   DriverSQLite,
	"DB_PATH":     "data.db",
	"DB_HOST":     "0.0.0.0",
	"DB_PORT":     "5432",
	"DB_USER":     "user",
	"DB_PASSWORD": "password",
	"DB_NAME":     "db",
	"DB_SSL_MODE": sslModeDisable,

	"BCRYPT_COST":    12,
	"SESSION_STORE":  SessionStoreDB,
	"SESSION_TTL":    24 * time.Hour,
	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"BOOKMARK_CODEC": CodecJSON,
	"REQUIRE_TOKEN":  true,
}

// NewConfig reads BOOKMARKER_* environment variables on top of the defaults.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKMARKER")

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// PostgresDSN is only meaningful when DBDriver is postgres.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func validate(cfg *Config) error {
	if !oneOf(cfg.DBSSLMode, sslModeDisable, sslModeRequire) {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if !oneOf(cfg.DBDriver, DriverSQLite, DriverPostgres) {
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}
	if cfg.DBDriver == DriverSQLite && cfg.DBPath == "" {
		return errors.New("DB path is empty")
	}
	if !oneOf(cfg.SessionStore, SessionStoreDB, SessionStoreRedis) {
		return errors.New(fmt.Sprintf("session store is invalid: %s", cfg.SessionStore))
	}
	if cfg.SessionTTL <= 0 {
		return errors.New(fmt.Sprintf("session TTL must be positive: %s", cfg.SessionTTL))
	}
	if !oneOf(cfg.BookmarkCodec, CodecJSON, CodecComma) {
		return errors.New(fmt.Sprintf("bookmark codec is invalid: %s", cfg.BookmarkCodec))
	}
	// bounds of golang.org/x/crypto/bcrypt
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return errors.New(fmt.Sprintf("bcrypt cost out of range: %d", cfg.BcryptCost))
	}
	return nil
}

func oneOf(value string, valid ...string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}
