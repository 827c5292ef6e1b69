package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port            string        `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`
	Database struct {
		Host           string `mapstructure:"host"`
		Port           string `mapstructure:"port"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		Name           string `mapstructure:"name"`
		SSLMode        string `mapstructure:"sslmode"`
		MigrationsPath string `mapstructure:"migrations_path"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	JWT struct {
		Secret string `mapstructure:"secret"`
		Access struct {
			TTLSeconds int64  `mapstructure:"ttl_seconds"`
			CookieName string `mapstructure:"cookie_name"`
		} `mapstructure:"access"`
		Refresh struct {
			TTLSeconds int64  `mapstructure:"ttl_seconds"`
			CookieName string `mapstructure:"cookie_name"`
			CookiePath string `mapstructure:"cookie_path"`
			HashPepper string `mapstructure:"hash_pepper"`
		} `mapstructure:"refresh"`
	} `mapstructure:"jwt"`
	Cookie struct {
		Secure   bool   `mapstructure:"secure"`
		SameSite string `mapstructure:"same_site"`
	} `mapstructure:"cookie"`
	RateLimit struct {
		Capacity      int           `mapstructure:"capacity"`
		Window        time.Duration `mapstructure:"window"`
		Prefixes      []string      `mapstructure:"prefixes"`
		IdleTTL       time.Duration `mapstructure:"idle_ttl"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"rate_limit"`
	Security struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"security"`
	Cache struct {
		NotesTTL time.Duration `mapstructure:"notes_ttl"`
	} `mapstructure:"cache"`
}

var AppConfig Config

// AccessTTL returns the access-token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.Access.TTLSeconds) * time.Second
}

// RefreshTTL returns the refresh-token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.Refresh.TTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "websecurity")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "file://db/migrations")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access.ttl_seconds", 3600)
	v.SetDefault("jwt.access.cookie_name", "access_token")
	v.SetDefault("jwt.refresh.ttl_seconds", 604800)
	v.SetDefault("jwt.refresh.cookie_name", "refresh_token")
	v.SetDefault("jwt.refresh.cookie_path", "/auth")
	v.SetDefault("jwt.refresh.hash_pepper", "")

	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.same_site", "Strict")

	v.SetDefault("rate_limit.capacity", 20)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.prefixes", []string{"/auth/", "/api/"})
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)
	v.SetDefault("rate_limit.sweep_interval", time.Minute)

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("cache.notes_ttl", 5*time.Minute)
}

// LoadConfig reads config.yml from path (if present), overlays environment
// variables such as JWT_SECRET or DATABASE_HOST, and stores the result in
// AppConfig.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	AppConfig = cfg
	return &cfg, nil
}
