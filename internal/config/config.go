package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port                     string `envconfig:"PORT" default:"8080"`
	AllowedOrigin            string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	BackendURL               string `envconfig:"BACKEND_URL" default:"http://127.0.0.1:8000/api"`
	BackendTimeoutSeconds    int    `envconfig:"BACKEND_TIMEOUT_SECONDS" default:"10"`
	DatabaseURL              string `envconfig:"DATABASE_URL"`
	RedisAddr                string `envconfig:"REDIS_ADDR"`
	RedisPassword            string `envconfig:"REDIS_PASSWORD"`
	RedisDB                  int    `envconfig:"REDIS_DB" default:"0"`
	RotationKey              string `envconfig:"ROTATION_KEY" default:"promo_rotation"`
	RotationWindowMinutes    int    `envconfig:"ROTATION_WINDOW_MINUTES" default:"120"`
	DashboardCacheTTLSeconds int    `envconfig:"DASHBOARD_CACHE_TTL_SECONDS" default:"30"`
	AuthSecret               string `envconfig:"AUTH_SECRET"`
	LogLevel                 string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.BackendURL = strings.TrimSpace(cfg.BackendURL)
	cfg.RotationKey = strings.TrimSpace(cfg.RotationKey)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.RotationWindowMinutes < 1 {
		return errors.New("ROTATION_WINDOW_MINUTES must be at least 1")
	}
	if c.BackendTimeoutSeconds < 1 {
		return errors.New("BACKEND_TIMEOUT_SECONDS must be at least 1")
	}
	if c.DashboardCacheTTLSeconds < 0 {
		return errors.New("DASHBOARD_CACHE_TTL_SECONDS must not be negative")
	}
	if c.RotationKey == "" {
		return errors.New("ROTATION_KEY must not be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be at least 32 characters when set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) RotationWindow() time.Duration {
	return time.Duration(c.RotationWindowMinutes) * time.Minute
}

func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

func (c Config) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}
