package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chat_relay_go_backend/internal/services"
)

type Config struct {
	Port            string
	GeminiAPIKey    string
	GeminiModel     string
	DailyLimit      int
	MaxOutputTokens int32
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
	UpstreamTimeout time.Duration
	AllowedOrigins  []string
	ExemptLoopback  bool
	LogLevel        string
	LogFormat       string
}

func NewConfig() *Config {
	return &Config{
		Port:            "3000",
		GeminiModel:     services.DefaultModelName,
		DailyLimit:      services.DefaultDailyLimit,
		MaxOutputTokens: services.DefaultMaxOutputTokens,
		SessionTimeout:  services.DefaultSessionIdleTimeout,
		CleanupInterval: 1 * time.Minute,
		AllowedOrigins:  []string{"*"},
		ExemptLoopback:  true,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds a Config from defaults overridden by environment variables.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := NewConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}
	positiveInt := func(key string) (int, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be a positive integer, got %q", key, v))
			return 0, false
		}
		return n, true
	}

	str("PORT", &cfg.Port)
	str("GEMINI_API_KEY", &cfg.GeminiAPIKey)
	str("GEMINI_MODEL", &cfg.GeminiModel)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	if n, ok := positiveInt("DAILY_LIMIT"); ok {
		cfg.DailyLimit = n
	}
	if v, ok := lookup("MAX_OUTPUT_TOKENS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_OUTPUT_TOKENS: must be a positive 32-bit integer, got %q", v))
		} else {
			cfg.MaxOutputTokens = int32(n)
		}
	}
	duration("SESSION_IDLE_TIMEOUT", &cfg.SessionTimeout)
	duration("CLEANUP_INTERVAL", &cfg.CleanupInterval)
	duration("UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout)

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}
	if v, ok := lookup("EXEMPT_LOOPBACK"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("EXEMPT_LOOPBACK: invalid boolean %q", v))
		} else {
			cfg.ExemptLoopback = b
		}
	}

	if cfg.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set in the environment"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// AllowAllOrigins reports whether CORS should accept any origin.
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
