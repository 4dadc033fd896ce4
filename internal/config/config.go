package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	DBDSN        string
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	FriendCacheTTL time.Duration

	GoogleClientID string
	AppleServiceID string

	FCMProjectID   string
	FCMCredentials string
}

// Load reads configuration from the process environment. When APP_ENV_FILE
// names a file, its entries are applied first without overriding variables
// that are already set.
func Load() (Config, error) {
	if path := os.Getenv("APP_ENV_FILE"); path != "" {
		if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil {
			return Config{}, fmt.Errorf("APP_ENV_FILE: %w", err)
		}
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		DBDSN:          getenv("APP_DB_DSN"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		CookieSecret:   getenv("APP_COOKIE_SECRET"),
		RedisAddr:      strings.TrimSpace(getenv("APP_REDIS_ADDR")),
		RedisPassword:  getenv("APP_REDIS_PASSWORD"),
		GoogleClientID: strings.TrimSpace(getenv("APP_GOOGLE_CLIENT_ID")),
		AppleServiceID: strings.TrimSpace(getenv("APP_APPLE_SERVICE_ID")),
		FCMProjectID:   strings.TrimSpace(getenv("APP_FCM_PROJECT_ID")),
		FCMCredentials: strings.TrimSpace(getenv("APP_FCM_CREDENTIALS")),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = parsePositiveDuration(getenv, "APP_SESSION_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.FriendCacheTTL, err = parsePositiveDuration(getenv, "APP_FRIEND_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(getenv("APP_REDIS_DB")); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			return Config{}, errors.New("APP_REDIS_DB: must be a non-negative integer")
		}
		cfg.RedisDB = db
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if cfg.FCMCredentials != "" && cfg.FCMProjectID == "" {
		return Config{}, errors.New("APP_FCM_PROJECT_ID: required when APP_FCM_CREDENTIALS is set")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

func (c Config) PushEnabled() bool { return c.FCMProjectID != "" && c.FCMCredentials != "" }

func parsePositiveDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

// loadDotEnvFile applies KEY=VALUE lines from path. Comments, blank lines,
// lines without "=" and empty values are skipped; an optional "export "
// prefix and matching surrounding quotes are stripped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))
		if key == "" || value == "" || getenv(key) != "" {
			continue
		}
		if err := setenv(key, value); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return sc.Err()
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
