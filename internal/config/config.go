package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string

	// Session
	RedisURL      string
	SessionMaxAge int

	// Guard
	GuardResolveWait     time.Duration
	GuardRefreshInterval time.Duration
	GuardRegistrySize    int

	// Upstream
	HTTPClientTimeout time.Duration

	// Rate Limit (requests per minute)
	RateLimitLogin   int
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// minAnonKeyLength より短いAPIキーは設定誤りの可能性があるため警告する。
const minAnonKeyLength = 50

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SupabaseURL = getEnvFallback("SUPABASE_URL", "VITE_SUPABASE_URL")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = getEnvFallback("SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := validateSupabaseURL(cfg.SupabaseURL); err != nil {
		return nil, err
	}
	if err := validateAnonKey(cfg.SupabaseAnonKey); err != nil {
		return nil, err
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.GuardResolveWait = getEnvDuration("GUARD_RESOLVE_WAIT", 2*time.Second)
	cfg.GuardRefreshInterval = getEnvDuration("GUARD_REFRESH_INTERVAL", 30*time.Second)
	cfg.GuardRegistrySize = getEnvInt("GUARD_REGISTRY_SIZE", 1024)
	cfg.HTTPClientTimeout = getEnvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// SessionTTL はセッションの保持期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// validateSupabaseURL はバックエンドURLが絶対URLでありプレースホルダーでないことを確認する。
func validateSupabaseURL(raw string) error {
	if strings.Contains(raw, "your_supabase") || strings.Contains(raw, "your-project-ref") {
		return fmt.Errorf("SUPABASE_URL is still a placeholder: %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("SUPABASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SUPABASE_URL must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("SUPABASE_URL must include a host, got %q", raw)
	}
	return nil
}

// validateAnonKey はAPIキーがプレースホルダーでないことを確認する。
func validateAnonKey(key string) error {
	if strings.Contains(key, "your") {
		return fmt.Errorf("SUPABASE_ANON_KEY is still a placeholder")
	}
	if len(key) < minAnonKeyLength {
		slog.Warn("SUPABASE_ANON_KEY looks too short, check the configured key",
			slog.Int("length", len(key)),
		)
	}
	return nil
}

func getEnvFallback(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
