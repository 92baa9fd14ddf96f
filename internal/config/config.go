// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OAuthClient はプロバイダーごとのOAuthクライアント認証情報を保持する。
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 機能フラグも起動時に確定し、呼び出し時に環境変数を読み直すことはない。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth（プロバイダーごとのクライアント認証情報）
	Google  OAuthClient
	GitHub  OAuthClient
	Twitter OAuthClient
	Discord OAuthClient

	// Session
	SessionSecret string
	SessionMaxAge time.Duration

	// News aggregation
	NewsSources        []string
	FetchDeadline      time.Duration // 集約フェッチ全体のデッドライン
	ScoreDeadline      time.Duration // パーソナライズスコアリングのデッドライン
	SourceFetchTimeout time.Duration // 個別ソースのHTTPタイムアウト
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Cache
	CacheTTL time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Feature flags
	SubscriptionEnabled bool

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// defaultNewsSources は未設定時に使用するニュースソースのフィードURL。
var defaultNewsSources = []string{
	"https://hnrss.org/frontpage",
	"https://feeds.bbci.co.uk/news/technology/rss.xml",
	"https://www.theverge.com/rss/index.xml",
	"https://feeds.arstechnica.com/arstechnica/index",
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// OAuthクライアント認証情報（未設定のプロバイダーは認証時にエラーとなる）
	cfg.Google = OAuthClient{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}
	cfg.GitHub = OAuthClient{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
	}
	cfg.Twitter = OAuthClient{
		ClientID:     os.Getenv("TWITTER_CLIENT_ID"),
		ClientSecret: os.Getenv("TWITTER_CLIENT_SECRET"),
	}
	cfg.Discord = OAuthClient{
		ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 30*time.Minute)
	cfg.NewsSources = getEnvStringSlice("NEWS_SOURCES", defaultNewsSources)
	// 25秒: 一般的なingressの30秒タイムアウトを下回るように選定
	cfg.FetchDeadline = getEnvDuration("FETCH_DEADLINE", 25*time.Second)
	cfg.ScoreDeadline = getEnvDuration("SCORE_DEADLINE", 3*time.Second)
	cfg.SourceFetchTimeout = getEnvDuration("SOURCE_FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.SubscriptionEnabled = getEnvBool("SUBSCRIPTION_ENABLED", false)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

// ClientFor は指定プロバイダーのOAuthクライアント認証情報を返す。
func (c *Config) ClientFor(provider string) OAuthClient {
	switch provider {
	case "google":
		return c.Google
	case "github":
		return c.GitHub
	case "twitter":
		return c.Twitter
	case "discord":
		return c.Discord
	}
	return OAuthClient{}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
