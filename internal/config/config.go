package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFrontendOrigin は開発用フロントエンドのオリジン。常にCORSで許可する。
const DefaultFrontendOrigin = "http://localhost:5173"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBConnMaxLifetime time.Duration

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// CORS
	FrontendURL        string
	CORSAllowedOrigins []string

	// Rate Limit（1クライアントあたりの毎分リクエスト数）
	RateLimitGeneral        int
	RateLimitQuestionCreate int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "5001")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.FrontendURL = getEnvString("FRONTEND_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitQuestionCreate = getEnvInt("RATE_LIMIT_QUESTION_CREATE", 20)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	origins := getEnvList("CORS_ALLOWED_ORIGINS", []string{DefaultFrontendOrigin})
	cfg.CORSAllowedOrigins = mergeOrigins(append([]string{DefaultFrontendOrigin, cfg.FrontendURL}, origins...)...)

	return cfg, nil
}

// mergeOrigins は空要素と末尾のスラッシュを除き、出現順を保って重複を取り除く。
func mergeOrigins(origins ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
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
	if err != nil || i <= 0 {
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

// getEnvList はカンマ区切りの環境変数をスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
