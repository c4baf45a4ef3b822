// Package config はアプリケーションの設定を管理します
// 環境変数（と .env ファイル）から設定を読み込み、デフォルト値を提供します
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIAddr      = ":8080" // APIサーバーのデフォルトリッスンアドレス
	defaultTownTTLSec   = 60 * 60 // タウンのデフォルトTTL（1時間）
	defaultReapInterval = 60      // 期限切れタウンの掃除間隔（秒）
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	APIAddr       string        // APIサーバーのリッスンアドレス
	RedisAddr     string        // Redisの接続先（空ならメモリ上のタウンディレクトリ）
	TownTTL       int           // タウンのTTL（秒）
	AllowedOrigin []string      // CORSで許可するオリジン一覧
	TAPassword    string        // TA昇格用の共有パスワード（空なら昇格不可）
	LayoutPath    string        // タウンのレイアウトファイル（空なら組み込みのレイアウト）
	ReapInterval  time.Duration // 期限切れタウンの掃除間隔
}

// Load は環境変数から設定を読み込みます
// カレントディレクトリに .env があれば先に読み込みます（既存の環境変数は上書きしません）
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}
	return Config{
		APIAddr:       envOr("API_ADDR", defaultAPIAddr),
		RedisAddr:     envOr("REDIS_ADDR", ""),
		TownTTL:       envInt("TOWN_TTL_SEC", defaultTownTTLSec),
		AllowedOrigin: envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		TAPassword:    envOr("TA_PASSWORD", ""),
		LayoutPath:    envOr("TOWN_LAYOUT", ""),
		ReapInterval:  time.Duration(envInt("REAP_INTERVAL_SEC", defaultReapInterval)) * time.Second,
	}
}

// envOr は環境変数から文字列を取得します
// 環境変数が設定されていない場合はデフォルト値を返します
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt は環境変数から正の整数を取得します
// 環境変数が設定されていない、または無効な値の場合はデフォルト値を返します
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

// envCSV は環境変数からカンマ区切りの文字列リストを取得します
// 環境変数が設定されていない、または空の場合はデフォルト値を返します
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
