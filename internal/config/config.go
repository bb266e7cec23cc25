// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// セッション設定
	SessionSecret string // セッション署名用の秘密鍵（必須、デフォルトなし）

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ストア設定
	DatabaseURL   string // PostgreSQL接続URL（必須）
	QueueRedisURL string // OTP保留ストアとAsynq用のRedis接続URL

	// 認証設定
	BcryptCost       int // bcryptのコストファクター
	OTPExpireMinutes int // OTPの有効期限（分）

	// メール送信設定（releaseモードでは必須）
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string // 送信元アドレス

	// 管理者シード設定（未設定の場合はシードをスキップ）
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// セッション設定（デフォルトを置かないこと）
		SessionSecret: getEnv("SESSION_SECRET", ""),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5500,http://127.0.0.1:5500"),

		// ストア設定
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),

		// 認証設定
		BcryptCost:       getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost),
		OTPExpireMinutes: getEnvAsInt("OTP_EXPIRE_MINUTES", 10),

		// メール送信設定
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		// 管理者シード設定
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Site Admin"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// 秘密情報と接続先はモードに関わらず必須
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.QueueRedisURL == "" {
		return fmt.Errorf("QUEUE_REDIS_URL is required")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.OTPExpireMinutes <= 0 {
		return fmt.Errorf("OTP_EXPIRE_MINUTES must be positive")
	}

	// releaseモードではメール送信設定も必須（debugではログ出力にフォールバック）
	if c.GinMode == "release" {
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in release mode")
		}
		if c.SMTPUsername == "" {
			return fmt.Errorf("SMTP_USERNAME is required in release mode")
		}
		if c.SMTPPassword == "" {
			return fmt.Errorf("SMTP_PASSWORD is required in release mode")
		}
		if c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
