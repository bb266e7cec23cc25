// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourusername/gdlux-auth/internal/auth"
	"github.com/yourusername/gdlux-auth/internal/config"
	"github.com/yourusername/gdlux-auth/internal/users"
)

func main() {
	// 設定の読み込み（秘密鍵・接続先が欠けていればここで落とす）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// ストアのブートストラップはリスナーを開く前に同期的に済ませる。
	// ルートが見える時点でハンドルは常に初期化済み。
	db, repo, err := setupStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	// OTP保留ストアとメール配送ワーカーの配線
	otpStore, err := setupOTPStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize otp store: %v", err)
	}
	mailManager, err := setupMail(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize mail manager: %v", err)
	}
	mailManager.StartWorkers()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定（プロセス内メモリ、クッキー署名鍵は必須）
	store := memstore.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	authManager := auth.NewManager(cfg, repo, otpStore, mailManager, log.Default())
	setupRoutes(router, authManager, db)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting auth API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupStore はDB接続を開き、マイグレーションと管理者シードを適用します。
func setupStore(cfg *config.Config) (*sql.DB, *users.PostgresRepository, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, err
	}
	if err := users.RunMigrations(ctx, db); err != nil {
		return nil, nil, err
	}

	repo := users.NewPostgresRepository(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := users.EnsureAdmin(ctx, repo, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName, cfg.BcryptCost); err != nil {
			return nil, nil, err
		}
	} else {
		log.Printf("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
	}

	return db, repo, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーを返します。
// ストアに到達できない間は503を返します。
func handleHealth(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": "gdlux-auth-api",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "gdlux-auth-api",
			"version": "0.1.0",
		})
	}
}

// handleSecureCheck は管理者専用の疎通確認エンドポイントです。
func handleSecureCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Admin access granted",
	})
}

// setupRoutes は認証周りの配線を行います。
func setupRoutes(router *gin.Engine, authManager *auth.Manager, db *sql.DB) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth(db))

	router.POST("/signup", authManager.Signup)
	router.POST("/verify-otp", authManager.VerifyOTP)
	router.POST("/signin", authManager.Signin)
	router.POST("/signout", authManager.Signout)
	router.GET("/auth/me", authManager.Me)

	admin := router.Group("/admin")
	admin.Use(authManager.RequireAdmin())
	{
		admin.GET("/secure-check", handleSecureCheck)
	}
}
