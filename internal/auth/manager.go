package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/gdlux-auth/internal/config"
	"github.com/yourusername/gdlux-auth/internal/users"
)

// UserStore は資格情報ストアに求める操作です。
type UserStore interface {
	Create(ctx context.Context, user *users.User) (int64, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
}

// OTPStore は保留中の確認コードの発行と消費を提供します。
type OTPStore interface {
	Issue(ctx context.Context, email string) (string, error)
	Consume(ctx context.Context, email, code string) (bool, error)
}

// OTPMailer は確認コードの配送をスケジュールします。
type OTPMailer interface {
	Schedule(ctx context.Context, to, fullname, code string) error
}

// Manager は認証処理とその依存をまとめた構造体です。
type Manager struct {
	cfg    *config.Config
	store  UserStore
	otps   OTPStore
	mailer OTPMailer
	logger *log.Logger
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, store UserStore, otps OTPStore, mailer OTPMailer, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		otps:   otps,
		mailer: mailer,
		logger: logger,
	}
}

type signupRequest struct {
	FullName string `json:"fullname" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type signinRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup は POST /signup のハンドラーです。
// ユーザー行を作成し、メール所有確認用のコードを発行します。
func (m *Manager) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "fullname, email, and password are required",
		})
		return
	}

	// 事前チェックは親切な409を返すためのもの。
	// 最終的な一意性はストアのUNIQUE制約が保証します。
	_, err := m.store.FindByEmail(c.Request.Context(), req.Email)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "EMAIL_TAKEN",
			"message": "Email already registered",
		})
		return
	}
	if !errors.Is(err, users.ErrNotFound) {
		m.storeError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), m.cfg.BcryptCost)
	if err != nil {
		m.storeError(c, err)
		return
	}

	id, err := m.store.Create(c.Request.Context(), &users.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         users.RoleUser,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"code":    "EMAIL_TAKEN",
				"message": "Email already registered",
			})
			return
		}
		m.storeError(c, err)
		return
	}

	// コードの発行と配送は登録の成否に影響させない
	m.issueOTP(c.Request.Context(), req.Email, req.FullName)

	c.JSON(http.StatusOK, gin.H{
		"message": "Signup successful",
		"user_id": id,
	})
}

// VerifyOTP は POST /verify-otp のハンドラーです。
// 不一致・期限切れ・未発行は同じレスポンスに畳み込み、
// どのメールアドレスが登録を試みたかを漏らしません。
func (m *Manager) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidOTP(c)
		return
	}

	ok, err := m.otps.Consume(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		m.storeError(c, err)
		return
	}
	if !ok {
		invalidOTP(c)
		return
	}

	if err := m.store.MarkEmailVerified(c.Request.Context(), req.Email); err != nil {
		m.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully!",
	})
}

// Signin は POST /signin のハンドラーです。
func (m *Manager) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email and password are required",
		})
		return
	}

	user, err := m.store.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// ユーザー不在とパスワード不一致は同一レスポンスにする
			invalidCredentials(c)
			return
		}
		m.storeError(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		invalidCredentials(c)
		return
	}

	if err := saveIdentity(c, Identity{
		ID:       user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     string(user.Role),
	}); err != nil {
		m.logger.Printf("failed to save session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "Failed to save session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Signed in",
		"fullname": user.FullName,
		"role":     string(user.Role),
	})
}

// Signout は POST /signout のハンドラーです。
// アクティブなセッションがなくても成功します。
func (m *Manager) Signout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		m.logger.Printf("failed to clear session: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Signed out",
	})
}

// Me は GET /auth/me のハンドラーです。
// 資格情報ストアには触れず、セッションのスナップショットだけを返します。
func (m *Manager) Me(c *gin.Context) {
	ident, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"authenticated": false,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          ident,
	})
}

// issueOTP はコードを発行して配送ジョブを投入します。失敗はログのみ。
func (m *Manager) issueOTP(ctx context.Context, email, fullname string) {
	code, err := m.otps.Issue(ctx, email)
	if err != nil {
		m.logger.Printf("failed to issue otp for %s: %v", email, err)
		return
	}
	if err := m.mailer.Schedule(ctx, email, fullname, code); err != nil {
		m.logger.Printf("failed to schedule otp mail for %s: %v", email, err)
	}
}

// storeError はコラボレーター障害を詳細を伏せた500に写像します。
func (m *Manager) storeError(c *gin.Context, err error) {
	m.logger.Printf("store error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "STORE_ERROR",
		"message": "Server error",
	})
}

func invalidCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    "INVALID_CREDENTIALS",
		"message": "Invalid credentials",
	})
}

func invalidOTP(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_OTP",
		"message": "Invalid or expired OTP",
	})
}
