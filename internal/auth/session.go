// Package auth は認証・認可機能を提供します。
package auth

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName  = "gdlux_session"
	sessionKeyUserID   = "user_id"
	sessionKeyFullName = "fullname"
	sessionKeyEmail    = "email"
	sessionKeyRole     = "role"
	sessionKeyIssuedAt = "issued_at"
)

// セッション寿命は固定24時間。クッキーのMaxAgeと二重で効かせます。
var sessionLifetime = 24 * time.Hour

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(sessionLifetime.Seconds())
}

// Identity はセッションに保持する認証済みユーザーのスナップショットです。
// サインイン時点の値を写し取ったものであり、以降のロール変更は反映されません。
type Identity struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// saveIdentity はスナップショットをセッションに書き込みます。
func saveIdentity(c *gin.Context, ident Identity) error {
	session := sessions.Default(c)
	session.Set(sessionKeyUserID, ident.ID)
	session.Set(sessionKeyFullName, ident.FullName)
	session.Set(sessionKeyEmail, ident.Email)
	session.Set(sessionKeyRole, ident.Role)
	session.Set(sessionKeyIssuedAt, time.Now().Unix())
	return session.Save()
}

// currentIdentity はセッションからスナップショットを読み出します。
// 期限切れのセッションは破棄し、未認証として扱います。
func currentIdentity(c *gin.Context) (Identity, bool) {
	session := sessions.Default(c)

	id, ok := session.Get(sessionKeyUserID).(int64)
	if !ok {
		return Identity{}, false
	}

	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	if issuedAt.IsZero() || time.Since(issuedAt) > sessionLifetime {
		session.Clear()
		_ = session.Save()
		return Identity{}, false
	}

	fullname, _ := session.Get(sessionKeyFullName).(string)
	email, _ := session.Get(sessionKeyEmail).(string)
	role, _ := session.Get(sessionKeyRole).(string)

	return Identity{
		ID:       id,
		FullName: fullname,
		Email:    email,
		Role:     role,
	}, true
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
