package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/gdlux-auth/internal/users"
)

// ContextIdentityKey は、ハンドラー間で認証済みスナップショットを共有するためのキーです。
const ContextIdentityKey = "auth.identity"

// RequireLogin はセッションを検証するミドルウェアを返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := currentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Unauthorized",
			})
			return
		}
		c.Set(ContextIdentityKey, ident)
		c.Next()
	}
}

// RequireAdmin はadminロールのセッションだけを通すミドルウェアを返します。
// セッションなしは401、ロール不足は403で区別します。
func (m *Manager) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := currentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Unauthorized",
			})
			return
		}
		if ident.Role != string(users.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "FORBIDDEN",
				"message": "Forbidden",
			})
			return
		}
		c.Set(ContextIdentityKey, ident)
		c.Next()
	}
}
