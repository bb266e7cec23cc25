// Package users はユーザー資格情報ストアを提供します。
package users

import "time"

// Role はユーザーの権限レベルを表します。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User はusersテーブルの1行を表します。
// PasswordHashはbcryptハッシュであり、APIレスポンスには決して含めません。
type User struct {
	ID              int64
	FullName        string
	Email           string
	PasswordHash    string
	Role            Role
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}
