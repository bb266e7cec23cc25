package users

import "context"

// Repository はユーザー資格情報ストアの操作を定義します。
type Repository interface {
	// Create はユーザーを1件追加し、生成されたIDを返します。
	// メールアドレスが登録済みの場合は ErrEmailTaken を返します。
	Create(ctx context.Context, user *User) (int64, error)
	// FindByEmail はメールアドレスでユーザーを検索します。
	// 該当なしの場合は ErrNotFound を返します。
	FindByEmail(ctx context.Context, email string) (*User, error)
	// MarkEmailVerified はメール所有確認の完了時刻を記録します。
	MarkEmailVerified(ctx context.Context, email string) error
}
