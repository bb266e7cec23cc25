package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin は管理者アカウントが存在しない場合に作成します（冪等）。
// パスワードは設定から注入されたものだけを使い、ソースに埋め込みません。
func EnsureAdmin(ctx context.Context, repo Repository, email, password, fullname string, cost int) error {
	if email == "" || password == "" {
		return errors.New("admin email and password are required")
	}

	_, err := repo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = repo.Create(ctx, &User{
		FullName:     fullname,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
	})
	// 同時起動した別プロセスが先に作成した場合は成功扱い
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}
