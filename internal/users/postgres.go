package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQLの一意制約違反コード
const pgUniqueViolation = "23505"

// PostgresRepository はPostgreSQLを使ったRepository実装です。
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository はPostgresRepositoryを作成します。
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create はユーザーを1件追加し、生成されたIDを返します。
func (r *PostgresRepository) Create(ctx context.Context, user *User) (int64, error) {
	query :=
		`INSERT INTO users (fullname, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING user_id
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		user.FullName, user.Email, user.PasswordHash, user.Role).Scan(&id)

	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query :=
		`SELECT user_id, fullname, email, password_hash, role, email_verified_at, created_at
		 FROM users
		 WHERE email = $1
		 `

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
		&user.Role, &user.EmailVerifiedAt, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// MarkEmailVerified はメール所有確認の完了時刻を記録します。
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email string) error {
	query :=
		`UPDATE users SET email_verified_at = now()
		 WHERE email = $1 AND email_verified_at IS NULL
		 `

	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーがUNIQUE制約違反かどうかを判定します。
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
