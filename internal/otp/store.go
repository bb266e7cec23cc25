// Package otp はメール所有確認用のワンタイムコードを管理します。
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	codeDigits   = 6
)

// 照合と削除を1操作で行うスクリプト。
// 不一致の場合はエントリを残し、再試行できるようにします。
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// Store は保留中のコードをRedisに保存します。
// エントリはTTLで自動失効し、同一メールアドレスへの再発行は上書きになります。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// Issue は新しいコードを生成して保存し、生成したコードを返します。
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, otpKey(email), code, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Consume は提出されたコードを照合し、一致した場合のみエントリを削除します。
// 期限切れ・未発行・不一致は呼び出し側からは区別できません。
func (s *Store) Consume(ctx context.Context, email, code string) (bool, error) {
	if email == "" || code == "" {
		return false, nil
	}
	n, err := consumeScript.Run(ctx, s.rdb, []string{otpKey(email)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// generateCode は0埋め6桁のランダムなコードを生成します。
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func otpKey(email string) string {
	return otpKeyPrefix + email
}
