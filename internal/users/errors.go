package users

import "errors"

var (
	// ErrNotFound は該当するユーザーが存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken はメールアドレスが既に登録済みであることを表します。
	// アプリケーション側の事前チェックをすり抜けた場合でも、
	// ストア側のUNIQUE制約違反をこのエラーに写像します。
	ErrEmailTaken = errors.New("email already registered")
)
