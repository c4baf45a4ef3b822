package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

const idChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewULID は時刻順に並ぶ一意なIDを返します（質問IDに使用）
func NewULID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now.UTC()), entropy).String()
}

// NewTownID は7文字のタウンIDを生成します
func NewTownID() (string, error) {
	return randomString(7)
}

// NewUpdatePassword はタウン削除用のパスワードを生成します
func NewUpdatePassword() (string, error) {
	return randomString(24)
}

// NewPlayerID はプレイヤーIDを生成します
func NewPlayerID() string {
	return uuid.NewString()
}

// NewSessionToken はセッショントークンを生成します
func NewSessionToken() string {
	return uuid.NewString()
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = idChars[b[i]%byte(len(idChars))]
	}
	return string(b), nil
}
