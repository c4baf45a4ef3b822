// Package clock は時刻取得を抽象化します
// 本番コードは Real() を、テストは Fake() を注入して質問の受付時刻などを決定的にします
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース
type Clock interface {
	Now() time.Time
}

// Real は time パッケージに委譲する Clock を返します
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// FakeClock はテスト用の Clock です
// Advance または Set を呼ぶまで時刻は進みません
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake は指定時刻で初期化された FakeClock を返します
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now は現在の偽の時刻を返します
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance は時刻を d だけ進めます
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set は時刻を t に設定します
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
