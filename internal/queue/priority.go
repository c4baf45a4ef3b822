// Package queue は質問（チケット）の待ち行列と並び順のルールを提供します
//
// 並び順は「カテゴリ→優先順位」の表で決まります
// 値が小さいカテゴリほど先に対応され、同じ優先順位の中では先に質問した人が先です
package queue

import (
	"cmp"
	"slices"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
)

// Ticket はキューに入れられる要素です
type Ticket interface {
	TicketID() string       // 一意なID
	TicketCategory() string // 優先順位表のキー
	TicketTime() time.Time  // 作成時刻
}

// Priorities はカテゴリごとの優先順位表です
// 更新のたびにリビジョンが進み、キューはそれを見てヒープを組み直します
// 並行アクセスは想定していません（呼び出し側のロックで保護します）
type Priorities struct {
	ranks    map[string]int
	revision uint64
}

// NewPriorities は優先順位表を作成します
func NewPriorities(ranks map[string]int) *Priorities {
	p := &Priorities{ranks: make(map[string]int, len(ranks))}
	for k, v := range ranks {
		p.ranks[k] = v
	}
	return p
}

// Rank はカテゴリの優先順位を返します（nil の表はすべて順位なし）
func (p *Priorities) Rank(category string) (int, bool) {
	if p == nil {
		return 0, false
	}
	r, ok := p.ranks[category]
	return r, ok
}

func (p *Priorities) Set(category string, rank int) {
	p.ranks[category] = rank
	p.revision++
}

func (p *Priorities) Delete(category string) {
	if _, ok := p.ranks[category]; !ok {
		return
	}
	delete(p.ranks, category)
	p.revision++
}

// Replace は表全体を置き換えます
func (p *Priorities) Replace(ranks map[string]int) {
	p.ranks = make(map[string]int, len(ranks))
	for k, v := range ranks {
		p.ranks[k] = v
	}
	p.revision++
}

// Revision は表の更新回数を返します
func (p *Priorities) Revision() uint64 {
	if p == nil {
		return 0
	}
	return p.revision
}

func (p *Priorities) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ranks)
}

// Clone は独立したコピーを返します
func (p *Priorities) Clone() *Priorities {
	if p == nil {
		return NewPriorities(nil)
	}
	return NewPriorities(p.ranks)
}

// Entries は優先順位の昇順（同順位はキー順）で並べた一覧を返します
func (p *Priorities) Entries() []models.PriorityEntry {
	out := make([]models.PriorityEntry, 0, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.ranks {
		out = append(out, models.PriorityEntry{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b models.PriorityEntry) int {
		if c := cmp.Compare(a.Value, b.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// PrioritiesFromEntries はクライアントから受け取った一覧を表に変換します
func PrioritiesFromEntries(entries []models.PriorityEntry) map[string]int {
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}
