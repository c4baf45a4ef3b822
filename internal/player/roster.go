package player

import (
	"errors"
	"slices"
)

// カスタムエラー定義
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrDuplicatePlayer   = errors.New("player already in town")
	ErrDuplicateToken    = errors.New("session token already in use")
	ErrNotInBreakoutRoom = errors.New("player is not assigned to a breakout room")
)

// Roster はタウン全体のセッション台帳です
// プレイヤー一覧と「ブレイクアウトルームに割り当てられた学生」の集合を持ち、
// 必要なエリアにはコンストラクタで渡します
// 並行アクセスは想定していません（Town のロックで保護します）
type Roster struct {
	players    map[string]*Player // プレイヤーIDをキーとしたプレイヤー
	byToken    map[string]*Player // セッショントークンをキーとしたプレイヤー
	order      []string           // 参加順
	inBreakout map[string]string  // プレイヤーID → ブレイクアウトルームID
}

// NewRoster は空の台帳を作成します
func NewRoster() *Roster {
	return &Roster{
		players:    make(map[string]*Player),
		byToken:    make(map[string]*Player),
		inBreakout: make(map[string]string),
	}
}

func (r *Roster) Add(p *Player) error {
	if _, exists := r.players[p.ID]; exists {
		return ErrDuplicatePlayer
	}
	if _, exists := r.byToken[p.SessionToken]; exists {
		return ErrDuplicateToken
	}
	r.players[p.ID] = p
	r.byToken[p.SessionToken] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Remove はプレイヤーを台帳から削除します
// ブレイクアウトルームの割り当ても解除されます
func (r *Roster) Remove(id string) (*Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	delete(r.players, id)
	delete(r.byToken, p.SessionToken)
	delete(r.inBreakout, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return p, nil
}

func (r *Roster) Get(id string) (*Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

func (r *Roster) ByToken(token string) (*Player, error) {
	p, ok := r.byToken[token]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

// Find はIDの一覧に対応するプレイヤーを返します（存在しないIDは無視）
func (r *Roster) Find(ids []string) []*Player {
	out := make([]*Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// All は参加順のプレイヤー一覧を返します
func (r *Roster) All() []*Player {
	return r.Find(r.order)
}

// IDs は参加順のプレイヤーID一覧を返します
func (r *Roster) IDs() []string {
	return slices.Clone(r.order)
}

func (r *Roster) Len() int { return len(r.players) }

// MarkInBreakout はプレイヤーをブレイクアウトルームに割り当て済みとして記録します
func (r *Roster) MarkInBreakout(ids []string, roomID string) {
	for _, id := range ids {
		if _, ok := r.players[id]; ok {
			r.inBreakout[id] = roomID
		}
	}
}

// ReleaseBreakout は roomID への割り当てを解除します
// 別の部屋に割り当て直されたIDと未割り当てのIDは無視します
func (r *Roster) ReleaseBreakout(ids []string, roomID string) {
	for _, id := range ids {
		if r.inBreakout[id] == roomID {
			delete(r.inBreakout, id)
		}
	}
}

// BreakoutRoom はプレイヤーが割り当てられたブレイクアウトルームのIDを返します
func (r *Roster) BreakoutRoom(id string) (string, error) {
	roomID, ok := r.inBreakout[id]
	if !ok {
		return "", ErrNotInBreakoutRoom
	}
	return roomID, nil
}
