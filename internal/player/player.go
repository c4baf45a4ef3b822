// Package player はタウン内のプレイヤーとTA、およびタウン全体のセッション台帳を提供します
package player

import (
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/queue"
)

// Role はプレイヤーの役割です
type Role int

const (
	RoleStudent Role = iota
	RoleTA
)

func (r Role) String() string {
	if r == RoleTA {
		return "ta"
	}
	return "student"
}

// Player はタウンに接続中の1セッションです
type Player struct {
	ID           string          // プレイヤーID
	SessionToken string          // セッショントークン（WebSocket接続時の認証に使用）
	UserName     string          // 表示名
	Location     models.Location // 現在位置（InteractableID に現在のエリア）
	role         Role
	ta           *TAState // role == RoleTA のときのみ非nil
}

// TAState はTAだけが持つ状態です
type TAState struct {
	Questions      []*queue.Question // 担当中の質問（他のTAと共有しない）
	BreakoutRoomID string            // 担当中のブレイクアウトルーム
}

// New は学生として新しいプレイヤーを作成します
func New(id, token, userName string, loc models.Location) *Player {
	return &Player{ID: id, SessionToken: token, UserName: userName, Location: loc, role: RoleStudent}
}

func (p *Player) Role() Role { return p.role }

func (p *Player) IsTA() bool { return p.role == RoleTA }

// TA はTAの状態を返します。TAでない場合は false
func (p *Player) TA() (*TAState, bool) {
	if p.role != RoleTA {
		return nil, false
	}
	return p.ta, true
}

// PromoteToTA はプレイヤーをTAにします。既にTAなら false
func (p *Player) PromoteToTA() bool {
	if p.role == RoleTA {
		return false
	}
	p.role = RoleTA
	p.ta = &TAState{}
	return true
}

// Assigned はTAが質問またはブレイクアウトルームを担当中かを返します
func (s *TAState) Assigned() bool {
	return s.BreakoutRoomID != "" || len(s.Questions) > 0
}

// Release は担当中の質問とルームを解除します
func (s *TAState) Release() {
	s.Questions = nil
	s.BreakoutRoomID = ""
}

// Model はクライアント向けのモデルに変換します
func (p *Player) Model() models.Player {
	return models.Player{ID: p.ID, UserName: p.UserName, Location: p.Location, IsTA: p.IsTA()}
}

// TAModel はTA向けのモデルに変換します。TAでない場合は false
func (p *Player) TAModel() (models.TA, bool) {
	state, ok := p.TA()
	if !ok {
		return models.TA{}, false
	}
	m := models.TA{
		ID:             p.ID,
		UserName:       p.UserName,
		Location:       p.Location,
		BreakoutRoomID: state.BreakoutRoomID,
	}
	if len(state.Questions) > 0 {
		m.Questions = queue.Models(state.Questions)
	}
	return m, true
}
