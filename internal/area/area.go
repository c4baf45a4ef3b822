// Package area はタウン内の空間エリアを提供します
//
// すべてのエリアは Area インターフェースを実装し、Kind で種別を判別します
// 会話エリア、オフィスアワーエリア、ブレイクアウトルームの3種類があります
package area

import (
	"slices"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
)

// Kind はエリアの種別です
type Kind string

const (
	KindConversation Kind = models.AreaTypeConversation
	KindOfficeHours  Kind = models.AreaTypeOfficeHours
	KindBreakoutRoom Kind = models.AreaTypeBreakoutRoom
)

// BoundingBox はエリアの矩形です
type BoundingBox struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Contains は点 (x, y) が矩形内にあるかを返します（右端・下端は含みません）
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Overlaps は2つの矩形が重なっているかを返します
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.X < o.X+o.Width && o.X < b.X+b.Width && b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}

// Center は矩形の中心を返します
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area はすべてのエリアが実装する機能です
type Area interface {
	ID() string
	Kind() Kind
	BoundingBox() BoundingBox
	Occupants() []string
	IsActive() bool
	// Add はプレイヤーをエリアに入れ、プレイヤーの現在エリアを更新します
	Add(p *player.Player)
	// Remove はプレイヤーをエリアから出します
	Remove(p *player.Player)
	// Model はクライアント向けのモデルを返します
	Model() any
}

// Event はエリアが発行するイベントです
type Event struct {
	Type       models.EventType
	Recipients []string // 送信先プレイヤーID（nil の場合はタウン全員）
	Payload    any
}

// Emitter はエリアのイベントを配信します
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc は関数を Emitter として使うためのアダプタです
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Discard はイベントを捨てる Emitter です
var Discard Emitter = EmitterFunc(func(Event) {})

// occupancy は全エリア共通の在室者管理です
type occupancy struct {
	id        string
	box       BoundingBox
	occupants []string // 入室順
	emitter   Emitter
}

func newOccupancy(id string, box BoundingBox, em Emitter) occupancy {
	if em == nil {
		em = Discard
	}
	return occupancy{id: id, box: box, emitter: em}
}

func (o *occupancy) ID() string { return o.id }

func (o *occupancy) BoundingBox() BoundingBox { return o.box }

func (o *occupancy) Occupants() []string {
	out := slices.Clone(o.occupants)
	if out == nil {
		out = []string{}
	}
	return out
}

func (o *occupancy) has(id string) bool { return slices.Contains(o.occupants, id) }

func (o *occupancy) enter(p *player.Player) {
	if !o.has(p.ID) {
		o.occupants = append(o.occupants, p.ID)
	}
	p.Location.InteractableID = o.id
}

func (o *occupancy) leave(p *player.Player) {
	if i := slices.Index(o.occupants, p.ID); i >= 0 {
		o.occupants = slices.Delete(o.occupants, i, i+1)
	}
	if p.Location.InteractableID == o.id {
		p.Location.InteractableID = ""
	}
}

// clear は在室者を全員外し、外したIDを返します
func (o *occupancy) clear() []string {
	out := o.occupants
	o.occupants = nil
	return out
}

func (o *occupancy) emit(t models.EventType, recipients []string, payload any) {
	o.emitter.Emit(Event{Type: t, Recipients: recipients, Payload: payload})
}
