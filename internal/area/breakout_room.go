package area

import (
	"slices"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
)

// BreakoutRoomArea はTAと学生が個別に話すための部屋です
// 各部屋は1つのオフィスアワーエリアに紐づき、その部屋プールの1枠になります
type BreakoutRoomArea struct {
	occupancy
	linkedOfficeHoursID string
	clock               clock.Clock

	topic     string
	taID      string   // 担当TA（空なら未使用）
	students  []string // マッチした学生
	timeLimit time.Duration
	startedAt time.Time
}

func NewBreakoutRoomArea(id string, box BoundingBox, linkedOfficeHoursID string, clk clock.Clock, em Emitter) *BreakoutRoomArea {
	if clk == nil {
		clk = clock.Real()
	}
	return &BreakoutRoomArea{
		occupancy:           newOccupancy(id, box, em),
		linkedOfficeHoursID: linkedOfficeHoursID,
		clock:               clk,
	}
}

func (r *BreakoutRoomArea) Kind() Kind { return KindBreakoutRoom }

// IsActive はTAが割り当てられているかを返します
func (r *BreakoutRoomArea) IsActive() bool { return r.taID != "" }

func (r *BreakoutRoomArea) LinkedOfficeHoursID() string { return r.linkedOfficeHoursID }

func (r *BreakoutRoomArea) Topic() string { return r.topic }

func (r *BreakoutRoomArea) TeachingAssistantID() string { return r.taID }

func (r *BreakoutRoomArea) Students() []string { return slices.Clone(r.students) }

// HasStudent は学生がこの部屋にマッチしているかを返します
func (r *BreakoutRoomArea) HasStudent(id string) bool { return slices.Contains(r.students, id) }

// TimeLeft は残り時間を返します。制限なしの場合は false
// 制限は表示用で、過ぎても部屋は閉じられません
func (r *BreakoutRoomArea) TimeLeft() (time.Duration, bool) {
	if r.timeLimit <= 0 || !r.IsActive() {
		return 0, false
	}
	left := r.timeLimit - r.clock.Now().Sub(r.startedAt)
	if left < 0 {
		left = 0
	}
	return left, true
}

// activate は部屋を使用中にします。呼び出し側（オフィスアワーエリア）が枠の予約を済ませている前提です
func (r *BreakoutRoomArea) activate(topic, taID string, students []string, timeLimit time.Duration) {
	r.topic = topic
	r.taID = taID
	r.students = slices.Clone(students)
	r.timeLimit = timeLimit
	r.startedAt = r.clock.Now()
	r.emit(models.EventInteractableUpdate, nil, r.Model())
}

// deactivate は部屋を空にし、関係者（TA、マッチした学生、在室者）のIDを返します
func (r *BreakoutRoomArea) deactivate() []string {
	members := make([]string, 0, 1+len(r.students)+len(r.occupants))
	if r.taID != "" {
		members = append(members, r.taID)
	}
	for _, id := range append(slices.Clone(r.students), r.occupants...) {
		if !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	r.topic = ""
	r.taID = ""
	r.students = nil
	r.timeLimit = 0
	r.startedAt = time.Time{}
	r.emit(models.EventInteractableUpdate, nil, r.Model())
	return members
}

func (r *BreakoutRoomArea) Add(p *player.Player) {
	r.enter(p)
	r.emit(models.EventInteractableUpdate, nil, r.Model())
}

func (r *BreakoutRoomArea) Remove(p *player.Player) {
	r.leave(p)
	r.emit(models.EventInteractableUpdate, nil, r.Model())
}

func (r *BreakoutRoomArea) Model() any {
	students := slices.Clone(r.students)
	if students == nil {
		students = []string{}
	}
	m := models.BreakoutRoomArea{
		ID:                  r.id,
		Type:                string(KindBreakoutRoom),
		Occupants:           r.Occupants(),
		Topic:               r.topic,
		TeachingAssistantID: r.taID,
		StudentsByID:        students,
		LinkedOfficeHoursID: r.linkedOfficeHoursID,
	}
	if left, ok := r.TimeLeft(); ok {
		secs := int64(left / time.Second)
		m.TimeLeft = &secs
	}
	return m
}
