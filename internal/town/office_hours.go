package town

import (
	"strings"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/area"
	"github.com/SteamVC/OfficeHours_Town/internal/idgen"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
)

// AskQuestion はエリア内の学生の質問をキューに追加します
// 1人の学生が同じキューに持てる質問は1件までです
func (t *Town) AskQuestion(playerID, areaID, content, category string, group bool) (models.OfficeHoursQuestion, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.OfficeHoursQuestion{}, err
	}
	p, err := t.occupant(playerID, areaID)
	if err != nil {
		return models.OfficeHoursQuestion{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.OfficeHoursQuestion{}, ErrEmptyQuestion
	}
	if len(oh.QuestionTypes()) > 0 && !oh.HasQuestionType(category) {
		return models.OfficeHoursQuestion{}, area.ErrUnknownQuestionType
	}
	if _, queued := oh.QuestionFor(p.ID); queued {
		return models.OfficeHoursQuestion{}, ErrAlreadyQueued
	}

	now := t.clock.Now()
	m := models.OfficeHoursQuestion{
		ID:              idgen.NewULID(now),
		OfficeHoursID:   areaID,
		QuestionContent: content,
		Students:        []string{p.ID},
		GroupQuestion:   group,
		QuestionType:    category,
		TimeAsked:       now.UnixMilli(),
	}
	if err := oh.AddOrUpdateQuestion(m); err != nil {
		return models.OfficeHoursQuestion{}, err
	}
	return m, nil
}

// JoinQuestion はエリア内の学生をグループ質問に参加させます
func (t *Town) JoinQuestion(playerID, areaID, questionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return err
	}
	p, err := t.occupant(playerID, areaID)
	if err != nil {
		return err
	}
	if q, queued := oh.QuestionFor(p.ID); queued && q.ID != questionID {
		return ErrAlreadyQueued
	}
	return oh.JoinQuestion(p.ID, questionID)
}

// LeaveQuestion は学生を質問から外します
func (t *Town) LeaveQuestion(playerID, areaID, questionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return err
	}
	if _, err := t.player(playerID); err != nil {
		return err
	}
	return oh.LeaveQuestion(playerID, questionID)
}

// RemoveQuestion はTAが質問をキューから取り除きます
func (t *Town) RemoveQuestion(playerID, areaID, questionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, _, err := t.taIn(playerID, areaID)
	if err != nil {
		return err
	}
	_, err = oh.RemoveQuestion(questionID)
	return err
}

// TakeQuestions はTAに質問を割り当て、TAをブレイクアウトルームへ移動させます
// マッチした学生は JoinBreakoutRoom で部屋に入ります
func (t *Town) TakeQuestions(playerID, areaID string, questionIDs []string, timeLimit time.Duration) (models.BreakoutRoomArea, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	p, err := t.player(playerID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	room, err := oh.TakeQuestions(p, questionIDs, timeLimit)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	return t.enterRoom(p, room), nil
}

// TakeNextQuestion はTAの優先順位で次の質問を割り当てます
func (t *Town) TakeNextQuestion(playerID, areaID string, timeLimit time.Duration) (models.BreakoutRoomArea, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	p, err := t.player(playerID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	room, err := oh.TakeNextQuestion(p, timeLimit)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	return t.enterRoom(p, room), nil
}

// CloseBreakoutRoom は担当TAがブレイクアウトルームを閉じます
// 質問はキューに戻らず破棄され、部屋にいた全員がオフィスアワーエリアに戻ります
// 既に閉じている部屋に対しては何もしません
func (t *Town) CloseBreakoutRoom(playerID, roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	p, err := t.player(playerID)
	if err != nil {
		return err
	}
	room, ok := t.breakouts[roomID]
	if !ok {
		return area.ErrRoomNotFound
	}
	if !p.IsTA() {
		return area.ErrNotTA
	}
	if room.IsActive() && room.TeachingAssistantID() != p.ID {
		return ErrNotRoomTA
	}
	return t.closeRoom(roomID)
}

// JoinBreakoutRoom はマッチした学生を割り当てられたブレイクアウトルームへ移動させます
func (t *Town) JoinBreakoutRoom(playerID string) (models.BreakoutRoomArea, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	p, err := t.player(playerID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	roomID, err := t.roster.BreakoutRoom(p.ID)
	if err != nil {
		return models.BreakoutRoomArea{}, err
	}
	room, ok := t.breakouts[roomID]
	if !ok {
		return models.BreakoutRoomArea{}, area.ErrRoomNotFound
	}
	if p.Location.InteractableID == roomID {
		return room.Model().(models.BreakoutRoomArea), nil
	}
	return t.enterRoom(p, room), nil
}

// Queue はプレイヤーから見た質問キューを返します（TAは自分の並び順設定で）
func (t *Town) Queue(playerID, areaID string) (models.OfficeHoursQueue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.OfficeHoursQueue{}, err
	}
	if _, err := t.player(playerID); err != nil {
		return models.OfficeHoursQueue{}, err
	}
	return oh.QueueModel(playerID), nil
}

// Question は質問を1件返します
func (t *Town) Question(areaID, questionID string) (models.OfficeHoursQuestion, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.OfficeHoursQuestion{}, err
	}
	q, err := oh.Question(questionID)
	if err != nil {
		return models.OfficeHoursQuestion{}, err
	}
	return q.Model(), nil
}

// OfficeHours はオフィスアワーエリアの状態を返します
func (t *Town) OfficeHours(areaID string) (models.OfficeHoursArea, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return models.OfficeHoursArea{}, err
	}
	return oh.Model().(models.OfficeHoursArea), nil
}

func (t *Town) AddQuestionType(playerID, areaID, category string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	category = strings.TrimSpace(category)
	if category == "" {
		return ErrEmptyQuestionType
	}
	oh, p, err := t.taIn(playerID, areaID)
	if err != nil {
		return err
	}
	return oh.AddQuestionType(p, category)
}

func (t *Town) RemoveQuestionType(playerID, areaID, category string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, p, err := t.taIn(playerID, areaID)
	if err != nil {
		return err
	}
	return oh.RemoveQuestionType(p, category)
}

// SetPriorities はTA個人の優先順位表を設定します
func (t *Town) SetPriorities(playerID, areaID string, entries []models.PriorityEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, p, err := t.taIn(playerID, areaID)
	if err != nil {
		return err
	}
	return oh.SetPriorities(p, entries)
}

// SetSorted はTAのキュー表示の並び順を切り替えます
func (t *Town) SetSorted(playerID, areaID string, sorted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	oh, p, err := t.taIn(playerID, areaID)
	if err != nil {
		return err
	}
	return oh.SetSorted(p, sorted)
}

// taIn はオフィスアワーエリアとTAのプレイヤーを返します
func (t *Town) taIn(playerID, areaID string) (*area.OfficeHoursArea, *player.Player, error) {
	oh, err := t.officeHoursArea(areaID)
	if err != nil {
		return nil, nil, err
	}
	p, err := t.player(playerID)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsTA() {
		return nil, nil, area.ErrNotTA
	}
	return oh, p, nil
}

// enterRoom はプレイヤーを部屋の中央へ移動させ、部屋の状態を返します
func (t *Town) enterRoom(p *player.Player, room *area.BreakoutRoomArea) models.BreakoutRoomArea {
	x, y := room.BoundingBox().Center()
	t.teleport(p, x, y)
	return room.Model().(models.BreakoutRoomArea)
}

// closeRoom は部屋を閉じ、部屋にいるプレイヤーをオフィスアワーエリアの中央へ戻します
func (t *Town) closeRoom(roomID string) error {
	room, ok := t.breakouts[roomID]
	if !ok {
		return area.ErrRoomNotFound
	}
	oh, ok := t.officeHours[room.LinkedOfficeHoursID()]
	if !ok {
		return ErrAreaNotFound
	}
	members, err := oh.ReleaseBreakoutRoom(roomID)
	if err != nil {
		return err
	}
	x, y := oh.BoundingBox().Center()
	for _, p := range t.roster.Find(members) {
		if p.Location.InteractableID == roomID {
			t.teleport(p, x, y)
		}
	}
	return nil
}
