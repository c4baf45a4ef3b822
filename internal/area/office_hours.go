package area

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
	"github.com/SteamVC/OfficeHours_Town/internal/queue"
)

// OfficeHoursConfig はオフィスアワーエリアの初期設定です
type OfficeHoursConfig struct {
	QuestionTypes []string       // 質問カテゴリ
	Priorities    map[string]int // エリア既定の優先順位表
}

// taInfo はTAごとのキュー表示設定です
type taInfo struct {
	sorted     bool
	priorities *queue.Priorities // nil ならエリア既定の表を使う
}

// OfficeHoursArea は質問キューを持ち、TAと学生をブレイクアウトルームでマッチさせるエリアです
// 並行アクセスは想定していません（Town のロックで保護します）
type OfficeHoursArea struct {
	occupancy
	roster *player.Roster
	clock  clock.Clock

	queue         *queue.WaitingQueue[*queue.Question]
	tas           []string // オンラインのTA（エリア内にいるTA）
	questionTypes []string
	priorities    *queue.Priorities
	taInfos       map[string]*taInfo

	rooms     map[string]*BreakoutRoomArea
	roomOrder []string          // 空き部屋を探す順序
	pool      map[string]string // ルームID → 使用中のTA ID（空文字なら空き）
}

// NewOfficeHoursArea はエリアと、それに紐づくブレイクアウトルームの固定プールを作成します
func NewOfficeHoursArea(id string, box BoundingBox, cfg OfficeHoursConfig, rooms []*BreakoutRoomArea, roster *player.Roster, clk clock.Clock, em Emitter) (*OfficeHoursArea, error) {
	if clk == nil {
		clk = clock.Real()
	}
	a := &OfficeHoursArea{
		occupancy:     newOccupancy(id, box, em),
		roster:        roster,
		clock:         clk,
		queue:         queue.NewWaitingQueue[*queue.Question](),
		questionTypes: slices.Clone(cfg.QuestionTypes),
		priorities:    queue.NewPriorities(cfg.Priorities),
		taInfos:       make(map[string]*taInfo),
		rooms:         make(map[string]*BreakoutRoomArea, len(rooms)),
		pool:          make(map[string]string, len(rooms)),
	}
	for _, r := range rooms {
		if r.LinkedOfficeHoursID() != id {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotLinked, r.ID())
		}
		if _, dup := a.rooms[r.ID()]; dup {
			return nil, fmt.Errorf("duplicate breakout room id: %s", r.ID())
		}
		a.rooms[r.ID()] = r
		a.roomOrder = append(a.roomOrder, r.ID())
		a.pool[r.ID()] = ""
	}
	return a, nil
}

func (a *OfficeHoursArea) Kind() Kind { return KindOfficeHours }

// IsActive はオンラインのTAがいるかを返します
func (a *OfficeHoursArea) IsActive() bool { return len(a.tas) > 0 }

func (a *OfficeHoursArea) Add(p *player.Player) {
	a.enter(p)
	if p.IsTA() && !slices.Contains(a.tas, p.ID) {
		a.tas = append(a.tas, p.ID)
	}
	a.emitArea()
}

func (a *OfficeHoursArea) Remove(p *player.Player) {
	a.leave(p)
	a.dropTA(p.ID)
	a.emitArea()
}

// AddTA はエリア内にいるTAをオンラインにします
func (a *OfficeHoursArea) AddTA(p *player.Player) error {
	if !p.IsTA() {
		return ErrNotTA
	}
	if !a.has(p.ID) {
		return ErrTANotInArea
	}
	if !slices.Contains(a.tas, p.ID) {
		a.tas = append(a.tas, p.ID)
		a.emitArea()
	}
	return nil
}

// RemoveTA はTAをオフラインにします。最後のTAが抜けてもキューは残ります
func (a *OfficeHoursArea) RemoveTA(p *player.Player) {
	if a.dropTA(p.ID) {
		a.emitArea()
	}
}

func (a *OfficeHoursArea) dropTA(id string) bool {
	i := slices.Index(a.tas, id)
	if i < 0 {
		return false
	}
	a.tas = slices.Delete(a.tas, i, i+1)
	return true
}

// TAs はオンラインのTAのIDを返します
func (a *OfficeHoursArea) TAs() []string { return slices.Clone(a.tas) }

// QuestionTypes は質問カテゴリの一覧を返します
func (a *OfficeHoursArea) QuestionTypes() []string { return slices.Clone(a.questionTypes) }

func (a *OfficeHoursArea) HasQuestionType(category string) bool {
	return slices.Contains(a.questionTypes, category)
}

// ---------------------------------------------------------------------------
// 質問
// ---------------------------------------------------------------------------

// Question はIDで質問を返します（コピー）
func (a *OfficeHoursArea) Question(id string) (*queue.Question, error) {
	q, ok := a.queue.Get(id)
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return q.Clone(), nil
}

// QuestionFor は学生が参加している質問を返します
func (a *OfficeHoursArea) QuestionFor(studentID string) (*queue.Question, bool) {
	for _, q := range a.queue.Snapshot(queue.ByArrival[*queue.Question]()) {
		if q.HasStudent(studentID) {
			return q.Clone(), true
		}
	}
	return nil, false
}

// QueueLen は待っている質問の数を返します
func (a *OfficeHoursArea) QueueLen() int { return a.queue.Len() }

// Queue は viewerID のTAの設定で並べた質問一覧を返します
// ソートを有効にしたTAには優先順位順、それ以外には到着順で返します
func (a *OfficeHoursArea) Queue(viewerID string) []*queue.Question {
	less := queue.ByArrival[*queue.Question]()
	if info, ok := a.taInfos[viewerID]; ok && info.sorted {
		less = queue.ByPriority[*queue.Question](a.Priorities(viewerID))
	}
	snap := a.queue.Snapshot(less)
	out := make([]*queue.Question, len(snap))
	for i, q := range snap {
		out[i] = q.Clone()
	}
	return out
}

// QueueModel は Queue をクライアント向けのモデルにしたものです
func (a *OfficeHoursArea) QueueModel(viewerID string) models.OfficeHoursQueue {
	return models.OfficeHoursQueue{
		OfficeHoursID: a.id,
		QuestionQueue: queue.Models(a.Queue(viewerID)),
	}
}

// AddOrUpdateQuestion は質問を追加または更新します
// 既存の質問は学生・内容・グループ設定を置き換え、学生が空なら取り除きます
// 同じ内容で何度呼んでも結果は変わりません。IDは呼び出し側で採番します
func (a *OfficeHoursArea) AddOrUpdateQuestion(m models.OfficeHoursQuestion) error {
	if m.ID == "" {
		return ErrMissingQuestionID
	}
	if m.OfficeHoursID != a.id {
		return ErrOfficeHoursMismatch
	}

	existing, ok := a.queue.Get(m.ID)
	if len(m.Students) == 0 {
		if ok {
			_, _ = a.queue.Remove(m.ID)
			a.emitQueue()
		}
		return nil
	}

	if ok {
		updated := existing.Clone()
		updated.Content = m.QuestionContent
		updated.Students = slices.Clone(m.Students)
		updated.Group = m.GroupQuestion
		if err := a.queue.Update(updated); err != nil {
			return err
		}
		a.emitQuestion(updated)
		return nil
	}

	q := queue.QuestionFromModel(m)
	if m.TimeAsked == 0 {
		q.CreatedAt = a.clock.Now()
	}
	if err := a.queue.Add(q); err != nil {
		return err
	}
	a.emitQueue()
	return nil
}

// JoinQuestion は学生をグループ質問に参加させます
func (a *OfficeHoursArea) JoinQuestion(studentID, questionID string) error {
	q, ok := a.queue.Get(questionID)
	if !ok {
		return ErrQuestionNotFound
	}
	if !q.Group {
		return ErrNotGroupQuestion
	}
	if q.HasStudent(studentID) {
		return ErrAlreadyInQuestion
	}
	updated := q.Clone()
	updated.Students = append(updated.Students, studentID)
	if err := a.queue.Update(updated); err != nil {
		return err
	}
	a.emitQuestion(updated)
	return nil
}

// LeaveQuestion は学生を質問から外します。誰もいなくなった質問は取り除きます
func (a *OfficeHoursArea) LeaveQuestion(studentID, questionID string) error {
	q, ok := a.queue.Get(questionID)
	if !ok {
		return ErrQuestionNotFound
	}
	if !q.HasStudent(studentID) {
		return ErrNotInQuestion
	}
	updated := q.Clone()
	updated.RemoveStudent(studentID)
	if len(updated.Students) == 0 {
		_, _ = a.queue.Remove(questionID)
		a.emitQueue()
		return nil
	}
	if err := a.queue.Update(updated); err != nil {
		return err
	}
	a.emitQuestion(updated)
	return nil
}

// RemoveQuestion は質問を取り除きます
func (a *OfficeHoursArea) RemoveQuestion(questionID string) (*queue.Question, error) {
	q, err := a.queue.Remove(questionID)
	if errors.Is(err, queue.ErrTicketNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	a.emitQueue()
	return q, nil
}

// RemoveQuestionsForPlayer はプレイヤーをすべての質問から外し、変更した質問の数を返します
func (a *OfficeHoursArea) RemoveQuestionsForPlayer(playerID string) int {
	changed := 0
	for _, q := range a.queue.Snapshot(queue.ByArrival[*queue.Question]()) {
		if !q.HasStudent(playerID) {
			continue
		}
		updated := q.Clone()
		updated.RemoveStudent(playerID)
		if len(updated.Students) == 0 {
			_, _ = a.queue.Remove(q.ID)
		} else {
			_ = a.queue.Update(updated)
		}
		changed++
	}
	if changed > 0 {
		a.emitQueue()
	}
	return changed
}

// ---------------------------------------------------------------------------
// TAの設定
// ---------------------------------------------------------------------------

func (a *OfficeHoursArea) AddQuestionType(ta *player.Player, category string) error {
	if !ta.IsTA() {
		return ErrNotTA
	}
	if a.HasQuestionType(category) {
		return ErrDuplicateQuestionType
	}
	a.questionTypes = append(a.questionTypes, category)
	a.emitArea()
	return nil
}

// RemoveQuestionType はカテゴリを削除します。キュー内の質問はそのまま残ります
func (a *OfficeHoursArea) RemoveQuestionType(ta *player.Player, category string) error {
	if !ta.IsTA() {
		return ErrNotTA
	}
	i := slices.Index(a.questionTypes, category)
	if i < 0 {
		return ErrUnknownQuestionType
	}
	a.questionTypes = slices.Delete(a.questionTypes, i, i+1)
	a.priorities.Delete(category)
	a.emitArea()
	return nil
}

// SetPriorities はTA個人の優先順位表を設定します
func (a *OfficeHoursArea) SetPriorities(ta *player.Player, entries []models.PriorityEntry) error {
	if !ta.IsTA() {
		return ErrNotTA
	}
	ranks := queue.PrioritiesFromEntries(entries)
	info := a.info(ta.ID)
	if info.priorities == nil {
		info.priorities = queue.NewPriorities(ranks)
	} else {
		info.priorities.Replace(ranks)
	}
	a.emitArea()
	return nil
}

// SetSorted はTAのキュー表示を優先順位順にするかを設定します
func (a *OfficeHoursArea) SetSorted(ta *player.Player, sorted bool) error {
	if !ta.IsTA() {
		return ErrNotTA
	}
	a.info(ta.ID).sorted = sorted
	a.emitArea()
	return nil
}

// Priorities はTAが使う優先順位表を返します（個人設定がなければエリア既定）
func (a *OfficeHoursArea) Priorities(taID string) *queue.Priorities {
	if info, ok := a.taInfos[taID]; ok && info.priorities != nil {
		return info.priorities
	}
	return a.priorities
}

func (a *OfficeHoursArea) info(taID string) *taInfo {
	info, ok := a.taInfos[taID]
	if !ok {
		info = &taInfo{}
		a.taInfos[taID] = info
	}
	return info
}

// ---------------------------------------------------------------------------
// マッチング
// ---------------------------------------------------------------------------

// TakeQuestions はTAに質問を割り当て、空いているブレイクアウトルームを使用中にします
// 検証と部屋の予約がすべて成功してから状態を変更するため、失敗時はキューもプールも変わりません
func (a *OfficeHoursArea) TakeQuestions(ta *player.Player, questionIDs []string, timeLimit time.Duration) (*BreakoutRoomArea, error) {
	state, err := a.onlineTA(ta)
	if err != nil {
		return nil, err
	}
	if len(questionIDs) == 0 {
		return nil, ErrNoQuestionsSelected
	}
	for i, id := range questionIDs {
		if slices.Contains(questionIDs[:i], id) {
			return nil, fmt.Errorf("%w: %s", ErrQuestionListedTwice, id)
		}
		if _, ok := a.queue.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
	}

	room, err := a.reserveRoom(ta.ID)
	if err != nil {
		return nil, err
	}
	taken := make([]*queue.Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, _ := a.queue.Remove(id)
		taken = append(taken, q)
	}
	a.bind(ta, state, room, taken, timeLimit)
	return room, nil
}

// TakeNextQuestion はTAの優先順位表で最も先に対応すべき質問を1件割り当てます
func (a *OfficeHoursArea) TakeNextQuestion(ta *player.Player, timeLimit time.Duration) (*BreakoutRoomArea, error) {
	state, err := a.onlineTA(ta)
	if err != nil {
		return nil, err
	}
	if a.queue.Len() == 0 {
		return nil, queue.ErrQueueEmpty
	}
	room, err := a.reserveRoom(ta.ID)
	if err != nil {
		return nil, err
	}
	q, err := a.queue.Poll(a.Priorities(ta.ID))
	if err != nil {
		a.pool[room.ID()] = ""
		return nil, err
	}
	a.bind(ta, state, room, []*queue.Question{q}, timeLimit)
	return room, nil
}

// ReleaseBreakoutRoom は部屋を閉じて枠を空け、関係者のIDを返します
// 既に空いている部屋に対しては何もしません
func (a *OfficeHoursArea) ReleaseBreakoutRoom(roomID string) ([]string, error) {
	taID, ok := a.pool[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if taID == "" {
		return nil, nil
	}
	members := a.rooms[roomID].deactivate()
	a.pool[roomID] = ""
	a.roster.ReleaseBreakout(members, roomID)

	if ta, err := a.roster.Get(taID); err == nil {
		if state, ok := ta.TA(); ok {
			state.Release()
		}
		taModel, _ := ta.TAModel()
		a.emit(models.EventOfficeHoursQuestionTaken, union(members, a.tas), taModel)
	}
	return members, nil
}

// BreakoutRoom はプール内の部屋を返します
func (a *OfficeHoursArea) BreakoutRoom(roomID string) (*BreakoutRoomArea, bool) {
	r, ok := a.rooms[roomID]
	return r, ok
}

// BreakoutRooms はプールの部屋を登録順に返します
func (a *OfficeHoursArea) BreakoutRooms() []*BreakoutRoomArea {
	out := make([]*BreakoutRoomArea, 0, len(a.roomOrder))
	for _, id := range a.roomOrder {
		out = append(out, a.rooms[id])
	}
	return out
}

// FreeRooms は空いている部屋の数を返します
func (a *OfficeHoursArea) FreeRooms() int {
	n := 0
	for _, taID := range a.pool {
		if taID == "" {
			n++
		}
	}
	return n
}

func (a *OfficeHoursArea) onlineTA(p *player.Player) (*player.TAState, error) {
	state, ok := p.TA()
	if !ok {
		return nil, ErrNotTA
	}
	if !slices.Contains(a.tas, p.ID) {
		return nil, ErrTANotOnline
	}
	if state.Assigned() {
		return nil, ErrTAAlreadyAssigned
	}
	return state, nil
}

// reserveRoom は登録順で最初の空き部屋を予約します
func (a *OfficeHoursArea) reserveRoom(taID string) (*BreakoutRoomArea, error) {
	for _, id := range a.roomOrder {
		if a.pool[id] == "" && !a.rooms[id].IsActive() {
			a.pool[id] = taID
			return a.rooms[id], nil
		}
	}
	return nil, ErrNoFreeBreakoutRoom
}

// bind は取り出した質問をTAと部屋に結びつけ、イベントを送ります
// 話題は先頭の質問のカテゴリ、学生は質問順の和集合です
func (a *OfficeHoursArea) bind(ta *player.Player, state *player.TAState, room *BreakoutRoomArea, taken []*queue.Question, timeLimit time.Duration) {
	var students []string
	for _, q := range taken {
		students = union(students, q.Students)
	}
	state.Questions = taken
	state.BreakoutRoomID = room.ID()
	room.activate(taken[0].Category, ta.ID, students, timeLimit)
	a.roster.MarkInBreakout(students, room.ID())

	taModel, _ := ta.TAModel()
	a.emit(models.EventOfficeHoursQuestionTaken, union([]string{ta.ID}, students, a.tas), taModel)
	a.emitQueue()
}

// ---------------------------------------------------------------------------
// モデルとイベント
// ---------------------------------------------------------------------------

func (a *OfficeHoursArea) Model() any {
	infos := make([]models.TAInfo, 0, len(a.tas))
	for _, id := range a.tas {
		info, ok := a.taInfos[id]
		if !ok {
			info = &taInfo{}
		}
		infos = append(infos, models.TAInfo{
			TAID:       id,
			IsSorted:   info.sorted,
			Priorities: a.Priorities(id).Entries(),
		})
	}
	types := slices.Clone(a.questionTypes)
	if types == nil {
		types = []string{}
	}
	return models.OfficeHoursArea{
		ID:                     a.id,
		Type:                   string(KindOfficeHours),
		Occupants:              a.Occupants(),
		OfficeHoursActive:      a.IsActive(),
		TeachingAssistantsByID: a.TAs(),
		QuestionTypes:          types,
		TAInfos:                infos,
	}
}

func (a *OfficeHoursArea) emitArea() {
	a.emit(models.EventInteractableUpdate, nil, a.Model())
}

// emitQueue は到着順のキューを、エリア内の全員・TA・質問中の学生に送ります
func (a *OfficeHoursArea) emitQueue() {
	recipients := union(a.occupants, a.tas)
	for _, q := range a.queue.Snapshot(queue.ByArrival[*queue.Question]()) {
		recipients = union(recipients, q.Students)
	}
	a.emit(models.EventOfficeHoursQueueUpdate, recipients, a.QueueModel(""))
}

// emitQuestion は更新された質問を参加者とTAに送り、キューも送り直します
func (a *OfficeHoursArea) emitQuestion(q *queue.Question) {
	a.emit(models.EventOfficeHoursQuestionUpdate, union(q.Students, a.tas), q.Model())
	a.emitQueue()
}

// union は重複を除いて順に連結します
func union(groups ...[]string) []string {
	out := []string{}
	for _, g := range groups {
		for _, id := range g {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}
