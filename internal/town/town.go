// Package town はタウン（1つの共有空間）の状態を管理します
//
// Town はプレイヤー台帳とエリアを持ち、タウンへのすべての操作はタウンのロックの下で
// 最後まで実行されます。イベントは Broadcaster に渡され、送信はブロックしません
package town

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SteamVC/OfficeHours_Town/internal/area"
	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/config"
	"github.com/SteamVC/OfficeHours_Town/internal/idgen"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
)

const maxUserNameLen = 32

// Broadcaster はタウンのイベントを接続中のクライアントへ配信します
// recipients が nil の場合はタウン全員に送ります。実装はブロックしてはいけません
type Broadcaster interface {
	Broadcast(townID string, recipients []string, env models.Envelope)
}

type discardBroadcaster struct{}

func (discardBroadcaster) Broadcast(string, []string, models.Envelope) {}

// Options はタウン作成時の設定です
type Options struct {
	TownID           string
	FriendlyName     string
	IsPubliclyListed bool
	Layout           config.Layout
	TAPasswordHash   []byte // TA昇格パスワードのbcryptハッシュ（空なら昇格不可）
	Clock            clock.Clock
	Broadcaster      Broadcaster
}

// Town は1つのタウンです
type Town struct {
	mu sync.Mutex

	id           string
	friendlyName string
	public       bool
	createdAt    time.Time
	lastActive   time.Time

	roster      *player.Roster
	areas       []area.Area // 空間検索の順序
	byID        map[string]area.Area
	officeHours map[string]*area.OfficeHoursArea
	breakouts   map[string]*area.BreakoutRoomArea
	spawn       config.Point

	taPasswordHash []byte
	clock          clock.Clock
	out            Broadcaster
}

// New はレイアウトからタウンを作成します
func New(opts Options) (*Town, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	out := opts.Broadcaster
	if out == nil {
		out = discardBroadcaster{}
	}
	now := clk.Now()
	t := &Town{
		id:             opts.TownID,
		friendlyName:   opts.FriendlyName,
		public:         opts.IsPubliclyListed,
		createdAt:      now,
		lastActive:     now,
		roster:         player.NewRoster(),
		byID:           make(map[string]area.Area),
		officeHours:    make(map[string]*area.OfficeHoursArea),
		breakouts:      make(map[string]*area.BreakoutRoomArea),
		spawn:          opts.Layout.Spawn,
		taPasswordHash: opts.TAPasswordHash,
		clock:          clk,
		out:            out,
	}
	em := area.EmitterFunc(t.emit)

	for _, c := range opts.Layout.ConversationAreas {
		t.register(area.NewConversationArea(c.ID, c.Box, em))
	}
	rooms := make(map[string][]*area.BreakoutRoomArea)
	for _, br := range opts.Layout.BreakoutRooms {
		r := area.NewBreakoutRoomArea(br.ID, br.Box, br.OfficeHours, clk, em)
		rooms[br.OfficeHours] = append(rooms[br.OfficeHours], r)
		t.breakouts[br.ID] = r
	}
	for _, oh := range opts.Layout.OfficeHours {
		a, err := area.NewOfficeHoursArea(oh.ID, oh.Box, area.OfficeHoursConfig{
			QuestionTypes: oh.QuestionTypes,
			Priorities:    oh.Priorities,
		}, rooms[oh.ID], t.roster, clk, em)
		if err != nil {
			return nil, err
		}
		t.register(a)
		t.officeHours[oh.ID] = a
	}
	for _, br := range opts.Layout.BreakoutRooms {
		t.register(t.breakouts[br.ID])
	}
	return t, nil
}

func (t *Town) register(a area.Area) {
	t.areas = append(t.areas, a)
	t.byID[a.ID()] = a
}

func (t *Town) ID() string { return t.id }

func (t *Town) FriendlyName() string { return t.friendlyName }

func (t *Town) IsPubliclyListed() bool { return t.public }

func (t *Town) CreatedAt() time.Time { return t.createdAt }

// Occupancy は接続中のプレイヤー数を返します
func (t *Town) Occupancy() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roster.Len()
}

// LastActive は最後に操作があった時刻を返します
func (t *Town) LastActive() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive
}

// ---------------------------------------------------------------------------
// セッション
// ---------------------------------------------------------------------------

// Join は新しいプレイヤーをスポーン地点に参加させ、プレイヤーとセッショントークンを返します
func (t *Town) Join(userName string) (models.Player, string, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || len(userName) > maxUserNameLen {
		return models.Player{}, "", ErrInvalidUserName
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	token := idgen.NewSessionToken()
	p := player.New(idgen.NewPlayerID(), token, userName, models.Location{
		X:        t.spawn.X,
		Y:        t.spawn.Y,
		Rotation: "front",
	})
	if err := t.roster.Add(p); err != nil {
		return models.Player{}, "", err
	}
	t.transition(p)
	t.broadcast(models.EventPlayerJoined, nil, p.Model())
	return p.Model(), token, nil
}

// Authenticate はセッショントークンからプレイヤーIDを返します
func (t *Town) Authenticate(token string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.roster.ByToken(token)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Leave はプレイヤーをタウンから退出させます
// 質問からは外され、TAが担当中のブレイクアウトルームは閉じられます
func (t *Town) Leave(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	p, err := t.roster.Get(playerID)
	if err != nil {
		return err
	}
	if cur, ok := t.byID[p.Location.InteractableID]; ok {
		cur.Remove(p)
	}
	if state, ok := p.TA(); ok && state.BreakoutRoomID != "" {
		if err := t.closeRoom(state.BreakoutRoomID); err != nil {
			return err
		}
	}
	for _, oh := range t.officeHours {
		oh.RemoveQuestionsForPlayer(playerID)
	}
	if _, err := t.roster.Remove(playerID); err != nil {
		return err
	}
	t.broadcast(models.EventPlayerDisconnect, nil, p.Model())
	return nil
}

// Move はプレイヤーの位置を更新し、エリアの出入りを反映します
func (t *Town) Move(playerID string, loc models.Location) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	p, err := t.roster.Get(playerID)
	if err != nil {
		return err
	}
	loc.InteractableID = p.Location.InteractableID
	p.Location = loc
	t.transition(p)
	t.broadcast(models.EventPlayerMoved, nil, p.Model())
	return nil
}

// UpgradeToTA は共有パスワードを確認してプレイヤーをTAにします
func (t *Town) UpgradeToTA(playerID, password string) (models.Player, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	p, err := t.roster.Get(playerID)
	if err != nil {
		return models.Player{}, err
	}
	if len(t.taPasswordHash) == 0 || bcrypt.CompareHashAndPassword(t.taPasswordHash, []byte(password)) != nil {
		return models.Player{}, ErrInvalidTAPassword
	}
	if !p.PromoteToTA() {
		return models.Player{}, ErrAlreadyTA
	}
	if oh, ok := t.officeHours[p.Location.InteractableID]; ok {
		if err := oh.AddTA(p); err != nil {
			return models.Player{}, err
		}
	}
	t.broadcast(models.EventPlayerMoved, nil, p.Model())
	return p.Model(), nil
}

// transition はプレイヤーの現在位置にあるエリアを探し、出入りを反映します
func (t *Town) transition(p *player.Player) {
	next := t.areaAt(p)
	cur, hasCur := t.byID[p.Location.InteractableID]
	if hasCur && next == cur {
		return
	}
	if hasCur {
		cur.Remove(p)
	}
	if next != nil {
		next.Add(p)
	}
}

// areaAt はプレイヤーの位置にあるエリアを返します
// ブレイクアウトルームには担当TAとマッチした学生しか入れません
func (t *Town) areaAt(p *player.Player) area.Area {
	for _, a := range t.areas {
		if !a.BoundingBox().Contains(p.Location.X, p.Location.Y) {
			continue
		}
		if r, ok := a.(*area.BreakoutRoomArea); ok && r.TeachingAssistantID() != p.ID && !r.HasStudent(p.ID) {
			continue
		}
		return a
	}
	return nil
}

// teleport はプレイヤーを別の地点に移動させます
func (t *Town) teleport(p *player.Player, x, y float64) {
	p.Location.X = x
	p.Location.Y = y
	p.Location.Moving = false
	t.transition(p)
	t.broadcast(models.EventPlayerMoved, nil, p.Model())
}

// ---------------------------------------------------------------------------
// 読み取り
// ---------------------------------------------------------------------------

// Snapshot はタウン全体の状態を返します
func (t *Town) Snapshot() models.Town {
	t.mu.Lock()
	defer t.mu.Unlock()

	players := make([]models.Player, 0, t.roster.Len())
	for _, p := range t.roster.All() {
		players = append(players, p.Model())
	}
	interactables := make([]any, 0, len(t.areas))
	for _, a := range t.areas {
		interactables = append(interactables, a.Model())
	}
	return models.Town{
		TownID:           t.id,
		FriendlyName:     t.friendlyName,
		IsPubliclyListed: t.public,
		Players:          players,
		Interactables:    interactables,
	}
}

// TAs はタウン内のTA一覧を返します
func (t *Town) TAs() []models.TA {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []models.TA{}
	for _, p := range t.roster.All() {
		if m, ok := p.TAModel(); ok {
			out = append(out, m)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// 内部処理
// ---------------------------------------------------------------------------

func (t *Town) touch() { t.lastActive = t.clock.Now() }

func (t *Town) emit(ev area.Event) {
	t.broadcast(ev.Type, ev.Recipients, ev.Payload)
}

func (t *Town) broadcast(typ models.EventType, recipients []string, payload any) {
	t.out.Broadcast(t.id, recipients, models.Envelope{Type: typ, Payload: payload})
}

func (t *Town) player(id string) (*player.Player, error) {
	return t.roster.Get(id)
}

func (t *Town) officeHoursArea(id string) (*area.OfficeHoursArea, error) {
	a, ok := t.byID[id]
	if !ok {
		return nil, ErrAreaNotFound
	}
	oh, ok := a.(*area.OfficeHoursArea)
	if !ok {
		return nil, ErrNotOfficeHoursArea
	}
	return oh, nil
}

// occupant はプレイヤーがエリア内にいることを確認します
func (t *Town) occupant(playerID, areaID string) (*player.Player, error) {
	p, err := t.player(playerID)
	if err != nil {
		return nil, err
	}
	if p.Location.InteractableID != areaID {
		return nil, ErrNotInArea
	}
	return p, nil
}

// SetConversationTopic は会話エリアの話題を設定します（エリア内のプレイヤーのみ）
func (t *Town) SetConversationTopic(playerID, areaID, topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.touch()

	a, ok := t.byID[areaID]
	if !ok {
		return ErrAreaNotFound
	}
	c, ok := a.(*area.ConversationArea)
	if !ok {
		return ErrNotConversationArea
	}
	if _, err := t.occupant(playerID, areaID); err != nil {
		return err
	}
	c.SetTopic(strings.TrimSpace(topic))
	return nil
}

// IsNotFound は参照先（タウン内のプレイヤー・エリア・質問・部屋）が見つからないエラーかを返します
func IsNotFound(err error) bool {
	return errors.Is(err, player.ErrPlayerNotFound) ||
		errors.Is(err, ErrAreaNotFound) ||
		errors.Is(err, area.ErrQuestionNotFound) ||
		errors.Is(err, area.ErrRoomNotFound)
}
