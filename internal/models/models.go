// Package models はクライアントとやり取りするデータ構造を定義します
package models

// EventType はサーバーからクライアントへ送るイベントの種類
type EventType string

const (
	EventInteractableUpdate        EventType = "interactableUpdate"        // エリア状態の更新
	EventOfficeHoursQueueUpdate    EventType = "officeHoursQueueUpdate"    // 質問キューの更新
	EventOfficeHoursQuestionUpdate EventType = "officeHoursQuestionUpdate" // 個別の質問の更新
	EventOfficeHoursQuestionTaken  EventType = "officeHoursQuestionTaken"  // TAが質問を担当した／セッション終了
	EventPlayerJoined              EventType = "playerJoined"              // プレイヤー参加
	EventPlayerMoved               EventType = "playerMoved"               // プレイヤー移動
	EventPlayerDisconnect          EventType = "playerDisconnect"          // プレイヤー退出
	EventError                     EventType = "error"                     // エラー通知
	EventPong                      EventType = "pong"                      // ping応答
)

// エリア種別（interactableUpdate の type フィールド）
const (
	AreaTypeConversation = "ConversationArea"
	AreaTypeOfficeHours  = "OfficeHoursArea"
	AreaTypeBreakoutRoom = "BreakoutRoomArea"
)

// Location はプレイヤーの位置を表します
type Location struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Rotation       string  `json:"rotation"`                 // front / back / left / right
	Moving         bool    `json:"moving"`                   // 移動中かどうか
	InteractableID string  `json:"interactableID,omitempty"` // 現在いるエリアのID
}

// Player はタウン内のプレイヤー情報です
type Player struct {
	ID       string   `json:"id"`
	UserName string   `json:"userName"`
	Location Location `json:"location"`
	IsTA     bool     `json:"isTA"`
}

// TA はティーチングアシスタントの情報です
type TA struct {
	ID             string                `json:"id"`
	UserName       string                `json:"userName"`
	Location       Location              `json:"location"`
	BreakoutRoomID string                `json:"breakoutRoomID,omitempty"` // 担当中のブレイクアウトルーム
	Questions      []OfficeHoursQuestion `json:"questions,omitempty"`      // 担当中の質問
}

// ConversationArea は汎用の会話エリアです
type ConversationArea struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Occupants []string `json:"occupants"`
	Topic     string   `json:"topic,omitempty"`
}

// PriorityEntry は質問カテゴリと優先順位の組です（値が小さいほど先に対応）
type PriorityEntry struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// TAInfo はTAごとのキュー表示設定です
type TAInfo struct {
	TAID       string          `json:"taID"`
	IsSorted   bool            `json:"isSorted"`   // true: 優先順位で並べる、false: 到着順
	Priorities []PriorityEntry `json:"priorities"` // カテゴリ→優先順位
}

// OfficeHoursArea はオフィスアワーエリアの状態です
type OfficeHoursArea struct {
	ID                     string   `json:"id"`
	Type                   string   `json:"type"`
	Occupants              []string `json:"occupants"`
	OfficeHoursActive      bool     `json:"officeHoursActive"`      // オンラインのTAがいるか
	TeachingAssistantsByID []string `json:"teachingAssistantsByID"` // オンラインのTA
	QuestionTypes          []string `json:"questionTypes"`          // 質問カテゴリ一覧
	TAInfos                []TAInfo `json:"taInfos"`
}

// OfficeHoursQuestion は1件の質問（チケット）です
type OfficeHoursQuestion struct {
	ID              string   `json:"id"`
	OfficeHoursID   string   `json:"officeHoursID"`
	QuestionContent string   `json:"questionContent"`
	Students        []string `json:"students"`      // 先頭が作成者
	GroupQuestion   bool     `json:"groupQuestion"` // グループ質問なら他の学生が参加できる
	QuestionType    string   `json:"questionType"`
	TimeAsked       int64    `json:"timeAsked"` // Unixミリ秒
}

// OfficeHoursQueue は質問キューのスナップショットです
type OfficeHoursQueue struct {
	OfficeHoursID string                `json:"officeHoursID"`
	QuestionQueue []OfficeHoursQuestion `json:"questionQueue"`
}

// BreakoutRoomArea はブレイクアウトルームの状態です
type BreakoutRoomArea struct {
	ID                  string   `json:"id"`
	Type                string   `json:"type"`
	Occupants           []string `json:"occupants"`
	Topic               string   `json:"topic,omitempty"`
	TeachingAssistantID string   `json:"teachingAssistantID,omitempty"`
	StudentsByID        []string `json:"studentsByID"`
	LinkedOfficeHoursID string   `json:"linkedOfficeHoursID"`
	TimeLeft            *int64   `json:"timeLeft,omitempty"` // 残り秒数（制限なしの場合は省略）
}

// Town はタウン全体のスナップショットです
type Town struct {
	TownID           string   `json:"townID"`
	FriendlyName     string   `json:"friendlyName"`
	IsPubliclyListed bool     `json:"isPubliclyListed"`
	Players          []Player `json:"players"`
	Interactables    []any    `json:"interactables"`
}

// TownListing は公開タウン一覧の1件です
type TownListing struct {
	TownID           string `json:"townID"`
	FriendlyName     string `json:"friendlyName"`
	CurrentOccupancy int    `json:"currentOccupancy"`
	CreatedAt        int64  `json:"createdAt"` // Unixタイムスタンプ
}

// TownRecord はタウンディレクトリに保存するレコードです
type TownRecord struct {
	TownID             string `json:"townId"`
	FriendlyName       string `json:"friendlyName"`
	IsPubliclyListed   bool   `json:"isPubliclyListed"`
	UpdatePasswordHash []byte `json:"updatePasswordHash"` // bcryptハッシュ
	CreatedAt          int64  `json:"createdAt"`
}

// Envelope はWebSocketで送受信するメッセージの構造です
type Envelope struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// ErrorPayload はエラー通知のペイロードです
type ErrorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"` // 再試行で成功しうるエラーか（空き部屋なし等）
}
