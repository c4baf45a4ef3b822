package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/service"
	"github.com/SteamVC/OfficeHours_Town/internal/town"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// クライアントから送られるコマンドの種類
const (
	cmdMove                 = "move"
	cmdUpgradeToTA          = "upgradeToTA"
	cmdAskQuestion          = "askQuestion"
	cmdJoinQuestion         = "joinQuestion"
	cmdLeaveQuestion        = "leaveQuestion"
	cmdRemoveQuestion       = "removeQuestion"
	cmdTakeQuestions        = "takeQuestions"
	cmdTakeNextQuestion     = "takeNextQuestion"
	cmdCloseBreakoutRoom    = "closeBreakoutRoom"
	cmdJoinBreakoutRoom     = "joinBreakoutRoom"
	cmdGetQueue             = "getQueue"
	cmdAddQuestionType      = "addQuestionType"
	cmdRemoveQuestionType   = "removeQuestionType"
	cmdSetPriorities        = "setPriorities"
	cmdSetSorted            = "setSorted"
	cmdSetConversationTopic = "setConversationTopic"
	cmdPing                 = "ping"
)

// WebSocketMessage はクライアントから受信するメッセージの構造
type WebSocketMessage struct {
	Type    string          `json:"type"`              // コマンドの種類
	Payload json.RawMessage `json:"payload,omitempty"` // コマンドごとのペイロード
}

// UpgradePayload はTA昇格のペイロード
type UpgradePayload struct {
	Password string `json:"password"`
}

// AskQuestionPayload は質問投稿のペイロード
type AskQuestionPayload struct {
	InteractableID  string `json:"interactableID"`
	QuestionContent string `json:"questionContent"`
	QuestionType    string `json:"questionType"`
	GroupQuestion   bool   `json:"groupQuestion"`
}

// QuestionPayload は1件の質問を対象にするコマンドのペイロード
type QuestionPayload struct {
	InteractableID string `json:"interactableID"`
	QuestionID     string `json:"questionID"`
}

// TakeQuestionsPayload は質問の割り当てのペイロード
// timeLimit は秒（0 は制限なし）
type TakeQuestionsPayload struct {
	InteractableID string   `json:"interactableID"`
	QuestionIDs    []string `json:"questionIDs"`
	TimeLimit      int      `json:"timeLimit"`
}

// BreakoutRoomPayload はブレイクアウトルームを対象にするコマンドのペイロード
type BreakoutRoomPayload struct {
	BreakoutRoomID string `json:"breakoutRoomID"`
}

// AreaPayload はエリアを対象にするコマンドのペイロード
type AreaPayload struct {
	InteractableID string `json:"interactableID"`
}

// QuestionTypePayload は質問カテゴリの追加・削除のペイロード
type QuestionTypePayload struct {
	InteractableID string `json:"interactableID"`
	QuestionType   string `json:"questionType"`
}

// PrioritiesPayload は優先順位表のペイロード
type PrioritiesPayload struct {
	InteractableID string                 `json:"interactableID"`
	Priorities     []models.PriorityEntry `json:"priorities"`
}

// SortedPayload はキュー表示の並び順のペイロード
type SortedPayload struct {
	InteractableID string `json:"interactableID"`
	IsSorted       bool   `json:"isSorted"`
}

// TopicPayload は会話エリアの話題のペイロード
type TopicPayload struct {
	InteractableID string `json:"interactableID"`
	Topic          string `json:"topic"`
}

// errBadPayload はペイロードを解釈できないエラー
var errBadPayload = errors.New("invalid payload")

// WebSocketHandler はWebSocket接続を処理するハンドラー
type WebSocketHandler struct {
	svc      *service.TownService // ビジネスロジックを担当するサービス
	hub      *TownHub             // WebSocket接続を管理するハブ
	upgrader websocket.Upgrader   // HTTPからWebSocketへのアップグレーダー
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
func NewWebSocketHandler(s *service.TownService, hub *TownHub) *WebSocketHandler {
	return &WebSocketHandler{
		svc: s,
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 本番環境では適切なOriginチェックを実装してください
				return true
			},
		},
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. セッショントークンの確認
// 2. HTTPからWebSocketへのアップグレードとクライアントの登録
// 3. コマンド受信ループ
// 4. 切断時の自動退出処理とクリーンアップ
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	token := normalizeID(r.URL.Query().Get("token"))

	if err := validateTownId(townId); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateSessionToken(token); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		status, _ := classify(err)
		http.Error(w, err.Error(), status)
		return
	}
	playerId, err := t.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	// WebSocket接続にアップグレード
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(townId, playerId, conn)
	h.hub.registerClient(client)
	go client.writePump()
	defer func() {
		h.hub.unregisterClient(client)
		// 新しい接続に置き換えられた場合はプレイヤーを残す
		if client.replaced.Load() {
			return
		}
		// WebSocket切断時にプレイヤーをタウンから退出させる
		if err := h.svc.Leave(context.Background(), townId, playerId); err != nil {
			log.Printf("Failed to auto-leave on disconnect: townId=%s, playerId=%s, error=%v", townId, playerId, err)
		} else {
			log.Printf("Player auto-left on disconnect: townId=%s, playerId=%s", townId, playerId)
		}
	}()

	log.Printf("WebSocket connected: townId=%s, playerId=%s", townId, playerId)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	// メッセージ受信ループ
	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		if err := h.dispatch(client, t, msg); err != nil {
			h.replyError(client, msg.Type, err)
		}
	}
}

// dispatch はコマンドをタウンの操作に振り分けます
func (h *WebSocketHandler) dispatch(client *Client, t *town.Town, msg WebSocketMessage) error {
	id := client.playerId

	switch msg.Type {
	case cmdPing:
		// ping/pongで接続を維持
		h.hub.sendTo(client, models.Envelope{Type: models.EventPong})
		return nil

	case cmdMove:
		var loc models.Location
		if err := decodePayload(msg.Payload, &loc); err != nil {
			return err
		}
		return t.Move(id, loc)

	case cmdUpgradeToTA:
		var in UpgradePayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		_, err := t.UpgradeToTA(id, in.Password)
		return err

	case cmdAskQuestion:
		var in AskQuestionPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		q, err := t.AskQuestion(id, in.InteractableID, in.QuestionContent, in.QuestionType, in.GroupQuestion)
		if err != nil {
			return err
		}
		h.hub.sendTo(client, models.Envelope{Type: models.EventOfficeHoursQuestionUpdate, Payload: q})
		return nil

	case cmdJoinQuestion, cmdLeaveQuestion, cmdRemoveQuestion:
		var in QuestionPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		switch msg.Type {
		case cmdJoinQuestion:
			return t.JoinQuestion(id, in.InteractableID, in.QuestionID)
		case cmdLeaveQuestion:
			return t.LeaveQuestion(id, in.InteractableID, in.QuestionID)
		default:
			return t.RemoveQuestion(id, in.InteractableID, in.QuestionID)
		}

	case cmdTakeQuestions, cmdTakeNextQuestion:
		var in TakeQuestionsPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		limit := time.Duration(in.TimeLimit) * time.Second
		var err error
		if msg.Type == cmdTakeQuestions {
			_, err = t.TakeQuestions(id, in.InteractableID, in.QuestionIDs, limit)
		} else {
			_, err = t.TakeNextQuestion(id, in.InteractableID, limit)
		}
		return err

	case cmdCloseBreakoutRoom:
		var in BreakoutRoomPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		return t.CloseBreakoutRoom(id, in.BreakoutRoomID)

	case cmdJoinBreakoutRoom:
		room, err := t.JoinBreakoutRoom(id)
		if err != nil {
			return err
		}
		h.hub.sendTo(client, models.Envelope{Type: models.EventInteractableUpdate, Payload: room})
		return nil

	case cmdGetQueue:
		var in AreaPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		q, err := t.Queue(id, in.InteractableID)
		if err != nil {
			return err
		}
		h.hub.sendTo(client, models.Envelope{Type: models.EventOfficeHoursQueueUpdate, Payload: q})
		return nil

	case cmdAddQuestionType, cmdRemoveQuestionType:
		var in QuestionTypePayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		if msg.Type == cmdAddQuestionType {
			return t.AddQuestionType(id, in.InteractableID, in.QuestionType)
		}
		return t.RemoveQuestionType(id, in.InteractableID, in.QuestionType)

	case cmdSetPriorities:
		var in PrioritiesPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		return t.SetPriorities(id, in.InteractableID, in.Priorities)

	case cmdSetSorted:
		var in SortedPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		return t.SetSorted(id, in.InteractableID, in.IsSorted)

	case cmdSetConversationTopic:
		var in TopicPayload
		if err := decodePayload(msg.Payload, &in); err != nil {
			return err
		}
		return t.SetConversationTopic(id, in.InteractableID, in.Topic)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return fmt.Errorf("%w: unknown message type %q", errBadPayload, msg.Type)
	}
}

// replyError はコマンドの失敗を送信者だけに通知します
func (h *WebSocketHandler) replyError(client *Client, cmd string, err error) {
	status, retryable := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Command %s error (townId=%s, playerId=%s): %v", cmd, client.townId, client.playerId, err)
		msg = "internal error"
	}
	h.hub.sendTo(client, models.Envelope{
		Type:    models.EventError,
		Payload: models.ErrorPayload{Message: msg, Retryable: retryable},
	})
}

// decodePayload はペイロードを dst にデコードします
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload required", errBadPayload)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}
