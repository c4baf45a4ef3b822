package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // 書き込みのタイムアウト
	pongWait       = 60 * time.Second    // pong を待つ時間
	pingPeriod     = (pongWait * 9) / 10 // ping の送信間隔（pongWait より短く）
	maxMessageSize = 64 * 1024           // 受信メッセージの最大サイズ
	sendBufferSize = 256                 // クライアントごとの送信バッファ
)

// TownHub はタウンごとのWebSocket接続を管理します
// スレッドセーフな実装により、複数のgoroutineから同時にアクセス可能です
// 送信はクライアントごとのバッファに積むだけでブロックせず、詰まったクライアントは切断します
type TownHub struct {
	towns map[string]map[string]*Client // タウンID → プレイヤーID → クライアント
	mu    sync.RWMutex                  // 読み書きのロック
}

// Client は1つのWebSocket接続を表します
type Client struct {
	townId   string          // タウンID
	playerId string          // プレイヤーID
	conn     *websocket.Conn // WebSocket接続
	send     chan []byte     // 送信待ちのメッセージ
	replaced atomic.Bool     // 同じプレイヤーの新しい接続に置き換えられたか
}

// NewTownHub は新しいTownHubを作成します
func NewTownHub() *TownHub {
	return &TownHub{towns: make(map[string]map[string]*Client)}
}

func newClient(townId, playerId string, conn *websocket.Conn) *Client {
	return &Client{
		townId:   townId,
		playerId: playerId,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Broadcast はタウン内のクライアントにメッセージを送信します
// recipients が nil の場合はタウン全員に送ります
func (hub *TownHub) Broadcast(townId string, recipients []string, env models.Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to marshal %s event (townId=%s): %v", env.Type, townId, err)
		return
	}

	var slow []*Client
	hub.mu.RLock()
	clients := hub.towns[townId]
	if recipients == nil {
		for _, c := range clients {
			if !c.enqueue(msg) {
				slow = append(slow, c)
			}
		}
	} else {
		for _, id := range recipients {
			if c, ok := clients[id]; ok && !c.enqueue(msg) {
				slow = append(slow, c)
			}
		}
	}
	hub.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Dropping slow client: townId=%s, playerId=%s", c.townId, c.playerId)
		hub.unregisterClient(c)
	}
}

// sendTo は1つのクライアントにメッセージを送信します
func (hub *TownHub) sendTo(c *Client, env models.Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to marshal %s event (townId=%s): %v", env.Type, c.townId, err)
		return
	}
	hub.mu.RLock()
	ok := hub.isRegistered(c) && c.enqueue(msg)
	hub.mu.RUnlock()
	if !ok {
		hub.unregisterClient(c)
	}
}

// CloseTown はタウンの全接続を閉じます
func (hub *TownHub) CloseTown(townId string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, c := range hub.towns[townId] {
		close(c.send)
	}
	delete(hub.towns, townId)
}

// registerClient はクライアントを登録します
// 同じプレイヤーの古い接続があれば置き換えて閉じます
func (hub *TownHub) registerClient(c *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	clients, exists := hub.towns[c.townId]
	if !exists {
		clients = make(map[string]*Client)
		hub.towns[c.townId] = clients
	}
	if old, ok := clients[c.playerId]; ok {
		old.replaced.Store(true)
		close(old.send)
	}
	clients[c.playerId] = c
}

// unregisterClient はクライアントの登録を解除します
// タウンが空になった場合はタウンのエントリも削除します
func (hub *TownHub) unregisterClient(c *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if !hub.isRegistered(c) {
		return
	}
	clients := hub.towns[c.townId]
	delete(clients, c.playerId)
	close(c.send)
	if len(clients) == 0 {
		delete(hub.towns, c.townId)
	}
}

// isRegistered は c が現在登録されている接続かを返します（呼び出し側でロック）
func (hub *TownHub) isRegistered(c *Client) bool {
	cur, ok := hub.towns[c.townId][c.playerId]
	return ok && cur == c
}

// Connected は接続中のクライアント数を返します
func (hub *TownHub) Connected(townId string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.towns[townId])
}

// enqueue はバッファに空きがあればメッセージを積みます（呼び出し側で読み取りロック）
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump は送信バッファの内容を接続に書き込み、定期的に ping を送ります
// send が閉じられると close メッセージを送って終了します
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// ハブが送信チャネルを閉じた
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Failed to send message to playerId=%s: %v", c.playerId, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
