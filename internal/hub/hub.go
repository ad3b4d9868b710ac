package hub

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 广播受众：顾客端与管理端各一组长连接。
const (
	AudienceCustomer = "customer"
	AudienceAdmin    = "admin"
)

// CloseInvalidAudience 订阅了未知受众时的关闭码。
const CloseInvalidAudience = 4000

const writeTimeout = 5 * time.Second

// Event 状态变更广播载荷。
type Event struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// StatusUpdate 构造一条 status_update 事件。
func StatusUpdate(token, status string) Event {
	return Event{Type: "status_update", Token: token, Status: status}
}

// Hub 持有全部在线查看端连接，按受众分组。
// 连接集合由 Hub 自己的锁保护；广播全程持锁，既保证同一受众内
// 事件投递顺序与 Broadcast 调用顺序一致，也避免并发写同一连接。
type Hub struct {
	mu        sync.Mutex
	audiences map[string]map[*websocket.Conn]bool
}

func New() *Hub {
	return &Hub{
		audiences: map[string]map[*websocket.Conn]bool{
			AudienceCustomer: {},
			AudienceAdmin:    {},
		},
	}
}

// ValidAudience 判断受众名是否已定义。
func (h *Hub) ValidAudience(audience string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.audiences[audience]
	return ok
}

// Subscribe 注册一条连接到指定受众。
func (h *Hub) Subscribe(conn *websocket.Conn, audience string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.audiences[audience]
	if !ok {
		set = map[*websocket.Conn]bool{}
		h.audiences[audience] = set
	}
	set[conn] = true
}

// Unsubscribe 摘除一条连接。对未注册的连接调用是安全的。
func (h *Hub) Unsubscribe(conn *websocket.Conn, audience string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.audiences[audience]; ok {
		delete(set, conn)
	}
}

// Broadcast 向一个受众内的全部连接投递事件。
// 尽力而为：单条连接发送失败只摘除该连接并记日志，不影响其余投递。
func (h *Hub) Broadcast(audience string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(audience, ev)
}

// BroadcastAll 向全部受众投递事件。
func (h *Hub) BroadcastAll(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for audience := range h.audiences {
		h.broadcastLocked(audience, ev)
	}
}

func (h *Hub) broadcastLocked(audience string, ev Event) {
	set, ok := h.audiences[audience]
	if !ok {
		return
	}
	var failed []*websocket.Conn
	for conn := range set {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("hub broadcast %s: drop connection: %v", audience, err)
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(set, conn)
		_ = conn.Close()
	}
}

// Size 返回某受众当前在线连接数。
func (h *Hub) Size(audience string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.audiences[audience])
}
