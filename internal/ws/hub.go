package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"firewatch/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// 单次写入的截止时间
	writeTimeout = 10 * time.Second

	// 等待 pong 响应的时长，超时视为连接已断开
	pongWait = 60 * time.Second

	// ping 帧发送周期，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10

	// 每连接的出站消息缓冲深度
	sendBufSize = 16

	// 入站帧大小上限（只接收小的订阅控制消息）
	readLimit = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 跨域控制交给反向代理层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// 推送事件名
const (
	EventNewAlert          = "newAlert"
	EventAlertAcknowledged = "alertAcknowledged"
	EventAlertResolved     = "alertResolved"
	EventAlertDismissed    = "alertDismissed"
	EventAlertEscalated    = "alertEscalated"
	EventBulkAcknowledged  = "bulkAlertsAcknowledged"
	EventPersonalAlert     = "personal-alert"
)

// 主题命名
const (
	TopicBroadcast = "broadcast"
)

// TopicRole 角色主题
func TopicRole(role string) string { return "role:" + role }

// TopicDepartment 部门主题
func TopicDepartment(department string) string { return "department:" + department }

// TopicPersonal 个人主题（队员本人的告警推送）
func TopicPersonal(firefighterID string) string { return "personal:" + firefighterID }

// TopicMonitor 监护主题（指挥/医疗人员订阅特定队员）
func TopicMonitor(firefighterID string) string { return "monitor:" + firefighterID }

// Message 推送消息信封
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// controlMessage 客户端发来的订阅控制消息
type controlMessage struct {
	Action        string `json:"action"`
	FirefighterID string `json:"firefighterId"`
}

// client 一条已连接的 WebSocket 会话
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	role   string

	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

func (c *client) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

// trySend 非阻塞投递；连接已关闭时静默丢弃
// 返回 false 表示出站缓冲已满（慢客户端）
func (c *client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

func (c *client) subscribe(topic string) {
	c.mu.Lock()
	c.topics[topic] = true
	c.mu.Unlock()
}

func (c *client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

// Hub WebSocket 连接中心
// 每条连接在升级时按 user/role/department 查询参数挂上默认主题，
// 之后可通过控制消息增订/退订 monitor:<firefighterId> 主题
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub 创建连接中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP 升级 HTTP 连接并服务该客户端，阻塞到连接关闭
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader 已写入错误响应
		return
	}

	query := r.URL.Query()
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		userID: query.Get("user"),
		role:   query.Get("role"),
		topics: make(map[string]bool),
	}

	c.subscribe(TopicBroadcast)
	if c.role != "" {
		c.subscribe(TopicRole(c.role))
	}
	if dept := query.Get("department"); dept != "" {
		c.subscribe(TopicDepartment(dept))
	}
	if c.userID != "" {
		c.subscribe(TopicPersonal(c.userID))
	}

	h.register(c)
	defer h.unregister(c)

	h.logger.Debug("WebSocket client connected",
		zap.String("user_id", c.userID),
		zap.String("role", c.role),
	)

	go c.writePump()
	h.readPump(c) // 阻塞到连接关闭
}

// Publish 向订阅了任一给定主题的客户端推送事件
// 出站缓冲已满的慢客户端直接断开，不阻塞推送方
func (h *Hub) Publish(event string, data interface{}, topics ...string) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal push message",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		for _, topic := range topics {
			if c.subscribed(topic) {
				targets = append(targets, c)
				break
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(payload) {
			h.unregister(c)
		}
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 关闭全部连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// ============================================

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump 读取连接上的入站帧：处理订阅控制消息并感知断连
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var ctrl controlMessage
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			continue
		}
		h.handleControl(c, ctrl)
	}
}

// handleControl 处理 subscribe-firefighter / unsubscribe-firefighter
// monitor 主题只对 commander/admin/medic 角色开放
func (h *Hub) handleControl(c *client, ctrl controlMessage) {
	switch ctrl.Action {
	case "subscribe-firefighter":
		if ctrl.FirefighterID == "" {
			return
		}
		if !models.CanMonitor(c.role) {
			h.logger.Warn("Monitor subscription denied",
				zap.String("user_id", c.userID),
				zap.String("role", c.role),
				zap.String("firefighter_id", ctrl.FirefighterID),
			)
			return
		}
		c.subscribe(TopicMonitor(ctrl.FirefighterID))
	case "unsubscribe-firefighter":
		if ctrl.FirefighterID == "" {
			return
		}
		c.unsubscribe(TopicMonitor(ctrl.FirefighterID))
	}
}

// writePump 消费出站缓冲并定期发送 ping 帧，每连接一个 goroutine
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
