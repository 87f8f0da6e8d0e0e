// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/session"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20 // base64 音频
	sendBufferSize = 256
	inboxSize      = 64
	storeTimeout   = 2 * time.Second
)

var (
	// ErrSessionClosed 向已关闭的会话发送消息
	ErrSessionClosed = errors.New("session closed")
	// ErrSendQueueFull 非阻塞发送时队列已满
	ErrSendQueueFull = errors.New("session send queue full")
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 游戏客户端与服务端通常不同源
		return true
	},
}

// Session 一个 WebSocket 连接及其状态
type Session struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	connectedAt time.Time

	state        atomic.Int32
	lastActivity atomic.Int64

	send      chan []byte
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	manager *SessionManager
}

// ID 会话 ID
func (s *Session) ID() string { return s.id }

// Context 会话关闭时取消
func (s *Session) Context() context.Context { return s.ctx }

// State 当前状态
func (s *Session) State() models.SessionState {
	return models.SessionState(s.state.Load())
}

// IsClosed 会话是否已关闭
func (s *Session) IsClosed() bool {
	return s.State() == models.SessionClosed
}

// Promote connecting → ready；其他状态不变，返回是否处于 ready
func (s *Session) Promote() bool {
	if s.state.CompareAndSwap(int32(models.SessionConnecting), int32(models.SessionReady)) {
		s.manager.logger.Info("✅ 会话就绪", map[string]interface{}{"session_id": s.id})
		s.manager.mirror(s, s.lastSeen())
		return true
	}
	return s.State() == models.SessionReady
}

// Info 会话元数据快照
func (s *Session) Info() models.SessionInfo {
	return models.SessionInfo{
		ID:           s.id,
		State:        s.State().String(),
		RemoteAddr:   s.remoteAddr,
		ConnectedAt:  s.connectedAt,
		LastActivity: s.lastSeen(),
	}
}

func (s *Session) touch() time.Time {
	now := time.Now()
	s.lastActivity.Store(now.UnixNano())
	return now
}

func (s *Session) lastSeen() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Send 按顺序入队一条消息，队列满时等待；会话关闭返回 ErrSessionClosed
func (s *Session) Send(env models.OutboundEnvelope) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case s.send <- data:
		s.manager.metrics.RecordOutbound(string(env.Type))
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// TrySend 非阻塞发送
func (s *Session) TrySend(env models.OutboundEnvelope) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case s.send <- data:
		s.manager.metrics.RecordOutbound(string(env.Type))
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendQueueFull
	}
}

// Close 关闭会话，可重复调用
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(models.SessionClosed))
		s.cancel()
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
		s.manager.remove(s)
	})
}

// readPump 读取入站消息并按到达顺序放入 inbox；返回时关闭 inbox
func (s *Session) readPump(inbox chan<- []byte) {
	defer close(inbox)
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.manager.logger.Warn("WebSocket 读取错误", map[string]interface{}{
					"session_id": s.id,
					"error":      err,
				})
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.touch()

		select {
		case inbox <- message:
		case <-s.done:
			return
		}
	}
}

// writePump 唯一的写协程，同时负责协议层 ping
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// SessionManager 管理所有在线会话
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store   session.Store
	metrics *utils.Metrics
	logger  *utils.Logger

	// 依赖是否就绪，决定新会话的初始状态
	ready func() bool
}

// NewSessionManager 创建会话管理器；store 为 nil 时使用内存存储
func NewSessionManager(store session.Store, metrics *utils.Metrics, ready func() bool) *SessionManager {
	if store == nil {
		store = session.NewMemoryStore()
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		store:    store,
		metrics:  metrics,
		logger:   utils.GetLogger(),
		ready:    ready,
	}
}

// Open 注册新连接，conn 可以为 nil（仅用于不经过网络的场景）
func (m *SessionManager) Open(conn *websocket.Conn, remoteAddr string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s := &Session{
		id:          uuid.NewString(),
		conn:        conn,
		remoteAddr:  remoteAddr,
		connectedAt: now,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		manager:     m,
	}
	s.lastActivity.Store(now.UnixNano())
	if m.ready() {
		s.state.Store(int32(models.SessionReady))
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.putInfo(s.Info())

	m.logger.Info("🔌 会话已连接", map[string]interface{}{
		"session_id":  s.id,
		"remote_addr": remoteAddr,
		"state":       s.State().String(),
	})
	return s
}

// remove 由 Session.Close 调用
func (m *SessionManager) remove(s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.metrics.SessionClosed()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, s.id); err != nil {
		m.logger.Warn("删除会话记录失败", map[string]interface{}{"session_id": s.id, "error": err})
	}

	m.logger.Info("🔌 会话已断开", map[string]interface{}{
		"session_id": s.id,
		"duration":   time.Since(s.connectedAt),
	})
}

func (m *SessionManager) putInfo(info models.SessionInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Put(ctx, info); err != nil {
		m.logger.Warn("写入会话记录失败", map[string]interface{}{"session_id": info.ID, "error": err})
	}
}

// mirror 同步状态与活跃时间到会话存储
func (m *SessionManager) mirror(s *Session, at time.Time) {
	if s.IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := m.store.Touch(ctx, s.id, s.State().String(), at)
	if errors.Is(err, session.ErrNotFound) {
		// 记录已过期，重新写入
		m.putInfo(s.Info())
		return
	}
	if err != nil {
		m.logger.Warn("更新会话记录失败", map[string]interface{}{"session_id": s.id, "error": err})
	}
}

// Get 按 ID 查找会话
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count 在线会话数
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// PromoteAll 依赖就绪后提升所有 connecting 会话，返回被提升的数量
func (m *SessionManager) PromoteAll() int {
	promoted := 0
	for _, s := range m.snapshot() {
		if s.State() == models.SessionConnecting && s.Promote() {
			promoted++
		}
	}
	return promoted
}

// Broadcast 非阻塞地向所有在线会话发送消息，单个会话失败不影响其他会话
func (m *SessionManager) Broadcast(env models.OutboundEnvelope) (sent, failed int) {
	for _, s := range m.snapshot() {
		if s.IsClosed() {
			continue
		}
		if err := s.TrySend(env); err != nil {
			failed++
			m.metrics.RecordHeartbeatFailure()
			m.logger.Warn("⚠️ 心跳发送失败", map[string]interface{}{
				"session_id": s.id,
				"error":      err,
			})
			continue
		}
		sent++
	}
	return sent, failed
}

// RunHeartbeat 每隔 interval 向所有会话发送 ping，直到 ctx 取消
func (m *SessionManager) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, failed := m.Broadcast(models.NewPing())
			if sent+failed > 0 {
				m.logger.Debug("💓 心跳", map[string]interface{}{"sent": sent, "failed": failed})
			}
		}
	}
}

// CloseAll 关闭所有会话
func (m *SessionManager) CloseAll() {
	sessions := m.snapshot()
	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		m.logger.Info("🛑 已关闭所有会话", map[string]interface{}{"count": len(sessions)})
	}
}

// Status 在线会话概况
func (m *SessionManager) Status() map[string]interface{} {
	sessions := m.snapshot()
	infos := make([]models.SessionInfo, 0, len(sessions))
	counts := map[string]int{}
	for _, s := range sessions {
		info := s.Info()
		counts[info.State]++
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})

	return map[string]interface{}{
		"total":      len(infos),
		"ready":      counts[models.SessionReady.String()],
		"connecting": counts[models.SessionConnecting.String()],
		"sessions":   infos,
	}
}

// StoreEntries 会话存储中的记录
func (m *SessionManager) StoreEntries(ctx context.Context) ([]models.SessionInfo, error) {
	return m.store.List(ctx)
}
