// internal/api/websocket_handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/OverwatchVoice/internal/errors"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/services"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// WebSocketHandler 处理语音指令 WebSocket 连接
type WebSocketHandler struct {
	manager  *SessionManager
	commands *services.CommandService
	metrics  *utils.Metrics
	logger   *utils.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(manager *SessionManager, commands *services.CommandService, metrics *utils.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		commands: commands,
		metrics:  metrics,
		logger:   utils.GetLogger(),
	}
}

// ServeWS 升级连接并运行会话直到断开
func (wh *WebSocketHandler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Error("❌ WebSocket 升级失败", map[string]interface{}{"error": err})
		return
	}

	s := wh.manager.Open(conn, c.ClientIP())
	inbox := make(chan []byte, inboxSize)

	go s.writePump()
	go wh.processInbox(s, inbox)

	s.readPump(inbox)
}

// processInbox 每个会话一个处理协程，按到达顺序处理消息
func (wh *WebSocketHandler) processInbox(s *Session, inbox <-chan []byte) {
	pipeline := wh.commands.NewPipeline(s.ID(), s.Send)
	defer pipeline.Close()

	for raw := range inbox {
		err := wh.dispatch(s.Context(), s, pipeline, raw)
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			wh.logger.Warn("处理消息失败", map[string]interface{}{
				"session_id": s.ID(),
				"error":      err,
			})
		}
		wh.manager.mirror(s, s.lastSeen())
	}
}

// dispatch 按消息类型分发
func (wh *WebSocketHandler) dispatch(ctx context.Context, s *Session, pipeline *services.SessionPipeline, raw []byte) error {
	var env models.InboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		wh.metrics.RecordError(string(apperrors.ErrorTypeMalformedInput), "router")
		wh.logger.Warn("消息格式错误", map[string]interface{}{
			"session_id": s.ID(),
			"error":      err,
		})
		return s.Send(models.NewError(apperrors.MsgInvalidMessageFormat))
	}
	switch env.Type {
	case models.TypePong:
		wh.metrics.RecordInbound(string(env.Type))
		return nil

	case models.TypeAudio, models.TypeTextCommand, models.TypeTTSRequest:
		wh.metrics.RecordInbound(string(env.Type))
		if !wh.ensureReady(s) {
			return s.Send(models.NewError(apperrors.ClientMessage(apperrors.NewNotReadyError(), apperrors.MsgServerNotReady)))
		}

	default:
		wh.metrics.RecordInbound("unknown")
		wh.logger.Debug("忽略未知消息类型", map[string]interface{}{
			"session_id": s.ID(),
			"type":       env.Type,
		})
		return nil
	}

	switch env.Type {
	case models.TypeAudio:
		return pipeline.HandleAudio(ctx, env.Audio)
	case models.TypeTextCommand:
		return pipeline.HandleText(ctx, env.Text)
	default:
		return pipeline.HandleTTS(ctx, env.Text, env.Speaker)
	}
}

// ensureReady 依赖就绪后懒提升会话
func (wh *WebSocketHandler) ensureReady(s *Session) bool {
	switch s.State() {
	case models.SessionReady:
		return true
	case models.SessionConnecting:
		if wh.commands.IsReady() {
			return s.Promote()
		}
	}
	return false
}
