// internal/api/handlers.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/OverwatchVoice/internal/dialogue"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/services"
)

// Handler 处理 REST 请求
type Handler struct {
	commands *services.CommandService
	llm      *services.LLMService
	sessions *SessionManager
	resp     *ResponseHelper
}

// ParseCommandRequest 指令解析请求
type ParseCommandRequest struct {
	Text string `json:"text"`
}

// DialogueEventRequest 事件台词请求
type DialogueEventRequest struct {
	Event         string            `json:"event"`
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

// NewHandler 创建处理器
func NewHandler(commands *services.CommandService, llm *services.LLMService, sessions *SessionManager) *Handler {
	return &Handler{
		commands: commands,
		llm:      llm,
		sessions: sessions,
		resp:     NewResponseHelper(),
	}
}

// Health 就绪状态与协作方信息
func (h *Handler) Health(c *gin.Context) {
	status := "loading"
	if h.commands.IsReady() {
		status = "ready"
	}

	h.resp.Success(c, gin.H{
		"status":        status,
		"ready":         h.commands.IsReady(),
		"ready_state":   h.commands.ReadyState(),
		"collaborators": h.commands.CollaboratorNames(),
		"llm_state":     h.llm.GetReadyState(),
		"sessions":      h.sessions.Count(),
		"voice_cache":   h.commands.Cache().Stats(),
	})
}

// ListSessions 在线会话与存储中的记录
func (h *Handler) ListSessions(c *gin.Context) {
	entries, err := h.sessions.StoreEntries(c.Request.Context())
	if err != nil {
		h.resp.InternalError(c, ErrorSessionStoreFailed, "Failed to list session store", err.Error())
		return
	}

	status := h.sessions.Status()
	status["store"] = entries
	h.resp.Success(c, status)
}

// ParseCommand 解析一条文本指令；无法解析时返回 422 及澄清台词
func (h *Handler) ParseCommand(c *gin.Context) {
	var req ParseCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, ErrorBadRequest, "Invalid request body", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.resp.BadRequest(c, ErrorCommandTextMissing, "text is required")
		return
	}

	cmd := h.commands.Parse(text)
	if cmd == nil {
		line := h.commands.Templates().Clarify(dialogue.IssueGeneral)
		h.resp.ErrorWithData(c, http.StatusUnprocessableEntity, ErrorCommandUnrecognized, line.Text, gin.H{
			"dialogue": line,
			"examples": h.commands.Examples(),
		})
		return
	}

	h.resp.Success(c, gin.H{
		"command":  cmd,
		"dialogue": h.commands.Templates().Respond(c.Request.Context(), cmd),
	})
}

// CommandExamples 指令示例
func (h *Handler) CommandExamples(c *gin.Context) {
	h.resp.Success(c, gin.H{"examples": h.commands.Examples()})
}

// DialogueEvent 按事件类型返回一条台词
func (h *Handler) DialogueEvent(c *gin.Context) {
	var req DialogueEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, ErrorBadRequest, "Invalid request body", err.Error())
		return
	}

	kind := models.DialogueCategory(req.Event)
	line, ok := h.commands.Templates().RespondToEvent(kind, req.Substitutions)
	if !ok {
		h.resp.BadRequest(c, ErrorUnknownEvent, "Unknown event: "+req.Event)
		return
	}

	h.resp.Success(c, gin.H{
		"dialogue": line,
		"speaker":  models.DefaultSpeaker,
	})
}

// VoicePhrases 已缓存的台词与缓存统计
func (h *Handler) VoicePhrases(c *gin.Context) {
	cache := h.commands.Cache()
	h.resp.Success(c, gin.H{
		"phrases": cache.Phrases(),
		"stats":   cache.Stats(),
	})
}
