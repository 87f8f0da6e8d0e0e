// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/OverwatchVoice/internal/services"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Commands  *services.CommandService
	LLM       *services.LLMService
	Sessions  *SessionManager
	Metrics   *utils.Metrics
	DebugMode bool

	// 每个 IP 每分钟的 REST 请求上限，0 表示使用默认值
	RateLimit int
}

// SetupRouter 配置HTTP路由
func SetupRouter(deps RouterDeps) *gin.Engine {
	if !deps.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Metrics == nil {
		deps.Metrics = utils.NewMetrics("")
	}

	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}

	handler := NewHandler(deps.Commands, deps.LLM, deps.Sessions)
	wsHandler := NewWebSocketHandler(deps.Sessions, deps.Commands, deps.Metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(deps.Metrics))
	r.Use(corsMiddleware())

	// WebSocket 支持
	r.GET("/ws", wsHandler.ServeWS)

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group("/api")
	api.Use(RateLimitByIP(NewRateLimiter(), rateLimit, time.Minute))
	{
		api.GET("/health", handler.Health)
		api.GET("/sessions", handler.ListSessions)

		commands := api.Group("/commands")
		{
			commands.POST("/parse", handler.ParseCommand)
			commands.GET("/examples", handler.CommandExamples)
		}

		api.POST("/dialogue/event", handler.DialogueEvent)
		api.GET("/voice/phrases", handler.VoicePhrases)
	}

	return r
}
