// internal/app/app.go
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Corphon/OverwatchVoice/internal/api"
	"github.com/Corphon/OverwatchVoice/internal/config"
	"github.com/Corphon/OverwatchVoice/internal/services"
	"github.com/Corphon/OverwatchVoice/internal/session"
	"github.com/Corphon/OverwatchVoice/internal/storage"
	"github.com/Corphon/OverwatchVoice/internal/stt"
	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

const (
	shutdownTimeout         = 10 * time.Second
	metricsReportInterval   = time.Minute
	defaultPreloadWorkers   = 4
	sessionStoreDialTimeout = 5 * time.Second
)

// Deps 可替换的协作方，未设置的按配置创建
type Deps struct {
	Transcriber stt.Transcriber
	Synthesizer tts.Synthesizer
	Store       session.Store
	LLM         *services.LLMService
	Metrics     *utils.Metrics
	Phrases     []string
}

// App 组装所有组件并管理服务器生命周期
type App struct {
	cfg      *config.Config
	metrics  *utils.Metrics
	llm      *services.LLMService
	commands *services.CommandService
	sessions *api.SessionManager
	store    session.Store
	server   *http.Server
	phrases  []string
	logger   *utils.Logger

	mu        sync.RWMutex
	addr      string
	listening chan struct{}
}

// New 按配置创建应用
func New(cfg *config.Config) (*App, error) {
	return NewWithDeps(cfg, Deps{})
}

// NewWithDeps 创建应用，deps 中已设置的协作方优先
func NewWithDeps(cfg *config.Config, deps Deps) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := utils.GetLogger()

	metrics := deps.Metrics
	if metrics == nil {
		metrics = utils.NewMetrics("overwatch")
	}

	store := deps.Store
	if store == nil {
		ctx, cancel := context.WithTimeout(context.Background(), sessionStoreDialTimeout)
		defer cancel()
		var err error
		if store, err = session.NewFromConfig(ctx, cfg); err != nil {
			return nil, err
		}
	}

	transcriber := deps.Transcriber
	if transcriber == nil {
		transcriber = stt.New(cfg)
	}
	synthesizer := deps.Synthesizer
	if synthesizer == nil {
		synthesizer = tts.New(cfg)
	}
	llmService := deps.LLM
	if llmService == nil {
		llmService = services.NewLLMService(cfg)
	}
	phrases := deps.Phrases
	if phrases == nil {
		phrases = storage.DefaultPhrases
	}

	workers := cfg.MaxInferenceWorkers
	if workers <= 0 {
		workers = defaultPreloadWorkers
	}
	cache := storage.NewVoiceLineCache(synthesizer, workers)
	cache.RegisterMetrics(metrics)

	commands := services.NewCommandService(services.CommandDeps{
		Transcriber:         transcriber,
		Synthesizer:         synthesizer,
		Cache:               cache,
		LLM:                 llmService,
		Metrics:             metrics,
		MaxInferenceWorkers: workers,
		LLMTimeout:          cfg.LLMTimeout,
	})
	sessions := api.NewSessionManager(store, metrics, commands.IsReady)

	router := api.SetupRouter(api.RouterDeps{
		Commands:  commands,
		LLM:       llmService,
		Sessions:  sessions,
		Metrics:   metrics,
		DebugMode: cfg.DebugMode,
	})

	logger.Info("✅ 组件创建完成", map[string]interface{}{
		"transcriber":   transcriber.Name(),
		"synthesizer":   synthesizer.Name(),
		"llm":           llmService.GetReadyState(),
		"session_store": cfg.SessionStore,
		"workers":       workers,
	})

	return &App{
		cfg:       cfg,
		metrics:   metrics,
		llm:       llmService,
		commands:  commands,
		sessions:  sessions,
		store:     store,
		server:    &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		phrases:   phrases,
		logger:    logger,
		listening: make(chan struct{}),
	}, nil
}

// Run 先开始监听，再并行初始化依赖；ctx 取消后优雅关闭。
// 依赖初始化失败时关闭服务器并返回该错误。
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()
	close(a.listening)

	a.logger.Info("🌐 服务器开始监听", map[string]interface{}{"addr": a.Addr()})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.startup(gctx)
	})

	g.Go(func() error {
		a.sessions.RunHeartbeat(gctx, a.cfg.HeartbeatInterval)
		return nil
	})

	a.metrics.StartMetricsCollection(gctx, metricsReportInterval)

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	return g.Wait()
}

// startup 初始化协作方并预加载常用台词，完成后提升所有等待中的会话
func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.logger.Info("🔄 正在加载模型...", nil)

	if err := a.commands.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		a.logger.Error("❌ 依赖初始化失败，服务器即将退出", map[string]interface{}{"error": err})
		return err
	}

	loaded := a.commands.Preload(ctx, a.phrases)
	if ctx.Err() != nil {
		return nil
	}

	a.commands.MarkReady()
	promoted := a.sessions.PromoteAll()

	a.logger.Info("✅ 服务器就绪", map[string]interface{}{
		"voice_lines": loaded,
		"promoted":    promoted,
		"duration":    time.Since(start),
	})
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("🛑 正在关闭服务器...", nil)

	a.sessions.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("❌ 服务器强制关闭", map[string]interface{}{"error": err})
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("关闭会话存储失败", map[string]interface{}{"error": err})
	}

	a.logger.Info("✅ 服务器优雅关闭完成", nil)
}

// Addr 实际监听地址，Run 开始监听前为空
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.addr
}

// Listening 开始监听后关闭
func (a *App) Listening() <-chan struct{} {
	return a.listening
}

// Ready 依赖就绪后关闭
func (a *App) Ready() <-chan struct{} {
	return a.commands.Ready()
}

// Commands 指令服务
func (a *App) Commands() *services.CommandService {
	return a.commands
}

// Sessions 会话管理器
func (a *App) Sessions() *api.SessionManager {
	return a.sessions
}
