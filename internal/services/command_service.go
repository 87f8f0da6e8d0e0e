// internal/services/command_service.go
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Corphon/OverwatchVoice/internal/dialogue"
	apperrors "github.com/Corphon/OverwatchVoice/internal/errors"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/nlp"
	"github.com/Corphon/OverwatchVoice/internal/storage"
	"github.com/Corphon/OverwatchVoice/internal/stt"
	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// CommandDeps 指令服务依赖
type CommandDeps struct {
	Transcriber stt.Transcriber
	Synthesizer tts.Synthesizer
	Cache       *storage.VoiceLineCache
	LLM         *LLMService
	Rand        dialogue.Rand
	Metrics     *utils.Metrics

	// 推理并发上限（语音识别、语音合成、生成式对话共用）
	MaxInferenceWorkers int
	LLMTimeout          time.Duration
}

// CommandService 持有所有会话共享的依赖以及就绪状态
type CommandService struct {
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	cache       *storage.VoiceLineCache
	llm         *LLMService
	parser      *nlp.Parser
	templates   *dialogue.TemplateResponder
	workers     *semaphore.Weighted
	metrics     *utils.Metrics
	logger      *utils.Logger
	llmTimeout  time.Duration

	ready      atomic.Bool
	stateMu    sync.RWMutex
	readyState string
	readyCh    chan struct{}
	readyOnce  sync.Once
}

// NewCommandService 创建指令服务
func NewCommandService(deps CommandDeps) *CommandService {
	workers := deps.MaxInferenceWorkers
	if workers <= 0 {
		workers = 4
	}
	cache := deps.Cache
	if cache == nil {
		cache = storage.NewVoiceLineCache(deps.Synthesizer, workers)
	}

	workerSem := semaphore.NewWeighted(int64(workers))
	cache.SetLimiter(workerSem)

	return &CommandService{
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		cache:       cache,
		llm:         deps.LLM,
		parser:      nlp.NewParser(),
		templates:   dialogue.NewTemplateResponder(deps.Rand),
		workers:     workerSem,
		metrics:     deps.Metrics,
		logger:      utils.GetLogger(),
		llmTimeout:  deps.LLMTimeout,
		readyState:  "Loading models",
		readyCh:     make(chan struct{}),
	}
}

// Initialize 并行初始化语音识别与语音合成，任一失败即为致命错误
func (s *CommandService) Initialize(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		if err := s.transcriber.Initialize(gctx); err != nil {
			return apperrors.NewFatalError("语音识别初始化失败", err)
		}
		s.logger.Info("✅ 语音识别就绪", map[string]interface{}{
			"name":     s.transcriber.Name(),
			"duration": time.Since(start),
		})
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		if err := s.synthesizer.Initialize(gctx); err != nil {
			return apperrors.NewFatalError("语音合成初始化失败", err)
		}
		s.logger.Info("✅ 语音合成就绪", map[string]interface{}{
			"name":     s.synthesizer.Name(),
			"duration": time.Since(start),
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		s.setReadyState("Initialization failed")
		return err
	}
	s.setReadyState("Preloading voice lines")
	return nil
}

// Preload 预生成常用台词
func (s *CommandService) Preload(ctx context.Context, phrases []string) int {
	return s.cache.Preload(ctx, phrases)
}

// MarkReady 标记依赖已就绪，只生效一次
func (s *CommandService) MarkReady() {
	s.readyOnce.Do(func() {
		s.ready.Store(true)
		s.setReadyState("Ready")
		close(s.readyCh)
	})
}

// IsReady 依赖是否已就绪
func (s *CommandService) IsReady() bool {
	return s.ready.Load()
}

// Ready 就绪时关闭的通道
func (s *CommandService) Ready() <-chan struct{} {
	return s.readyCh
}

// ReadyState 可读的就绪状态
func (s *CommandService) ReadyState() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.readyState
}

func (s *CommandService) setReadyState(state string) {
	s.stateMu.Lock()
	s.readyState = state
	s.stateMu.Unlock()
}

// Parse 解析指令文本并记录指标
func (s *CommandService) Parse(text string) *models.Command {
	start := time.Now()
	cmd := s.parser.Parse(text)
	s.metrics.ObserveStage("parse", time.Since(start))
	if cmd != nil {
		s.metrics.RecordCommand(string(cmd.Action))
	}
	return cmd
}

// Examples 返回示例指令
func (s *CommandService) Examples() []string {
	return s.parser.Examples()
}

// Templates 返回模板回应器
func (s *CommandService) Templates() *dialogue.TemplateResponder {
	return s.templates
}

// Cache 返回语音缓存
func (s *CommandService) Cache() *storage.VoiceLineCache {
	return s.cache
}

// CollaboratorNames 返回各协作方名称，用于健康检查
func (s *CommandService) CollaboratorNames() map[string]string {
	names := map[string]string{
		"transcriber": s.transcriber.Name(),
		"synthesizer": s.synthesizer.Name(),
		"dialogue":    "templates",
	}
	if s.llm.IsReady() {
		names["dialogue"] = "llm:" + s.llm.GetProviderName()
	}
	return names
}

// newResponder 每个会话一个回应器，生成式对话窗口不跨会话共享
func (s *CommandService) newResponder() (dialogue.Responder, *dialogue.GenerativeResponder) {
	provider := s.llm.GetProvider()
	if provider == nil {
		return s.templates, nil
	}
	g := dialogue.NewGenerativeResponder(s.templates, provider, dialogue.GenerativeOptions{
		Timeout: s.llmTimeout,
		Metrics: s.metrics,
	})
	return g, g
}

// withWorker 在推理并发上限内执行 fn
func (s *CommandService) withWorker(ctx context.Context, stage string, fn func() error) error {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.workers.Release(1)

	start := time.Now()
	err := fn()
	s.metrics.ObserveStage(stage, time.Since(start))
	return err
}
