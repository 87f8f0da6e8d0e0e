// internal/dialogue/generative.go
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/OverwatchVoice/internal/llm"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// MaxWindow 对话窗口保留的最大消息数
const MaxWindow = 10

// SystemPrompt 生成式对话使用的角色设定
const SystemPrompt = `You are Alpha-1, the squad leader of a 4-person infantry team in a tactical operation.
You communicate via radio using short, professional military radio protocol.
Keep responses brief (under 10 words typically).
Use callsigns and grid references when relevant.
Maintain composure under fire but show appropriate urgency.
Never break character or acknowledge being an AI.`

// GenerativeOptions 生成式回应器配置
type GenerativeOptions struct {
	Timeout   time.Duration
	MaxTokens int
	Metrics   *utils.Metrics
}

// GenerativeResponder 调用 LLM 生成台词，任何失败都回退到模板。
// 每个会话持有一个实例，窗口不跨会话共享。
type GenerativeResponder struct {
	fallback *TemplateResponder
	provider llm.Provider
	opts     GenerativeOptions
	logger   *utils.Logger

	mu     sync.Mutex
	window []llm.Message
}

// NewGenerativeResponder 创建生成式回应器，provider 可以为 nil
func NewGenerativeResponder(fallback *TemplateResponder, provider llm.Provider, opts GenerativeOptions) *GenerativeResponder {
	if fallback == nil {
		fallback = NewTemplateResponder(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 40
	}
	return &GenerativeResponder{
		fallback: fallback,
		provider: provider,
		opts:     opts,
		logger:   utils.GetLogger(),
	}
}

// Respond 生成回应。澄清请求始终使用模板。
func (g *GenerativeResponder) Respond(ctx context.Context, cmd *models.Command) models.DialogueLine {
	templated := g.fallback.Respond(ctx, cmd)
	if g.provider == nil || !cmd.IsRecognized() {
		return templated
	}

	prompt := describeCommand(cmd)

	g.mu.Lock()
	history := make([]llm.Message, len(g.window))
	copy(history, g.window)
	g.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.CompleteText(callCtx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Messages:     history,
		Prompt:       prompt,
		MaxTokens:    g.opts.MaxTokens,
		Temperature:  0.7,
	})

	text := ""
	if err == nil && resp != nil {
		text = cleanReply(resp.Text)
		if text == "" {
			err = llm.ErrEmptyResponse
		}
	}
	g.opts.Metrics.RecordLLMRequest(g.provider.GetName(), time.Since(start), err)

	if err != nil {
		g.logger.Warn("生成式对话失败，使用模板回应", map[string]interface{}{
			"provider": g.provider.GetName(),
			"error":    err,
		})
		return templated
	}

	g.remember(
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleAssistant, Content: text},
	)
	return models.DialogueLine{Text: text, Category: templated.Category}
}

// Window 返回当前对话窗口副本
func (g *GenerativeResponder) Window() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]llm.Message, len(g.window))
	copy(out, g.window)
	return out
}

// Reset 清空对话窗口
func (g *GenerativeResponder) Reset() {
	g.mu.Lock()
	g.window = nil
	g.mu.Unlock()
}

func (g *GenerativeResponder) remember(msgs ...llm.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window = append(g.window, msgs...)
	if over := len(g.window) - MaxWindow; over > 0 {
		g.window = append([]llm.Message(nil), g.window[over:]...)
	}
}

func describeCommand(cmd *models.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order received: %s. Targets: %s.", cmd.Action, cmd.Targets)
	if cmd.GridCoord != nil && cmd.GridCoord.Cell() != "" {
		fmt.Fprintf(&b, " Grid: %s.", cmd.GridCoord.Cell())
	}
	if kind, ok := cmd.Params["type"]; ok {
		fmt.Fprintf(&b, " Type: %v.", kind)
	}
	b.WriteString(" Acknowledge over the radio.")
	return b.String()
}

// cleanReply 只保留首行并去掉引号
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.Trim(strings.TrimSpace(text), `"'`)
}
