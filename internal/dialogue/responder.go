// internal/dialogue/responder.go
package dialogue

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"

	"github.com/Corphon/OverwatchVoice/internal/models"
)

// Responder 将命令转换为队友的口头回应
type Responder interface {
	Respond(ctx context.Context, cmd *models.Command) models.DialogueLine
}

// Rand 随机源，测试中可替换为确定性实现
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.Intn(n) }

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// TemplateResponder 从固定模板中均匀随机选取回应
type TemplateResponder struct {
	rnd Rand
}

// NewTemplateResponder 创建模板回应器，rnd 为 nil 时使用全局随机源
func NewTemplateResponder(rnd Rand) *TemplateResponder {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &TemplateResponder{rnd: rnd}
}

// Respond 根据命令动作生成回应；无命令或未知动作时返回澄清请求
func (r *TemplateResponder) Respond(_ context.Context, cmd *models.Command) models.DialogueLine {
	if !cmd.IsRecognized() {
		return r.Clarify(IssueGeneral)
	}

	category := models.DialogueCategory(cmd.Action)
	template := r.pick(templateTable[category])

	if category == CategoryAirstrike {
		delay := cmd.Param("delay", DefaultAirstrikeDelay)
		template = substitute(template, map[string]string{"delay": fmt.Sprint(delay)})
	}

	return models.DialogueLine{Text: template, Category: category}
}

// RespondToEvent 渲染游戏事件台词。缺失的占位符原样保留；
// 未知事件返回空行且 ok 为 false。
func (r *TemplateResponder) RespondToEvent(kind models.DialogueCategory, subs map[string]string) (models.DialogueLine, bool) {
	if !IsEventKind(kind) {
		return models.DialogueLine{}, false
	}
	template := r.pick(templateTable[kind])
	return models.DialogueLine{Text: substitute(template, subs), Category: kind}, true
}

// Clarify 生成澄清请求，未知 issue 按 general 处理
func (r *TemplateResponder) Clarify(issue string) models.DialogueLine {
	pool, ok := clarifyTable[issue]
	if !ok {
		pool = clarifyTable[IssueGeneral]
	}
	return models.DialogueLine{Text: r.pick(pool), Category: CategoryClarify}
}

func (r *TemplateResponder) pick(pool []string) string {
	if len(pool) == 0 {
		return "Copy."
	}
	return pool[r.rnd.IntN(len(pool))]
}

// substitute 替换已知占位符，其余保持不变
func substitute(template string, subs map[string]string) string {
	if len(subs) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := subs[key]; ok {
			return v
		}
		return match
	})
}
