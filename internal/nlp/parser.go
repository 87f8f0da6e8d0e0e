// internal/nlp/parser.go
package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// actionRule 动作及其触发短语
type actionRule struct {
	action   models.Action
	triggers []string
}

// actionTable 动作优先级表：越靠前优先级越高。
// 复合短语 ("cease fire", "air strike") 必须排在通用动词之前，
// 否则 "cease fire" 会被 engage 的 "fire" 抢先匹配。
var actionTable = []actionRule{
	{models.ActionCeaseFire, []string{"cease fire", "hold fire", "stop firing", "weapons hold"}},
	{models.ActionAirstrike, []string{"airstrike", "air strike", "precision strike", "bomb", "strike", "ordnance"}},
	{models.ActionMove, []string{"move", "go", "advance", "proceed", "relocate", "head"}},
	{models.ActionHold, []string{"hold", "stop", "stay", "halt", "wait", "position"}},
	{models.ActionEngage, []string{"engage", "attack", "fire", "eliminate", "take out", "shoot"}},
}

// unitRule 单个队员的识别规则
type unitRule struct {
	target  string
	pattern *regexp.Regexp
}

var unitTable = buildUnitTable()

var allTriggers = []string{"squad", "team", "all", "everyone", "everybody"}

var gridPattern = regexp.MustCompile(`\b(?:grid\s+)?([a-j])\s*(\d+)\b`)

func buildUnitTable() []unitRule {
	words := []string{"one", "two", "three", "four"}
	rules := make([]unitRule, 0, len(words))
	for i, word := range words {
		n := i + 1
		rules = append(rules, unitRule{
			target:  fmt.Sprintf("alpha-%d", n),
			pattern: regexp.MustCompile(fmt.Sprintf(`\balpha[\s-]?(?:%d|%s)\b`, n, word)),
		})
	}
	return rules
}

// Parser 将自然语言指令解析为结构化命令
type Parser struct {
	logger *utils.Logger
}

// NewParser 创建命令解析器
func NewParser() *Parser {
	return &Parser{logger: utils.GetLogger()}
}

// Parse 解析指令文本，无法识别动作时返回 nil
func (p *Parser) Parse(text string) *models.Command {
	raw := strings.ToLower(strings.TrimSpace(text))
	if raw == "" {
		return nil
	}

	normalized := Normalize(raw)

	action, ok := p.parseAction(normalized)
	if !ok {
		p.logger.Debug("无法识别指令动作", map[string]interface{}{"text": normalized})
		return nil
	}

	cmd := &models.Command{
		Action:    action,
		Targets:   p.parseTargets(raw, normalized),
		GridCoord: p.parseGrid(normalized),
		Params:    p.parseParams(normalized, action),
	}

	p.logger.Debug("指令解析完成", map[string]interface{}{
		"text":    normalized,
		"command": cmd.String(),
	})
	return cmd
}

// parseAction 按优先级表查找第一个命中的动作
func (p *Parser) parseAction(text string) (models.Action, bool) {
	for _, rule := range actionTable {
		for _, trigger := range rule.triggers {
			if strings.Contains(text, trigger) {
				return rule.action, true
			}
		}
	}
	return "", false
}

// parseTargets 先匹配具体队员，再匹配全队关键词，默认全队。
// 原始文本也参与匹配，因为 "alpha one" 会被归一化成 "a 1"。
func (p *Parser) parseTargets(raw, normalized string) string {
	for _, rule := range unitTable {
		if rule.pattern.MatchString(raw) || rule.pattern.MatchString(normalized) {
			return rule.target
		}
	}

	for _, trigger := range allTriggers {
		if strings.Contains(normalized, trigger) {
			return models.TargetAll
		}
	}

	return models.TargetAll
}

// parseGrid 解析网格坐标，越界时视为未指定
func (p *Parser) parseGrid(text string) *models.GridCoord {
	match := gridPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	number, err := strconv.Atoi(match[2])
	if err != nil {
		return nil
	}

	coord, ok := GridToWorld(match[1], number)
	if !ok {
		p.logger.Debug("网格编号越界，忽略", map[string]interface{}{"grid": match[0]})
		return nil
	}
	return &coord
}

// parseParams 解析动作相关参数
func (p *Parser) parseParams(text string, action models.Action) map[string]interface{} {
	params := make(map[string]interface{})

	switch action {
	case models.ActionAirstrike:
		if strings.Contains(text, "cluster") {
			params["type"] = "cluster"
		} else {
			params["type"] = "precision"
		}
	}

	return params
}

// Examples 返回示例指令列表
func (p *Parser) Examples() []string {
	return []string{
		"Alpha team move to grid C5",
		"Squad advance to D7",
		"Alpha-1 hold position",
		"Team engage targets",
		"Cease fire",
		"Call airstrike on grid E5",
		"Precision strike on F8",
		"Cluster bomb on G4",
	}
}
