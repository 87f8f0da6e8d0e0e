// internal/models/command.go
package models

import "fmt"

// Action 命令动作枚举
type Action string

const (
	ActionMove         Action = "move"
	ActionHold         Action = "hold"
	ActionEngage       Action = "engage"
	ActionCeaseFire    Action = "cease_fire"
	ActionAirstrike    Action = "airstrike"
	ActionUnrecognized Action = "unrecognized"
)

// TargetAll 默认目标：全队
const TargetAll = "all"

// GridCoord 网格坐标对应的世界坐标
type GridCoord struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`

	// 原始网格引用，仅用于日志和测试
	Letter string `json:"-"`
	Number int    `json:"-"`
}

// Cell 返回网格引用，例如 "C5"
func (g GridCoord) Cell() string {
	if g.Letter == "" {
		return ""
	}
	return fmt.Sprintf("%s%d", g.Letter, g.Number)
}

// Command 解析后的结构化命令
type Command struct {
	Action    Action                 `json:"action"`
	Targets   string                 `json:"targets"`
	GridCoord *GridCoord             `json:"gridCoord"`
	Params    map[string]interface{} `json:"params"`
}

// IsRecognized 命令是否对应一个已知动作
func (c *Command) IsRecognized() bool {
	if c == nil {
		return false
	}
	switch c.Action {
	case ActionMove, ActionHold, ActionEngage, ActionCeaseFire, ActionAirstrike:
		return true
	default:
		return false
	}
}

// Param 读取参数，不存在时返回默认值
func (c *Command) Param(key string, defaultValue interface{}) interface{} {
	if c == nil || c.Params == nil {
		return defaultValue
	}
	if v, ok := c.Params[key]; ok && v != nil {
		return v
	}
	return defaultValue
}

// String 便于日志输出
func (c *Command) String() string {
	if c == nil {
		return "<nil>"
	}
	grid := "-"
	if c.GridCoord != nil {
		grid = fmt.Sprintf("%s(%.1f,%.1f)", c.GridCoord.Cell(), c.GridCoord.X, c.GridCoord.Z)
	}
	return fmt.Sprintf("%s targets=%s grid=%s params=%v", c.Action, c.Targets, grid, c.Params)
}
