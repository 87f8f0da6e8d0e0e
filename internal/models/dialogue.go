// internal/models/dialogue.go
package models

// DialogueCategory 对话模板分类
type DialogueCategory string

// DialogueLine 渲染后的回应文本及其来源分类，生成后不可修改
type DialogueLine struct {
	Text     string           `json:"text"`
	Category DialogueCategory `json:"category"`
}

// IsEmpty 是否为空回应
func (l DialogueLine) IsEmpty() bool {
	return l.Text == ""
}
