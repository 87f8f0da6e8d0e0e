// internal/tts/synthesizer.go
package tts

import (
	"context"
	"errors"

	"github.com/Corphon/OverwatchVoice/internal/config"
)

var (
	ErrNotInitialized = errors.New("语音合成未初始化")
	ErrEmptyText      = errors.New("合成文本为空")
)

// Synthesizer 将文本按说话人配置合成为音频
type Synthesizer interface {
	Name() string
	Initialize(ctx context.Context) error
	Synthesize(ctx context.Context, text string, profile SpeakerProfile) ([]byte, error)
}

// SpeakerProfile 说话人声线配置
type SpeakerProfile struct {
	ID    string  `json:"id"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
}

// 内置说话人
const (
	SpeakerDefault = "default"
	SpeakerAlpha   = "alpha"
	SpeakerCommand = "command"
)

var profiles = map[string]SpeakerProfile{
	SpeakerDefault: {ID: SpeakerDefault, Voice: "onyx", Speed: 1.0, Pitch: 1.0},
	// alpha 稍快、偏低；command 放慢以便听清
	SpeakerAlpha:   {ID: SpeakerAlpha, Voice: "onyx", Speed: 1.1, Pitch: 0.95},
	SpeakerCommand: {ID: SpeakerCommand, Voice: "echo", Speed: 0.9, Pitch: 1.0},
}

// Profile 返回说话人配置，未知说话人使用 default 的声线但保留其 ID
func Profile(id string) SpeakerProfile {
	if p, ok := profiles[id]; ok {
		return p
	}
	p := profiles[SpeakerDefault]
	if id != "" {
		p.ID = id
	}
	return p
}

// Speakers 返回内置说话人 ID
func Speakers() []string {
	return []string{SpeakerDefault, SpeakerAlpha, SpeakerCommand}
}

// New 根据配置选择实现
func New(cfg *config.Config) Synthesizer {
	if cfg.TTSProvider == config.TTSProviderOpenAI {
		return NewOpenAISynthesizer(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.TTSModel,
		})
	}
	return NewToneSynthesizer()
}
