// internal/stt/transcriber.go
package stt

import (
	"context"
	"errors"

	"github.com/Corphon/OverwatchVoice/internal/config"
)

var (
	ErrNotInitialized = errors.New("语音识别未初始化")
	ErrEmptyAudio     = errors.New("音频为空")
)

// Transcriber 将一段音频转换为文本。返回空字符串表示没有识别到内容。
type Transcriber interface {
	Name() string
	Initialize(ctx context.Context) error
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// New 根据配置选择实现
func New(cfg *config.Config) Transcriber {
	if cfg.UseMockSTT {
		return NewStubTranscriber(cfg.StubTranscript, DefaultStubLatency)
	}
	return NewWhisperTranscriber(WhisperOptions{
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.STTModel,
		Language: cfg.STTLanguage,
	})
}
