// internal/stt/whisper.go
package stt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"

	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// WhisperOptions Whisper 接口配置；BaseURL 可指向本地兼容服务
type WhisperOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	// 浏览器录音默认是 webm/opus
	FileName string
}

// WhisperTranscriber 通过 OpenAI 兼容的 /audio/transcriptions 接口识别语音
type WhisperTranscriber struct {
	opts        WhisperOptions
	client      *openai.Client
	initialized atomic.Bool
	logger      *utils.Logger
}

// NewWhisperTranscriber 创建 Whisper 识别器
func NewWhisperTranscriber(opts WhisperOptions) *WhisperTranscriber {
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.FileName == "" {
		opts.FileName = "command.webm"
	}
	return &WhisperTranscriber{opts: opts, logger: utils.GetLogger()}
}

func (w *WhisperTranscriber) Name() string {
	return "whisper:" + w.opts.Model
}

// Initialize 创建客户端。官方接口需要密钥，自建服务可不设密钥但必须设置 BaseURL。
func (w *WhisperTranscriber) Initialize(ctx context.Context) error {
	if w.initialized.Load() {
		return nil
	}
	if w.opts.APIKey == "" && w.opts.BaseURL == "" {
		return errors.New("Whisper 需要 OPENAI_API_KEY 或 OPENAI_BASE_URL")
	}

	clientConfig := openai.DefaultConfig(w.opts.APIKey)
	if w.opts.BaseURL != "" {
		clientConfig.BaseURL = w.opts.BaseURL
	}
	w.client = openai.NewClientWithConfig(clientConfig)
	w.initialized.Store(true)

	w.logger.Info("Whisper 语音识别已初始化", map[string]interface{}{
		"model":    w.opts.Model,
		"language": w.opts.Language,
	})
	return nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !w.initialized.Load() {
		return "", ErrNotInitialized
	}
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.opts.Model,
		FilePath: w.opts.FileName,
		Reader:   bytes.NewReader(audio),
		Language: w.opts.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("语音识别完成", map[string]interface{}{"text": text})
	return text, nil
}
