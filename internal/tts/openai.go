// internal/tts/openai.go
package tts

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"

	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// OpenAIOptions 语音合成接口配置
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAISynthesizer 通过 OpenAI 兼容的 /audio/speech 接口生成 WAV
type OpenAISynthesizer struct {
	opts        OpenAIOptions
	client      *openai.Client
	initialized atomic.Bool
	logger      *utils.Logger
}

// NewOpenAISynthesizer 创建语音合成器
func NewOpenAISynthesizer(opts OpenAIOptions) *OpenAISynthesizer {
	if opts.Model == "" {
		opts.Model = string(openai.TTSModel1)
	}
	return &OpenAISynthesizer{opts: opts, logger: utils.GetLogger()}
}

func (s *OpenAISynthesizer) Name() string {
	return "openai:" + s.opts.Model
}

func (s *OpenAISynthesizer) Initialize(ctx context.Context) error {
	if s.initialized.Load() {
		return nil
	}
	if s.opts.APIKey == "" && s.opts.BaseURL == "" {
		return errors.New("语音合成需要 OPENAI_API_KEY 或 OPENAI_BASE_URL")
	}

	clientConfig := openai.DefaultConfig(s.opts.APIKey)
	if s.opts.BaseURL != "" {
		clientConfig.BaseURL = s.opts.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientConfig)
	s.initialized.Store(true)

	s.logger.Info("OpenAI 语音合成已初始化", map[string]interface{}{"model": s.opts.Model})
	return nil
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, profile SpeakerProfile) ([]byte, error) {
	if !s.initialized.Load() {
		return nil, ErrNotInitialized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.opts.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(profile.Voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          profile.Speed,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("语音合成返回空音频")
	}
	return audio, nil
}
