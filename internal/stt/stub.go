// internal/stt/stub.go
package stt

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultStubLatency 模拟推理耗时
const DefaultStubLatency = 500 * time.Millisecond

// StubTranscriber 无硬件加速时使用，固定返回配置的短语（可能为空）
type StubTranscriber struct {
	phrase      string
	latency     time.Duration
	initialized atomic.Bool
}

// NewStubTranscriber 创建模拟识别器
func NewStubTranscriber(phrase string, latency time.Duration) *StubTranscriber {
	return &StubTranscriber{phrase: phrase, latency: latency}
}

func (s *StubTranscriber) Name() string { return "stub" }

func (s *StubTranscriber) Initialize(ctx context.Context) error {
	s.initialized.Store(true)
	return nil
}

func (s *StubTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !s.initialized.Load() {
		return "", ErrNotInitialized
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.phrase, nil
}
