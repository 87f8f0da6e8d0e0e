// internal/services/session_pipeline.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/Corphon/OverwatchVoice/internal/dialogue"
	apperrors "github.com/Corphon/OverwatchVoice/internal/errors"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// Emitter 按顺序发送一条出站消息；返回错误表示会话已不可用，当前处理随即结束
type Emitter func(models.OutboundEnvelope) error

// SessionPipeline 单个会话的指令处理流程。
// 同一会话的消息由调用方串行送入，出站顺序即生成顺序。
type SessionPipeline struct {
	svc        *CommandService
	sessionID  string
	emit       Emitter
	responder  dialogue.Responder
	generative *dialogue.GenerativeResponder
	logger     *utils.Logger
}

// NewPipeline 为会话创建处理流程
func (s *CommandService) NewPipeline(sessionID string, emit Emitter) *SessionPipeline {
	responder, generative := s.newResponder()
	return &SessionPipeline{
		svc:        s,
		sessionID:  sessionID,
		emit:       emit,
		responder:  responder,
		generative: generative,
		logger:     s.logger.With(map[string]interface{}{"session_id": sessionID}),
	}
}

// HandleAudio 解码并识别音频，随后按文本指令处理
func (p *SessionPipeline) HandleAudio(ctx context.Context, payload string) error {
	audio, err := models.InboundEnvelope{Audio: payload}.DecodeAudio()
	if err != nil || len(audio) == 0 {
		p.logger.Warn("音频解码失败", map[string]interface{}{"error": err, "size": len(payload)})
		p.svc.metrics.RecordError(string(apperrors.ErrorTypeMalformedInput), "audio")
		return p.emit(models.NewError(apperrors.MsgAudioFailed))
	}

	var text string
	err = p.svc.withWorker(ctx, "transcribe", func() error {
		var terr error
		text, terr = p.svc.transcriber.Transcribe(ctx, audio)
		return terr
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		p.logger.Warn("语音识别无结果", map[string]interface{}{"error": err, "bytes": len(audio)})
		p.svc.metrics.RecordError(string(apperrors.ErrorTypeCollaborator), "transcriber")
		return p.emit(models.NewError(apperrors.MsgNoTranscription))
	}

	p.logger.Info("🎙️ 语音识别", map[string]interface{}{"text": text})
	if err := p.emit(models.NewTranscription(text)); err != nil {
		return err
	}
	return p.processCommand(ctx, text)
}

// HandleText 处理文本指令，空文本忽略
func (p *SessionPipeline) HandleText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return p.processCommand(ctx, text)
}

// HandleTTS 合成指定文本；合成失败时不发送任何消息
func (p *SessionPipeline) HandleTTS(ctx context.Context, text, speaker string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if speaker == "" {
		speaker = tts.SpeakerDefault
	}

	audio, ok := p.synthesize(ctx, text, speaker)
	if !ok {
		return ctx.Err()
	}
	return p.emit(models.NewVoice(audio))
}

// Close 释放会话级状态
func (p *SessionPipeline) Close() {
	if p.generative != nil {
		p.generative.Reset()
	}
}

// processCommand 解析 → 命令 → 对话 → 语音；无法解析时只回复文字澄清
func (p *SessionPipeline) processCommand(ctx context.Context, text string) error {
	cmd := p.svc.Parse(text)
	if cmd == nil {
		line := p.svc.templates.Clarify(dialogue.IssueGeneral)
		p.logger.Info("❓ 无法解析指令", map[string]interface{}{"text": text})
		return p.emit(models.NewDialogue(line.Text, models.DefaultSpeaker))
	}

	p.logger.Info("🎯 指令解析", map[string]interface{}{"command": cmd.String()})
	if err := p.emit(models.NewCommandEnvelope(cmd)); err != nil {
		return err
	}

	var line models.DialogueLine
	if p.generative != nil {
		_ = p.svc.withWorker(ctx, "respond", func() error {
			line = p.responder.Respond(ctx, cmd)
			return nil
		})
		if line.IsEmpty() {
			// 等待并发名额时会话被关闭
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line = p.svc.templates.Respond(ctx, cmd)
		}
	} else {
		line = p.responder.Respond(ctx, cmd)
	}

	if err := p.emit(models.NewDialogue(line.Text, models.DefaultSpeaker)); err != nil {
		return err
	}

	audio, ok := p.synthesize(ctx, line.Text, models.DefaultSpeaker)
	if !ok {
		return ctx.Err()
	}
	return p.emit(models.NewVoice(audio))
}

// synthesize 先查缓存再合成；失败只记录日志
func (p *SessionPipeline) synthesize(ctx context.Context, text, speaker string) ([]byte, bool) {
	start := time.Now()
	audio, err := p.svc.cache.GetOrGenerate(ctx, text, speaker)
	p.svc.metrics.ObserveStage("synthesize", time.Since(start))

	if err != nil || len(audio) == 0 {
		if ctx.Err() == nil {
			p.logger.Warn("语音合成失败，跳过语音", map[string]interface{}{
				"text":    text,
				"speaker": speaker,
				"error":   err,
			})
			p.svc.metrics.RecordError(string(apperrors.ErrorTypeCollaborator), "synthesizer")
		}
		return nil, false
	}
	return audio, true
}
