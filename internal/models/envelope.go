// internal/models/envelope.go
package models

import "encoding/base64"

// EnvelopeType 消息类型判别字段
type EnvelopeType string

// 入站消息类型
const (
	TypeAudio       EnvelopeType = "audio"
	TypeTextCommand EnvelopeType = "text_command"
	TypeTTSRequest  EnvelopeType = "tts_request"
	TypePong        EnvelopeType = "pong"
)

// 出站消息类型
const (
	TypeTranscription EnvelopeType = "transcription"
	TypeCommand       EnvelopeType = "command"
	TypeDialogue      EnvelopeType = "dialogue"
	TypeVoice         EnvelopeType = "voice"
	TypeError         EnvelopeType = "error"
	TypePing          EnvelopeType = "ping"
)

// DefaultSpeaker 对话与语音使用的主队友声线
const DefaultSpeaker = "alpha"

// InboundEnvelope 客户端发送的消息
type InboundEnvelope struct {
	Type    EnvelopeType `json:"type"`
	Audio   string       `json:"audio,omitempty"`
	Text    string       `json:"text,omitempty"`
	Speaker string       `json:"speaker,omitempty"`
}

// DecodeAudio 解码 base64 音频负载
func (e InboundEnvelope) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Audio)
}

// OutboundEnvelope 服务端发送的消息
type OutboundEnvelope struct {
	Type    EnvelopeType `json:"type"`
	Text    string       `json:"text,omitempty"`
	Command *Command     `json:"command,omitempty"`
	Speaker string       `json:"speaker,omitempty"`
	Audio   string       `json:"audio,omitempty"`
	Message string       `json:"message,omitempty"`
}

func NewTranscription(text string) OutboundEnvelope {
	return OutboundEnvelope{Type: TypeTranscription, Text: text}
}

func NewCommandEnvelope(cmd *Command) OutboundEnvelope {
	return OutboundEnvelope{Type: TypeCommand, Command: cmd}
}

func NewDialogue(text, speaker string) OutboundEnvelope {
	return OutboundEnvelope{Type: TypeDialogue, Text: text, Speaker: speaker}
}

// NewVoice 构造语音消息，音频以 base64 编码
func NewVoice(audio []byte) OutboundEnvelope {
	return OutboundEnvelope{Type: TypeVoice, Audio: base64.StdEncoding.EncodeToString(audio)}
}

func NewError(message string) OutboundEnvelope {
	return OutboundEnvelope{Type: TypeError, Message: message}
}

func NewPing() OutboundEnvelope {
	return OutboundEnvelope{Type: TypePing}
}
