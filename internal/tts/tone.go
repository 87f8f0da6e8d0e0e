// internal/tts/tone.go
package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"strings"
)

// 提示音参数
const (
	ToneSampleRate = 22050
	ToneFrequency  = 800.0
	ToneDuration   = 0.2
)

// ToneSynthesizer 生成短促的提示音，用于没有语音合成服务的环境
type ToneSynthesizer struct{}

func NewToneSynthesizer() *ToneSynthesizer { return &ToneSynthesizer{} }

func (t *ToneSynthesizer) Name() string { return "tone" }

func (t *ToneSynthesizer) Initialize(ctx context.Context) error { return nil }

// Synthesize 返回单声道 16 位 PCM WAV，频率随 Pitch 变化
func (t *ToneSynthesizer) Synthesize(ctx context.Context, text string, profile SpeakerProfile) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pitch := profile.Pitch
	if pitch <= 0 {
		pitch = 1.0
	}
	return toneWAV(ToneFrequency*pitch, ToneDuration, ToneSampleRate), nil
}

func toneWAV(frequency, duration float64, sampleRate int) []byte {
	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)
	for i := range samples {
		ts := float64(i) / float64(sampleRate)
		envelope := math.Sin(math.Pi * ts / duration)
		samples[i] = int16(32767 * envelope * math.Sin(2*math.Pi*frequency*ts))
	}

	dataSize := uint32(numSamples * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))
	writeWAVHeader(buf, dataSize, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func writeWAVHeader(buf *bytes.Buffer, dataSize, sampleRate uint32) {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := uint16(channels * bitsPerSample / 8)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, sampleRate)
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
}
