package services

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/Corphon/OverwatchVoice/internal/dialogue"
	apperrors "github.com/Corphon/OverwatchVoice/internal/errors"
	"github.com/Corphon/OverwatchVoice/internal/llm"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/tts"
)

type fakeTranscriber struct {
	text    string
	err     error
	initErr error
}

func (f *fakeTranscriber) Name() string {
	return "fake-stt"
}

func (f *fakeTranscriber) Initialize(ctx context.Context) error {
	return f.initErr
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct {
	mu       sync.Mutex
	err      error
	initErr  error
	speakers []string
}

func (f *fakeSynthesizer) Name() string {
	return "fake-tts"
}

func (f *fakeSynthesizer) Initialize(ctx context.Context) error {
	return f.initErr
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, profile tts.SpeakerProfile) ([]byte, error) {
	f.mu.Lock()
	f.speakers = append(f.speakers, profile.ID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte("wav:" + text), nil
}

type firstRand struct{}

func (firstRand) IntN(n int) int {
	return 0
}

// recorder 收集出站消息
type recorder struct {
	envelopes []models.OutboundEnvelope
	failAfter int
}

func (r *recorder) emit(env models.OutboundEnvelope) error {
	if r.failAfter > 0 && len(r.envelopes) >= r.failAfter {
		return errors.New("session closed")
	}
	r.envelopes = append(r.envelopes, env)
	return nil
}

func (r *recorder) types() []models.EnvelopeType {
	out := make([]models.EnvelopeType, len(r.envelopes))
	for i, e := range r.envelopes {
		out[i] = e.Type
	}
	return out
}

func newTestService(stt *fakeTranscriber, synth *fakeSynthesizer) *CommandService {
	return NewCommandService(CommandDeps{
		Transcriber:         stt,
		Synthesizer:         synth,
		Rand:                firstRand{},
		MaxInferenceWorkers: 2,
	})
}

func assertTypes(t *testing.T, got []models.EnvelopeType, want ...models.EnvelopeType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("envelope types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("envelope types = %v, want %v", got, want)
		}
	}
}

func TestHandleAudioEmitsInOrder(t *testing.T) {
	svc := newTestService(&fakeTranscriber{text: " Alpha team move to grid C5 "}, &fakeSynthesizer{})
	rec := &recorder{}
	p := svc.NewPipeline("s1", rec.emit)

	payload := base64.StdEncoding.EncodeToString([]byte("webm-bytes"))
	if err := p.HandleAudio(context.Background(), payload); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	assertTypes(t, rec.types(), models.TypeTranscription, models.TypeCommand, models.TypeDialogue, models.TypeVoice)

	if rec.envelopes[0].Text != "Alpha team move to grid C5" {
		t.Fatalf("transcription = %q", rec.envelopes[0].Text)
	}
	cmd := rec.envelopes[1].Command
	if cmd == nil || cmd.Action != models.ActionMove || cmd.GridCoord == nil || cmd.GridCoord.Cell() != "C5" {
		t.Fatalf("unexpected command %v", cmd)
	}
	if rec.envelopes[2].Text != "Copy, moving to position." || rec.envelopes[2].Speaker != models.DefaultSpeaker {
		t.Fatalf("unexpected dialogue %+v", rec.envelopes[2])
	}
	audio, _ := base64.StdEncoding.DecodeString(rec.envelopes[3].Audio)
	if string(audio) != "wav:Copy, moving to position." {
		t.Fatalf("voice audio = %q", audio)
	}
}

func TestHandleAudioFailures(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&fakeTranscriber{text: "hold"}, &fakeSynthesizer{})
	rec := &recorder{}
	if err := svc.NewPipeline("s1", rec.emit).HandleAudio(ctx, "!!not-base64!!"); err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	assertTypes(t, rec.types(), models.TypeError)
	if rec.envelopes[0].Message != apperrors.MsgAudioFailed {
		t.Fatalf("message = %q", rec.envelopes[0].Message)
	}

	payload := base64.StdEncoding.EncodeToString([]byte("webm"))
	for _, stt := range []*fakeTranscriber{{text: "   "}, {err: errors.New("boom")}} {
		svc := newTestService(stt, &fakeSynthesizer{})
		rec := &recorder{}
		if err := svc.NewPipeline("s2", rec.emit).HandleAudio(ctx, payload); err != nil {
			t.Fatalf("HandleAudio: %v", err)
		}
		assertTypes(t, rec.types(), models.TypeError)
		if rec.envelopes[0].Message != apperrors.MsgNoTranscription {
			t.Fatalf("message = %q", rec.envelopes[0].Message)
		}
	}
}

func TestHandleTextUnrecognizedClarifies(t *testing.T) {
	synth := &fakeSynthesizer{}
	svc := newTestService(&fakeTranscriber{}, synth)
	rec := &recorder{}
	p := svc.NewPipeline("s1", rec.emit)

	if err := p.HandleText(context.Background(), "xyz nonsense"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	assertTypes(t, rec.types(), models.TypeDialogue)
	if rec.envelopes[0].Text == "" || rec.envelopes[0].Speaker != models.DefaultSpeaker {
		t.Fatalf("unexpected clarification %+v", rec.envelopes[0])
	}
	if len(synth.speakers) != 0 {
		t.Fatalf("clarifications must not be voiced")
	}

	if err := p.HandleText(context.Background(), "   "); err != nil || len(rec.envelopes) != 1 {
		t.Fatalf("blank text must be ignored")
	}
}

func TestSynthesisFailureSkipsVoice(t *testing.T) {
	svc := newTestService(&fakeTranscriber{}, &fakeSynthesizer{err: errors.New("tts down")})
	rec := &recorder{}
	p := svc.NewPipeline("s1", rec.emit)

	if err := p.HandleText(context.Background(), "everyone hold position"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	assertTypes(t, rec.types(), models.TypeCommand, models.TypeDialogue)

	rec.envelopes = nil
	if err := p.HandleTTS(context.Background(), "Target confirmed", ""); err != nil {
		t.Fatalf("HandleTTS: %v", err)
	}
	if len(rec.envelopes) != 0 {
		t.Fatalf("failed synthesis must not emit, got %v", rec.types())
	}
}

func TestHandleTTSDefaultsSpeaker(t *testing.T) {
	synth := &fakeSynthesizer{}
	svc := newTestService(&fakeTranscriber{}, synth)
	rec := &recorder{}
	p := svc.NewPipeline("s1", rec.emit)
	ctx := context.Background()

	if err := p.HandleTTS(ctx, "Moving out", ""); err != nil {
		t.Fatalf("HandleTTS: %v", err)
	}
	if err := p.HandleTTS(ctx, "Fire mission", tts.SpeakerCommand); err != nil {
		t.Fatalf("HandleTTS: %v", err)
	}
	if err := p.HandleTTS(ctx, "  ", ""); err != nil {
		t.Fatalf("HandleTTS: %v", err)
	}

	assertTypes(t, rec.types(), models.TypeVoice, models.TypeVoice)
	if len(synth.speakers) != 2 || synth.speakers[0] != tts.SpeakerDefault || synth.speakers[1] != tts.SpeakerCommand {
		t.Fatalf("speakers = %v", synth.speakers)
	}
}

func TestEmitErrorStopsProcessing(t *testing.T) {
	svc := newTestService(&fakeTranscriber{}, &fakeSynthesizer{})
	rec := &recorder{failAfter: 1}
	p := svc.NewPipeline("s1", rec.emit)

	if err := p.HandleText(context.Background(), "cease fire"); err == nil {
		t.Fatalf("expected emit error to propagate")
	}
	assertTypes(t, rec.types(), models.TypeCommand)
}

func TestCachedLineSkipsSynthesis(t *testing.T) {
	synth := &fakeSynthesizer{}
	svc := newTestService(&fakeTranscriber{}, synth)
	if n := svc.Preload(context.Background(), []string{"Roger, holding position."}); n != 1 {
		t.Fatalf("preloaded %d", n)
	}
	synth.speakers = nil

	rec := &recorder{}
	if err := svc.NewPipeline("s1", rec.emit).HandleText(context.Background(), "hold"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	assertTypes(t, rec.types(), models.TypeCommand, models.TypeDialogue, models.TypeVoice)
	if len(synth.speakers) != 0 {
		t.Fatalf("cached line was synthesized again")
	}
}

type echoProvider struct{}

func (echoProvider) Initialize(map[string]string) error {
	return nil
}

func (echoProvider) GetName() string {
	return "echo"
}

func (echoProvider) GetSupportedModels() []string {
	return nil
}

func (echoProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: "Alpha-1 copies, on the move."}, nil
}

func TestGenerativeDialoguePerSession(t *testing.T) {
	svc := NewCommandService(CommandDeps{
		Transcriber: &fakeTranscriber{},
		Synthesizer: &fakeSynthesizer{},
		LLM:         NewLLMServiceWithProvider(echoProvider{}),
		Rand:        firstRand{},
	})
	if names := svc.CollaboratorNames(); names["dialogue"] != "llm:echo" {
		t.Fatalf("collaborators = %v", names)
	}

	rec := &recorder{}
	p := svc.NewPipeline("s1", rec.emit)
	if err := p.HandleText(context.Background(), "move to grid b2"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if rec.envelopes[1].Text != "Alpha-1 copies, on the move." {
		t.Fatalf("dialogue = %q", rec.envelopes[1].Text)
	}
	if p.generative == nil || len(p.generative.Window()) != 2 {
		t.Fatalf("expected one exchange in the window")
	}

	other := svc.NewPipeline("s2", (&recorder{}).emit)
	if len(other.generative.Window()) != 0 {
		t.Fatalf("window leaked across sessions")
	}

	p.Close()
	if len(p.generative.Window()) != 0 {
		t.Fatalf("Close must reset the window")
	}
}

func TestInitializeAndReadiness(t *testing.T) {
	svc := newTestService(&fakeTranscriber{initErr: errors.New("no model")}, &fakeSynthesizer{})
	err := svc.Initialize(context.Background())
	if !apperrors.IsFatalError(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if svc.IsReady() {
		t.Fatalf("must not be ready after failed init")
	}

	svc = newTestService(&fakeTranscriber{}, &fakeSynthesizer{})
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	select {
	case <-svc.Ready():
		t.Fatalf("ready channel closed too early")
	default:
	}

	svc.MarkReady()
	svc.MarkReady()
	<-svc.Ready()
	if !svc.IsReady() || svc.ReadyState() != "Ready" {
		t.Fatalf("state = %s", svc.ReadyState())
	}
}

func TestTemplatesExposed(t *testing.T) {
	svc := newTestService(&fakeTranscriber{}, &fakeSynthesizer{})
	line, ok := svc.Templates().RespondToEvent(dialogue.EventKillEnemy, nil)
	if !ok || line.Text == "" {
		t.Fatalf("expected kill_enemy line")
	}
	if len(svc.Examples()) == 0 {
		t.Fatalf("expected examples")
	}
}
