package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

// fakeSynth 以 "speaker:text" 作为音频内容，fail 中的文本合成失败
type fakeSynth struct {
	fail  map[string]bool
	calls atomic.Int32

	mu       sync.Mutex
	speakers []string
}

func (f *fakeSynth) Name() string                     { return "fake" }
func (f *fakeSynth) Initialize(context.Context) error { return nil }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, profile tts.SpeakerProfile) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.speakers = append(f.speakers, profile.ID)
	f.mu.Unlock()
	if f.fail[text] {
		return nil, errors.New("synthesis failed")
	}
	return []byte(profile.ID + ":" + text), nil
}

func TestPreloadAndGet(t *testing.T) {
	synth := &fakeSynth{fail: map[string]bool{"Negative.": true}}
	cache := NewVoiceLineCache(synth, 3)

	added := cache.Preload(context.Background(), DefaultPhrases)
	if added != len(DefaultPhrases)-1 {
		t.Fatalf("added = %d, want %d", added, len(DefaultPhrases)-1)
	}

	for _, speaker := range synth.speakers {
		if speaker != PrimarySpeaker {
			t.Fatalf("preload used speaker %q", speaker)
		}
	}

	audio, ok := cache.Get("copy.")
	if !ok || string(audio) != "alpha:Copy." {
		t.Fatalf("case-insensitive lookup failed: %q %v", audio, ok)
	}
	if _, ok := cache.Get("  TANGO DOWN.  "); !ok {
		t.Fatalf("lookup should ignore case and surrounding space")
	}
	if _, ok := cache.Get("Negative."); ok {
		t.Fatalf("failed phrase must not be cached")
	}
	if _, ok := cache.GetFor("Copy.", tts.SpeakerCommand); ok {
		t.Fatalf("entries are keyed by speaker")
	}

	stats := cache.Stats()
	if stats.Entries != len(DefaultPhrases)-1 || stats.Hits != 2 || stats.Misses != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(cache.Phrases()) != len(DefaultPhrases)-1 {
		t.Fatalf("phrases = %d", len(cache.Phrases()))
	}
}

func TestGetOrGenerateDoesNotCache(t *testing.T) {
	synth := &fakeSynth{}
	cache := NewVoiceLineCache(synth, 1)
	cache.Preload(context.Background(), []string{"Copy."})
	before := synth.calls.Load()

	// 命中缓存不调用合成
	audio, err := cache.GetOrGenerate(context.Background(), "COPY.", "")
	if err != nil || string(audio) != "alpha:Copy." {
		t.Fatalf("got %q, %v", audio, err)
	}
	if synth.calls.Load() != before {
		t.Fatalf("cache hit must not synthesize")
	}

	for i := 0; i < 2; i++ {
		audio, err = cache.GetOrGenerate(context.Background(), "Moving to grid.", tts.SpeakerCommand)
		if err != nil || string(audio) != "command:Moving to grid." {
			t.Fatalf("got %q, %v", audio, err)
		}
	}
	if synth.calls.Load() != before+2 {
		t.Fatalf("generated lines must not be cached, calls = %d", synth.calls.Load()-before)
	}
	if _, ok := cache.GetFor("Moving to grid.", tts.SpeakerCommand); ok {
		t.Fatalf("generated line leaked into cache")
	}
}

func TestGetOrGenerateFailure(t *testing.T) {
	cache := NewVoiceLineCache(&fakeSynth{fail: map[string]bool{"x": true}}, 1)
	if _, err := cache.GetOrGenerate(context.Background(), "x", "alpha"); err == nil {
		t.Fatalf("expected synthesis error")
	}
}

func TestPreloadFirstWriterWins(t *testing.T) {
	synth := &fakeSynth{}
	cache := NewVoiceLineCache(synth, 2)

	if n := cache.Preload(context.Background(), []string{"Copy.", "copy."}); n != 1 {
		t.Fatalf("duplicate keys in one preload should add 1, got %d", n)
	}
	first, _ := cache.Get("Copy.")

	if n := cache.Preload(context.Background(), []string{"COPY.", "Roger."}); n != 1 {
		t.Fatalf("second preload should only add Roger., got %d", n)
	}
	again, _ := cache.Get("Copy.")
	if string(first) != string(again) {
		t.Fatalf("existing entry was overwritten")
	}
}

func TestConcurrentReads(t *testing.T) {
	cache := NewVoiceLineCache(&fakeSynth{}, 4)
	cache.Preload(context.Background(), DefaultPhrases)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range DefaultPhrases {
				if _, ok := cache.Get(strings.ToUpper(p)); !ok {
					t.Errorf("missing %q", p)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRegisterMetrics(t *testing.T) {
	cache := NewVoiceLineCache(&fakeSynth{}, 1)
	cache.RegisterMetrics(nil)
	cache.RegisterMetrics(utils.NewMetrics("test"))
}
