package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Corphon/OverwatchVoice/internal/llm"
	"github.com/Corphon/OverwatchVoice/internal/models"
)

type scriptedProvider struct {
	reply    string
	err      error
	delay    time.Duration
	requests []llm.CompletionRequest
}

func (p *scriptedProvider) Initialize(map[string]string) error { return nil }
func (p *scriptedProvider) GetName() string                    { return "scripted" }
func (p *scriptedProvider) GetSupportedModels() []string       { return nil }

func (p *scriptedProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.reply}, nil
}

func moveCmd() *models.Command {
	coord := models.GridCoord{X: -25, Z: -5, Letter: "C", Number: 5}
	return &models.Command{Action: models.ActionMove, Targets: models.TargetAll, GridCoord: &coord, Params: map[string]interface{}{}}
}

func TestGenerativeUsesProvider(t *testing.T) {
	provider := &scriptedProvider{reply: "\"Moving to C5, over.\"\nextra"}
	g := NewGenerativeResponder(NewTemplateResponder(fixedRand{0}), provider, GenerativeOptions{})

	line := g.Respond(context.Background(), moveCmd())
	if line.Text != "Moving to C5, over." {
		t.Fatalf("got %q", line.Text)
	}
	if line.Category != CategoryMove {
		t.Fatalf("category = %s", line.Category)
	}
	if len(provider.requests) != 1 || provider.requests[0].SystemPrompt != SystemPrompt {
		t.Fatalf("provider not called with system prompt")
	}
	if len(g.Window()) != 2 {
		t.Fatalf("window should hold the exchange, got %d", len(g.Window()))
	}
}

func TestGenerativeFallsBack(t *testing.T) {
	templated := "Copy, moving to position."

	cases := map[string]llm.Provider{
		"nil provider": nil,
		"error":        &scriptedProvider{err: errors.New("503")},
		"empty reply":  &scriptedProvider{reply: "   "},
		"timeout":      &scriptedProvider{reply: "late", delay: time.Second},
	}

	for name, provider := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGenerativeResponder(NewTemplateResponder(fixedRand{0}), provider, GenerativeOptions{Timeout: 20 * time.Millisecond})

			start := time.Now()
			line := g.Respond(context.Background(), moveCmd())
			if line.Text != templated {
				t.Fatalf("got %q, want template %q", line.Text, templated)
			}
			if time.Since(start) > 500*time.Millisecond {
				t.Fatalf("fallback took too long")
			}
			if len(g.Window()) != 0 {
				t.Fatalf("failed exchange must not enter the window")
			}
		})
	}
}

func TestGenerativeClarificationIsTemplated(t *testing.T) {
	provider := &scriptedProvider{reply: "should not be used"}
	g := NewGenerativeResponder(NewTemplateResponder(fixedRand{0}), provider, GenerativeOptions{})

	line := g.Respond(context.Background(), nil)
	if line.Category != CategoryClarify {
		t.Fatalf("expected clarification, got %+v", line)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("provider must not be called for clarifications")
	}
}

func TestGenerativeWindowIsBounded(t *testing.T) {
	provider := &scriptedProvider{}
	g := NewGenerativeResponder(NewTemplateResponder(fixedRand{0}), provider, GenerativeOptions{})

	for i := 0; i < 8; i++ {
		provider.reply = fmt.Sprintf("reply %d", i)
		g.Respond(context.Background(), moveCmd())
	}

	window := g.Window()
	if len(window) != MaxWindow {
		t.Fatalf("window size = %d, want %d", len(window), MaxWindow)
	}
	// 最旧的消息被淘汰，最后一条是最新回复
	if window[len(window)-1].Content != "reply 7" || window[1].Content != "reply 3" {
		t.Fatalf("unexpected window contents: %+v", window)
	}

	// 历史消息会带到下一次请求
	if got := len(provider.requests[len(provider.requests)-1].Messages); got != MaxWindow {
		t.Fatalf("last request carried %d history messages", got)
	}

	g.Reset()
	if len(g.Window()) != 0 {
		t.Fatalf("Reset should clear the window")
	}
}
