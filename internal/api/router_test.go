package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/Corphon/OverwatchVoice/internal/errors"
	"github.com/Corphon/OverwatchVoice/internal/models"
	"github.com/Corphon/OverwatchVoice/internal/services"
	"github.com/Corphon/OverwatchVoice/internal/stt"
	"github.com/Corphon/OverwatchVoice/internal/tts"
	"github.com/Corphon/OverwatchVoice/internal/utils"
)

type testServer struct {
	*httptest.Server
	commands *services.CommandService
	sessions *SessionManager
}

func newTestServer(t *testing.T, ready bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := utils.NewMetrics("test")
	commands := services.NewCommandService(services.CommandDeps{
		Transcriber: stt.NewStubTranscriber("alpha team move to grid c5", 0),
		Synthesizer: tts.NewToneSynthesizer(),
		Metrics:     metrics,
	})
	if err := commands.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if ready {
		commands.MarkReady()
	}

	sessions := NewSessionManager(nil, metrics, commands.IsReady)
	router := SetupRouter(RouterDeps{
		Commands:  commands,
		LLM:       services.NewLLMServiceWithProvider(nil),
		Sessions:  sessions,
		Metrics:   metrics,
		DebugMode: true,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		sessions.CloseAll()
		srv.Close()
	})
	return &testServer{Server: srv, commands: commands, sessions: sessions}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) models.OutboundEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env models.OutboundEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocketTextCommand(t *testing.T) {
	ts := newTestServer(t, true)
	conn := ts.dial(t)

	send(t, conn, map[string]string{"type": "text_command", "text": "Alpha team, move to grid C5"})

	cmd := receive(t, conn)
	if cmd.Type != models.TypeCommand || cmd.Command == nil {
		t.Fatalf("expected command, got %+v", cmd)
	}
	if cmd.Command.Action != models.ActionMove || cmd.Command.GridCoord.X != -25 || cmd.Command.GridCoord.Z != -5 {
		t.Fatalf("unexpected command %+v", cmd.Command)
	}

	line := receive(t, conn)
	if line.Type != models.TypeDialogue || line.Speaker != models.DefaultSpeaker || line.Text == "" {
		t.Fatalf("expected dialogue, got %+v", line)
	}

	voice := receive(t, conn)
	if voice.Type != models.TypeVoice || voice.Audio == "" {
		t.Fatalf("expected voice, got %+v", voice)
	}
}

func TestWebSocketAudio(t *testing.T) {
	ts := newTestServer(t, true)
	conn := ts.dial(t)

	send(t, conn, map[string]string{"type": "audio", "audio": "d2VibQ=="})

	want := []models.EnvelopeType{models.TypeTranscription, models.TypeCommand, models.TypeDialogue, models.TypeVoice}
	for i, typ := range want {
		env := receive(t, conn)
		if env.Type != typ {
			t.Fatalf("envelope %d: got %s, want %s", i, env.Type, typ)
		}
		if i == 0 && env.Text != "alpha team move to grid c5" {
			t.Fatalf("transcription = %q", env.Text)
		}
	}
}

func TestWebSocketMalformedAndUnknown(t *testing.T) {
	ts := newTestServer(t, true)
	conn := ts.dial(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := receive(t, conn)
	if env.Type != models.TypeError || env.Message != apperrors.MsgInvalidMessageFormat {
		t.Fatalf("expected format error, got %+v", env)
	}

	// 未知类型与 pong 都不产生回复
	send(t, conn, map[string]string{"type": "telemetry"})
	send(t, conn, map[string]string{"type": "pong"})
	send(t, conn, map[string]string{"type": "tts_request", "text": "Target confirmed", "speaker": "command"})

	env = receive(t, conn)
	if env.Type != models.TypeVoice {
		t.Fatalf("session should stay usable, got %+v", env)
	}
}

func TestWebSocketNotReady(t *testing.T) {
	ts := newTestServer(t, false)
	conn := ts.dial(t)

	send(t, conn, map[string]string{"type": "text_command", "text": "hold"})
	env := receive(t, conn)
	if env.Type != models.TypeError || env.Message != apperrors.MsgServerNotReady {
		t.Fatalf("expected not ready error, got %+v", env)
	}

	ts.commands.MarkReady()
	ts.sessions.PromoteAll()

	send(t, conn, map[string]string{"type": "text_command", "text": "hold"})
	env = receive(t, conn)
	if env.Type != models.TypeCommand || env.Command.Action != models.ActionHold {
		t.Fatalf("expected hold command after readiness, got %+v", env)
	}
}

func TestWebSocketUnrecognizedCommand(t *testing.T) {
	ts := newTestServer(t, true)
	conn := ts.dial(t)

	send(t, conn, map[string]string{"type": "text_command", "text": "xyz nonsense"})
	send(t, conn, map[string]string{"type": "tts_request", "text": "Moving out"})

	env := receive(t, conn)
	if env.Type != models.TypeDialogue {
		t.Fatalf("expected clarification, got %+v", env)
	}
	// 澄清没有语音，下一条就是 tts_request 的结果
	env = receive(t, conn)
	if env.Type != models.TypeVoice {
		t.Fatalf("expected voice for tts request, got %+v", env)
	}
}

func doJSON(t *testing.T, method, url string, body interface{}) (int, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestParseCommandEndpoint(t *testing.T) {
	ts := newTestServer(t, true)

	status, resp := doJSON(t, http.MethodPost, ts.URL+"/api/commands/parse", map[string]string{"text": "airstrike grid e5"})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, resp = %+v", status, resp)
	}
	data := resp.Data.(map[string]interface{})
	cmd := data["command"].(map[string]interface{})
	if cmd["action"] != "airstrike" {
		t.Fatalf("command = %v", cmd)
	}

	status, resp = doJSON(t, http.MethodPost, ts.URL+"/api/commands/parse", map[string]string{"text": "xyz nonsense"})
	if status != http.StatusUnprocessableEntity || resp.Error == nil || resp.Error.Code != ErrorCommandUnrecognized {
		t.Fatalf("status = %d, resp = %+v", status, resp)
	}

	status, resp = doJSON(t, http.MethodPost, ts.URL+"/api/commands/parse", map[string]string{"text": "  "})
	if status != http.StatusBadRequest || resp.Error.Code != ErrorCommandTextMissing {
		t.Fatalf("status = %d, resp = %+v", status, resp)
	}
}

func TestDialogueEventEndpoint(t *testing.T) {
	ts := newTestServer(t, true)

	status, resp := doJSON(t, http.MethodPost, ts.URL+"/api/dialogue/event", map[string]interface{}{"event": "victory"})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, resp = %+v", status, resp)
	}

	status, resp = doJSON(t, http.MethodPost, ts.URL+"/api/dialogue/event", map[string]interface{}{"event": "dance"})
	if status != http.StatusBadRequest || resp.Error.Code != ErrorUnknownEvent {
		t.Fatalf("status = %d, resp = %+v", status, resp)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, true)

	status, resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	data := resp.Data.(map[string]interface{})
	if data["status"] != "ready" {
		t.Fatalf("health = %v", data)
	}
	collaborators := data["collaborators"].(map[string]interface{})
	if collaborators["transcriber"] != "stub" || collaborators["dialogue"] != "templates" {
		t.Fatalf("collaborators = %v", collaborators)
	}

	status, resp = doJSON(t, http.MethodGet, ts.URL+"/api/commands/examples", nil)
	if status != http.StatusOK || len(resp.Data.(map[string]interface{})["examples"].([]interface{})) == 0 {
		t.Fatalf("examples missing")
	}

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "test_api_requests_total") {
		t.Fatalf("metrics output missing api counter")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < 3; i++ {
		if ok, _, _ := rl.Allow("ip", 3, time.Minute); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	if ok, remaining, _ := rl.Allow("ip", 3, time.Minute); ok || remaining != 0 {
		t.Fatalf("fourth request must be rejected")
	}
	if ok, _, _ := rl.Allow("other", 3, time.Minute); !ok {
		t.Fatalf("limits are per key")
	}
}
