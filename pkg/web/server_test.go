package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/device"
	"github.com/teslashibe/go-jarvis/pkg/hub"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/orchestrator"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

type fakeAssistant struct {
	mu      sync.Mutex
	state   orchestrator.State
	msgs    []conversation.Message
	inputs  []string
	toggles int
	clears  int
}

func (a *fakeAssistant) State() orchestrator.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *fakeAssistant) Messages() []conversation.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]conversation.Message(nil), a.msgs...)
}

func (a *fakeAssistant) ManualInput(text string) {
	a.mu.Lock()
	a.inputs = append(a.inputs, text)
	a.mu.Unlock()
}

func (a *fakeAssistant) ToggleMic() {
	a.mu.Lock()
	a.toggles++
	a.mu.Unlock()
}

func (a *fakeAssistant) Clear() {
	a.mu.Lock()
	a.clears++
	a.mu.Unlock()
}

type staticTools []intent.Tag

func (t staticTools) Tags() []intent.Tag { return t }

func TestStateAndMessages(t *testing.T) {
	a := &fakeAssistant{
		state: orchestrator.State{Listening: true, Volume: 0.3},
		msgs:  []conversation.Message{conversation.NewUserMessage("hola")},
	}
	s := NewServer(":0", a)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/state", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var st orchestrator.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.Listening)
	assert.Equal(t, 0.3, st.Volume)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/messages", nil))
	require.NoError(t, err)
	var msgs []conversation.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Content)
}

func TestInput(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(":0", a)

	req := httptest.NewRequest("POST", "/api/input", strings.NewReader(`{"text":"  ¿qué hora es? "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)
	assert.Equal(t, []string{"¿qué hora es?"}, a.inputs)

	req = httptest.NewRequest("POST", "/api/input", strings.NewReader(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Len(t, a.inputs, 1)
}

func TestCommands(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(":0", a)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/mic/toggle", nil))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("POST", "/api/clear", nil))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	assert.Equal(t, 1, a.toggles)
	assert.Equal(t, 1, a.clears)
}

func TestVoices(t *testing.T) {
	s := NewServer(":0", &fakeAssistant{})
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/voices", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	s = NewServer(":0", &fakeAssistant{}, WithVoices(tts.NewMock()))
	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/voices", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Daniel")

	s = NewServer(":0", &fakeAssistant{}, WithVoices(tts.WithError(errors.New("down"))))
	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/voices", nil))
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
}

func TestToolsAndLatency(t *testing.T) {
	lat := metrics.NewCollector()
	s := NewServer(":0", &fakeAssistant{},
		WithTools(staticTools{intent.TagTime, intent.TagWeather}),
		WithLatency(lat))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/tools", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"tools":["time","weather"]}`, string(body))

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/latency", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out struct {
		Turns int `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Turns)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Turns.WithLabelValues("time", metrics.OutcomeOK).Inc()
	s := NewServer(":0", &fakeAssistant{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "jarvis_turns_total")
}

func TestHealthWithDevices(t *testing.T) {
	s := NewServer(":0", &fakeAssistant{}, WithDevices(device.NewBridge()))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok","devices":0}`, string(body))

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/devices/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestStateWebsocket(t *testing.T) {
	a := &fakeAssistant{
		state: orchestrator.State{MicEnabled: true},
		msgs:  []conversation.Message{conversation.NewAssistantMessage("Hola")},
	}
	s := NewServer(":18380", a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18380/ws/state", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() hub.Event {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var ev hub.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	assert.Equal(t, hub.EventState, read().Event)
	assert.Equal(t, hub.EventMessages, read().Event)

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// Messages are re-sent only when the log changes.
	s.Observe(orchestrator.State{Speaking: true})
	assert.Equal(t, hub.EventState, read().Event)
	assert.Equal(t, hub.EventMessages, read().Event)

	s.Observe(orchestrator.State{Speaking: false})
	assert.Equal(t, hub.EventState, read().Event)

	a.mu.Lock()
	a.msgs = append(a.msgs, conversation.NewUserMessage("adiós"))
	a.mu.Unlock()
	s.Observe(orchestrator.State{})
	assert.Equal(t, hub.EventState, read().Event)
	assert.Equal(t, hub.EventMessages, read().Event)
}
