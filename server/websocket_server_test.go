package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/accessai/audio"
	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/metrics"
	"github.com/room4-2/accessai/session"
)

type fakeController struct {
	mu       sync.Mutex
	hub      *Hub
	state    session.State
	running  bool
	texts    []string
	startErr error
}

func (f *fakeController) set(state session.State, side *session.SideData) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	f.hub.SetState(state, side)
}

func (f *fakeController) Start(context.Context) error {
	f.mu.Lock()
	f.running = true
	err := f.startErr
	f.mu.Unlock()
	f.set(session.Listening, nil)
	return err
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.set(session.Idle, nil)
	return nil
}

func (f *fakeController) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return session.ErrNotRunning
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeController) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeController) Dismiss() bool { return false }

func (f *fakeController) OpenLiveMap() bool { return false }

func (f *fakeController) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return "conv-1"
	}
	return ""
}

func (f *fakeController) Snapshot() (session.State, *session.SideData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

type wireMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type testEnv struct {
	srv        *Server
	hub        *Hub
	controller *fakeController
	http       *httptest.Server
	cfg        *config.Config
}

func newTestEnv(t *testing.T, redisClient *redis.Client, maxClients int) *testEnv {
	t.Helper()
	cfg := &config.Config{
		MaxClients:      maxClients,
		SessionTimeout:  time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: time.Second,
	}
	m := metrics.NewMetrics("test")
	hub := NewHub(cfg, redisClient, m)
	controller := &fakeController{hub: hub, state: session.Idle}
	srv := NewServerWebsocket(cfg, hub, controller, m)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Shutdown()
		ts.Close()
	})
	return &testEnv{srv: srv, hub: hub, controller: controller, http: ts, cfg: cfg}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wireMessage
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		if msg := read(t, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message", typ)
	return wireMessage{}
}

func TestServer_ConnectSendsStatusAndState(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	conn := env.dial(t)

	msg := read(t, conn)
	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, "connected", msg.Payload["status"])

	msg = read(t, conn)
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "IDLE", msg.Payload["state"])
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_StartBroadcastsState(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	a := env.dial(t)
	b := env.dial(t)
	readUntil(t, a, "state")
	readUntil(t, b, "state")
	require.Eventually(t, func() bool { return env.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, a, `{"type":"control","payload":{"action":"start"}}`)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, "state")
		assert.Equal(t, "LISTENING", msg.Payload["state"])
		assert.Equal(t, "conv-1", msg.Payload["conversationId"])
	}

	send(t, a, `{"type":"text","payload":{"text":"Can I eat sushi?"}}`)
	msg := readUntil(t, a, "transcript")
	assert.Equal(t, "user", msg.Payload["role"])
	assert.Equal(t, []string{"Can I eat sushi?"}, env.controller.Texts())
}

func TestServer_SideDataIsBroadcast(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	conn := env.dial(t)
	readUntil(t, conn, "state")
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	env.hub.SetState(session.ShowingEmergencyContacts, &session.SideData{AutoCall: "doctor"})
	msg := readUntil(t, conn, "state")
	assert.Equal(t, "SHOWING_EMERGENCY_CONTACTS", msg.Payload["state"])
	side, ok := msg.Payload["sideData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doctor", side["autoCall"])

	env.hub.Transcript("model", "Calling your doctor now.")
	msg = readUntil(t, conn, "transcript")
	assert.Equal(t, "Calling your doctor now.", msg.Payload["text"])
}

func TestServer_Errors(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	conn := env.dial(t)
	readUntil(t, conn, "state")

	cases := map[string]string{
		`not json`: "INVALID_MESSAGE",
		`{"type":"control","payload":{"action":"explode"}}`: "INVALID_MESSAGE",
		`{"type":"audio","payload":{}}`:                     "INVALID_MESSAGE",
		`{"type":"text","payload":{"text":""}}`:             "INVALID_MESSAGE",
		`{"type":"text","payload":{"text":"hello"}}`:        "NOT_RUNNING",
	}
	for raw, code := range cases {
		send(t, conn, raw)
		msg := readUntil(t, conn, "error")
		assert.Equal(t, code, msg.Payload["code"], raw)
	}

	send(t, conn, `{"type":"control","payload":{"action":"ping"}}`)
	msg := readUntil(t, conn, "status")
	assert.Equal(t, "pong", msg.Payload["status"])

	send(t, conn, `{"type":"control","payload":{"action":"dismiss"}}`)
	msg = readUntil(t, conn, "status")
	assert.Equal(t, "ignored", msg.Payload["status"])
}

func TestServer_MicrophoneErrorKeepsConversation(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	env.controller.mu.Lock()
	env.controller.startErr = &audio.AcquisitionError{Err: io.EOF}
	env.controller.mu.Unlock()
	conn := env.dial(t)
	readUntil(t, conn, "state")

	send(t, conn, `{"type":"control","payload":{"action":"start"}}`)
	msg := readUntil(t, conn, "error")
	assert.Equal(t, "MICROPHONE_UNAVAILABLE", msg.Payload["code"])
	assert.Equal(t, "conv-1", env.controller.ID())
}

func TestServer_MaxClients(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	first := env.dial(t)
	readUntil(t, first, "state")

	second := env.dial(t)
	msg := read(t, second)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "RATE_LIMITED", msg.Payload["code"])
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	conn := env.dial(t)
	readUntil(t, conn, "state")

	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","clients":1,"state":"IDLE"}`, string(body))

	resp, err = http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "test_ui_clients_active 1")
}

func TestHub_RedisPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := newTestEnv(t, client, 5)
	conn := env.dial(t)
	readUntil(t, conn, "state")

	var id string
	require.Eventually(t, func() bool {
		members, err := mr.Members("ui_clients")
		if err != nil || len(members) != 1 {
			return false
		}
		id = members[0]
		return true
	}, time.Second, 10*time.Millisecond)
	assert.True(t, mr.Exists("uiclient:"+id))
	assert.Equal(t, "active", mr.HGet("uiclient:"+id, "status"))

	conn.Close()
	require.Eventually(t, func() bool { return !mr.Exists("uiclient:" + id) }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, env.hub.Count())
}

func TestHub_CleanupInactive(t *testing.T) {
	env := newTestEnv(t, nil, 5)
	conn := env.dial(t)
	readUntil(t, conn, "state")
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	env.cfg.SessionTimeout = -time.Second
	env.hub.CleanupInactive(context.Background())
	assert.Zero(t, env.hub.Count())
}
