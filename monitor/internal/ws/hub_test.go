package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	wsHub "github.com/blinkwatch/blinkwatch/monitor/internal/ws"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const testInterval = 20 * time.Millisecond

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// --- helpers ----------------------------------------------------------------

func newSession(t *testing.T) (*session.Session, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(baseTime)
	s := session.New(config.Defaults(), clk)
	s.Start()
	t.Cleanup(s.Stop)
	return s, clk
}

func openFrame() types.Frame {
	e := types.EyeLandmarks{
		{X: 0, Y: 0}, {X: 1.0 / 3, Y: -0.15}, {X: 2.0 / 3, Y: -0.15},
		{X: 1, Y: 0}, {X: 2.0 / 3, Y: 0.15}, {X: 1.0 / 3, Y: 0.15},
	}
	return types.Frame{Left: e, Right: e}
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T, sess *session.Session) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(sess, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one message and decodes the envelope.
func readMessage(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m.Event, m.Data
}

// readUntil reads messages until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 50; i++ {
		ev, data := readMessage(t, conn)
		if ev == event {
			return data
		}
	}
	t.Fatalf("no %q event received", event)
	return nil
}

// connect dials and consumes the two initial messages.
func connect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn := dial(t, wsURL)
	readMessage(t, conn)
	readMessage(t, conn)
	return conn
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesStatsThenSignal(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, _, _ := startHub(t, sess)

	conn := dial(t, wsURL)

	ev, data := readMessage(t, conn)
	if ev != wsHub.EventStats {
		t.Fatalf("first event: got %q, want stats", ev)
	}
	if data["session_id"] != sess.ID() {
		t.Errorf("session_id: got %v, want %s", data["session_id"], sess.ID())
	}
	if data["generated_at"] == nil || data["generated_at"] == "" {
		t.Error("generated_at: missing")
	}
	if _, ok := data["diagnostics"].([]interface{}); !ok {
		t.Error("diagnostics: missing or wrong type")
	}

	ev, data = readMessage(t, conn)
	if ev != wsHub.EventSignal {
		t.Fatalf("second event: got %q, want signal", ev)
	}
	if data["state"] != string(types.AlertNormal) {
		t.Errorf("state: got %v, want normal", data["state"])
	}
}

func TestHub_CountClients(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, hub, _ := startHub(t, sess)

	for i := 0; i < 3; i++ {
		connect(t, wsURL)
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, hub, _ := startHub(t, sess)

	conn := connect(t, wsURL)
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesStatsOnTick(t *testing.T) {
	sess, clk := newSession(t)
	wsURL, _, _ := startHub(t, sess)

	conn := connect(t, wsURL)

	clk.Advance(time.Second)
	if _, err := sess.ProcessFrame(openFrame()); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data := readUntil(t, conn, wsHub.EventStats)
		if frames, _ := data["frames"].(float64); frames == 1 {
			return
		}
	}
	t.Error("no stats broadcast reflected the processed frame")
}

func TestHub_OnSignal_PushedImmediately(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, hub, _ := startHub(t, sess)
	conn := connect(t, wsURL)
	time.Sleep(10 * time.Millisecond)

	hub.OnSignal(types.SignalChange{
		SessionID: sess.ID(),
		Signal:    types.Signal{Visible: true, Kind: types.EffectPulse},
		State:     types.AlertActive,
		Rate:      5,
		Target:    15,
		At:        baseTime,
	})

	data := readUntil(t, conn, wsHub.EventSignal)
	if data["state"] != string(types.AlertActive) {
		t.Errorf("state: got %v, want active", data["state"])
	}
	sig, ok := data["signal"].(map[string]interface{})
	if !ok {
		t.Fatal("signal: missing or wrong type")
	}
	if sig["visible"] != true {
		t.Errorf("visible: got %v, want true", sig["visible"])
	}
}

func TestHub_OnBlink_PushedImmediately(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, hub, _ := startHub(t, sess)
	conn := connect(t, wsURL)
	time.Sleep(10 * time.Millisecond)

	hub.OnBlink(sess.ID(), types.BlinkEvent{Timestamp: baseTime, EAR: 0.12})

	data := readUntil(t, conn, wsHub.EventBlink)
	if data["session_id"] != sess.ID() {
		t.Errorf("session_id: got %v", data["session_id"])
	}
	if ear, _ := data["ear"].(float64); ear != 0.12 {
		t.Errorf("ear: got %v, want 0.12", data["ear"])
	}
}

func TestHub_SubscribedToSession(t *testing.T) {
	sess, clk := newSession(t)
	wsURL, hub, _ := startHub(t, sess)
	sess.Subscribe(hub)
	conn := connect(t, wsURL)
	time.Sleep(10 * time.Millisecond)

	closed := openFrame()
	for i := range closed.Left {
		closed.Left[i].Y /= 10
		closed.Right[i].Y /= 10
	}
	var frames []types.Frame
	for i := 0; i < 5; i++ {
		frames = append(frames, openFrame())
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, closed)
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, openFrame())
	}
	for _, f := range frames {
		clk.Advance(50 * time.Millisecond)
		if _, err := sess.ProcessFrame(f); err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
	}

	readUntil(t, conn, wsHub.EventBlink)
}

func TestHub_CancelContext_ClosesConnections(t *testing.T) {
	sess, _ := newSession(t)
	wsURL, _, cancel := startHub(t, sess)

	conn := connect(t, wsURL)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return // connection closed
		}
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	sess, _ := newSession(t)
	hub := wsHub.New(sess, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
