package receiver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/receiver"
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// eye builds an eye whose EAR is height (width 1).
func eye(height float64) types.EyeLandmarks {
	return types.EyeLandmarks{
		{X: 0, Y: 0},
		{X: 1.0 / 3, Y: -height / 2},
		{X: 2.0 / 3, Y: -height / 2},
		{X: 1, Y: 0},
		{X: 2.0 / 3, Y: height / 2},
		{X: 1.0 / 3, Y: height / 2},
	}
}

func frameJSON(t *testing.T, ear float64) []byte {
	t.Helper()
	b, err := json.Marshal(types.Frame{Left: eye(ear), Right: eye(ear)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// startServer serves a Receiver over httptest and returns the base URL, the
// session and its clock.
func startServer(t *testing.T, running bool) (string, *session.Session, *clock.Manual) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Smoothing.Window = 1
	clk := clock.NewManual(baseTime)
	sess := session.New(cfg, clk)
	if running {
		sess.Start()
		t.Cleanup(sess.Stop)
	}
	srv := httptest.NewServer(receiver.New(sess))
	t.Cleanup(srv.Close)
	return srv.URL, sess, clk
}

func postFrame(t *testing.T, url string, body []byte) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/frames", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var m map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, m
}

// --- POST /api/v1/frames ----------------------------------------------------

func TestFrames_ProcessesFrame(t *testing.T) {
	url, sess, _ := startServer(t, true)

	resp, m := postFrame(t, url, frameJSON(t, 0.3))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if m["skipped"] != false {
		t.Errorf("skipped: got %v, want false", m["skipped"])
	}
	if ear, _ := m["ear"].(float64); ear < 0.29 || ear > 0.31 {
		t.Errorf("ear: got %v, want ~0.3", m["ear"])
	}
	if m["eye_state"] != string(types.EyeOpen) {
		t.Errorf("eye_state: got %v, want open", m["eye_state"])
	}
	if got := sess.Snapshot().Frames; got != 1 {
		t.Errorf("Frames: got %d, want 1", got)
	}
}

func TestFrames_BlinkReported(t *testing.T) {
	url, sess, clk := startServer(t, true)

	var blinks int
	for _, ear := range []float64{0.3, 0.1, 0.1, 0.3} {
		clk.Advance(100 * time.Millisecond)
		_, m := postFrame(t, url, frameJSON(t, ear))
		if m["blink"] != nil {
			blinks++
		}
	}
	if blinks != 1 {
		t.Fatalf("responses with blink: got %d, want 1", blinks)
	}
	if got := sess.Snapshot().TotalBlinks; got != 1 {
		t.Errorf("TotalBlinks: got %d, want 1", got)
	}
}

func TestFrames_NoFaceIsSkipped(t *testing.T) {
	url, sess, _ := startServer(t, true)

	resp, m := postFrame(t, url, []byte(`{}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if m["skipped"] != true {
		t.Errorf("skipped: got %v, want true", m["skipped"])
	}
	if got := sess.Snapshot().NoFace; got != 1 {
		t.Errorf("NoFace: got %d, want 1", got)
	}
}

func TestFrames_Errors(t *testing.T) {
	cases := []struct {
		name    string
		running bool
		method  string
		body    string
		want    int
	}{
		{"bad json", true, http.MethodPost, `{not json`, http.StatusBadRequest},
		{"wrong method", true, http.MethodGet, ``, http.StatusMethodNotAllowed},
		{"stopped session", false, http.MethodPost, `{}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url, _, _ := startServer(t, tc.running)
			req, _ := http.NewRequest(tc.method, url+"/api/v1/frames", strings.NewReader(tc.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tc.want)
			}
			var e map[string]string
			json.NewDecoder(resp.Body).Decode(&e) //nolint:errcheck
			if e["error"] == "" {
				t.Error("error body: missing")
			}
		})
	}
}

// --- WS /ws/landmarks -------------------------------------------------------

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws/landmarks"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg []byte) receiver.StreamReply {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var reply receiver.StreamReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestStream_RepliesPerFrame(t *testing.T) {
	url, sess, clk := startServer(t, true)
	conn := dialStream(t, url)

	var blinks int
	for _, ear := range []float64{0.3, 0.1, 0.1, 0.3, 0.3} {
		clk.Advance(100 * time.Millisecond)
		reply := roundTrip(t, conn, frameJSON(t, ear))
		if reply.Error != "" {
			t.Fatalf("error reply: %s", reply.Error)
		}
		if reply.Result == nil {
			t.Fatal("result: missing")
		}
		if reply.Result.Blink != nil {
			blinks++
		}
	}
	if blinks != 1 {
		t.Errorf("blinks: got %d, want 1", blinks)
	}
	if got := sess.Snapshot().Frames; got != 5 {
		t.Errorf("Frames: got %d, want 5", got)
	}
}

func TestStream_BadFrameKeepsConnection(t *testing.T) {
	url, _, _ := startServer(t, true)
	conn := dialStream(t, url)

	reply := roundTrip(t, conn, []byte(`{broken`))
	if reply.Error == "" {
		t.Error("expected error reply for malformed frame")
	}
	reply = roundTrip(t, conn, frameJSON(t, 0.3))
	if reply.Error != "" || reply.Result == nil {
		t.Errorf("after bad frame: got %+v", reply)
	}
}

func TestStream_StoppedSession(t *testing.T) {
	url, _, _ := startServer(t, false)
	conn := dialStream(t, url)

	reply := roundTrip(t, conn, frameJSON(t, 0.3))
	if reply.Error != session.ErrStopped.Error() {
		t.Errorf("error: got %q, want %q", reply.Error, session.ErrStopped.Error())
	}
}

func TestStream_NonWebSocketRequest_Returns400(t *testing.T) {
	url, _, _ := startServer(t, true)
	resp, err := http.Get(url + "/ws/landmarks")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
