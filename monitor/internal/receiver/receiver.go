package receiver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const (
	// maxFrameBytes bounds one frame body. A full face mesh is well under this.
	maxFrameBytes = 1 << 20

	// idleTimeout closes a landmark stream that has sent nothing for this long.
	idleTimeout = 60 * time.Second

	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamReply is sent back for every frame on the landmark stream.
type StreamReply struct {
	Result *session.FrameResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Receiver serves both frame transports.
type Receiver struct {
	sess *session.Session
	mux  *http.ServeMux
}

// New wires a Receiver to sess.
func New(sess *session.Session) *Receiver {
	r := &Receiver{sess: sess, mux: http.NewServeMux()}
	r.mux.HandleFunc("/api/v1/frames", r.frames)
	r.mux.HandleFunc("/ws/landmarks", r.stream)
	return r
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Receiver) frames(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		jsonResp(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	var f types.Frame
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxFrameBytes)).Decode(&f); err != nil {
		jsonResp(w, http.StatusBadRequest, errorResponse{Error: "invalid frame json"})
		return
	}
	res, err := r.sess.ProcessFrame(f)
	if err != nil {
		jsonResp(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// stream serves one landmark producer until it disconnects.
func (r *Receiver) stream(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	slog.Info("receiver: landmark stream connected", "remote", req.RemoteAddr)
	conn.SetReadLimit(maxFrameBytes)

	var frames uint64
	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout)) //nolint:errcheck
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("receiver: landmark stream read failed", "remote", req.RemoteAddr, "err", err)
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		frames++

		var reply StreamReply
		var f types.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			reply.Error = "invalid frame json"
		} else if res, err := r.sess.ProcessFrame(f); err != nil {
			reply.Error = err.Error()
		} else {
			reply.Result = &res
		}

		conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(reply); err != nil {
			slog.Warn("receiver: landmark stream write failed", "remote", req.RemoteAddr, "err", err)
			break
		}
	}
	slog.Info("receiver: landmark stream closed", "remote", req.RemoteAddr, "frames", frames)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrStopped):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
