package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
)

// Target rate bounds accepted by PUT /api/v1/target.
const (
	MinTargetRate = 1
	MaxTargetRate = 60
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	sess *session.Session
	mux  *http.ServeMux
}

// New creates a Handler wired to sess and registers all routes.
func New(sess *session.Session) http.Handler {
	h := &Handler{sess: sess, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/stats", h.stats)
	h.mux.HandleFunc("/api/v1/signal", h.signal)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/session/reset", h.reset)
	h.mux.HandleFunc("/api/v1/target", h.target)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// BuildStats assembles the stats payload. Shared with the WebSocket hub.
func BuildStats(sess *session.Session) StatsResponse {
	st := sess.Snapshot()
	return StatsResponse{
		Stats:       st,
		Diagnostics: computeDiagnostics(st),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildStats(h.sess))
}

func (h *Handler) signal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := h.sess.Snapshot()
	jsonResp(w, http.StatusOK, SignalResponse{
		Visible:    st.Signal.Visible,
		EffectKind: st.Signal.Kind,
		State:      st.AlertState,
	})
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.sess.Activations())
}

func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(h.sess.Snapshot()))
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.sess.Reset()
	jsonResp(w, http.StatusOK, BuildStats(h.sess))
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req TargetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.TargetRate < MinTargetRate || req.TargetRate > MaxTargetRate {
		jsonErr(w, http.StatusBadRequest, "target_rate must be between 1 and 60")
		return
	}
	if err := h.sess.SetTarget(req.TargetRate); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, req)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
