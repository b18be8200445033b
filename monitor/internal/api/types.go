package api

import (
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// StatsResponse is the payload for GET /api/v1/stats and the WebSocket
// "stats" event.
type StatsResponse struct {
	session.Stats
	Diagnostics []DiagnosticHint `json:"diagnostics"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// SignalResponse is the payload for GET /api/v1/signal.
type SignalResponse struct {
	Visible    bool             `json:"visible"`
	EffectKind types.EffectKind `json:"effect_kind"`
	State      types.AlertState `json:"state"`
}

// TargetRequest is the body of PUT /api/v1/target.
type TargetRequest struct {
	TargetRate float64 `json:"target_rate"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
