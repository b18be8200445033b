// Package api implements the HTTP REST API for blinkwatch.
//
// New(sess) returns an http.Handler that serves:
//
//	GET  /api/v1/stats          rates, totals, eye and alert state, counters
//	GET  /api/v1/signal         {visible, effect_kind} for the presenter
//	GET  /api/v1/alerts         effect activations, newest first
//	GET  /api/v1/diagnostics    plain-language hints about the session
//	POST /api/v1/session/reset  clear history and alert state
//	PUT  /api/v1/target         {"target_rate": n} with 1 <= n <= 60
//
// All endpoints respond with Content-Type: application/json and return 405
// for other methods. Frame ingest lives in the receiver package.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
