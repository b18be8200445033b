// Package metrics exposes session state in the Prometheus exposition format.
//
// New(sess, deliveries) returns an http.Handler for GET /metrics. Every
// scrape takes one session.Snapshot and renders it as client_model metric
// families, encoded with expfmt in whatever format the scraper negotiates.
// A scrape is a pure read of the session.
//
// Session counters carry a session_id label. A reset starts a new session
// run with a new ID, so its counters are new series rather than a counter
// reset of the old ones. Presenter delivery counters live for the process and
// are not labeled.
package metrics
