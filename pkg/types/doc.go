// Package types defines the shared Go types exchanged between the landmark
// ingest, the blink pipeline and the presenter outputs. These are the canonical
// in-memory representations; the JSON tags double as the wire format used by
// the HTTP and WebSocket transports.
package types
