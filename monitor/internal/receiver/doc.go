// Package receiver accepts landmark frames from the face-landmark producer.
//
// Two transports feed the same session:
//
//	POST /api/v1/frames   one JSON Frame per request, answered with a FrameResult
//	GET  /ws/landmarks    WebSocket; one JSON Frame per text message, each
//	                      answered with {"result": ...} or {"error": ...}
//
// A frame without usable eye landmarks is not an error: it is answered with
// skipped=true. A frame that arrives while another is being processed is
// rejected with 429 (HTTP) or an error reply (WebSocket) and counted as
// dropped. Frames sent to a stopped session get 409.
//
// Authentication is enforced upstream by the HTTP middleware (see package
// auth), so the receiver itself only performs structural validation.
package receiver
