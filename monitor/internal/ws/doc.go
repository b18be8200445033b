// Package ws implements the WebSocket hub that feeds effect presenters and
// dashboards.
//
// New(sess, interval) creates a Hub. Hub.Run(ctx) broadcasts a "stats" event
// every interval until ctx is cancelled, then closes all connections.
// Hub.ServeHTTP upgrades a connection, sends the current stats and signal
// immediately, then streams updates. The Hub is also a session observer:
// every signal flip is pushed as a "signal" event and every blink as a
// "blink" event, without waiting for the next tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "stats" | "signal" | "blink",
//	  "data":  { ... }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The hub is mounted at /ws/stream by the binary.
package ws
