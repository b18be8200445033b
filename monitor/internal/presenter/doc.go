// Package presenter delivers effect signal changes to external presenters
// over webhooks.
//
// OnSignal is non-blocking: changes are placed in an in-memory channel
// (default capacity 64). When the buffer is full the oldest change is evicted
// so the latest signal always survives.
//
// Run drains the buffer and posts each change to every configured target
// (slack, teams or generic http JSON). A failed post is retried with
// truncated exponential backoff (250ms to 10s, +-25% jitter) up to
// maxAttempts times; 4xx responses other than 429 are not retried.
package presenter
