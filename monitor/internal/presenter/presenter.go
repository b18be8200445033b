package presenter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const (
	DefaultBufferSize = 64

	backoffInitial    = 250 * time.Millisecond
	backoffMax        = 10 * time.Second
	backoffMultiplier = 2.0
	maxAttempts       = 3
	sendTimeout       = 10 * time.Second
)

// Target is one webhook destination with its URL already resolved.
type Target struct {
	// Type is one of: slack | teams | http.
	Type string
	URL  string
}

// Stats counts delivery outcomes.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Evicted   uint64 `json:"evicted"`
}

// Presenter buffers signal changes and posts them to webhook targets.
// OnSignal never blocks; Run must be called in a goroutine to drain the buffer.
type Presenter struct {
	targets []Target
	buf     chan types.SignalChange
	client  *http.Client

	// wait sleeps between retries; injectable for tests.
	wait func(ctx context.Context, d time.Duration) bool
	bo   *backoff

	delivered atomic.Uint64
	failed    atomic.Uint64
	evicted   atomic.Uint64
}

// New creates a Presenter. Targets with an empty URL are skipped.
func New(targets []Target, bufferSize int) *Presenter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	var live []Target
	for _, t := range targets {
		if t.URL == "" {
			slog.Warn("presenter: webhook url is empty, skipping", "type", t.Type)
			continue
		}
		live = append(live, t)
	}
	return &Presenter{
		targets: live,
		buf:     make(chan types.SignalChange, bufferSize),
		client:  &http.Client{Timeout: sendTimeout},
		wait:    sleepCtx,
		bo:      newBackoff(backoffInitial, backoffMax),
	}
}

// Enabled reports whether any target is configured.
func (p *Presenter) Enabled() bool { return len(p.targets) > 0 }

// OnSignal enqueues a change. If the buffer is full the oldest entry is
// evicted to make room.
func (p *Presenter) OnSignal(ch types.SignalChange) {
	if !p.Enabled() {
		return
	}
	for {
		select {
		case p.buf <- ch:
			return
		default:
		}
		select {
		case <-p.buf:
			p.evicted.Add(1)
			slog.Warn("presenter: buffer full, evicted oldest change",
				"session", ch.SessionID, "buffer_cap", cap(p.buf))
		default:
		}
	}
}

// Stats returns delivery counters.
func (p *Presenter) Stats() Stats {
	return Stats{
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
		Evicted:   p.evicted.Load(),
	}
}

// Run drains the buffer until ctx is cancelled.
func (p *Presenter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-p.buf:
			for _, t := range p.targets {
				p.deliverWithRetry(ctx, t, ch)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (p *Presenter) deliverWithRetry(ctx context.Context, t Target, ch types.SignalChange) {
	p.bo.reset()
	for attempt := 1; ; attempt++ {
		err := p.send(ctx, t, ch)
		if err == nil {
			p.delivered.Add(1)
			slog.Debug("presenter: webhook delivered",
				"type", t.Type,
				"visible", ch.Signal.Visible,
				"attempt", attempt,
			)
			return
		}

		var perm *permanentError
		if errors.As(err, &perm) || attempt >= maxAttempts {
			p.failed.Add(1)
			slog.Error("presenter: webhook delivery failed",
				"type", t.Type,
				"attempts", attempt,
				"err", err,
			)
			return
		}

		wait := p.bo.next()
		slog.Warn("presenter: webhook delivery failed, will retry",
			"type", t.Type,
			"err", err,
			"retry_in", wait,
		)
		if !p.wait(ctx, wait) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
