package presenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// permanentError marks a response that will not succeed on retry.
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.status)
}

func (p *Presenter) send(ctx context.Context, t Target, ch types.SignalChange) error {
	var body []byte
	switch t.Type {
	case "slack":
		body, _ = json.Marshal(map[string]string{"text": summary(ch)})
	case "teams":
		body, _ = json.Marshal(map[string]interface{}{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": stateColor(ch),
			"summary":    "blinkwatch",
			"title":      "blinkwatch: blink rate",
			"text":       summary(ch),
		})
	case "http", "":
		body, _ = json.Marshal(map[string]interface{}{"signal": ch})
	default:
		return &permanentError{status: 0}
	}
	return p.post(ctx, t.URL, body)
}

func (p *Presenter) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return &permanentError{status: resp.StatusCode}
	}
	return nil
}

func summary(ch types.SignalChange) string {
	if ch.Signal.Visible {
		return fmt.Sprintf("*[LOW]* blink rate %.0f/min is below target %.0f/min, showing %s effect",
			ch.Rate, ch.Target, ch.Signal.Kind)
	}
	return fmt.Sprintf("*[OK]* effect hidden, blink rate %.0f/min (target %.0f/min)", ch.Rate, ch.Target)
}

func stateColor(ch types.SignalChange) string {
	if ch.Signal.Visible {
		return "FFAB40"
	}
	return "00D4FF"
}
