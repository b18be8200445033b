package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/metrics"
	"github.com/blinkwatch/blinkwatch/monitor/internal/presenter"
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func eye(height float64) types.EyeLandmarks {
	return types.EyeLandmarks{
		{X: 0, Y: 0},
		{X: 1.0 / 3, Y: -height / 2},
		{X: 2.0 / 3, Y: -height / 2},
		{X: 1, Y: 0},
		{X: 2.0 / 3, Y: height / 2},
		{X: 1.0 / 3, Y: height / 2},
	}
}

type fakeDeliveries struct{ st presenter.Stats }

func (f fakeDeliveries) Stats() presenter.Stats { return f.st }

// newSession returns a running session that has seen one blink and one
// frame without a face.
func newSession(t *testing.T) *session.Session {
	t.Helper()
	cfg := config.Defaults()
	cfg.Smoothing.Window = 1
	clk := clock.NewManual(baseTime)
	s := session.New(cfg, clk)
	s.Start()
	t.Cleanup(s.Stop)

	for _, ear := range []float64{0.3, 0.1, 0.3} {
		clk.Advance(100 * time.Millisecond)
		if _, err := s.ProcessFrame(types.Frame{Left: eye(ear), Right: eye(ear)}); err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
	}
	clk.Advance(100 * time.Millisecond)
	if _, err := s.ProcessFrame(types.Frame{}); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	return s
}

// scrape serves one GET /metrics and parses the text exposition.
func scrape(t *testing.T, h http.Handler) map[string]*dto.MetricFamily {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rec.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return mfs
}

// value returns the sample in mf whose label matches, or the only sample
// when label is empty.
func value(t *testing.T, mfs map[string]*dto.MetricFamily, name, label, want string) float64 {
	t.Helper()
	mf, ok := mfs[name]
	if !ok {
		t.Fatalf("family %s: missing", name)
	}
	for _, m := range mf.GetMetric() {
		if label != "" {
			match := false
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == want {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		switch {
		case m.Counter != nil:
			return m.Counter.GetValue()
		case m.Gauge != nil:
			return m.Gauge.GetValue()
		}
	}
	t.Fatalf("family %s: no sample for %s=%s", name, label, want)
	return 0
}

func TestHandler_ExposesSessionState(t *testing.T) {
	mfs := scrape(t, metrics.New(newSession(t), nil))

	cases := []struct {
		name, label, labelValue string
		want                    float64
	}{
		{"blinkwatch_blinks_total", "", "", 1},
		{"blinkwatch_blink_rate_current", "", "", 1},
		{"blinkwatch_target_rate", "", "", config.DefaultTargetRate},
		{"blinkwatch_session_running", "", "", 1},
		{"blinkwatch_frames_total", "", "", 4},
		{"blinkwatch_frames_skipped_total", "reason", "no_face", 1},
		{"blinkwatch_frames_skipped_total", "reason", "missing_landmarks", 0},
		{"blinkwatch_frames_dropped_total", "", "", 0},
		{"blinkwatch_alert_state", "state", "normal", 1},
		{"blinkwatch_alert_state", "state", "active", 0},
		{"blinkwatch_effect_visible", "", "", 0},
		{"blinkwatch_eye_closed", "", "", 0},
	}
	for _, tc := range cases {
		if got := value(t, mfs, tc.name, tc.label, tc.labelValue); got != tc.want {
			t.Errorf("%s{%s=%q}: got %v, want %v", tc.name, tc.label, tc.labelValue, got, tc.want)
		}
	}

	if got := mfs["blinkwatch_blinks_total"].GetType(); got != dto.MetricType_COUNTER {
		t.Errorf("blinks_total type: got %v, want COUNTER", got)
	}
	if got := mfs["blinkwatch_blink_rate_current"].GetType(); got != dto.MetricType_GAUGE {
		t.Errorf("blink_rate_current type: got %v, want GAUGE", got)
	}
	if _, ok := mfs["blinkwatch_presenter_deliveries_total"]; ok {
		t.Error("presenter_deliveries_total: present without a presenter")
	}
}

func TestHandler_PresenterDeliveries(t *testing.T) {
	h := metrics.New(newSession(t), fakeDeliveries{st: presenter.Stats{Delivered: 3, Failed: 1, Evicted: 2}})
	mfs := scrape(t, h)

	for label, want := range map[string]float64{"delivered": 3, "failed": 1, "evicted": 2} {
		if got := value(t, mfs, "blinkwatch_presenter_deliveries_total", "result", label); got != want {
			t.Errorf("deliveries{result=%s}: got %v, want %v", label, got, want)
		}
	}
}

func TestHandler_ResetZeroesCounters(t *testing.T) {
	sess := newSession(t)
	sess.Reset()
	mfs := scrape(t, metrics.New(sess, nil))

	if got := value(t, mfs, "blinkwatch_blinks_total", "", ""); got != 0 {
		t.Errorf("blinks_total after reset: got %v, want 0", got)
	}
	if got := value(t, mfs, "blinkwatch_frames_total", "", ""); got != 0 {
		t.Errorf("frames_total after reset: got %v, want 0", got)
	}
}

func TestHandler_CountersLabeledBySession(t *testing.T) {
	sess := newSession(t)
	before := sess.ID()
	sess.Reset()
	after := sess.ID()
	mfs := scrape(t, metrics.New(sess, fakeDeliveries{}))

	if got := value(t, mfs, "blinkwatch_blinks_total", "session_id", after); got != 0 {
		t.Errorf("blinks_total{session_id=new}: got %v, want 0", got)
	}
	for _, m := range mfs["blinkwatch_blinks_total"].GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "session_id" && lp.GetValue() == before {
				t.Errorf("blinks_total still reported for the previous session %s", before)
			}
		}
	}
	if got := value(t, mfs, "blinkwatch_frames_skipped_total", "session_id", after); got != 0 {
		t.Errorf("frames_skipped_total{session_id=new}: got %v, want 0", got)
	}
	for _, m := range mfs["blinkwatch_presenter_deliveries_total"].GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "session_id" {
				t.Error("presenter_deliveries_total: unexpected session_id label")
			}
		}
	}
	for _, m := range mfs["blinkwatch_blink_rate_current"].GetMetric() {
		if len(m.GetLabel()) != 0 {
			t.Errorf("blink_rate_current: unexpected labels %v", m.GetLabel())
		}
	}
}

func TestHandler_Gather_SortedByName(t *testing.T) {
	mfs := metrics.New(newSession(t), nil).Gather()
	for i := 1; i < len(mfs); i++ {
		if mfs[i-1].GetName() >= mfs[i].GetName() {
			t.Errorf("not sorted: %s before %s", mfs[i-1].GetName(), mfs[i].GetName())
		}
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics.New(newSession(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}
