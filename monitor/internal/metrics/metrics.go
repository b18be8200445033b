package metrics

import (
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/blinkwatch/blinkwatch/monitor/internal/presenter"
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const namespace = "blinkwatch"

// DeliveryStats reports presenter webhook outcomes. *presenter.Presenter
// satisfies it.
type DeliveryStats interface {
	Stats() presenter.Stats
}

// Handler serves GET /metrics.
type Handler struct {
	sess       *session.Session
	deliveries DeliveryStats
}

// New returns a Handler for sess. deliveries may be nil.
func New(sess *session.Session, deliveries DeliveryStats) *Handler {
	return &Handler{sess: sess, deliveries: deliveries}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode family", "name", mf.GetName(), "err", err)
			return
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		c.Close() //nolint:errcheck
	}
}

// Gather builds the metric families for the current session state, sorted by
// name.
func (h *Handler) Gather() []*dto.MetricFamily {
	st := h.sess.Snapshot()

	mfs := []*dto.MetricFamily{
		counter("blinks_total", "Blinks recorded since the session started.", float64(st.TotalBlinks)),
		counter("blinks_discarded_total", "Provisional closes discarded as noise.", float64(st.Discarded)),
		gauge("blink_rate_current", "Blinks in the trailing rate window.", float64(st.CurrentRate)),
		gauge("blink_rate_average", "Average blinks per minute over the session.", st.AverageRate),
		gauge("target_rate", "Target blinks per minute.", st.TargetRate),
		gauge("session_duration_seconds", "Seconds since the session started.", st.SessionSeconds),
		gauge("session_running", "1 if the session is accepting frames.", boolValue(st.Running)),
		labeled(dto.MetricType_GAUGE, "eye_aspect_ratio", "Latest eye aspect ratio.", "kind",
			map[string]float64{"raw": st.LastEAR, "smoothed": st.SmoothedEAR}),
		gauge("eye_closed", "1 while the detector considers the eye closed.", boolValue(st.EyeState == types.EyeClosed)),
		labeled(dto.MetricType_GAUGE, "alert_state", "1 for the current alert state.", "state",
			map[string]float64{
				string(types.AlertNormal):  boolValue(st.AlertState == types.AlertNormal),
				string(types.AlertPending): boolValue(st.AlertState == types.AlertPending),
				string(types.AlertActive):  boolValue(st.AlertState == types.AlertActive),
			}),
		gauge("effect_visible", "1 while the corrective effect should be shown.", boolValue(st.Signal.Visible)),
		counter("alert_activations_total", "Times the effect was activated.", float64(st.Activations)),
		counter("frames_total", "Frames received while running.", float64(st.Frames)),
		labeled(dto.MetricType_COUNTER, "frames_skipped_total", "Frames without usable eye landmarks.", "reason",
			map[string]float64{"no_face": float64(st.NoFace), "missing_landmarks": float64(st.Missing)}),
		counter("frames_dropped_total", "Frames rejected because another was in flight.", float64(st.Dropped)),
		counter("clamped_timestamps_total", "Blink timestamps clamped to keep history ordered.", float64(st.Clamped)),
	}
	// Session counters restart at zero on Reset; the new run gets new series.
	labelCounters(mfs, "session_id", st.SessionID)

	if h.deliveries != nil {
		ds := h.deliveries.Stats()
		mfs = append(mfs, labeled(dto.MetricType_COUNTER, "presenter_deliveries_total",
			"Presenter webhook outcomes.", "result",
			map[string]float64{
				"delivered": float64(ds.Delivered),
				"failed":    float64(ds.Failed),
				"evicted":   float64(ds.Evicted),
			}))
	}

	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })
	return mfs
}

// --- family builders --------------------------------------------------------

func gauge(name, help string, v float64) *dto.MetricFamily {
	return family(dto.MetricType_GAUGE, name, help, sample(dto.MetricType_GAUGE, v))
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return family(dto.MetricType_COUNTER, name, help, sample(dto.MetricType_COUNTER, v))
}

// labeled builds a family with one sample per label value, ordered by value.
func labeled(typ dto.MetricType, name, help, label string, values map[string]float64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ms := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		m := sample(typ, values[k])
		m.Label = []*dto.LabelPair{{Name: ptr(label), Value: ptr(k)}}
		ms = append(ms, m)
	}
	return family(typ, name, help, ms...)
}

// labelCounters adds name=value to every sample of the counter families.
func labelCounters(mfs []*dto.MetricFamily, name, value string) {
	for _, mf := range mfs {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.Metric {
			m.Label = append(m.Label, &dto.LabelPair{Name: ptr(name), Value: ptr(value)})
		}
	}
}

func family(typ dto.MetricType, name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(namespace + "_" + name),
		Help:   ptr(help),
		Type:   typ.Enum(),
		Metric: ms,
	}
}

func sample(typ dto.MetricType, v float64) *dto.Metric {
	if typ == dto.MetricType_COUNTER {
		return &dto.Metric{Counter: &dto.Counter{Value: ptr(v)}}
	}
	return &dto.Metric{Gauge: &dto.Gauge{Value: ptr(v)}}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
