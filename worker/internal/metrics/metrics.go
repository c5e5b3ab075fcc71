package metrics

import (
	"bytes"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/precipgrid/precipgrid/pkg/types"
)

// Error reasons recorded by ObserveError.
const (
	ReasonBadRequest   = "bad_request"
	ReasonUnauthorized = "unauthorized"
	ReasonMethod       = "method_not_allowed"
)

// Counters tracks batches served by one worker process.
// The zero value is ready to use and safe for concurrent use.
type Counters struct {
	mu      sync.Mutex
	batches uint64
	pixels  uint64
	seconds float64
	errors  map[string]uint64
}

// ObserveBatch records one successfully interpolated batch.
func (c *Counters) ObserveBatch(pixels int, took time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	c.pixels += uint64(pixels)
	c.seconds += took.Seconds()
}

// ObserveError records one rejected request.
func (c *Counters) ObserveError(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errors == nil {
		c.errors = make(map[string]uint64)
	}
	c.errors[reason]++
}

// Families returns a snapshot of the counters as metric families.
func (c *Counters) Families() []*dto.MetricFamily {
	c.mu.Lock()
	defer c.mu.Unlock()

	reasons := make([]string, 0, len(c.errors))
	for r := range c.errors {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	errs := make([]*dto.Metric, 0, len(reasons))
	for _, r := range reasons {
		errs = append(errs, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String("reason"), Value: proto.String(r)}},
			Counter: &dto.Counter{Value: proto.Float64(float64(c.errors[r]))},
		})
	}

	return []*dto.MetricFamily{
		counter(types.MetricBatches, "Batches interpolated successfully.", float64(c.batches)),
		{
			Name:   proto.String(types.MetricBatchErrors),
			Help:   proto.String("Batch requests rejected, by reason."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: errs,
		},
		counter(types.MetricPixels, "Pixels interpolated.", float64(c.pixels)),
		counter(types.MetricBatchSeconds, "Time spent interpolating batches.", c.seconds),
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

// ServeHTTP writes the counters in the Prometheus text format.
func (c *Counters) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	for _, mf := range c.Families() {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			slog.Error("metrics: encode failed", "family", mf.GetName(), "err", err)
			http.Error(w, "encode metrics", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	_, _ = w.Write(buf.Bytes())
}
