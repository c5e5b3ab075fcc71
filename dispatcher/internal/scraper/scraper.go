package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/precipgrid/precipgrid/dispatcher/internal/endpoint"
	"github.com/precipgrid/precipgrid/pkg/types"
)

const defaultScrapeTimeout = 10 * time.Second

// WorkerStats is the lifetime counters of one worker.
type WorkerStats struct {
	Endpoint  string
	ScrapedAt time.Time
	Batches   float64
	Errors    float64
	Pixels    float64
	Seconds   float64

	// Err is non-nil if the scrape itself failed (connectivity, auth, parse).
	Err error
}

// Scrape fetches addr/metrics and extracts worker counters.
func Scrape(ctx context.Context, client *http.Client, addr string) *WorkerStats {
	ws := &WorkerStats{Endpoint: addr, ScrapedAt: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(ctx, defaultScrapeTimeout)
	defer cancel()

	mfs, err := fetch(ctx, client, endpoint.URL(addr, types.MetricsPath))
	if err != nil {
		ws.Err = fmt.Errorf("worker scrape %q: %w", addr, err)
		slog.Warn("scraper: worker fetch failed", "endpoint", addr, "err", err)
		return ws
	}

	ws.Batches = total(mfs, types.MetricBatches)
	ws.Errors = total(mfs, types.MetricBatchErrors)
	ws.Pixels = total(mfs, types.MetricPixels)
	ws.Seconds = total(mfs, types.MetricBatchSeconds)
	return ws
}

// ScrapeAll scrapes every address in order.
func ScrapeAll(ctx context.Context, client *http.Client, addrs []string) []*WorkerStats {
	out := make([]*WorkerStats, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Scrape(ctx, client, a))
	}
	return out
}

func fetch(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	// Trailing garbage after valid families is tolerated.
	var p expfmt.TextParser
	mfs, err := p.TextToMetricFamilies(resp.Body)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return mfs, nil
}

// total sums the counter (or untyped) values of family name across label
// sets. An absent family counts as zero.
func total(mfs map[string]*dto.MetricFamily, name string) float64 {
	var sum float64
	for _, m := range mfs[name].GetMetric() {
		if c := m.GetCounter(); c != nil {
			sum += c.GetValue()
			continue
		}
		sum += m.GetUntyped().GetValue()
	}
	return sum
}
