package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const workerMetrics = `
# HELP precipgrid_worker_batches_total Batches interpolated successfully.
# TYPE precipgrid_worker_batches_total counter
precipgrid_worker_batches_total 12
# HELP precipgrid_worker_batch_errors_total Batch requests rejected.
# TYPE precipgrid_worker_batch_errors_total counter
precipgrid_worker_batch_errors_total{reason="bad_request"} 2
precipgrid_worker_batch_errors_total{reason="unauthorized"} 1
# HELP precipgrid_worker_pixels_total Pixels interpolated.
# TYPE precipgrid_worker_pixels_total counter
precipgrid_worker_pixels_total 86400
# HELP precipgrid_worker_batch_seconds_total Time spent interpolating.
# TYPE precipgrid_worker_batch_seconds_total counter
precipgrid_worker_batch_seconds_total 31.5
`

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(workerMetrics))
	}))
	defer srv.Close()

	ws := Scrape(context.Background(), srv.Client(), srv.URL)
	if ws.Err != nil {
		t.Fatalf("ws.Err = %v", ws.Err)
	}
	if ws.Batches != 12 {
		t.Errorf("Batches = %v, want 12", ws.Batches)
	}
	// Errors are summed across reasons.
	if ws.Errors != 3 {
		t.Errorf("Errors = %v, want 3", ws.Errors)
	}
	if ws.Pixels != 86400 {
		t.Errorf("Pixels = %v, want 86400", ws.Pixels)
	}
	if ws.Seconds != 31.5 {
		t.Errorf("Seconds = %v, want 31.5", ws.Seconds)
	}
}

func TestScrape_MissingMetricsAreZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("precipgrid_worker_batches_total 4\n"))
	}))
	defer srv.Close()

	ws := Scrape(context.Background(), srv.Client(), srv.URL)
	if ws.Err != nil || ws.Batches != 4 || ws.Pixels != 0 {
		t.Errorf("got %+v, want Batches=4 and zero elsewhere", ws)
	}
}

func TestScrape_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	for _, addr := range []string{notFound.URL, "http://127.0.0.1:1"} {
		ws := Scrape(context.Background(), &http.Client{}, addr)
		if ws.Err == nil {
			t.Errorf("Scrape(%s): Err should be set", addr)
			continue
		}
		if !strings.Contains(ws.Err.Error(), addr) {
			t.Errorf("Scrape(%s): error %q should name the endpoint", addr, ws.Err)
		}
	}
}

func TestScrapeAll_KeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(workerMetrics))
	}))
	defer srv.Close()

	got := ScrapeAll(context.Background(), srv.Client(), []string{srv.URL, "http://127.0.0.1:1"})
	if len(got) != 2 || got[0].Endpoint != srv.URL || got[0].Err != nil || got[1].Err == nil {
		t.Errorf("ScrapeAll() = %+v", got)
	}
}
