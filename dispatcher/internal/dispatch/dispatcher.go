package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/precipgrid/precipgrid/dispatcher/internal/endpoint"
	"github.com/precipgrid/precipgrid/pkg/types"
)

// DefaultBatchTimeout bounds a single POST /process_batch exchange.
const DefaultBatchTimeout = time.Hour

// maxErrorBody is how much of a non-200 response body is kept for the log.
const maxErrorBody = 512

// Dispatcher runs batch exchanges against a frozen endpoint pool.
// A Dispatcher serves one Dispatch call at a time.
type Dispatcher struct {
	client  *http.Client
	timeout time.Duration

	// OnSubmitted, if set, is called once every batch has been handed to a
	// worker goroutine.
	OnSubmitted func()

	completed atomic.Int64
	mu        sync.Mutex
	failures  []*BatchError
}

// New returns a Dispatcher that uses client for every call and bounds each
// call by timeout. timeout <= 0 selects DefaultBatchTimeout.
func New(client *http.Client, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &Dispatcher{client: client, timeout: timeout}
}

// outcome is what a task reports to the collector.
type outcome struct {
	result *types.BatchResult
	err    *BatchError
}

// Dispatch sends every batch and returns the successful results keyed by
// start row. maxConcurrency <= 0 means one in-flight batch per endpoint.
// An empty pool sends nothing and returns an empty map.
//
// Cancelling ctx does not abort issued requests; each runs until it
// completes or its own timeout expires.
func (d *Dispatcher) Dispatch(ctx context.Context, batches []types.Batch, pool *endpoint.Pool, maxConcurrency int) map[int]*types.BatchResult {
	d.completed.Store(0)
	d.mu.Lock()
	d.failures = nil
	d.mu.Unlock()
	if pool == nil || pool.Len() == 0 {
		slog.Error("dispatch: no endpoints, nothing sent", "batches", len(batches))
		return map[int]*types.BatchResult{}
	}
	if maxConcurrency <= 0 {
		maxConcurrency = pool.Len()
	}

	taskCtx := context.WithoutCancel(ctx)
	total := len(batches)
	sem := make(chan struct{}, maxConcurrency)
	out := make(chan outcome)

	go func() {
		var wg sync.WaitGroup
		for _, b := range batches {
			addr := pool.Next()
			sem <- struct{}{}
			wg.Add(1)
			go func(b types.Batch, addr string) {
				defer wg.Done()
				o := d.run(taskCtx, b, addr, total)
				<-sem
				out <- o
			}(b, addr)
		}
		if d.OnSubmitted != nil {
			d.OnSubmitted()
		}
		wg.Wait()
		close(out)
	}()

	results := make(map[int]*types.BatchResult, total)
	for o := range out {
		if o.err != nil {
			d.mu.Lock()
			d.failures = append(d.failures, o.err)
			d.mu.Unlock()
			continue
		}
		if _, dup := results[o.result.StartRow]; dup {
			slog.Warn("dispatch: duplicate result ignored", "start_row", o.result.StartRow)
			continue
		}
		results[o.result.StartRow] = o.result
	}
	return results
}

// Completed returns the number of batches that succeeded in the last Dispatch.
func (d *Dispatcher) Completed() int { return int(d.completed.Load()) }

// Failures returns the dropped batches of the last Dispatch in completion order.
func (d *Dispatcher) Failures() []*BatchError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*BatchError(nil), d.failures...)
}

// run performs one batch exchange and logs its outcome.
func (d *Dispatcher) run(ctx context.Context, b types.Batch, addr string, total int) outcome {
	start := time.Now()
	res, err := d.send(ctx, b, addr)
	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("dispatch: batch dropped",
			"endpoint", addr,
			"start_row", b.StartRow,
			"end_row", b.EndRow,
			"kind", err.Kind,
			"status", err.Status,
			"elapsed", elapsed,
			"err", err.Err)
		return outcome{err: err}
	}

	n := d.completed.Add(1)
	slog.Info("dispatch: batch completed",
		"completed", n,
		"total", total,
		"endpoint", addr,
		"start_row", b.StartRow,
		"end_row", b.EndRow,
		"elapsed", elapsed)
	return outcome{result: res}
}

// send posts b to addr and decodes the response.
func (d *Dispatcher) send(ctx context.Context, b types.Batch, addr string) (*types.BatchResult, *BatchError) {
	fail := func(kind Kind, status int, err error) *BatchError {
		return &BatchError{Kind: kind, Endpoint: addr, StartRow: b.StartRow, EndRow: b.EndRow, Status: status, Err: err}
	}

	body, err := json.Marshal(b.Request())
	if err != nil {
		return nil, fail(KindUnexpected, 0, fmt.Errorf("encode payload: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(addr, types.ProcessPath), bytes.NewReader(body))
	if err != nil {
		return nil, fail(KindUnexpected, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fail(classify(err), 0, fmt.Errorf("http post: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fail(KindBadStatus, resp.StatusCode, fmt.Errorf("unexpected status: %s", bytes.TrimSpace(snippet)))
	}

	var br types.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		if errors.Is(err, types.ErrPixelArity) {
			return nil, fail(KindUnexpected, resp.StatusCode, fmt.Errorf("%w: %w", ErrMalformedResult, err))
		}
		kind := classify(err)
		if kind == KindConnection {
			// A truncated body is a decode problem, not a dial failure.
			kind = KindUnexpected
		}
		return nil, fail(kind, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if err := checkResult(b, &br); err != nil {
		return nil, fail(KindUnexpected, resp.StatusCode, err)
	}
	return &types.BatchResult{StartRow: br.StartRow, Rows: br.Results}, nil
}

// checkResult verifies that br answers b with a rows x width array.
func checkResult(b types.Batch, br *types.BatchResponse) error {
	if br.StartRow != b.StartRow {
		return fmt.Errorf("%w: start_row %d, want %d", ErrMalformedResult, br.StartRow, b.StartRow)
	}
	if len(br.Results) != b.Rows() {
		return fmt.Errorf("%w: %d rows, want %d", ErrMalformedResult, len(br.Results), b.Rows())
	}
	width := 0
	if len(b.Lons) > 0 {
		width = len(b.Lons[0])
	}
	for i, row := range br.Results {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d cols, want %d", ErrMalformedResult, i, len(row), width)
		}
	}
	return nil
}
