package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/precipgrid/precipgrid/pkg/idw"
	"github.com/precipgrid/precipgrid/pkg/types"
	"github.com/precipgrid/precipgrid/worker/internal/metrics"
)

// maxBody caps the size of a batch request body.
const maxBody = 256 << 20

// Handler serves the worker endpoints.
type Handler struct {
	counters *metrics.Counters
	workers  int
	mux      *http.ServeMux
}

// New creates a Handler that interpolates with up to workers goroutines per
// batch (0 = NumCPU) and records into counters.
func New(counters *metrics.Counters, workers int) *Handler {
	h := &Handler{counters: counters, workers: workers, mux: http.NewServeMux()}

	h.mux.HandleFunc(types.HealthPath, h.health)
	h.mux.HandleFunc(types.ProcessPath, h.processBatch)
	h.mux.Handle(types.MetricsPath, counters)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.counters.ObserveError(metrics.ReasonMethod)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		h.reject(w, "decode batch: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.reject(w, err.Error())
		return
	}

	start := time.Now()
	rows := idw.Batch(&req, h.workers)
	took := time.Since(start)

	pixels := len(rows) * req.Width()
	h.counters.ObserveBatch(pixels, took)
	slog.Debug("api: batch processed",
		"start_row", req.StartRow,
		"end_row", req.EndRow,
		"pixels", pixels,
		"stations", req.KnownData.Len(),
		"took", took,
	)

	jsonResp(w, http.StatusOK, types.BatchResponse{StartRow: req.StartRow, Results: rows})
}

func (h *Handler) reject(w http.ResponseWriter, msg string) {
	h.counters.ObserveError(metrics.ReasonBadRequest)
	slog.Warn("api: batch rejected", "err", msg)
	jsonErr(w, http.StatusBadRequest, msg)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
