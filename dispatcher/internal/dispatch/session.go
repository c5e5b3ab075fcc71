package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/precipgrid/precipgrid/dispatcher/internal/endpoint"
	"github.com/precipgrid/precipgrid/pkg/types"
)

// State is a step of a distribution session.
type State string

const (
	StateInit        State = "INIT"
	StateHealthCheck State = "HEALTH_CHECK"
	StateAborted     State = "ABORTED"
	StateDispatching State = "DISPATCHING"
	StateCollecting  State = "COLLECTING"
	StateDone        State = "DONE"
)

// DefaultHealthTimeout bounds a single GET /health probe.
const DefaultHealthTimeout = 5 * time.Second

// Options tunes a Session. Zero values select the defaults.
type Options struct {
	HealthTimeout  time.Duration
	BatchTimeout   time.Duration
	MaxConcurrency int
}

// Summary describes a finished session.
type Summary struct {
	ID        string
	State     State
	Total     int
	Completed int
	Failed    []*BatchError
	Endpoints []string // healthy endpoints used for dispatch

	// Elapsed spans the whole Run, health probing included.
	Elapsed time.Duration
}

// Session runs one probe-then-dispatch cycle. It is not reusable.
type Session struct {
	ID string

	client *http.Client
	opts   Options

	mu      sync.Mutex
	state   State
	history []State
	summary Summary
}

// NewSession returns a session in StateInit.
func NewSession(client *http.Client, opts Options) *Session {
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = DefaultHealthTimeout
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		client:  client,
		opts:    opts,
		state:   StateInit,
		history: []State{StateInit},
		summary: Summary{ID: id, State: StateInit},
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary returns the session outcome. It is complete once Run returns.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.summary
	out.State = s.state
	return out
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.history = append(s.history, st)
	s.mu.Unlock()
	slog.Info("session: state changed", "session", s.ID, "from", prev, "to", st)
}

// Run probes addrs, then dispatches batches over the healthy subset.
// When no endpoint is healthy it returns an empty map and an error wrapping
// endpoint.ErrNoHealthyEndpoints without sending any batch. Otherwise the
// map holds every batch that succeeded; missing start rows are holes.
func (s *Session) Run(ctx context.Context, addrs []string, batches []types.Batch) (map[int]*types.BatchResult, error) {
	started := time.Now()
	defer func() {
		s.mu.Lock()
		s.summary.Elapsed = time.Since(started)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	if s.state != StateInit {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s: already run (state %s)", s.ID, st)
	}
	s.summary.Total = len(batches)
	s.mu.Unlock()

	s.setState(StateHealthCheck)
	pool, err := endpoint.Probe(ctx, s.client, addrs, s.opts.HealthTimeout)
	if err != nil {
		slog.Error("session: aborting, no healthy endpoints", "session", s.ID, "endpoints", len(addrs))
		s.setState(StateAborted)
		return map[int]*types.BatchResult{}, fmt.Errorf("session %s: %w", s.ID, err)
	}

	s.mu.Lock()
	s.summary.Endpoints = pool.Addresses()
	s.mu.Unlock()
	slog.Info("session: dispatching",
		"session", s.ID,
		"healthy", pool.Len(),
		"configured", len(addrs),
		"batches", len(batches))

	d := New(s.client, s.opts.BatchTimeout)
	d.OnSubmitted = func() { s.setState(StateCollecting) }

	s.setState(StateDispatching)
	results := d.Dispatch(ctx, batches, pool, s.opts.MaxConcurrency)

	s.mu.Lock()
	s.summary.Completed = d.Completed()
	s.summary.Failed = d.Failures()
	s.mu.Unlock()
	s.setState(StateDone)
	return results, nil
}
