// Package dispatch sends row batches to compute workers and collects their
// results.
//
// Dispatcher.Dispatch assigns every batch an endpoint from the pool in
// ascending start_row order, then runs at most maxConcurrency HTTP exchanges
// at a time. Each exchange has its own timeout and is classified on
// completion; a failed batch is logged as a *BatchError and dropped. Results
// flow over a channel to a single collector, so the returned map holds only
// successful batches and absent keys are coverage holes.
//
// Session wraps one distribution run as a state machine:
//
//	INIT → HEALTH_CHECK → ABORTED
//	                    → DISPATCHING → COLLECTING → DONE
//
// ABORTED happens when no endpoint passes its health probe; no batch is sent
// and the result map is empty.
package dispatch
