// Package endpoint owns the set of compute workers for one session.
//
// NewClient builds the *http.Client used for every worker call. The API key
// or bearer token is added by a header RoundTripper, and mTLS is configured
// on the transport. Idle connections are kept for longer than
// the batch timeout. The client has no global or response-header timeout;
// callers bound each request with a context deadline (seconds for health
// probes, an hour for batches).
//
// Probe checks every address once, concurrently, with GET /health and returns
// an immutable Pool of the healthy addresses in their configured order. The
// pool is never re-probed; Next hands out addresses round-robin and is safe
// for concurrent use. Probe returns ErrNoHealthyEndpoints when nothing
// answers, which aborts the session.
package endpoint
