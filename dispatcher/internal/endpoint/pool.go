package endpoint

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/precipgrid/precipgrid/pkg/types"
)

// ErrNoHealthyEndpoints is returned by Probe when no address passes its
// health check.
var ErrNoHealthyEndpoints = errors.New("endpoint: no healthy endpoints")

// Health is the probe outcome of one address.
type Health string

const (
	HealthUnknown   Health = "unknown"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// CertExpiryWarning is how close to expiry a worker's TLS certificate may get
// before the probe logs a warning.
const CertExpiryWarning = 30 * 24 * time.Hour

// Status is one address and its health for the session.
type Status struct {
	Address string
	Health  Health
	Err     error // why the address is unhealthy; nil otherwise

	// CertNotAfter is the expiry of the leaf certificate presented on an
	// https probe; zero for plain http.
	CertNotAfter time.Time
}

// CertDaysLeft returns the whole days from now until CertNotAfter, negative
// once expired. ok is false when no certificate was seen.
func (s Status) CertDaysLeft(now time.Time) (days int, ok bool) {
	if s.CertNotAfter.IsZero() {
		return 0, false
	}
	return int(math.Floor(s.CertNotAfter.Sub(now).Hours() / 24)), true
}

// Pool is the frozen healthy set of a session.
type Pool struct {
	addrs    []string
	statuses []Status
	cursor   atomic.Uint64
}

// NewPool returns a pool over addrs without probing them. It is used when
// health is already known. An empty addrs returns ErrNoHealthyEndpoints.
func NewPool(addrs []string) (*Pool, error) {
	if len(addrs) == 0 {
		return nil, ErrNoHealthyEndpoints
	}
	p := &Pool{addrs: append([]string(nil), addrs...)}
	for _, a := range p.addrs {
		p.statuses = append(p.statuses, Status{Address: a, Health: HealthHealthy})
	}
	return p, nil
}

// Next returns the next healthy address in round-robin order.
func (p *Pool) Next() string {
	n := p.cursor.Add(1) - 1
	return p.addrs[n%uint64(len(p.addrs))]
}

// Len returns the number of healthy addresses.
func (p *Pool) Len() int { return len(p.addrs) }

// Addresses returns a copy of the healthy addresses in probe order.
func (p *Pool) Addresses() []string { return append([]string(nil), p.addrs...) }

// Statuses returns the probe outcome of every configured address.
func (p *Pool) Statuses() []Status { return append([]Status(nil), p.statuses...) }

// Probe issues one GET /health per address concurrently, each bounded by
// timeout. An address is healthy only if it answers 200 OK in time.
// The returned Pool keeps the healthy addresses in their original order.
// When none is healthy Probe returns ErrNoHealthyEndpoints.
func Probe(ctx context.Context, client *http.Client, addrs []string, timeout time.Duration) (*Pool, error) {
	statuses := make([]Status, len(addrs))
	var wg sync.WaitGroup
	for i, addr := range addrs {
		statuses[i] = Status{Address: addr, Health: HealthUnknown}
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			leaf, err := check(ctx, client, addr, timeout)
			if err != nil {
				statuses[i].Health, statuses[i].Err = HealthUnhealthy, err
				slog.Warn("endpoint: health check failed", "endpoint", addr, "err", err)
				return
			}
			statuses[i].Health = HealthHealthy
			if leaf != nil {
				statuses[i].CertNotAfter = leaf.NotAfter
				if time.Until(leaf.NotAfter) <= CertExpiryWarning {
					slog.Warn("endpoint: certificate expiring",
						"endpoint", addr,
						"issuer", leaf.Issuer.CommonName,
						"not_after", leaf.NotAfter.UTC().Format(time.RFC3339))
				}
			}
			slog.Info("endpoint: healthy", "endpoint", addr)
		}(i, addr)
	}
	wg.Wait()

	p := &Pool{statuses: statuses}
	for _, st := range statuses {
		if st.Health == HealthHealthy {
			p.addrs = append(p.addrs, st.Address)
		}
	}
	if len(p.addrs) == 0 {
		return nil, ErrNoHealthyEndpoints
	}
	return p, nil
}

// check performs one health probe and returns the peer leaf certificate
// of an https endpoint.
func check(ctx context.Context, client *http.Client, addr string, timeout time.Duration) (*x509.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL(addr, types.HealthPath), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		return resp.TLS.PeerCertificates[0], nil
	}
	return nil, nil
}

// URL joins an endpoint base address and a path.
func URL(addr, path string) string {
	return strings.TrimRight(addr, "/") + path
}
