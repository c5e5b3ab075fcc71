package endpoint

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/precipgrid/precipgrid/dispatcher/internal/config"
)

// Transport tuning for worker traffic: few hosts, few requests, and batch
// responses that may take up to the batch timeout to start.
const (
	dialTimeout         = 10 * time.Second
	tcpKeepAlive        = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	idleConnTimeout     = 2 * time.Hour
	maxIdlePerHost      = 16
)

// credential is the one header every worker request carries.
type credential struct {
	name  string
	value string
}

// credentialFor resolves the header for auth. ok is false for mtls, none, or
// an unset secret.
func credentialFor(auth config.AuthConfig) (c credential, ok bool) {
	switch auth.Mode {
	case "apikey":
		c = credential{name: auth.EffectiveHeader(), value: auth.Key()}
	case "bearer":
		if tok := auth.Token(); tok != "" {
			c = credential{name: "Authorization", value: "Bearer " + tok}
		}
	}
	return c, c.value != ""
}

type headerTransport struct {
	base http.RoundTripper
	cred credential
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.cred.name, t.cred.value)
	return t.base.RoundTrip(req)
}

// NewClient returns the client shared by health probes, batch posts and
// metric scrapes. It sets no overall timeout or response-header timeout;
// every request is bounded by its context.
func NewClient(auth config.AuthConfig, tlsOpts config.TLSConfig) (*http.Client, error) {
	tlsCfg, err := tlsConfig(auth, tlsOpts)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = newTransport(tlsCfg)
	if cred, ok := credentialFor(auth); ok {
		rt = &headerTransport{base: rt, cred: cred}
	}
	return &http.Client{Transport: rt}, nil
}

func newTransport(tlsCfg *tls.Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: tcpKeepAlive,
		}).DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       idleConnTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// tlsConfig loads the client certificate and CA pool for mtls.
func tlsConfig(auth config.AuthConfig, opts config.TLSConfig) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if auth.Mode != "mtls" {
		return cfg, nil
	}

	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("endpoint: load client cert: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	if auth.CAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(auth.CAFile)
	if err != nil {
		return nil, fmt.Errorf("endpoint: read ca file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("endpoint: ca file %q holds no certificates", auth.CAFile)
	}
	cfg.RootCAs = roots
	return cfg, nil
}
