package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Kind classifies why a batch was dropped.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindBadStatus  Kind = "bad_status"
	KindUnexpected Kind = "unexpected"
)

// ErrMalformedResult is wrapped when a 200 response does not match its batch.
var ErrMalformedResult = errors.New("malformed batch result")

// BatchError describes one dropped batch.
type BatchError struct {
	Kind     Kind
	Endpoint string
	StartRow int
	EndRow   int
	Status   int // HTTP status for KindBadStatus
	Err      error
}

func (e *BatchError) Error() string {
	if e.Kind == KindBadStatus {
		return fmt.Sprintf("batch [%d,%d) on %s: %s %d: %v", e.StartRow, e.EndRow, e.Endpoint, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("batch [%d,%d) on %s: %s: %v", e.StartRow, e.EndRow, e.Endpoint, e.Kind, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// classify maps a transport error to a failure kind.
func classify(err error) Kind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindConnection
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnection
	}
	return KindUnexpected
}
