package ingest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// TransportError is a failed fetch. StatusCode is 0 when no response arrived.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed: timeouts,
// dropped or refused connections and 429/500/502/503/504 responses.
// Certificate failures and blocked destinations are permanent.
func (e *TransportError) Retryable() bool {
	if e.StatusCode != 0 {
		return retryableStatus(e.StatusCode)
	}
	if e.Err == nil || errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, ErrBlockedAddress) || isCertificateError(e.Err) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(e.Err, syscall.ECONNREFUSED) ||
		errors.Is(e.Err, syscall.ECONNRESET) ||
		errors.Is(e.Err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(e.Err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read"
	}
	return false
}

func isCertificateError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		authErr     x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		sysRootsErr x509.SystemRootsError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &sysRootsErr)
}

func (e *TransportError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// CircuitOpenError is returned without touching the network while a
// source's breaker is open.
type CircuitOpenError struct {
	Source string
	Until  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s until %s", e.Source, e.Until.UTC().Format(time.RFC3339))
}

// ExtractionError wraps a failure to parse a single listing.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "extract listing: " + e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// FatalRunError is an unexpected failure that aborted a whole run.
type FatalRunError struct {
	RunID string
	Err   error
}

func (e *FatalRunError) Error() string {
	return fmt.Sprintf("run %s failed: %v", e.RunID, e.Err)
}

func (e *FatalRunError) Unwrap() error { return e.Err }

// IsRetryable is the default retry predicate for fetches.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}
