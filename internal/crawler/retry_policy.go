package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// FailureClass buckets fetch failures by how they must be handled.
type FailureClass int

// Failure classes, in the order the fetcher checks them.
const (
	FailureNone FailureClass = iota
	FailureTransient
	FailureRateLimited
	FailureTrust
	FailureTerminal
	FailureCanceled
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTrust:
		return "trust"
	case FailureTerminal:
		return "terminal"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ClassifyError maps a transport error to a FailureClass. Certificate trust
// failures are never transient.
func ClassifyError(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if IsCertificateError(err) {
		return FailureTrust
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	return FailureTransient
}

// ClassifyStatus maps an HTTP status code to a FailureClass.
func ClassifyStatus(code int) FailureClass {
	switch {
	case code >= 200 && code < 300:
		return FailureNone
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		return FailureRateLimited
	default:
		return FailureTerminal
	}
}

// IsCertificateError reports whether err stems from TLS certificate verification.
func IsCertificateError(err error) bool {
	if err == nil {
		return false
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate verify failed") ||
		strings.Contains(msg, "x509: certificate")
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FixedRetryPolicy retries transient and rate-limited failures with fixed
// delays, sharing one retry budget.
type FixedRetryPolicy struct {
	MaxRetry         int
	RetryDelay       time.Duration
	RateLimitedDelay time.Duration
}

// NewFixedRetryPolicy builds a policy with the crawler defaults.
func NewFixedRetryPolicy() FixedRetryPolicy {
	return FixedRetryPolicy{
		MaxRetry:         3,
		RetryDelay:       5 * time.Second,
		RateLimitedDelay: 10 * time.Second,
	}
}

// ShouldRetry decides whether the failure class may be retried after attempt
// retries have already been spent.
func (p FixedRetryPolicy) ShouldRetry(class FailureClass, retries, maxRetry int) bool {
	if retries >= maxRetry {
		return false
	}
	return class == FailureTransient || class == FailureRateLimited
}

// Backoff returns the wait before the next attempt for class.
func (p FixedRetryPolicy) Backoff(class FailureClass) time.Duration {
	if class == FailureRateLimited {
		return p.RateLimitedDelay
	}
	return p.RetryDelay
}
