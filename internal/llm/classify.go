package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// Failure is the closed set of backend failure classes the
// degradation chain acts on.
type Failure int

const (
	FailureUnknown Failure = iota
	FailureQuotaExceeded
	FailureModelUnavailable
	FailureTransient
)

func (f Failure) String() string {
	switch f {
	case FailureQuotaExceeded:
		return "QuotaExceeded"
	case FailureModelUnavailable:
		return "ModelUnavailable"
	case FailureTransient:
		return "Transient"
	default:
		return "Unknown"
	}
}

// Classify maps any error to a Failure. It is total and pure; the
// first matching rule wins:
//
//  1. HTTP 429, or a message mentioning quota or RESOURCE_EXHAUSTED
//  2. HTTP 404
//  3. timeouts, connection resets and other network-level errors
//  4. everything else
func Classify(err error) Failure {
	if err == nil {
		return FailureUnknown
	}

	status := 0
	var le *Error
	if errors.As(err, &le) {
		status = le.Status
	}

	msg := strings.ToLower(err.Error())
	if status == http.StatusTooManyRequests ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") {
		return FailureQuotaExceeded
	}

	if status == http.StatusNotFound {
		return FailureModelUnavailable
	}

	if status == 0 && isNetworkError(err) {
		return FailureTransient
	}

	return FailureUnknown
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
			syscall.EPIPE, syscall.EHOSTUNREACH, syscall.ENETUNREACH, syscall.ETIMEDOUT:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
