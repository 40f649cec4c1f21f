// Package resilience wraps calls that cross a process boundary with
// per-attempt timeouts, bounded retries and failure classification.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Reason is the classified cause of a failed external call.
type Reason string

const (
	ReasonTimeout   Reason = "timeout"
	ReasonNetwork   Reason = "network"
	ReasonAuth      Reason = "auth"
	ReasonRateLimit Reason = "rate_limit"
	ReasonCritical  Reason = "critical"
	ReasonUnknown   Reason = "unknown"
)

// Retryable reports whether another attempt could succeed.
func (r Reason) Retryable() bool {
	return r != ReasonAuth && r != ReasonCritical
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Classify maps a raw failure to a Reason. It inspects error types first
// and falls back to the error text.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}

	var callErr *ExternalCallError
	if errors.As(err, &callErr) {
		return callErr.Reason
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if r, ok := classifyStatus(sc.StatusCode()); ok {
			return r
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return ReasonNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonNetwork
	}

	return classifyMessage(err.Error())
}

func classifyStatus(code int) (Reason, bool) {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ReasonAuth, true
	case http.StatusTooManyRequests:
		return ReasonRateLimit, true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ReasonTimeout, true
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ReasonNetwork, true
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return ReasonCritical, true
	case http.StatusInternalServerError:
		return ReasonUnknown, true
	}
	return "", false
}

var messageRules = []struct {
	reason   Reason
	patterns []string
}{
	{ReasonRateLimit, []string{"rate limit", "too many requests", "429"}},
	{ReasonAuth, []string{"unauthorized", "unauthorised", "forbidden", "invalid api key", "authentication", "401", "403"}},
	{ReasonTimeout, []string{"timeout", "timed out", "deadline exceeded", "etimedout"}},
	{ReasonNetwork, []string{"econnrefused", "connection refused", "connection reset", "econnreset", "no such host", "enotfound", "broken pipe", "network", "eof"}},
	{ReasonCritical, []string{"validation", "invalid", "not found", "bad request", "unprocessable", "conflict", "already exists", "400", "404", "422"}},
}

func classifyMessage(msg string) Reason {
	msg = strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.reason
			}
		}
	}
	return ReasonUnknown
}
