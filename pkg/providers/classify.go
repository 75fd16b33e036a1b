package providers

import (
	"errors"
	"net/http"
	"regexp"
)

// Kind classifies a failed attempt for the dispatcher's retry decisions.
type Kind int

const (
	// KindNone means the attempt did not fail.
	KindNone Kind = iota
	// KindInvalidKey is a rejected credential (401/403 or an auth message).
	KindInvalidKey
	// KindInsufficientCredits is an account out of credit, billing or quota.
	KindInsufficientCredits
	// KindRateLimited is a 429 or a rate limit message.
	KindRateLimited
	// KindTransient is a timeout or network failure.
	KindTransient
	// KindMalformedResponse is a 2xx response without extractable content.
	KindMalformedResponse
	// KindGenericHTTP is any other non-2xx status.
	KindGenericHTTP
	// KindFatal is a request that can never succeed (unsupported content).
	KindFatal
)

// String returns a label suitable for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidKey:
		return "invalid_key"
	case KindInsufficientCredits:
		return "insufficient_credits"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindMalformedResponse:
		return "malformed_response"
	case KindGenericHTTP:
		return "http_error"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RotatesKey reports whether the kind moves the key pool to the next key.
func (k Kind) RotatesKey() bool {
	return k == KindInvalidKey || k == KindInsufficientCredits || k == KindRateLimited
}

var (
	invalidKeyPattern = regexp.MustCompile(`(?i)(invalid[ _-]?api[ _-]?key|incorrect api key|api key not valid|api_key_invalid|invalid x-api-key|invalid authentication|no auth credentials|unauthori[sz]ed|unauthenticated)`)

	insufficientCreditsPattern = regexp.MustCompile(`(?i)(insufficient[ _-]?(credits?|funds|balance|quota)|requires more credits|credit balance|out of credits|payment required|billing|exceeded your current quota)`)

	rateLimitPattern = regexp.MustCompile(`(?i)(rate[ _-]?limit|too many requests|resource[ _]?exhausted|quota exceeded|throttl)`)
)

// ClassifyResponse classifies a response that did not yield content.
//
// Checks run in a fixed priority: invalid key, insufficient credits, rate limit.
// Auth and billing win over rate limiting because providers sometimes send a
// 429 status with a credit exhaustion body, and a permanently bad key must not
// wait out a rate limit cooldown.
func ClassifyResponse(statusCode int, body []byte) Kind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindInvalidKey
	case invalidKeyPattern.Match(body):
		return KindInvalidKey
	case statusCode == http.StatusPaymentRequired || insufficientCreditsPattern.Match(body):
		return KindInsufficientCredits
	case statusCode == http.StatusTooManyRequests || rateLimitPattern.Match(body):
		return KindRateLimited
	case statusCode >= 200 && statusCode < 300:
		return KindMalformedResponse
	default:
		return KindGenericHTTP
	}
}

// ClassifyError classifies an error returned by an adapter.
func ClassifyError(err error) Kind {
	if err == nil {
		return KindNone
	}

	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return KindFatal
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ClassifyResponse(httpErr.StatusCode, httpErr.Body)
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) && len(streamErr.Body) > 0 {
		// In-band error payloads arrive with a 200 stream status.
		kind := ClassifyResponse(http.StatusOK, streamErr.Body)
		if kind == KindMalformedResponse {
			return KindGenericHTTP
		}
		return kind
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindMalformedResponse
	}

	return KindTransient
}
