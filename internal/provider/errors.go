package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies provider failures for retry and reporting decisions.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindTransientQuota ErrorKind = "transient_quota"
	KindUnknown        ErrorKind = "unknown"
)

// Error wraps a provider failure with its classification.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s error %d: %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch status {
	case 401, 403:
		return KindAuth
	case 400, 404, 422:
		return KindInvalidRequest
	case 429:
		return KindTransientQuota
	default:
		return KindUnknown
	}
}

// apiError builds a classified error from a non-2xx response body.
// Quota phrasing in the body upgrades the kind even when the status
// code alone would not.
func apiError(provider string, status int, body []byte) *Error {
	kind := classifyStatus(status)
	msg := string(body)
	if kind == KindUnknown && IsQuotaError(fmt.Errorf("%s", msg)) {
		kind = KindTransientQuota
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Message: msg}
}

// quotaMarkers are the substrings that identify rate limiting and quota
// exhaustion across vendors. Matching is case-insensitive.
var quotaMarkers = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"429",
	"resource exhausted",
	"too many requests",
}

// IsQuotaError reports whether err looks like transient quota exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindTransientQuota {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
