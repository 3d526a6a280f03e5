package provider

import "net/http"

// HTTPClient is the slice of http.Client the providers depend on.
// Tests swap in a scripted implementation to exercise request
// handling without a live endpoint.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)
