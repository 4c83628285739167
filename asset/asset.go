// Package asset is the URL keyed request facade of the tile engine.
//
// A Fetcher never blocks: Fetch returns immediately with StatusPending while
// a request is in flight, and the caller polls again on the next frame.
// Status codes follow HTTP, plus StatusTransient for transport failures.
package asset

import "strings"

// Flags modify how a request is issued and retained.
type Flags uint8

const (
	// Delay postpones the request for a number of polls, so that requests
	// for visible content issued in the meantime go first.
	Delay Flags = 1 << iota

	// Accept404 marks a missing resource as an expected outcome. Only 5xx
	// codes are logged.
	Accept404

	// UsedOnce lets the fetcher drop its copy once the result has been
	// delivered.
	UsedOnce

	// Retry keeps retrying transient failures past the fetcher limit.
	Retry
)

// Status codes returned by Fetch in addition to the HTTP ones.
const (
	StatusPending   = 0
	StatusOK        = 200
	StatusNotFound  = 404
	StatusError     = 500
	StatusTransient = 598
)

// Fetcher is the request facade consumed by the engine.
type Fetcher interface {
	// Fetch returns the data of url and a status code. Data is only set
	// when the status is StatusOK and belongs to the fetcher.
	Fetch(url string, flags Flags) ([]byte, int)

	// Release drops the cached copy of url, if any.
	Release(url string)
}

// IsHTTP reports whether url uses the http or https scheme.
func IsHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// IsPermanentError reports whether code is a failure that will not change
// if the request is retried.
func IsPermanentError(code int) bool {
	return code >= 400 && code != StatusTransient
}
