// Package xhttp provides http helper types and functions.
package xhttp

import "net/http"

// Client is the minimal http client surface the updater depends on.
// *http.Client satisfies it; tests may substitute anything with a Do method.
type Client interface {
	Do(*http.Request) (*http.Response, error)
}
