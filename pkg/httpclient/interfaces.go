package httpclient

import (
	"context"
	"net/http"
	"net/url"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// BasicAuth carries HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one outbound call. Form and Body are mutually exclusive;
// Form wins when both are set.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Query     url.Values
	Form      url.Values
	Body      any
	BasicAuth *BasicAuth
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Do(ctx context.Context, req Request) (Response, error)
}
