// Package httpclient holds the GET-only HTTP surface used by the feed poller
// and the enrichment provider, with a resty transport and a rate-limited,
// circuit-breaking decorator.
package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP GETs so stages can share a transport or take a fake in tests.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

var (
	_ Client = (*RestyClient)(nil)
	_ Client = (*GuardedClient)(nil)
)
