package httpclient

import "context"

// Response is the slice of an HTTP response the archive pipeline consumes.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client fetches documents. Implementations wrap a real transport; tests
// substitute canned responses.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Resolver follows redirects to the final URL without downloading the body.
// Shortened share links collapse onto the canonical article URL this way.
type Resolver interface {
	ResolveURL(ctx context.Context, url string) (string, error)
}
