package httpclient

import (
	"context"
	"net/http"
	"time"
)

// Request is one outbound call as configured on a task: method, endpoint,
// already-merged headers, and raw body.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Trace is the per-phase timing breakdown of a single request.
type Trace struct {
	DNS       time.Duration
	TCP       time.Duration
	TLS       time.Duration
	Wait      time.Duration
	Request   time.Duration
	FirstByte time.Duration
	Download  time.Duration
	Total     time.Duration
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
	Trace      Trace
}

type HTTPClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
