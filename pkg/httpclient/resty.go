package httpclient

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type RestyClient struct {
	client *resty.Client
}

func New(timeout time.Duration) HTTPClient {
	client := resty.New().
		SetTimeout(timeout)

	return &RestyClient{client: client}
}

// Do executes the request with connection tracing enabled. A non-2xx status
// is not an error here; classification is the caller's business rule.
func (rc *RestyClient) Do(ctx context.Context, req *Request) (*Response, error) {
	r := rc.client.R().
		SetContext(ctx).
		EnableTrace()

	if req.Headers != nil {
		r.SetHeaders(req.Headers)
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(strings.ToUpper(req.Method), req.URL)
	if resp == nil {
		return nil, err
	}

	out := &Response{
		Duration: resp.Time(),
		Trace:    mapTrace(resp.Request.TraceInfo()),
	}
	if err != nil {
		return out, err
	}

	out.StatusCode = resp.StatusCode()
	out.Body = resp.Body()
	out.Headers = resp.Header()
	return out, nil
}

func mapTrace(ti resty.TraceInfo) Trace {
	return Trace{
		DNS:       ti.DNSLookup,
		TCP:       ti.TCPConnTime,
		TLS:       ti.TLSHandshake,
		Wait:      clampDuration(ti.ConnTime - ti.DNSLookup - ti.TCPConnTime - ti.TLSHandshake),
		Request:   clampDuration(ti.TotalTime - ti.ConnTime - ti.ServerTime - ti.ResponseTime),
		FirstByte: ti.ServerTime,
		Download:  ti.ResponseTime,
		Total:     ti.TotalTime,
	}
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
