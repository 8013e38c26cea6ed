package client

import (
	"context"
	"net/http"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/port"
)

// HTTPProber reports the outside internet as reachable when a HEAD request
// to a well known URL gets any answer at all.
type HTTPProber struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

var _ port.Prober = (*HTTPProber)(nil)

func NewHTTPProber(httpClient *http.Client, url string) *HTTPProber {
	return &HTTPProber{httpClient: httpClient, url: url, timeout: 3 * time.Second}
}

func (p *HTTPProber) Reachable(ctx context.Context) bool {
	if p.url == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
