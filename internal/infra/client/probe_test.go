package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/fibernet/central-cliente-bfa-go/internal/infra/client"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestHTTPProber_AnyAnswerIsReachable(t *testing.T) {
	var seen *http.Request
	httpClient := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			seen = req
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader("")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	p := client.NewHTTPProber(httpClient, "https://probe.example/favicon.ico")
	if !p.Reachable(context.Background()) {
		t.Fatal("a 404 still proves connectivity")
	}
	if seen == nil || seen.Method != http.MethodHead {
		t.Errorf("expected a HEAD request, got %+v", seen)
	}
}

func TestHTTPProber_TransportError(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: no route to host")
		}),
	}

	p := client.NewHTTPProber(httpClient, "https://probe.example/favicon.ico")
	if p.Reachable(context.Background()) {
		t.Error("expected unreachable on transport error")
	}
}

func TestHTTPProber_NoURL(t *testing.T) {
	p := client.NewHTTPProber(http.DefaultClient, "")
	if !p.Reachable(context.Background()) {
		t.Error("probe without URL must report reachable")
	}
}
