package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockPixFetcher struct {
	payload *domain.PixPayload
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (m *mockPixFetcher) GetPixCode(_ context.Context, _ port.Session, _ string) (*domain.PixPayload, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	return m.payload, m.err
}

// --- Tests ---

func newPixService(fetcher port.PixFetcher) *service.PixService {
	return service.NewPixService(fetcher, observability.NewMetrics(), zap.NewNop())
}

func TestPayWithPix_CachedCodeSkipsNetwork(t *testing.T) {
	fetcher := &mockPixFetcher{}
	svc := newPixService(fetcher)
	fatura := &domain.Fatura{ID: "1", PixCode: "000201pix", PixQRCode: "img"}

	res := svc.PayWithPix(context.Background(), nil, fatura)
	if !res.Ready || !res.Cached {
		t.Errorf("expected cached ready result, got %+v", res)
	}
	if res.Pix.QRCode != "000201pix" || res.Pix.Imagem != "img" {
		t.Errorf("unexpected payload %+v", res.Pix)
	}
	if fetcher.calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", fetcher.calls.Load())
	}
}

func TestPayWithPix_FetchesAndAttaches(t *testing.T) {
	fetcher := &mockPixFetcher{payload: &domain.PixPayload{QRCode: "000201abc", Imagem: "base64img"}}
	svc := newPixService(fetcher)
	boleto := &domain.Boleto{ID: "7"}

	res := svc.PayWithPix(context.Background(), nil, boleto)
	if !res.Ready || res.Cached {
		t.Errorf("expected fresh ready result, got %+v", res)
	}
	if boleto.PixCopiaECola != "000201abc" || boleto.PixImagem != "base64img" {
		t.Errorf("code not attached to the record: %+v", boleto)
	}

	// a segunda abertura usa o código memorizado
	res = svc.PayWithPix(context.Background(), nil, boleto)
	if !res.Cached || fetcher.calls.Load() != 1 {
		t.Errorf("expected cached result after first fetch, calls=%d", fetcher.calls.Load())
	}
}

func TestPayWithPix_NotReadyAndError(t *testing.T) {
	empty := newPixService(&mockPixFetcher{payload: &domain.PixPayload{}})
	res := empty.PayWithPix(context.Background(), nil, &domain.Fatura{ID: "1"})
	if res.Ready || res.Message != service.MsgPixNotReady {
		t.Errorf("expected not ready message, got %+v", res)
	}

	failing := newPixService(&mockPixFetcher{err: errors.New("boom")})
	fatura := &domain.Fatura{ID: "1"}
	res = failing.PayWithPix(context.Background(), nil, fatura)
	if res.Ready || res.Message != service.MsgPixError {
		t.Errorf("expected error message, got %+v", res)
	}
	if fatura.PixCode != "" {
		t.Error("a failed fetch must not touch the record")
	}
}

func TestPayWithPix_ConcurrentRequestsShareOneFetch(t *testing.T) {
	fetcher := &mockPixFetcher{
		payload: &domain.PixPayload{QRCode: "000201shared"},
		release: make(chan struct{}),
	}
	svc := newPixService(fetcher)

	var wg sync.WaitGroup
	results := make([]domain.PixResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.PayWithPix(context.Background(), nil, &domain.Fatura{ID: "9"})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected a single backend call, got %d", got)
	}
	for i, r := range results {
		if !r.Ready || r.Pix.QRCode != "000201shared" {
			t.Errorf("result %d: unexpected %+v", i, r)
		}
	}
}
