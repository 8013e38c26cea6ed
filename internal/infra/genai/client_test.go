package genai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/genai"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
)

const completionBody = `{
	"id": "cmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Olá, Ana!  "}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
}`

func newClient(url string) *genai.Client {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return genai.NewClient(http.DefaultClient, "test-key", url, "gpt-4o-mini", resilience.NewCircuitBreaker("genai-test", nil), cfg)
}

func TestComplete_Success(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Complete(context.Background(), &domain.CompletionRequest{
		System: "Você é o assistente da FiberNet.",
		Messages: []domain.ChatTurn{
			{Role: domain.RoleUser, Content: "oi"},
			{Role: domain.RoleAssistant, Content: "Olá!"},
			{Role: domain.RoleUser, Content: "minha fatura"},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Text != "Olá, Ana!" || resp.PromptTokens != 12 || resp.CompletionTokens != 4 {
		t.Errorf("unexpected completion %+v", resp)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 4 || got.Messages[0].Role != "system" || got.Messages[2].Role != "assistant" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":{"message":"upstream","type":"server_error"}}`))
			return
		}
		w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL).Complete(context.Background(), &domain.CompletionRequest{}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestComplete_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Complete(context.Background(), &domain.CompletionRequest{})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestComplete_Disabled(t *testing.T) {
	c := genai.NewClient(nil, "", "", "gpt-4o-mini", resilience.NewCircuitBreaker("genai-off", nil), resilience.Config{})
	if c.Enabled() {
		t.Fatal("expected client without key to be disabled")
	}
	_, err := c.Complete(context.Background(), &domain.CompletionRequest{})
	if !errors.Is(err, genai.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}
