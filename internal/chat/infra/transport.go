// Package infra contém o transporte websocket do chat em tempo real.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/chat/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/chat/port"
	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/infra")

const writeTimeout = 5 * time.Second

// Handlers receive the inbound frames by type. Nil handlers are skipped.
// They run on the read goroutine and must not block.
type Handlers struct {
	OnMessage        func(domain.Message)
	OnProactiveAlert func(domain.ProactiveAlert)
	OnTyping         func(isTyping bool)
	OnState          func(domain.StateChange)
}

// ============================================================
// Transport: conexão websocket com reconexão
// ============================================================
//
// connecting -> open -> closed -> reconnecting(attempt, delay) -> connecting ...
//
// O atraso cresce exponencialmente a partir de backoff.Initial até
// backoff.Max e volta ao início depois de uma conexão bem sucedida.
// Frames enviados com o socket fechado são descartados (sem fila).

// Transport keeps one upstream websocket alive until Run's context ends.
type Transport struct {
	wsURL    string
	tokens   port.TokenSource
	dialer   *websocket.Dialer
	backoff  resilience.Backoff
	handlers Handlers
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu    sync.Mutex // guards conn, state and writes
	conn  *websocket.Conn
	state domain.ConnState
}

// NewTransport creates a transport. tokens may be nil for anonymous sockets.
func NewTransport(
	wsURL string,
	tokens port.TokenSource,
	backoff resilience.Backoff,
	handlers Handlers,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Transport {
	return &Transport{
		wsURL:    wsURL,
		tokens:   tokens,
		dialer:   websocket.DefaultDialer,
		backoff:  backoff,
		handlers: handlers,
		metrics:  metrics,
		logger:   logger,
		state:    domain.StateClosed,
	}
}

// State returns the current connection state.
func (t *Transport) State() domain.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run connects and reconnects until ctx is cancelled, then closes the socket
// and returns ctx.Err().
func (t *Transport) Run(ctx context.Context) error {
	attempt := 0
	for {
		t.setState(domain.StateChange{State: domain.StateConnecting})

		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.Warn("chat websocket dial failed", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			attempt = 0
			t.attach(conn)
			t.logger.Info("chat websocket connected")
			t.readLoop(ctx, conn)
			t.detach(conn)
			t.logger.Info("chat websocket disconnected")
		}

		t.setState(domain.StateChange{State: domain.StateClosed})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		delay := t.backoff.Delay(attempt)
		t.metrics.IncrWSReconnect()
		t.setState(domain.StateChange{
			State:   domain.StateReconnecting,
			Attempt: attempt,
			Delay:   delay,
			DelayMs: delay.Milliseconds(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.setState(domain.StateChange{State: domain.StateClosed})
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Send writes frame when the socket is open. Otherwise the frame is dropped
// and ErrNotConnected is returned.
func (t *Transport) Send(frame domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.state != domain.StateOpen {
		t.logger.Warn("websocket não está conectado, frame descartado", zap.String("type", frame.Type))
		return maindomain.ErrNotConnected
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// dial embeds the current token as the "token" query parameter.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, span := tracer.Start(ctx, "Transport.dial")
	defer span.End()

	u, err := url.Parse(t.wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	if t.tokens != nil {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return conn, nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			t.mu.Unlock()
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("chat websocket read failed", zap.Error(err))
			}
			return
		}
		t.dispatch(data)
	}
}

func (t *Transport) dispatch(data []byte) {
	var f domain.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.logger.Warn("ignoring malformed chat frame", zap.Error(err))
		return
	}

	switch f.Type {
	case domain.FrameMessage:
		if f.Message != nil && t.handlers.OnMessage != nil {
			t.handlers.OnMessage(*f.Message)
		}
	case domain.FrameProactiveAlert:
		if f.Alert != nil && t.handlers.OnProactiveAlert != nil {
			t.handlers.OnProactiveAlert(*f.Alert)
		}
	case domain.FrameTyping:
		if t.handlers.OnTyping != nil {
			t.handlers.OnTyping(f.IsTyping != nil && *f.IsTyping)
		}
	default:
		t.logger.Debug("ignoring unknown chat frame", zap.String("type", f.Type))
	}
}

func (t *Transport) attach(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.state = domain.StateOpen
	t.mu.Unlock()
	t.notify(domain.StateChange{State: domain.StateOpen})
}

func (t *Transport) detach(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()
}

func (t *Transport) setState(sc domain.StateChange) {
	t.mu.Lock()
	t.state = sc.State
	t.mu.Unlock()
	t.notify(sc)
}

func (t *Transport) notify(sc domain.StateChange) {
	if t.handlers.OnState != nil {
		t.handlers.OnState(sc)
	}
}
