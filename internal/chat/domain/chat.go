// Package domain define os tipos do chat da Central do Cliente.
//
// Há dois canais:
//  1. O widget em tempo real, que troca frames JSON com o push server via
//     websocket (o BFA faz o relay).
//  2. O chat com IA (POST /v1/chat), que monta o contexto a partir do
//     dashboard do perfil e chama o backend de IA generativa.
package domain

import (
	"encoding/json"
	"time"

	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
)

// ============================================================
// Frames do websocket
// ============================================================

// Frame types exchanged with the push server.
const (
	FrameMessage        = "message"
	FrameProactiveAlert = "proactive_alert"
	FrameTyping         = "typing"
	FrameChat           = "chat"

	// enviados só pelo relay ao navegador
	FrameConnection = "connection"
	FrameError      = "error"
)

// Action is a shortcut button attached to a message or alert.
type Action struct {
	Type  string          `json:"type"` // open_ticket | view_bill | schedule_tech | ...
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageMetadata is optional model information sent with a message.
type MessageMetadata struct {
	Model      string   `json:"model,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Actions    []Action `json:"actions,omitempty"`
}

// Message is one chat bubble.
type Message struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"` // user | assistant | system
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// Alert types and priorities.
const (
	AlertNetworkIssue = "network_issue"
	AlertBillReminder = "bill_reminder"
	AlertMaintenance  = "maintenance"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ProactiveAlert is pushed without the customer asking. High priority
// alerts open the widget.
type ProactiveAlert struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Priority string   `json:"priority"`
	Actions  []Action `json:"actions,omitempty"`
}

// FrameContext identifies the sender of an outbound chat frame.
type FrameContext struct {
	CustomerID string `json:"customerId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// Frame is the envelope of every websocket message. Only the fields of
// its Type are set.
type Frame struct {
	Type     string          `json:"type"`
	Message  *Message        `json:"message,omitempty"`
	Alert    *ProactiveAlert `json:"alert,omitempty"`
	IsTyping *bool           `json:"isTyping,omitempty"`
	Content  string          `json:"content,omitempty"`
	Context  *FrameContext   `json:"context,omitempty"`
	State    *StateChange    `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ============================================================
// Estado da conexão
// ============================================================

// ConnState is the lifecycle state of the upstream socket.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateOpen         ConnState = "open"
	StateClosed       ConnState = "closed"
	StateReconnecting ConnState = "reconnecting"
)

// StateChange is reported on every transition. Attempt and Delay are set
// only while reconnecting.
type StateChange struct {
	State   ConnState     `json:"state"`
	Attempt int           `json:"attempt,omitempty"`
	Delay   time.Duration `json:"-"`
	DelayMs int64         `json:"delayMs,omitempty"`
}

// ============================================================
// Chat com IA
// ============================================================

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the assistant answer. Fallback marks a canned reply sent
// because the AI backend failed.
type ChatResponse struct {
	Message  Message `json:"message"`
	Fallback bool    `json:"fallback,omitempty"`
}

// ChatContext is everything a strategy sees when building the prompt.
type ChatContext struct {
	ProfileID      string
	Query          string
	DetectedIntent string
	Dashboard      *maindomain.Dashboard // nil when the profile is logged out
	Status         *maindomain.StatusReport
	Now            time.Time
}

// ChatWelcome opens the widget: a greeting plus the alerts computed from
// the profile's dashboard.
type ChatWelcome struct {
	Greeting Message          `json:"greeting"`
	Alerts   []ProactiveAlert `json:"alerts"`
}
