package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
	Message  string
}

func (e *ErrNotFound) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a network failure talking to an external service.
// The request never produced an HTTP response.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates user input rejected before any network call.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrUnauthorized indicates the backend answered 401/403.
// By the time it is returned the session token is already gone.
type ErrUnauthorized struct {
	Status  int
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrAPI is any other non-2xx answer from the portal backend.
// Message follows the backend precedence: error, message, "Erro N".
type ErrAPI struct {
	Status  int
	Message string
}

func (e *ErrAPI) Error() string {
	return e.Message
}

// ErrCommunication means the backend answered with a body that is not JSON.
type ErrCommunication struct {
	Status int
}

func (e *ErrCommunication) Error() string {
	return fmt.Sprintf("Erro de comunicação (Status %d).", e.Status)
}

// ErrNotConnected is returned when a chat frame is sent while the socket is down.
var ErrNotConnected = errors.New("websocket não está conectado")

// UserMessage turns any error into the text shown to the customer.
// Only errors that carry a portal or validation message are shown as they
// are; anything else (network, timeout, cancelled, unknown) gets the
// generic connection hint.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validation *ErrValidation
	var unauth *ErrUnauthorized
	var notFound *ErrNotFound
	var apiErr *ErrAPI
	var comm *ErrCommunication
	var open *ErrCircuitOpen
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &unauth):
		return unauth.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &comm):
		return comm.Error()
	case errors.As(err, &open):
		return "Serviço temporariamente indisponível. Tente novamente em instantes."
	}
	return connectionMessage
}

const connectionMessage = "Não foi possível conectar ao servidor. Verifique sua conexão e tente novamente."
