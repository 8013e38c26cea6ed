package domain

// ============================================================
// Contratos de autenticação e conta
// ============================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginUser is the optional user block returned with the token.
type LoginUser struct {
	ID    FlexString `json:"id"`
	Nome  string     `json:"nome"`
	Email string     `json:"email"`
}

// LoginResponse is the answer of POST /auth/login.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *LoginUser `json:"user,omitempty"`
}

// MessageResponse is the generic {message} answer of account operations.
type MessageResponse struct {
	Message string `json:"message"`
}

// Connection actions accepted by POST /logins/:id/:action.
const (
	ActionLimparMAC   = "limpar-mac"
	ActionDesconectar = "desconectar"
	ActionDiagnostico = "diagnostico"
)

// LoginActionResult is the answer of a connection action.
type LoginActionResult struct {
	Message string   `json:"message"`
	Consumo *Consumo `json:"consumo,omitempty"`
}

// ClientAreaView is the state the portal renders for a profile.
type ClientAreaView struct {
	Authenticated bool       `json:"authenticated"`
	Loading       bool       `json:"loading"`
	Stale         bool       `json:"stale,omitempty"`
	Dashboard     *Dashboard `json:"dashboard,omitempty"`
	SavedEmail    string     `json:"savedEmail,omitempty"`
	RememberMe    bool       `json:"rememberMe"`
	Error         string     `json:"error,omitempty"`
}
