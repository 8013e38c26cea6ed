package domain

// ============================================================
// IA generativa: contratos internos
// ============================================================

// Roles of a conversation turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message of a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks the model for the next assistant turn.
type CompletionRequest struct {
	System      string
	Messages    []ChatTurn
	Temperature float32
}

// Completion is the model answer with its token accounting.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
