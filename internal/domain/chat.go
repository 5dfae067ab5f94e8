package domain

// ChatMessage is the provider-agnostic chat message shape used by prompt
// assembly and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is one model reply plus its token accounting.
type Completion struct {
	Text       string
	TokenUsage int
}
