package usecase

import (
	"fmt"
	"strings"
	"text/template"

	"bank-assistant/internal/domain"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// DefaultSystemPrompt is used when no template is configured. Templates are
// rendered with a single field, .Accounts, whose items expose .Type and
// .Currency only; balances are never placed in the prompt.
const DefaultSystemPrompt = `You are a banking assistant. Help users with their banking needs while following these rules:
1. Only provide information about accounts and transactions the user has access to
2. Never share sensitive information like full account numbers or personal details
3. If you need to perform a banking action, clearly indicate what action is needed
4. Format currency values with 2 decimal places
5. Keep responses clear and concise

Available banking actions:
- Check account balance
- View recent transactions
- Update contact information
{{- if .Accounts}}

Available accounts:
{{- range .Accounts}}
- {{.Type}} ({{.Currency}})
{{- end}}
{{- end}}`

// PromptTemplate renders the system turn.
type PromptTemplate struct {
	tmpl *template.Template
}

type promptAccount struct {
	Type     string
	Currency string
}

type promptData struct {
	Accounts []promptAccount
}

// ParsePromptTemplate compiles text as a text/template. Blank text selects
// DefaultSystemPrompt.
func ParsePromptTemplate(text string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultSystemPrompt
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("usecase: parse system prompt template: %w", err)
	}
	return &PromptTemplate{tmpl: tmpl}, nil
}

// Render produces the system turn for the given accounts.
func (p *PromptTemplate) Render(accounts []domain.Account) (string, error) {
	data := promptData{Accounts: make([]promptAccount, 0, len(accounts))}
	for _, a := range accounts {
		data.Accounts = append(data.Accounts, promptAccount{Type: a.Type, Currency: a.Currency})
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("usecase: render system prompt: %w", err)
	}
	return b.String(), nil
}

func buildPromptMessages(system string, history []domain.Turn, message string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: roleSystem, Content: system})

	for _, t := range history {
		role := roleUser
		if t.IsBot {
			role = roleAssistant
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: t.Text})
	}

	messages = append(messages, domain.ChatMessage{
		Role:    roleUser,
		Content: message,
	})
	return messages
}
