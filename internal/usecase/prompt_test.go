package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bank-assistant/internal/domain"
)

func TestDefaultPrompt_ListsAccountTypesWithoutBalances(t *testing.T) {
	p, err := ParsePromptTemplate("")
	require.NoError(t, err)

	out, err := p.Render(twoAccounts())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "You are a banking assistant."))
	require.Contains(t, out, "Never share sensitive information like full account numbers")
	require.Contains(t, out, "Format currency values with 2 decimal places")
	require.True(t, strings.HasSuffix(out, "Available accounts:\n- CHECKING (USD)\n- SAVINGS (USD)"), out)
	require.NotContains(t, out, "1500")
	require.NotContains(t, out, "5000")
}

func TestDefaultPrompt_NoAccountsOmitsSection(t *testing.T) {
	p, err := ParsePromptTemplate("   ")
	require.NoError(t, err)

	out, err := p.Render(nil)
	require.NoError(t, err)
	require.NotContains(t, out, "Available accounts")
	require.True(t, strings.HasSuffix(out, "- Update contact information"), out)
}

func TestCustomPrompt(t *testing.T) {
	p, err := ParsePromptTemplate("Rules.{{range .Accounts}} [{{.Type}}/{{.Currency}}]{{end}}")
	require.NoError(t, err)
	out, err := p.Render(twoAccounts())
	require.NoError(t, err)
	require.Equal(t, "Rules. [CHECKING/USD] [SAVINGS/USD]", out)
}

func TestCustomPrompt_Errors(t *testing.T) {
	_, err := ParsePromptTemplate("{{range}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse system prompt template")

	p, err := ParsePromptTemplate("{{range .Accounts}}{{.Balance}}{{end}}")
	require.NoError(t, err)
	_, err = p.Render(twoAccounts())
	require.Error(t, err)
}

func TestBuildPromptMessages(t *testing.T) {
	history := []domain.Turn{
		{Text: "What's my balance?"},
		{Text: "Your balance is below.", IsBot: true},
	}
	msgs := buildPromptMessages("SYSTEM", history, "And transactions?")
	require.Equal(t, []domain.ChatMessage{
		{Role: "system", Content: "SYSTEM"},
		{Role: "user", Content: "What's my balance?"},
		{Role: "assistant", Content: "Your balance is below."},
		{Role: "user", Content: "And transactions?"},
	}, msgs)
}
