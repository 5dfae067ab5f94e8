package usecase

import (
	"strings"

	"bank-assistant/internal/domain"
)

// IntentExtractor classifies a model reply into the banking action it
// implies. Implementations must be pure.
type IntentExtractor interface {
	Extract(reply string) domain.ActionKind
}

// KeywordExtractor matches fixed keywords in the model's reply, case
// insensitively. Rules are checked in order and the first match wins, so a
// reply mentioning both a balance and transactions is a balance request.
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(reply string) domain.ActionKind {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "balance"):
		return domain.ActionBalance
	case strings.Contains(lower, "transaction"):
		return domain.ActionTransactions
	case strings.Contains(lower, "update") && strings.Contains(lower, "contact"):
		return domain.ActionUpdateContact
	default:
		return domain.ActionNone
	}
}
