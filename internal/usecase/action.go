package usecase

import (
	"context"
	"log/slog"

	"bank-assistant/internal/domain"
)

const recentTransactionLimit = 5

// ActionData is the structured result of a banking action.
type ActionData struct {
	Accounts     []domain.Account
	Transactions []domain.Transaction
}

type ActionExecutor struct {
	banking BankingProvider
}

func NewActionExecutor(b BankingProvider) *ActionExecutor {
	return &ActionExecutor{banking: b}
}

// Execute runs kind for customerID. It returns nil whenever there is nothing
// to add to the reply, including on lookup failures: enrichment is best
// effort and must never fail the conversation.
func (e *ActionExecutor) Execute(ctx context.Context, customerID string, kind domain.ActionKind) *ActionData {
	switch kind {
	case domain.ActionBalance:
		accounts, err := e.banking.GetAccounts(ctx, customerID)
		if err != nil {
			slog.Warn("balance lookup failed", "err", err)
			return nil
		}
		if len(accounts) == 0 {
			return nil
		}
		return &ActionData{Accounts: accounts}

	case domain.ActionTransactions:
		accounts, err := e.banking.GetAccounts(ctx, customerID)
		if err != nil {
			slog.Warn("account lookup for transactions failed", "err", err)
			return nil
		}
		if len(accounts) == 0 {
			return nil
		}
		// No account selection exists yet; the first active account is used.
		txs, err := e.banking.GetTransactions(ctx, accounts[0].ID, recentTransactionLimit)
		if err != nil {
			slog.Warn("transaction lookup failed", "err", err)
			return nil
		}
		if len(txs) == 0 {
			return nil
		}
		return &ActionData{Transactions: txs}

	case domain.ActionUpdateContact:
		slog.Info("contact update requested but no contact data source is configured")
		return nil

	default:
		return nil
	}
}
