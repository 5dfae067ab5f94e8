package domain

import "time"

// Account is a read-only projection of a customer's bank account.
type Account struct {
	ID         string
	CustomerID string
	Type       string
	Currency   string
	Balance    float64
	Active     bool
}

// Transaction is a single posted movement on an account.
type Transaction struct {
	ID          string
	AccountID   string
	Type        string
	Description string
	Amount      float64
	CreatedAt   time.Time
}

// ActionKind classifies a model reply into a banking action.
type ActionKind string

const (
	ActionNone          ActionKind = "none"
	ActionBalance       ActionKind = "balance"
	ActionTransactions  ActionKind = "transactions"
	ActionUpdateContact ActionKind = "update_contact"
)
