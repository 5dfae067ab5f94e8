package repository

import (
	"context"
	"fmt"
	"time"
)

type seedCustomer struct {
	accountNumber string
	code          string
}

type seedAccount struct {
	id, customerID, accountType, currency string
	balance                               float64
}

type seedTransaction struct {
	id, accountID, txType, description string
	amount                             float64
	age                                time.Duration
}

var (
	seedCustomers = []seedCustomer{
		{accountNumber: "1234567890", code: "123456"},
		{accountNumber: "0987654321", code: "654321"},
	}
	seedAccounts = []seedAccount{
		{id: "11111111-1111-1111-1111-111111111111", customerID: "1234567890", accountType: "CHECKING", currency: "USD", balance: 1500},
		{id: "22222222-2222-2222-2222-222222222222", customerID: "1234567890", accountType: "SAVINGS", currency: "USD", balance: 5000},
	}
	seedTransactions = []seedTransaction{
		{id: "tx1", accountID: "11111111-1111-1111-1111-111111111111", txType: "DEPOSIT", description: "Payroll deposit", amount: 1000, age: 48 * time.Hour},
		{id: "tx2", accountID: "11111111-1111-1111-1111-111111111111", txType: "WITHDRAWAL", description: "ATM withdrawal", amount: -50, age: 24 * time.Hour},
	}
)

// Seed inserts the demo customers, accounts and transactions. Rows that
// already exist are left untouched, so Seed can be run repeatedly.
func (s *SQLiteStore) Seed(ctx context.Context, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := formatTime(now)
	for _, c := range seedCustomers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO customers (account_number, code_hash, created_at) VALUES (?, ?, ?)`,
			c.accountNumber, HashCode(c.code), created,
		); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.accountNumber, err)
		}
	}
	for _, a := range seedAccounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (id, customer_id, account_type, balance, currency, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			a.id, a.customerID, a.accountType, a.balance, a.currency, created,
		); err != nil {
			return fmt.Errorf("seed account %s: %w", a.id, err)
		}
	}
	for _, t := range seedTransactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transactions (id, account_id, transaction_type, amount, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.id, t.accountID, t.txType, t.amount, t.description, formatTime(now.Add(-t.age)),
		); err != nil {
			return fmt.Errorf("seed transaction %s: %w", t.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
