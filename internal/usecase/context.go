package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"bank-assistant/internal/domain"
)

const defaultHistoryLimit = 5

// TurnStore is the append-only conversation log. RecentTurns returns the
// newest turns first.
type TurnStore interface {
	AppendTurn(ctx context.Context, t domain.Turn) (domain.Turn, error)
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
}

// BankingProvider exposes read-only banking data. GetAccounts returns only
// active accounts; GetTransactions returns the newest first.
type BankingProvider interface {
	GetAccounts(ctx context.Context, customerID string) ([]domain.Account, error)
	GetTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
}

// ConversationContext is rebuilt for every message and never persisted.
type ConversationContext struct {
	CustomerID string
	// Turns are in chronological order.
	Turns    []domain.Turn
	Accounts []domain.Account
}

type ContextBuilder struct {
	turns   TurnStore
	banking BankingProvider
	limit   int
}

func NewContextBuilder(t TurnStore, b BankingProvider, limit int) (*ContextBuilder, error) {
	if t == nil {
		return nil, errors.New("usecase: turn store must not be nil")
	}
	if b == nil {
		return nil, errors.New("usecase: banking provider must not be nil")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &ContextBuilder{turns: t, banking: b, limit: limit}, nil
}

// Build loads the trailing turns of sessionID and the customer's active
// accounts concurrently. excludeTurnID names the in-flight user turn, which
// is sent to the model separately and must not appear twice.
//
// An account lookup failure degrades to an empty account list; a history
// failure fails the build.
func (b *ContextBuilder) Build(ctx context.Context, customerID, sessionID, excludeTurnID string) (ConversationContext, error) {
	var (
		turns    []domain.Turn
		accounts []domain.Account
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recent, err := b.turns.RecentTurns(gctx, sessionID, b.limit+1)
		if err != nil {
			return fmt.Errorf("usecase: load recent turns: %w", err)
		}
		turns = trailingWindow(recent, customerID, excludeTurnID, b.limit)
		return nil
	})
	g.Go(func() error {
		accts, err := b.banking.GetAccounts(gctx, customerID)
		if err != nil {
			slog.Warn("account data unavailable, continuing without it", "session_id", sessionID, "err", err)
			return nil
		}
		accounts = accts
		return nil
	})
	if err := g.Wait(); err != nil {
		return ConversationContext{}, err
	}

	if accounts == nil {
		accounts = []domain.Account{}
	}
	return ConversationContext{
		CustomerID: customerID,
		Turns:      turns,
		Accounts:   accounts,
	}, nil
}

// trailingWindow keeps up to limit of the newest turns owned by customerID,
// skipping excludeID, and returns them oldest first.
func trailingWindow(newestFirst []domain.Turn, customerID, excludeID string, limit int) []domain.Turn {
	out := make([]domain.Turn, 0, limit)
	for _, t := range newestFirst {
		if len(out) == limit {
			break
		}
		if excludeID != "" && t.ID == excludeID {
			continue
		}
		if t.CustomerID != customerID {
			continue
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
