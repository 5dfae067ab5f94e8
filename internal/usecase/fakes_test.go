package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bank-assistant/internal/domain"
)

// memTurns is an in-memory TurnStore.
type memTurns struct {
	mu         sync.Mutex
	turns      []domain.Turn
	appendErrs []error // consumed one per AppendTurn call
	recentErr  error
	seq        int
}

func (m *memTurns) AppendTurn(_ context.Context, t domain.Turn) (domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.appendErrs) > 0 {
		err := m.appendErrs[0]
		m.appendErrs = m.appendErrs[1:]
		if err != nil {
			return domain.Turn{}, err
		}
	}
	m.seq++
	t.ID = fmt.Sprintf("t%d", m.seq)
	m.turns = append(m.turns, t)
	return t, nil
}

func (m *memTurns) RecentTurns(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	var out []domain.Turn
	for i := len(m.turns) - 1; i >= 0 && len(out) < limit; i-- {
		if m.turns[i].SessionID == sessionID {
			out = append(out, m.turns[i])
		}
	}
	return out, nil
}

func (m *memTurns) seed(sessionID, customerID string, texts ...string) {
	for i, text := range texts {
		_, _ = m.AppendTurn(context.Background(), domain.Turn{
			SessionID:  sessionID,
			CustomerID: customerID,
			Text:       text,
			IsBot:      i%2 == 1,
		})
	}
}

// ctxTurns rejects writes once the caller's context is done, like a real
// store client would.
type ctxTurns struct {
	*memTurns
}

func (c ctxTurns) AppendTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	if err := ctx.Err(); err != nil {
		return domain.Turn{}, err
	}
	return c.memTurns.AppendTurn(ctx, t)
}

type fakeBanking struct {
	mu          sync.Mutex
	accounts    []domain.Account
	txs         map[string][]domain.Transaction
	accountsErr error
	txErr       error
	txCalls     []string
	txLimit     int
}

func (f *fakeBanking) GetAccounts(_ context.Context, _ string) ([]domain.Account, error) {
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts, nil
}

func (f *fakeBanking) GetTransactions(_ context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	f.txCalls = append(f.txCalls, accountID)
	f.txLimit = limit
	f.mu.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.txs[accountID], nil
}

type stubLLM struct {
	completion domain.Completion
	err        error
	delay      time.Duration
	model      string
	captured   []domain.ChatMessage
	calls      int
	afterReply func() // runs once the completion is ready
}

func (s *stubLLM) Chat(ctx context.Context, model string, msgs []domain.ChatMessage) (domain.Completion, error) {
	s.calls++
	s.model = model
	s.captured = msgs
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Completion{}, ctx.Err()
		}
	}
	if s.afterReply != nil {
		s.afterReply()
	}
	return s.completion, s.err
}

type fakeMetrics struct {
	written []domain.Metrics
	err     error
}

func (f *fakeMetrics) WriteMetrics(_ context.Context, m domain.Metrics) error {
	f.written = append(f.written, m)
	return f.err
}

type countingConfig struct {
	cfg   RuntimeConfig
	err   error
	calls int
}

func (c *countingConfig) Load(context.Context) (RuntimeConfig, error) {
	c.calls++
	return c.cfg, c.err
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }

var errBoom = errors.New("boom")

func twoAccounts() []domain.Account {
	return []domain.Account{
		{ID: "acc-1", CustomerID: "1234567890", Type: "CHECKING", Currency: "USD", Balance: 1500, Active: true},
		{ID: "acc-2", CustomerID: "1234567890", Type: "SAVINGS", Currency: "USD", Balance: 5000, Active: true},
	}
}
