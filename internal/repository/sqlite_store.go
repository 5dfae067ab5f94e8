package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bank-assistant/internal/domain"
)

// SQLiteStore is the single-file backend used by the bankctl CLI. It serves
// the same store contracts as the DynamoDB Client.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and creates tables if
// they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		account_number TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(account_number)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		is_valid INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		is_bot INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		token_usage INTEGER NOT NULL,
		response_time_ms INTEGER NOT NULL,
		completion_quality REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_customer_id ON accounts(customer_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_chat_history_session_id ON chat_history(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return sortKeyTime(t)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(sortableTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FindCustomerByCredentials returns the account number for a matching
// credential pair, or domain.ErrNotFound.
func (s *SQLiteStore) FindCustomerByCredentials(ctx context.Context, accountNumber, code string) (string, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT code_hash FROM customers WHERE account_number = ?`,
		accountNumber,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query customer: %w", err)
	}
	if !codeMatches(stored, code) {
		return "", domain.ErrNotFound
	}
	return accountNumber, nil
}

// CreateSession inserts a session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, customer_id, is_valid, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.Token, sess.CustomerID, boolInt(sess.Valid), formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (domain.Session, error) {
	var (
		sess               domain.Session
		valid              int
		created, expiresAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, customer_id, is_valid, created_at, expires_at
		 FROM sessions WHERE token = ?`,
		token,
	).Scan(&sess.Token, &sess.CustomerID, &valid, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Valid = valid == 1
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return domain.Session{}, err
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// RevokeSession marks a session invalid. Unknown tokens yield
// domain.ErrNotFound.
func (s *SQLiteStore) RevokeSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_valid = 0 WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetAccounts returns the customer's active accounts in insertion order.
func (s *SQLiteStore) GetAccounts(ctx context.Context, customerID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, account_type, currency, balance
		 FROM accounts
		 WHERE customer_id = ? AND is_active = 1
		 ORDER BY rowid`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	accounts := []domain.Account{}
	for rows.Next() {
		a := domain.Account{Active: true}
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Type, &a.Currency, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetTransactions returns up to limit transactions of an account, newest first.
func (s *SQLiteStore) GetTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, transaction_type, description, amount, created_at
		 FROM transactions
		 WHERE account_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx      domain.Transaction
			created string
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Description, &tx.Amount, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// AppendTurn inserts a chat_history row; the turn ID is its row id.
func (s *SQLiteStore) AppendTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, customer_id, message, is_bot, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.SessionID, t.CustomerID, t.Text, boolInt(t.IsBot), formatTime(t.CreatedAt),
	)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Turn{}, fmt.Errorf("insert turn: %w", err)
	}
	t.ID = strconv.FormatInt(id, 10)
	return t, nil
}

// RecentTurns returns up to limit turns of a session, newest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, customer_id, message, is_bot, created_at
		 FROM chat_history
		 WHERE session_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t       domain.Turn
			id      int64
			isBot   int
			created string
		)
		if err := rows.Scan(&id, &t.SessionID, &t.CustomerID, &t.Text, &isBot, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		t.IsBot = isBot == 1
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// WriteMetrics inserts a chat_metrics row.
func (s *SQLiteStore) WriteMetrics(ctx context.Context, m domain.Metrics) error {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_metrics (session_id, token_usage, response_time_ms, completion_quality, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.SessionID, m.TokenUsage, m.ResponseTimeMs, m.CompletionQuality, formatTime(m.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert metrics: %w", err)
	}
	return nil
}

// SessionIDs lists the chat sessions a customer has turns in, most recent
// first.
func (s *SQLiteStore) SessionIDs(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM chat_history
		 WHERE customer_id = ?
		 GROUP BY session_id
		 ORDER BY MAX(id) DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
