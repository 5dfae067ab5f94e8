package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"bank-assistant/internal/domain"
)

const defaultSessionTTL = 24 * time.Hour

// CredentialStore checks an account number / banking code pair. It returns
// domain.ErrNotFound when the pair does not match a customer.
type CredentialStore interface {
	FindCustomerByCredentials(ctx context.Context, accountNumber, code string) (string, error)
}

// SessionStore persists session tokens. GetSession returns domain.ErrNotFound
// for unknown tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, token string) (domain.Session, error)
	RevokeSession(ctx context.Context, token string) error
}

type AuthService struct {
	creds    CredentialStore
	sessions SessionStore
	ttl      time.Duration
}

type LoginOutput struct {
	Token      string
	CustomerID string
	ExpiresAt  time.Time
}

func NewAuthService(c CredentialStore, s SessionStore, ttl time.Duration) (*AuthService, error) {
	if c == nil {
		return nil, errors.New("usecase: credential store must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &AuthService{creds: c, sessions: s, ttl: ttl}, nil
}

// Login checks the credential pair once and, on a match, mints and persists a
// new session token.
func (s *AuthService) Login(ctx context.Context, accountNumber, code string) (LoginOutput, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" || code == "" {
		return LoginOutput{}, newError(ErrorInvalidInput, "missing_credentials", nil)
	}

	customerID, err := s.creds.FindCustomerByCredentials(ctx, accountNumber, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginOutput{}, newError(ErrorInvalidCredentials, "credentials_mismatch", nil)
		}
		return LoginOutput{}, newError(ErrorServiceUnavailable, "credential_store_error", err)
	}

	now := nowFunc().UTC()
	sess := domain.Session{
		Token:      newSessionToken(),
		CustomerID: customerID,
		Valid:      true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return LoginOutput{}, newError(ErrorServiceUnavailable, "session_store_error", err)
	}

	return LoginOutput{
		Token:      sess.Token,
		CustomerID: sess.CustomerID,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// ValidateToken resolves a token to the customer it was issued for.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", newError(ErrorNoToken, "no_token", nil)
	}

	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", newError(ErrorInvalidSession, "unknown_session", nil)
		}
		return "", newError(ErrorServiceUnavailable, "session_store_error", err)
	}
	if !sess.Active(nowFunc()) {
		return "", newError(ErrorInvalidSession, "revoked_or_expired", nil)
	}
	return sess.CustomerID, nil
}

// Logout revokes the session behind token. Revoking an unknown token is an
// InvalidSession error so callers cannot probe for live tokens silently.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.ValidateToken(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.RevokeSession(ctx, strings.TrimSpace(token)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return newError(ErrorInvalidSession, "unknown_session", nil)
		}
		return newError(ErrorServiceUnavailable, "session_store_error", err)
	}
	return nil
}

// newSessionToken joins two random (v4) UUIDs, which are drawn from
// crypto/rand, into a 64-hex-character opaque token.
var newSessionToken = func() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "sess_" + a + b
}

var nowFunc = time.Now
