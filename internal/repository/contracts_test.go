package repository

import "bank-assistant/internal/usecase"

var (
	_ usecase.CredentialStore = (*Client)(nil)
	_ usecase.SessionStore    = (*Client)(nil)
	_ usecase.TurnStore       = (*Client)(nil)
	_ usecase.BankingProvider = (*Client)(nil)
	_ usecase.MetricsWriter   = (*Client)(nil)

	_ usecase.CredentialStore = (*SQLiteStore)(nil)
	_ usecase.SessionStore    = (*SQLiteStore)(nil)
	_ usecase.TurnStore       = (*SQLiteStore)(nil)
	_ usecase.BankingProvider = (*SQLiteStore)(nil)
	_ usecase.MetricsWriter   = (*SQLiteStore)(nil)
)
