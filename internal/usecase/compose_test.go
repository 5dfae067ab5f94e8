package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bank-assistant/internal/domain"
)

func TestCompose_Balances(t *testing.T) {
	got := Compose(domain.ActionBalance, &ActionData{Accounts: twoAccounts()}, "Sure, here it is:")
	require.Equal(t, "Sure, here it is:\n\nCHECKING: USD 1500.00\nSAVINGS: USD 5000.00", got)
}

func TestCompose_Transactions(t *testing.T) {
	data := &ActionData{Transactions: []domain.Transaction{
		{Description: "Payroll deposit", Amount: 1000, CreatedAt: time.Date(2025, 1, 27, 9, 30, 0, 0, time.UTC)},
		{Description: "ATM withdrawal", Amount: -50, CreatedAt: time.Date(2025, 1, 26, 18, 0, 0, 0, time.UTC)},
		{Description: "Fee reversal", Amount: 0, CreatedAt: time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)},
	}}
	got := Compose(domain.ActionTransactions, data, "Recent activity:")
	require.Equal(t, "Recent activity:\n\n"+
		"2025-01-27: Payroll deposit (+1000.00)\n"+
		"2025-01-26: ATM withdrawal (-50.00)\n"+
		"2025-01-25: Fee reversal (0.00)", got)
}

func TestCompose_NoDataReturnsReplyUnchanged(t *testing.T) {
	require.Equal(t, "raw", Compose(domain.ActionBalance, nil, "raw"))
	require.Equal(t, "raw", Compose(domain.ActionBalance, &ActionData{}, "raw"))
	require.Equal(t, "raw", Compose(domain.ActionUpdateContact, &ActionData{Accounts: twoAccounts()}, "raw"))
}

func TestFormatMoney(t *testing.T) {
	require.Equal(t, "1500.00", formatMoney(1500))
	require.Equal(t, "0.10", formatMoney(0.1))
	require.Equal(t, "0.00", formatMoney(-0.0))
	require.Equal(t, "+12.35", formatSignedAmount(12.346))
	require.Equal(t, "-3.50", formatSignedAmount(-3.5))
}
