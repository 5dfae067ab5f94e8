package usecase

import (
	"strconv"
	"strings"

	"bank-assistant/internal/domain"
)

const transactionDateLayout = "2006-01-02"

// Compose appends a line-per-item rendering of data to reply, separated by a
// blank line. A nil or empty data leaves reply unchanged.
func Compose(kind domain.ActionKind, data *ActionData, reply string) string {
	if data == nil {
		return reply
	}

	var lines []string
	switch kind {
	case domain.ActionBalance:
		for _, a := range data.Accounts {
			lines = append(lines, a.Type+": "+a.Currency+" "+formatMoney(a.Balance))
		}
	case domain.ActionTransactions:
		for _, tx := range data.Transactions {
			lines = append(lines, tx.CreatedAt.UTC().Format(transactionDateLayout)+": "+tx.Description+" ("+formatSignedAmount(tx.Amount)+")")
		}
	}
	if len(lines) == 0 {
		return reply
	}
	return reply + "\n\n" + strings.Join(lines, "\n")
}

func formatMoney(v float64) string {
	if v == 0 {
		v = 0 // normalise negative zero
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatSignedAmount prefixes positive amounts with '+'; negatives keep
// their own '-'.
func formatSignedAmount(v float64) string {
	s := formatMoney(v)
	if v > 0 {
		return "+" + s
	}
	return s
}
