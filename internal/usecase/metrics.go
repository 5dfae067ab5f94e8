package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bank-assistant/internal/domain"
)

var bankingTerms = []string{
	"account", "balance", "transaction", "payment",
	"transfer", "deposit", "withdraw", "bank",
	"credit", "debit", "money", "currency",
}

// MetricsWriter persists exchange metrics for observability. Nothing in the
// pipeline reads them back.
type MetricsWriter interface {
	WriteMetrics(ctx context.Context, m domain.Metrics) error
}

type MetricsRecorder struct {
	writer MetricsWriter
}

// NewMetricsRecorder returns a recorder; a nil writer computes metrics
// without persisting them.
func NewMetricsRecorder(w MetricsWriter) *MetricsRecorder {
	return &MetricsRecorder{writer: w}
}

// Record computes the metrics for one exchange and persists them. The
// computed metrics are returned even when persisting fails; callers treat
// the error as a side channel.
func (r *MetricsRecorder) Record(ctx context.Context, sessionID string, tokenUsage int, responseTime time.Duration, reply string) (domain.Metrics, error) {
	if tokenUsage < 0 {
		tokenUsage = 0
	}
	ms := responseTime.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	m := domain.Metrics{
		SessionID:         sessionID,
		TokenUsage:        tokenUsage,
		ResponseTimeMs:    ms,
		CompletionQuality: CompletionQuality(reply),
		RecordedAt:        nowFunc().UTC(),
	}
	if r == nil || r.writer == nil {
		return m, nil
	}
	if err := r.writer.WriteMetrics(ctx, m); err != nil {
		return m, fmt.Errorf("usecase: write metrics: %w", err)
	}
	return m, nil
}

// CompletionQuality is the mean of three heuristic sub-scores: length,
// line structure, and presence of a banking term.
func CompletionQuality(reply string) float64 {
	length := 0.5
	if utf8.RuneCountInString(reply) > 20 {
		length = 1.0
	}
	structure := 0.8
	if strings.Contains(reply, "\n") {
		structure = 1.0
	}
	relevance := 0.7
	if containsBankingTerm(reply) {
		relevance = 1.0
	}
	return (length + structure + relevance) / 3
}

func containsBankingTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range bankingTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
