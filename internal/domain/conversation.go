package domain

import "time"

// Turn is a single persisted conversation message. Turns are append-only.
type Turn struct {
	ID         string
	SessionID  string
	CustomerID string
	Text       string
	IsBot      bool
	CreatedAt  time.Time
}

// Metrics is the per-exchange latency and quality record.
type Metrics struct {
	SessionID         string    `json:"-"`
	TokenUsage        int       `json:"tokenUsage"`
	ResponseTimeMs    int64     `json:"responseTimeMs"`
	CompletionQuality float64   `json:"completionQuality"`
	RecordedAt        time.Time `json:"-"`
}
