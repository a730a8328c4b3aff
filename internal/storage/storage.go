// Package storage defines the request usage ledger.
package storage

import (
	"context"
	"time"
)

// UsageRecord is one /transliterate request as seen by the gateway. It never
// carries credentials or query text.
type UsageRecord struct {
	RequestID   string
	ClientID    string // empty when authentication failed
	Outcome     string
	Status      int
	Suggestions int
	Duration    time.Duration
	CreatedAt   time.Time
}

// ListOptions filters and pages List results.
type ListOptions struct {
	ClientID string
	Limit    int
	Offset   int
}

// ClientUsage aggregates the ledger for one client.
type ClientUsage struct {
	ClientID  string
	Requests  int
	Succeeded int
}

// UsageStore persists usage records.
type UsageStore interface {
	Record(ctx context.Context, rec *UsageRecord) error
	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*UsageRecord, error)
	Summary(ctx context.Context) ([]ClientUsage, error)
	// Prune deletes records created before the cutoff and reports how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Outcome values used for UsageRecord.Outcome.
const (
	OutcomeSuccess = "success"
)

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 100
