package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prooftamil/ime-gateway/internal/storage"
)

// Store is an in-memory UsageStore. Records are lost on restart.
type Store struct {
	mu      sync.RWMutex
	records []*storage.UsageRecord
}

var _ storage.UsageStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{}
}

func (s *Store) Record(ctx context.Context, rec *storage.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.records = append(s.records, &stored)
	return nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	var out []*storage.UsageRecord
	skipped := 0
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if opts.ClientID != "" && rec.ClientID != opts.ClientID {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) Summary(ctx context.Context) ([]storage.ClientUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byClient := make(map[string]*storage.ClientUsage)
	for _, rec := range s.records {
		if rec.ClientID == "" {
			continue
		}
		u, ok := byClient[rec.ClientID]
		if !ok {
			u = &storage.ClientUsage{ClientID: rec.ClientID}
			byClient[rec.ClientID] = u
		}
		u.Requests++
		if rec.Outcome == storage.OutcomeSuccess {
			u.Succeeded++
		}
	}

	out := make([]storage.ClientUsage, 0, len(byClient))
	for _, u := range byClient {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.CreatedAt.Before(before) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := int64(len(s.records) - len(kept))
	clear(s.records[len(kept):])
	s.records = kept
	return removed, nil
}

func (s *Store) Close() error {
	return nil
}
