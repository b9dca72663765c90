// Package memory provides an in-memory scrape record store for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// RecordStore keeps scrape records in memory, newest last.
type RecordStore struct {
	mu      sync.RWMutex
	records []scrape.ScrapeRecord
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// StoreRecord appends a record.
func (s *RecordStore) StoreRecord(_ context.Context, record scrape.ScrapeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// RecentRecords returns up to limit records, newest first.
func (s *RecordStore) RecentRecords(_ context.Context, limit int) ([]scrape.ScrapeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]scrape.ScrapeRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *RecordStore) Close() {}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
