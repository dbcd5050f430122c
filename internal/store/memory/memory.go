// Package memory provides in-memory store adapters used by tests and the
// default development backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"soji/internal/core"
)

// RecordStore is a mutex-guarded in-memory record store.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]core.Record
	now     func() time.Time
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]core.Record),
		now:     time.Now,
	}
}

func (s *RecordStore) ListByMonth(ctx context.Context, month, userID string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Record, 0)
	for _, r := range s.records {
		if r.Month != month {
			continue
		}
		if userID != "" && r.UserID != userID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RecordStore) FindByID(ctx context.Context, id string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}
	return r, nil
}

func (s *RecordStore) Create(ctx context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	r.Month = core.MonthOf(r.Date)
	r.CreatedAt = s.now()
	r.UpdatedAt = nil
	s.records[r.ID] = r
	return r, nil
}

func (s *RecordStore) Update(ctx context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[r.ID]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}

	updated := r
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.Month = core.MonthOf(r.Date)
	now := s.now()
	updated.UpdatedAt = &now
	s.records[updated.ID] = updated
	return updated, nil
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// SettingsStore is a fixed in-memory settings table.
type SettingsStore struct {
	mu   sync.RWMutex
	rows map[string]string
}

func NewSettingsStore(rows map[string]string) *SettingsStore {
	copied := make(map[string]string, len(rows))
	for k, v := range rows {
		copied[k] = v
	}
	return &SettingsStore{rows: copied}
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out, nil
}
