package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"syncpair/internal/domain"
)

// Memory is an in-process ObjectStore. Its clock is strictly increasing so a
// listing timestamp always separates the objects it saw from later writes.
type Memory struct {
	mu   sync.Mutex
	cols map[string]map[string]domain.Object
	now  func() time.Time
	last time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]map[string]domain.Object), now: time.Now}
}

var _ domain.ObjectStore = (*Memory)(nil)

func (m *Memory) tick() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

func (m *Memory) Get(_ context.Context, collection, id string) (domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.cols[collection][id]
	if !ok {
		return domain.Object{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	obj.Payload = append([]byte(nil), obj.Payload...)
	return obj, nil
}

func (m *Memory) Put(_ context.Context, collection, id string, payload []byte) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.cols[collection]
	if !ok {
		col = make(map[string]domain.Object)
		m.cols[collection] = col
	}
	modified := m.tick()
	col[id] = domain.Object{ID: id, Payload: append([]byte(nil), payload...), Modified: modified}
	return modified, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cols[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	delete(m.cols[collection], id)
	return nil
}

// List returns ids modified after newer, oldest first.
func (m *Memory) List(_ context.Context, collection string, newer time.Time) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var objs []domain.Object
	for _, obj := range m.cols[collection] {
		if newer.IsZero() || obj.Modified.After(newer) {
			objs = append(objs, obj)
		}
	}
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].Modified.Equal(objs[j].Modified) {
			return objs[i].ID < objs[j].ID
		}
		return objs[i].Modified.Before(objs[j].Modified)
	})

	out := domain.Listing{IDs: make([]string, 0, len(objs)), Timestamp: m.tick()}
	for _, obj := range objs {
		out.IDs = append(out.IDs, obj.ID)
	}
	return out, nil
}
