package transaction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu     sync.Mutex
	seq    int
	txs    map[string]*Transaction
	images map[string][]Image
	err    error
}

func newMemStore() *memStore {
	return &memStore{txs: map[string]*Transaction{}, images: map[string][]Image{}}
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []Transaction{}
	for _, t := range m.txs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccomplishedAt.After(out[j].AccomplishedAt) })
	return out, nil
}

func (m *memStore) Get(_ context.Context, id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Images(_ context.Context, transactionID string) ([]Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Image(nil), m.images[transactionID]...), nil
}

func (m *memStore) Create(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("tx-%d", m.seq)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[id]; !ok {
		return nil, ErrNotFound
	}
	var paths []string
	for _, img := range m.images[id] {
		paths = append(paths, img.Path)
	}
	delete(m.txs, id)
	delete(m.images, id)
	return paths, nil
}

func (m *memStore) attach(txID, path, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[txID] = append(m.images[txID], Image{
		ID:            fmt.Sprintf("img-%d", len(m.images[txID])+1),
		TransactionID: txID,
		Path:          path,
		Title:         title,
	})
}

type memObjects struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	if o.fail[key] {
		return fmt.Errorf("remove object %q: timeout", key)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, key)
	return nil
}

func (o *memObjects) PublicURL(key string) string {
	return "https://cdn.example/" + key
}
