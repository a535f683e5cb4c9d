package fallback

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps records in process memory and expires them after a TTL.
type MemoryStore struct {
	c *cache.Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store whose records live for ttl. A non-positive ttl
// keeps records until Delete.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	exp := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		exp = ttl
		cleanup = ttl / 2
		if cleanup < time.Second {
			cleanup = time.Second
		}
	}
	return &MemoryStore{c: cache.New(exp, cleanup)}
}

func (m *MemoryStore) Put(_ context.Context, identifier string, payload []byte, tags map[string]string) (Record, error) {
	rec, err := newRecord(identifier, payload, tags)
	if err != nil {
		return Record{}, err
	}
	m.c.SetDefault(rec.Key, rec)
	return rec, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v.(Record), nil
}

func (m *MemoryStore) List(context.Context) ([]Record, error) {
	items := m.c.Items()
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if _, ok := m.c.Get(key); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	m.c.Delete(key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.c.Flush()
	return nil
}
