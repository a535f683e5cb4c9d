package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("fallback record not found")
	ErrEmptyIdentifier = errors.New("identifier is required")
	ErrStoreClosed     = errors.New("fallback store is closed")
	ErrUnknownBackend  = errors.New("unknown fallback backend")
)

// Record is metadata kept locally while the storage network is unreachable.
type Record struct {
	Key        string            `json:"key"`
	Identifier string            `json:"identifier"`
	Payload    []byte            `json:"payload"`
	Tags       map[string]string `json:"tags,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store is a key-value cache of records keyed by a generated uuid.
type Store interface {
	// Put stores a copy of the record under a fresh key and returns it.
	Put(ctx context.Context, identifier string, payload []byte, tags map[string]string) (Record, error)
	Get(ctx context.Context, key string) (Record, error)
	// List returns records oldest first.
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string // sqlite | memory
	Path    string
	TTL     time.Duration
}

// New builds the backend named by cfg.Backend.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewMemoryStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func newRecord(identifier string, payload []byte, tags map[string]string) (Record, error) {
	if identifier == "" {
		return Record{}, ErrEmptyIdentifier
	}
	rec := Record{
		Key:        uuid.NewString(),
		Identifier: identifier,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  time.Now().UTC(),
	}
	if len(tags) > 0 {
		rec.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			rec.Tags[k] = v
		}
	}
	return rec, nil
}
