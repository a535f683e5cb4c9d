package fallback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbBusyTimeout  = 5 * time.Second
	dbCacheSizeKiB = 8 << 10
)

const createFallbackTable = `
CREATE TABLE IF NOT EXISTS fallback_record (
  key TEXT PRIMARY KEY,
  identifier TEXT NOT NULL,
  payload BLOB NOT NULL,
  tags_json TEXT NOT NULL,
  created_at_unix_nano INTEGER NOT NULL
);`

const createFallbackIndex = `CREATE INDEX IF NOT EXISTS idx_fallback_created ON fallback_record(created_at_unix_nano);`

type recordRow struct {
	Key        string `db:"key"`
	Identifier string `db:"identifier"`
	Payload    []byte `db:"payload"`
	TagsJSON   string `db:"tags_json"`
	CreatedAt  int64  `db:"created_at_unix_nano"`
}

func (r recordRow) toRecord() (Record, error) {
	rec := Record{
		Key:        r.Key,
		Identifier: r.Identifier,
		Payload:    r.Payload,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.TagsJSON != "" && r.TagsJSON != "null" {
		if err := jsoniter.UnmarshalFromString(r.TagsJSON, &rec.Tags); err != nil {
			return Record{}, fmt.Errorf("unmarshal tags for %s: %w", r.Key, err)
		}
	}
	return rec, nil
}

// SQLiteStore persists records in a single sqlite table.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("fallback sqlite path is required")
	}
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open fallback sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		fmt.Sprintf("PRAGMA cache_size=-%d;", dbCacheSizeKiB),
		fmt.Sprintf("PRAGMA busy_timeout=%d;", int64(dbBusyTimeout/time.Millisecond)),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cannot set sqlite database parameter: %w", err)
		}
	}
	for _, stmt := range []string{createFallbackTable, createFallbackIndex} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cannot create fallback_record table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, identifier string, payload []byte, tags map[string]string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrStoreClosed
	}
	rec, err := newRecord(identifier, payload, tags)
	if err != nil {
		return Record{}, err
	}
	tagsJSON, err := jsoniter.MarshalToString(rec.Tags)
	if err != nil {
		return Record{}, fmt.Errorf("marshal tags: %w", err)
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fallback_record (key, identifier, payload, tags_json, created_at_unix_nano)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Key, rec.Identifier, rec.Payload, tagsJSON, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert fallback record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrStoreClosed
	}
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT key, identifier, payload, tags_json, created_at_unix_nano FROM fallback_record WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get fallback record: %w", err)
	}
	return row.toRecord()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT key, identifier, payload, tags_json, created_at_unix_nano FROM fallback_record ORDER BY created_at_unix_nano, key`); err != nil {
		return nil, fmt.Errorf("list fallback records: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM fallback_record WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete fallback record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
