// Package postgres provides a Postgres-backed persistent annotation store
// that mirrors the in-memory semantics, snapshotting state to a JSONB
// bucket table after every successful mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"platecore/internal/dataset"
	"platecore/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/platecore?sslmode=disable"

	// The snapshot holds a single bucket: every other view is derived from
	// the records on load.
	bucketAnnotations = "annotations"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists annotation state to Postgres while reusing the in-memory
// implementation for queries.
type Store struct {
	*dataset.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls
// back to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	s := &Store{Store: dataset.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.AnnotationRecord
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if bucket == bucketAnnotations {
			if err := json.Unmarshal(payload, &records); err != nil {
				return fmt.Errorf("decode annotations: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	return s.Store.Load(dataset.Document{Annotations: records})
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	annotations, err := json.Marshal(s.Store.All())
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		bucketAnnotations, annotations); err != nil {
		retErr = fmt.Errorf("upsert %s: %w", bucketAnnotations, err)
		return retErr
	}
	return tx.Commit()
}

// Upsert stores the record and snapshots state.
func (s *Store) Upsert(ctx context.Context, rec domain.AnnotationRecord) error {
	if err := s.Store.Upsert(rec); err != nil {
		return err
	}
	return s.persist(ctx)
}

// ImportIfAbsent applies imported records and snapshots state.
func (s *Store) ImportIfAbsent(ctx context.Context, records []domain.AnnotationRecord) (int, error) {
	applied, err := s.Store.ImportIfAbsent(records)
	if err != nil {
		return applied, err
	}
	return applied, s.persist(ctx)
}

// Delete removes the record and snapshots state.
func (s *Store) Delete(ctx context.Context, specimenID string, wellIndex int) (bool, error) {
	removed := s.Store.Delete(specimenID, wellIndex)
	if !removed {
		return false, nil
	}
	return true, s.persist(ctx)
}

// Load replaces the store contents from a document and snapshots state.
func (s *Store) Load(ctx context.Context, doc dataset.Document) error {
	if err := s.Store.Load(doc); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
