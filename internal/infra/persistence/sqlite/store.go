// Package sqlite persists the annotation store to a single SQLite table of
// JSON bucket blobs, snapshotting the full state after every successful
// mutation.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"platecore/internal/dataset"
	"platecore/pkg/domain"
)

// The snapshot holds a single bucket: every other view (specimen registry,
// statistics, last-annotated well) is derived from the records on load.
const bucketAnnotations = "annotations"

// Store wraps the in-memory annotation store with SQLite durability.
type Store struct {
	*dataset.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates the
// in-memory store from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "platecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: dataset.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
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

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	annotations, err := json.Marshal(s.Store.All())
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucketAnnotations, annotations); err != nil {
		retErr = fmt.Errorf("upsert %s: %w", bucketAnnotations, err)
		return retErr
	}
	return tx.Commit()
}

// Upsert stores the record and snapshots state.
func (s *Store) Upsert(rec domain.AnnotationRecord) error {
	if err := s.Store.Upsert(rec); err != nil {
		return err
	}
	return s.persist()
}

// ImportIfAbsent applies imported records and snapshots state.
func (s *Store) ImportIfAbsent(records []domain.AnnotationRecord) (int, error) {
	applied, err := s.Store.ImportIfAbsent(records)
	if err != nil {
		return applied, err
	}
	return applied, s.persist()
}

// Delete removes the record and snapshots state.
func (s *Store) Delete(specimenID string, wellIndex int) (bool, error) {
	removed := s.Store.Delete(specimenID, wellIndex)
	if !removed {
		return false, nil
	}
	return true, s.persist()
}

// Load replaces the store contents from a document and snapshots state.
func (s *Store) Load(doc dataset.Document) error {
	if err := s.Store.Load(doc); err != nil {
		return err
	}
	return s.persist()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
