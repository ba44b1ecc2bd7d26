// Package dataset holds the in-memory annotation store, its statistics,
// and the persisted document format.
package dataset

import (
	"sort"
	"sync"
	"time"

	"platecore/pkg/domain"
)

// SpecimenInfo is the per-specimen registry entry tracked alongside the
// records.
type SpecimenInfo struct {
	ID             string             `json:"id"`
	WellCount      int                `json:"hole_count"`
	AnnotatedWells []int              `json:"annotated_holes"`
	MicrobeType    domain.MicrobeType `json:"microbe_type"`
}

// Store keeps one annotation record per (specimen, well) key. Reads return
// clones so callers can never mutate stored state in place; the only way to
// change a record is a fresh Upsert. A mutex guards the maps so an
// embedding system with a background reader stays safe, but the intended
// access pattern is a single interactive session.
type Store struct {
	mu      sync.RWMutex
	records map[domain.RecordKey]domain.AnnotationRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[domain.RecordKey]domain.AnnotationRecord)}
}

// Upsert validates the record and replaces any existing record at the same
// key unconditionally. Priority between provenances is caller policy, not
// store policy; see ImportIfAbsent for the import path.
func (s *Store) Upsert(rec domain.AnnotationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = rec.Clone()
	return nil
}

// ImportIfAbsent applies imported records only to wells with no existing
// record. It returns the number of records actually stored. An import
// never overrides a manual or enhanced annotation.
func (s *Store) ImportIfAbsent(records []domain.AnnotationRecord) (int, error) {
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, rec := range records {
		if _, exists := s.records[rec.Key()]; exists {
			continue
		}
		s.records[rec.Key()] = rec.Clone()
		applied++
	}
	return applied, nil
}

// ByWell returns the record for the given well, if any.
func (s *Store) ByWell(specimenID string, wellIndex int) (domain.AnnotationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[domain.RecordKey{SpecimenID: specimenID, WellIndex: wellIndex}]
	if !ok {
		return domain.AnnotationRecord{}, false
	}
	return rec.Clone(), true
}

// BySpecimen returns all records for a specimen, sorted by well index.
func (s *Store) BySpecimen(specimenID string) []domain.AnnotationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnnotationRecord
	for key, rec := range s.records {
		if key.SpecimenID == specimenID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WellIndex < out[j].WellIndex })
	return out
}

// All returns every record, sorted by specimen then well index.
func (s *Store) All() []domain.AnnotationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnnotationRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sortRecords(out)
	return out
}

// Delete removes the record at the key, reporting whether one existed.
func (s *Store) Delete(specimenID string, wellIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.RecordKey{SpecimenID: specimenID, WellIndex: wellIndex}
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Specimens returns the sorted list of specimen ids with at least one
// record.
func (s *Store) Specimens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range s.records {
		seen[key.SpecimenID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SpecimenRegistry builds the per-specimen registry entries from the
// current records.
func (s *Store) SpecimenRegistry() map[string]SpecimenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SpecimenInfo)
	for key, rec := range s.records {
		info := out[key.SpecimenID]
		if info.ID == "" {
			info.ID = key.SpecimenID
			info.WellCount = domain.WellCount
			info.MicrobeType = rec.MicrobeType
		}
		info.AnnotatedWells = append(info.AnnotatedWells, key.WellIndex)
		out[key.SpecimenID] = info
	}
	for id, info := range out {
		sort.Ints(info.AnnotatedWells)
		out[id] = info
	}
	return out
}

// LastAnnotatedWell returns the well of the specimen's most recent
// timestamped record, used to resume a review session. Records without a
// timestamp never win.
func (s *Store) LastAnnotatedWell(specimenID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := 0
	found := false
	var bestTime time.Time
	for key, rec := range s.records {
		if key.SpecimenID != specimenID || rec.Timestamp.IsZero() {
			continue
		}
		if !found || rec.Timestamp.After(bestTime) {
			best, bestTime, found = key.WellIndex, rec.Timestamp, true
		}
	}
	return best, found
}

// Reset drops every record, returning the store to its initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.RecordKey]domain.AnnotationRecord)
}

func sortRecords(records []domain.AnnotationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].SpecimenID != records[j].SpecimenID {
			return records[i].SpecimenID < records[j].SpecimenID
		}
		return records[i].WellIndex < records[j].WellIndex
	})
}
