package dataset

import (
	"encoding/json"
	"time"

	"platecore/pkg/domain"
)

// SaveMode selects which records a serialized document carries.
type SaveMode string

// Save modes. ConfirmedOnly writes only confirmed-enhanced records, for
// training exports; SaveAll writes the full store, for session files.
const (
	SaveConfirmedOnly SaveMode = "confirmed_only"
	SaveAll           SaveMode = "all"
)

// Document is the persisted dataset format. Statistics are computed over
// the record subset actually written, so a confirmed_only file is
// self-consistent without reference to the in-memory store it came from.
type Document struct {
	Name             string                    `json:"name"`
	Description      string                    `json:"description"`
	CreatedAt        time.Time                 `json:"created_at"`
	SaveMode         SaveMode                  `json:"save_mode"`
	TotalAnnotations int                       `json:"total_annotations"`
	SavedAnnotations int                       `json:"saved_annotations"`
	PanoramicImages  map[string]SpecimenInfo   `json:"panoramic_images"`
	Annotations      []domain.AnnotationRecord `json:"annotations"`
	Statistics       Statistics                `json:"statistics"`
}

// Snapshot builds a document from the store under the given save mode.
func (s *Store) Snapshot(name, description string, mode SaveMode, now time.Time) (Document, error) {
	switch mode {
	case SaveConfirmedOnly, SaveAll:
	default:
		return Document{}, domain.ValidationError{Field: "save_mode", Value: string(mode), Reason: "unknown save mode"}
	}
	all := s.All()
	saved := all
	if mode == SaveConfirmedOnly {
		saved = make([]domain.AnnotationRecord, 0, len(all))
		for _, rec := range all {
			if rec.Confirmed && rec.Enhanced != nil {
				saved = append(saved, rec)
			}
		}
	}
	registry := make(map[string]SpecimenInfo)
	for _, rec := range saved {
		info := registry[rec.SpecimenID]
		if info.ID == "" {
			info.ID = rec.SpecimenID
			info.WellCount = domain.WellCount
			info.MicrobeType = rec.MicrobeType
		}
		info.AnnotatedWells = append(info.AnnotatedWells, rec.WellIndex)
		registry[rec.SpecimenID] = info
	}
	return Document{
		Name:             name,
		Description:      description,
		CreatedAt:        now.UTC(),
		SaveMode:         mode,
		TotalAnnotations: len(all),
		SavedAnnotations: len(saved),
		PanoramicImages:  registry,
		Annotations:      saved,
		Statistics:       Summarize(saved, 0),
	}, nil
}

// MarshalDocument renders the document as indented JSON.
func MarshalDocument(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, domain.PersistenceError{Op: "marshal document", Err: err}
	}
	return data, nil
}

// UnmarshalDocument parses a persisted document. Optional record fields
// absent from older files fall back to defaults inside the record decoder;
// a structurally unreadable payload fails with a PersistenceError.
func UnmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, domain.PersistenceError{Op: "unmarshal document", Err: err}
	}
	if doc.SaveMode == "" {
		doc.SaveMode = SaveAll
	}
	return doc, nil
}

// Load replaces the store contents with the document's records. On any
// record failure the store is left untouched.
func (s *Store) Load(doc Document) error {
	staging := NewStore()
	for _, rec := range doc.Annotations {
		if err := staging.Upsert(rec); err != nil {
			return domain.PersistenceError{Op: "load document", Err: err}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = staging.records
	return nil
}
