// Package domain defines the core persistent entities, value types, and
// validation primitives used by platecore.
package domain

import (
	"encoding/json"
	"time"
)

// MicrobeType identifies the organism class grown on a specimen plate.
type MicrobeType string

// Supported microbe types. The type constrains which growth patterns are
// legal for positive wells.
const (
	MicrobeBacteria MicrobeType = "bacteria"
	MicrobeFungi    MicrobeType = "fungi"
)

// GrowthLevel is the three-way classification assigned to a well.
type GrowthLevel string

// Canonical growth levels, ordered from no growth to definite growth.
const (
	GrowthNegative GrowthLevel = "negative"
	GrowthWeak     GrowthLevel = "weak_growth"
	GrowthPositive GrowthLevel = "positive"
)

// GrowthPattern refines a growth level with a morphology tag. Legality of a
// pattern depends on both the growth level and the microbe type; see
// AllowedPatterns.
type GrowthPattern string

// Growth patterns grouped by the level they refine.
const (
	// PatternClean marks a negative well with no visible interference.
	PatternClean GrowthPattern = "clean"

	// Weak-growth morphologies.
	PatternSmallDots      GrowthPattern = "small_dots"
	PatternLightGray      GrowthPattern = "light_gray"
	PatternIrregularAreas GrowthPattern = "irregular_areas"

	// Positive morphologies. Clustered/scattered are bacterial,
	// focal/diffuse are fungal, heavy growth applies to both.
	PatternClustered   GrowthPattern = "clustered"
	PatternScattered   GrowthPattern = "scattered"
	PatternHeavyGrowth GrowthPattern = "heavy_growth"
	PatternFocal       GrowthPattern = "focal"
	PatternDiffuse     GrowthPattern = "diffuse"
)

// Interference tags optical artifacts that complicate reading a well.
type Interference string

// Canonical interference factors.
const (
	InterferencePores         Interference = "pores"
	InterferenceArtifacts     Interference = "artifacts"
	InterferenceDebris        Interference = "debris"
	InterferenceContamination Interference = "contamination"
)

// Source records the provenance of an annotation.
type Source string

// Annotation provenances, ordered by increasing trust. Import never
// overrides an existing record; manual and enhanced edits always win by
// being applied last.
const (
	SourceConfigImport   Source = "config_import"
	SourceBatchOperation Source = "batch_operation"
	SourceManual         Source = "manual"
	SourceEnhancedManual Source = "enhanced_manual"
)

// DefaultBBox is the slice bounding box assumed when a persisted record
// predates bbox tracking.
var DefaultBBox = [4]float64{0, 0, 70, 70}

// AnnotationRecord is the canonical per-well annotation. Exactly one logical
// record exists per (SpecimenID, WellIndex) key inside a store; records are
// replaced by key, never mutated in place.
type AnnotationRecord struct {
	ImagePath           string              `json:"image_path"`
	Label               string              `json:"label"`
	BBox                [4]float64          `json:"bbox"`
	Confidence          *float64            `json:"confidence,omitempty"`
	SpecimenID          string              `json:"panoramic_image_id"`
	WellIndex           int                 `json:"hole_number"`
	WellRow             int                 `json:"hole_row"`
	WellCol             int                 `json:"hole_col"`
	MicrobeType         MicrobeType         `json:"microbe_type"`
	GrowthLevel         GrowthLevel         `json:"growth_level"`
	InterferenceFactors []Interference      `json:"interference_factors"`
	Source              Source              `json:"annotation_source"`
	Confirmed           bool                `json:"is_confirmed"`
	Enhanced            *FeatureCombination `json:"enhanced_data,omitempty"`
	Timestamp           time.Time           `json:"timestamp,omitzero"`
}

// NewAnnotationRecord validates and constructs a record for the given well.
// Row, column, and label fields are derived; no partially valid record is
// ever returned.
func NewAnnotationRecord(specimenID string, wellIndex int, microbe MicrobeType, level GrowthLevel, source Source) (AnnotationRecord, error) {
	row, col, err := IndexToPosition(wellIndex)
	if err != nil {
		return AnnotationRecord{}, err
	}
	if err := validateEnums(microbe, level, source); err != nil {
		return AnnotationRecord{}, err
	}
	return AnnotationRecord{
		Label:       string(level),
		BBox:        DefaultBBox,
		SpecimenID:  specimenID,
		WellIndex:   wellIndex,
		WellRow:     row,
		WellCol:     col,
		MicrobeType: microbe,
		GrowthLevel: level,
		Source:      source,
	}, nil
}

func validateEnums(microbe MicrobeType, level GrowthLevel, source Source) error {
	switch microbe {
	case MicrobeBacteria, MicrobeFungi:
	default:
		return ValidationError{Field: "microbe_type", Value: string(microbe), Reason: "must be bacteria or fungi"}
	}
	switch level {
	case GrowthNegative, GrowthWeak, GrowthPositive:
	default:
		return ValidationError{Field: "growth_level", Value: string(level), Reason: "must be negative, weak_growth or positive"}
	}
	switch source {
	case SourceConfigImport, SourceBatchOperation, SourceManual, SourceEnhancedManual:
	default:
		return ValidationError{Field: "annotation_source", Value: string(source), Reason: "unknown provenance"}
	}
	return nil
}

// Validate re-checks the hard construction invariants of the record.
func (r AnnotationRecord) Validate() error {
	row, col, err := IndexToPosition(r.WellIndex)
	if err != nil {
		return err
	}
	if r.WellRow != row || r.WellCol != col {
		return ValidationError{Field: "hole_row", Value: string(rune('0' + r.WellRow)), Reason: "row/col inconsistent with well index"}
	}
	if err := validateEnums(r.MicrobeType, r.GrowthLevel, r.Source); err != nil {
		return err
	}
	if r.Enhanced != nil {
		if err := r.Enhanced.Validate(r.MicrobeType); err != nil {
			return err
		}
	}
	return nil
}

// Key identifies the logical record within a store.
func (r AnnotationRecord) Key() RecordKey {
	return RecordKey{SpecimenID: r.SpecimenID, WellIndex: r.WellIndex}
}

// WithEnhanced returns a copy of the record carrying the enhanced payload,
// with the derived label, level, interference, and confidence fields synced
// from it. The payload must be legal for the record's microbe type.
func (r AnnotationRecord) WithEnhanced(fc FeatureCombination, confirmed bool) (AnnotationRecord, error) {
	if err := fc.Validate(r.MicrobeType); err != nil {
		return AnnotationRecord{}, err
	}
	cp := r.Clone()
	snapshot := fc.Clone()
	cp.Enhanced = &snapshot
	cp.GrowthLevel = fc.GrowthLevel
	cp.Label = fc.Label()
	cp.InterferenceFactors = sortedInterference(fc.InterferenceFactors)
	conf := fc.Confidence
	cp.Confidence = &conf
	cp.Source = SourceEnhancedManual
	cp.Confirmed = confirmed
	return cp, nil
}

// Clone returns a deep copy of the record.
func (r AnnotationRecord) Clone() AnnotationRecord {
	cp := r
	cp.InterferenceFactors = append([]Interference(nil), r.InterferenceFactors...)
	if r.Confidence != nil {
		conf := *r.Confidence
		cp.Confidence = &conf
	}
	if r.Enhanced != nil {
		snapshot := r.Enhanced.Clone()
		cp.Enhanced = &snapshot
	}
	return cp
}

// RecordKey is the (specimen, well) identity of an annotation.
type RecordKey struct {
	SpecimenID string
	WellIndex  int
}

type recordAlias AnnotationRecord

// UnmarshalJSON hydrates a record from persisted JSON, applying the
// backward-compatibility defaults for fields absent in older documents and
// normalizing legacy interference aliases and pattern placeholders, on the
// record and on any embedded enhanced payload.
func (r *AnnotationRecord) UnmarshalJSON(data []byte) error {
	aux := recordAlias{
		BBox:        DefaultBBox,
		MicrobeType: MicrobeBacteria,
		GrowthLevel: GrowthNegative,
		Source:      SourceManual,
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = AnnotationRecord(aux)
	r.InterferenceFactors = normalizeLegacyInterference(r.InterferenceFactors)
	if r.Enhanced != nil {
		r.Enhanced.normalizeLegacy(r.MicrobeType)
	}
	if r.Label == "" {
		r.Label = string(r.GrowthLevel)
	}
	if r.WellRow == 0 && r.WellCol == 0 && r.WellIndex >= 1 && r.WellIndex <= WellCount {
		r.WellRow, r.WellCol, _ = IndexToPosition(r.WellIndex)
	}
	return nil
}
