package dataset

import "platecore/pkg/domain"

// Statistics summarizes a set of annotation records. The unannotated count
// is expected total minus the confirmed-enhanced count: a well pre-filled
// by import still needs review and therefore still counts as unannotated.
type Statistics struct {
	TotalAnnotations    int            `json:"total_annotations"`
	PanoramicImages     int            `json:"panoramic_images"`
	MicrobeTypes        map[string]int `json:"microbe_types"`
	GrowthLevels        map[string]int `json:"growth_levels"`
	InterferenceFactors map[string]int `json:"interference_factors"`
	AnnotationSources   map[string]int `json:"annotation_sources"`
	ConfirmedCount      int            `json:"confirmed_count"`
	UnconfirmedCount    int            `json:"unconfirmed_count"`
	ImportedOnlyCount   int            `json:"imported_only_count"`
	ExpectedTotal       int            `json:"expected_total"`
	UnannotatedCount    int            `json:"unannotated_count"`
}

// Summarize computes statistics over the given records. expectedTotal is
// the number of wells the caller considers reviewable; pass zero to use
// 120 wells per specimen touched by the records.
func Summarize(records []domain.AnnotationRecord, expectedTotal int) Statistics {
	stats := Statistics{
		TotalAnnotations:    len(records),
		MicrobeTypes:        make(map[string]int),
		GrowthLevels:        make(map[string]int),
		InterferenceFactors: make(map[string]int),
		AnnotationSources:   make(map[string]int),
	}
	specimens := make(map[string]struct{})
	confirmedEnhanced := 0
	for _, rec := range records {
		specimens[rec.SpecimenID] = struct{}{}
		stats.MicrobeTypes[string(rec.MicrobeType)]++
		stats.GrowthLevels[string(rec.GrowthLevel)]++
		stats.AnnotationSources[string(rec.Source)]++
		for _, f := range rec.InterferenceFactors {
			stats.InterferenceFactors[string(f)]++
		}
		if rec.Confirmed {
			stats.ConfirmedCount++
		} else {
			stats.UnconfirmedCount++
		}
		if rec.Confirmed && rec.Enhanced != nil {
			confirmedEnhanced++
		}
		if rec.Source == domain.SourceConfigImport {
			stats.ImportedOnlyCount++
		}
	}
	stats.PanoramicImages = len(specimens)
	if expectedTotal <= 0 {
		expectedTotal = len(specimens) * domain.WellCount
	}
	stats.ExpectedTotal = expectedTotal
	stats.UnannotatedCount = expectedTotal - confirmedEnhanced
	return stats
}

// StatisticsFor summarizes one specimen, or every specimen when id is
// empty.
func (s *Store) StatisticsFor(specimenID string, expectedTotal int) Statistics {
	if specimenID == "" {
		return Summarize(s.All(), expectedTotal)
	}
	return Summarize(s.BySpecimen(specimenID), expectedTotal)
}
