package dataset

import (
	"sort"

	"platecore/pkg/domain"
)

// TrainingSummary counts confirmed-enhanced records per training bucket.
// Buckets follow the export directory convention
// "<growth_level>/<clean|with_factor>", e.g. "positive/with_pores".
type TrainingSummary struct {
	Buckets      map[string]int `json:"buckets"`
	TotalRecords int            `json:"total_records"`
	Skipped      int            `json:"skipped"`
}

// TrainingBucket returns the export bucket of a record. A record with
// interference factors lands in the bucket of its first factor in sorted
// order; a record without any lands in the clean bucket.
func TrainingBucket(rec domain.AnnotationRecord) string {
	bucket := string(rec.GrowthLevel) + "/clean"
	if len(rec.InterferenceFactors) > 0 {
		factors := append([]domain.Interference(nil), rec.InterferenceFactors...)
		sort.Slice(factors, func(i, j int) bool { return factors[i] < factors[j] })
		bucket = string(rec.GrowthLevel) + "/with_" + string(factors[0])
	}
	return bucket
}

// TrainingExport summarizes the confirmed-enhanced subset of the store for
// a training run. Unconfirmed and import-only records are skipped, never
// exported.
func (s *Store) TrainingExport() TrainingSummary {
	summary := TrainingSummary{Buckets: make(map[string]int)}
	for _, rec := range s.All() {
		if !rec.Confirmed || rec.Enhanced == nil {
			summary.Skipped++
			continue
		}
		summary.Buckets[TrainingBucket(rec)]++
		summary.TotalRecords++
	}
	return summary
}
