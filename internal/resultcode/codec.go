// Package resultcode decodes and encodes the compact 120-character
// preliminary result strings that accompany specimen images. Each character
// classifies one well in row-major order: '+' positive, '-' negative,
// 'w' weak growth.
package resultcode

import (
	"fmt"
	"regexp"
	"strings"

	"platecore/pkg/domain"
)

const (
	symbolPositive = '+'
	symbolNegative = '-'
	symbolWeak     = 'w'
)

var runPattern = regexp.MustCompile(`[+\-w]{120}`)

// Decode parses a raw result string into a map from well index to growth
// level. Characters outside the result alphabet are stripped first; if the
// cleaned text is not exactly 120 characters, a contiguous 120-character
// run anywhere in the raw input is accepted instead. Anything else fails
// with a FormatError and yields no annotations.
func Decode(raw string) (map[int]domain.GrowthLevel, error) {
	var cleaned strings.Builder
	for _, ch := range raw {
		switch ch {
		case symbolPositive, symbolNegative, symbolWeak:
			cleaned.WriteRune(ch)
		}
	}
	text := cleaned.String()
	if len(text) != domain.WellCount {
		text = runPattern.FindString(raw)
		if text == "" {
			return nil, domain.FormatError{
				What:   "preliminary result string",
				Detail: fmt.Sprintf("cleaned length %d, want %d, and no contiguous run found", cleaned.Len(), domain.WellCount),
			}
		}
	}
	out := make(map[int]domain.GrowthLevel, domain.WellCount)
	for i, ch := range text {
		switch ch {
		case symbolPositive:
			out[i+1] = domain.GrowthPositive
		case symbolNegative:
			out[i+1] = domain.GrowthNegative
		case symbolWeak:
			out[i+1] = domain.GrowthWeak
		}
	}
	return out, nil
}

// Encode renders a well-to-level map as the 120-character result string.
// Wells absent from the map encode as negative.
func Encode(levels map[int]domain.GrowthLevel) (string, error) {
	var b strings.Builder
	b.Grow(domain.WellCount)
	for index := domain.MinWellIndex; index <= domain.MaxWellIndex; index++ {
		level, ok := levels[index]
		if !ok {
			level = domain.GrowthNegative
		}
		switch level {
		case domain.GrowthPositive:
			b.WriteByte(symbolPositive)
		case domain.GrowthNegative:
			b.WriteByte(symbolNegative)
		case domain.GrowthWeak:
			b.WriteByte(symbolWeak)
		default:
			return "", domain.ValidationError{Field: "growth_level", Value: string(level), Reason: "not encodable"}
		}
	}
	for index := range levels {
		if index < domain.MinWellIndex || index > domain.MaxWellIndex {
			return "", domain.RangeError{What: "well index", Got: index, Min: domain.MinWellIndex, Max: domain.MaxWellIndex}
		}
	}
	return b.String(), nil
}

// Summary counts the growth levels of a decoded result map.
type Summary struct {
	Positive    int `json:"positive"`
	Negative    int `json:"negative"`
	WeakGrowth  int `json:"weak_growth"`
	Unannotated int `json:"unannotated"`
}

// Summarize tallies a decoded well-to-level map. Wells absent from the map
// count as unannotated.
func Summarize(levels map[int]domain.GrowthLevel) Summary {
	var s Summary
	for index := domain.MinWellIndex; index <= domain.MaxWellIndex; index++ {
		switch levels[index] {
		case domain.GrowthPositive:
			s.Positive++
		case domain.GrowthNegative:
			s.Negative++
		case domain.GrowthWeak:
			s.WeakGrowth++
		default:
			s.Unannotated++
		}
	}
	return s
}

// DecodeRecords decodes a result string into full annotation records for
// the given specimen. Imported records carry config_import provenance,
// remain unconfirmed, and get the reduced import confidence so later manual
// review outranks them.
func DecodeRecords(specimenID string, microbe domain.MicrobeType, raw string) ([]domain.AnnotationRecord, error) {
	levels, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	records := make([]domain.AnnotationRecord, 0, len(levels))
	for index := domain.MinWellIndex; index <= domain.MaxWellIndex; index++ {
		level, ok := levels[index]
		if !ok {
			continue
		}
		rec, err := domain.NewAnnotationRecord(specimenID, index, microbe, level, domain.SourceConfigImport)
		if err != nil {
			return nil, err
		}
		conf := domain.DefaultImportConfidence
		rec.Confidence = &conf
		records = append(records, rec)
	}
	return records, nil
}
