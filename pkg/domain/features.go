package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultImportConfidence is assigned to annotations derived from a
// preliminary result string rather than a human judgement.
const DefaultImportConfidence = 0.8

// legacy interference names accepted on input and normalized to the
// canonical vocabulary.
var interferenceAliases = map[Interference]Interference{
	"noise":     InterferenceArtifacts,
	"edge_blur": InterferencePores,
	"scratches": InterferenceDebris,
}

// legacy pattern placeholders written by older documents in place of a
// concrete morphology.
const (
	legacyPatternPositive GrowthPattern = "default_positive"
	legacyPatternWeak     GrowthPattern = "default_weak_growth"
)

// allowedPatterns keys on growth level; for positive growth the pattern set
// additionally depends on the microbe type.
var allowedPatterns = map[GrowthLevel]map[GrowthPattern]struct{}{
	GrowthNegative: {
		PatternClean: {},
	},
	GrowthWeak: {
		PatternSmallDots:      {},
		PatternLightGray:      {},
		PatternIrregularAreas: {},
	},
}

var allowedPositivePatterns = map[MicrobeType]map[GrowthPattern]struct{}{
	MicrobeBacteria: {
		PatternClustered:   {},
		PatternScattered:   {},
		PatternHeavyGrowth: {},
	},
	MicrobeFungi: {
		PatternFocal:       {},
		PatternDiffuse:     {},
		PatternHeavyGrowth: {},
	},
}

// DefaultPattern returns the pattern implied by a bare growth level when no
// morphology was recorded.
func DefaultPattern(level GrowthLevel, microbe MicrobeType) GrowthPattern {
	switch level {
	case GrowthNegative:
		return PatternClean
	case GrowthWeak:
		return PatternSmallDots
	case GrowthPositive:
		if microbe == MicrobeFungi {
			return PatternFocal
		}
		return PatternClustered
	}
	return PatternClean
}

// FeatureCombination is the enhanced annotation payload: a growth level
// refined by a morphology pattern and a set of interference tags, with a
// confidence score.
type FeatureCombination struct {
	GrowthLevel         GrowthLevel    `json:"growth_level"`
	GrowthPattern       GrowthPattern  `json:"growth_pattern"`
	InterferenceFactors []Interference `json:"interference_factors"`
	Confidence          float64        `json:"confidence"`
	Timestamp           time.Time      `json:"annotation_time,omitzero"`
}

// NewFeatureCombination validates and constructs a combination for the
// given microbe type. An empty pattern is replaced by the level's default.
func NewFeatureCombination(level GrowthLevel, pattern GrowthPattern, factors []Interference, confidence float64, microbe MicrobeType) (FeatureCombination, error) {
	fc := FeatureCombination{
		GrowthLevel:         level,
		GrowthPattern:       pattern,
		InterferenceFactors: normalizeInterference(factors),
		Confidence:          confidence,
	}
	if fc.GrowthPattern == "" {
		fc.GrowthPattern = DefaultPattern(level, microbe)
	}
	if err := fc.Validate(microbe); err != nil {
		return FeatureCombination{}, err
	}
	return fc, nil
}

// Validate checks pattern legality against the level and microbe type, the
// interference vocabulary, and the confidence interval [0, 1].
func (fc FeatureCombination) Validate(microbe MicrobeType) error {
	set := allowedPatterns[fc.GrowthLevel]
	if fc.GrowthLevel == GrowthPositive {
		set = allowedPositivePatterns[microbe]
	}
	if set == nil {
		return ValidationError{Field: "growth_level", Value: string(fc.GrowthLevel), Reason: "unknown level"}
	}
	if _, ok := set[fc.GrowthPattern]; !ok {
		return ValidationError{
			Field:  "growth_pattern",
			Value:  string(fc.GrowthPattern),
			Reason: "not legal for " + string(fc.GrowthLevel) + " " + string(microbe),
		}
	}
	for _, f := range fc.InterferenceFactors {
		if !knownInterference(f) {
			return ValidationError{Field: "interference_factors", Value: string(f), Reason: "unknown interference"}
		}
	}
	if fc.Confidence < 0 || fc.Confidence > 1 {
		return ValidationError{Field: "confidence", Value: "", Reason: "must be within [0, 1]"}
	}
	return nil
}

// Label renders the canonical training label:
// level[_pattern][_with_<factors>] where the clean pattern is omitted and
// factors are sorted and joined with underscores.
func (fc FeatureCombination) Label() string {
	var b strings.Builder
	b.WriteString(string(fc.GrowthLevel))
	if fc.GrowthPattern != "" && fc.GrowthPattern != PatternClean {
		b.WriteByte('_')
		b.WriteString(string(fc.GrowthPattern))
	}
	if len(fc.InterferenceFactors) > 0 {
		factors := sortedInterference(fc.InterferenceFactors)
		parts := make([]string, len(factors))
		for i, f := range factors {
			parts[i] = string(f)
		}
		b.WriteString("_with_")
		b.WriteString(strings.Join(parts, "_"))
	}
	return b.String()
}

// Clone returns a deep copy of the combination.
func (fc FeatureCombination) Clone() FeatureCombination {
	cp := fc
	cp.InterferenceFactors = append([]Interference(nil), fc.InterferenceFactors...)
	return cp
}

// ToMap flattens the combination for loosely typed exchange formats.
func (fc FeatureCombination) ToMap() map[string]any {
	factors := make([]string, len(fc.InterferenceFactors))
	for i, f := range fc.InterferenceFactors {
		factors[i] = string(f)
	}
	m := map[string]any{
		"growth_level":         string(fc.GrowthLevel),
		"growth_pattern":       string(fc.GrowthPattern),
		"interference_factors": factors,
		"confidence":           fc.Confidence,
	}
	if !fc.Timestamp.IsZero() {
		m["annotation_time"] = fc.Timestamp.Format(time.RFC3339)
	}
	return m
}

// FeatureCombinationFromMap rebuilds a combination from ToMap output or from
// legacy documents. Legacy pattern names default_positive and
// default_weak_growth map to the current defaults, and interference aliases
// are normalized.
func FeatureCombinationFromMap(m map[string]any, microbe MicrobeType) (FeatureCombination, error) {
	confidence := 1.0
	if v, ok := m["confidence"].(float64); ok {
		confidence = v
	}
	var factors []Interference
	switch raw := m["interference_factors"].(type) {
	case []any:
		for _, item := range raw {
			if s, ok := item.(string); ok {
				factors = append(factors, Interference(s))
			}
		}
	case []string:
		for _, s := range raw {
			factors = append(factors, Interference(s))
		}
	}
	fc := FeatureCombination{
		GrowthLevel:         GrowthLevel(stringField(m, "growth_level")),
		GrowthPattern:       GrowthPattern(stringField(m, "growth_pattern")),
		InterferenceFactors: factors,
		Confidence:          confidence,
	}
	fc.normalizeLegacy(microbe)
	if err := fc.Validate(microbe); err != nil {
		return FeatureCombination{}, err
	}
	if ts := stringField(m, "annotation_time"); ts != "" {
		if parsed, perr := time.Parse(time.RFC3339, ts); perr == nil {
			fc.Timestamp = parsed
		}
	}
	return fc, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// normalizeLegacy rewrites, in place, what older documents may carry:
// legacy pattern placeholders become the microbe's concrete default, an
// empty pattern becomes the level's default, interference aliases map onto
// the canonical vocabulary, and unknown tags are dropped rather than
// rejected.
func (fc *FeatureCombination) normalizeLegacy(microbe MicrobeType) {
	switch fc.GrowthPattern {
	case legacyPatternPositive:
		fc.GrowthPattern = PatternClustered
		if microbe == MicrobeFungi {
			fc.GrowthPattern = PatternFocal
		}
	case legacyPatternWeak:
		fc.GrowthPattern = PatternSmallDots
	case "":
		fc.GrowthPattern = DefaultPattern(fc.GrowthLevel, microbe)
	}
	fc.InterferenceFactors = normalizeLegacyInterference(fc.InterferenceFactors)
}

// normalizeInterference maps aliases and drops duplicates; unknown tags
// pass through so construction-time validation can reject them.
func normalizeInterference(factors []Interference) []Interference {
	return canonicalizeInterference(factors, false)
}

// normalizeLegacyInterference additionally drops tags outside the canonical
// vocabulary; legacy documents may carry free-form tags.
func normalizeLegacyInterference(factors []Interference) []Interference {
	return canonicalizeInterference(factors, true)
}

func canonicalizeInterference(factors []Interference, dropUnknown bool) []Interference {
	if len(factors) == 0 {
		return nil
	}
	seen := make(map[Interference]struct{}, len(factors))
	out := make([]Interference, 0, len(factors))
	for _, f := range factors {
		if canonical, ok := interferenceAliases[f]; ok {
			f = canonical
		}
		if dropUnknown && !knownInterference(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func knownInterference(f Interference) bool {
	switch f {
	case InterferencePores, InterferenceArtifacts, InterferenceDebris, InterferenceContamination:
		return true
	}
	return false
}

func sortedInterference(factors []Interference) []Interference {
	out := append([]Interference(nil), factors...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
