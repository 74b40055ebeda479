package proof

// QualityTier is the coarse automated score assigned to evidence at
// submission time. It never changes for a given submission; a
// resubmission gets its own tier.
type QualityTier string

const (
	TierBasic         QualityTier = "BASIC"
	TierStandard      QualityTier = "STANDARD"
	TierComprehensive QualityTier = "COMPREHENSIVE"
)

// Evidence is the worker's evidence package for one task. Absent fields
// are treated as empty.
type Evidence struct {
	Description    string   `json:"description"`
	PhotoURLs      []string `json:"photo_urls"`
	HasBeforeAfter bool     `json:"has_before_after"`
}

// Classify maps evidence to a quality tier. Rules are evaluated
// top-down, first match wins:
//
//	COMPREHENSIVE: before/after photos, description > 50 chars, >= 2 photos
//	STANDARD:      at least one photo
//	BASIC:         otherwise
func Classify(ev Evidence) QualityTier {
	if ev.HasBeforeAfter && len(ev.Description) > 50 && len(ev.PhotoURLs) >= 2 {
		return TierComprehensive
	}
	if len(ev.PhotoURLs) >= 1 {
		return TierStandard
	}
	return TierBasic
}
