package media

// Classification is the per-source decision of what to do with a file.
type Classification int

const (
	// Skip leaves the file alone and never spawns a process.
	Skip Classification = iota
	// Remux converts the enhancement metadata and repackages without re-encoding.
	Remux
	// FallbackConvert strips (or re-encodes past) metadata that cannot be remuxed.
	FallbackConvert
)

// TargetProfile is the Dolby Vision profile dovetail acts on.
const TargetProfile = 8

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case Skip:
		return "skip"
	case Remux:
		return "remux"
	case FallbackConvert:
		return "fallback"
	default:
		return "unknown"
	}
}

// Classify maps a source's Dolby Vision metadata to a Classification.
// It is a pure function of the source.
func Classify(source MediaSource) Classification {
	if source.Container != ContainerMatroska {
		return Skip
	}

	dovi := source.DoVi()
	if dovi == nil || dovi.Profile != TargetProfile {
		return Skip
	}

	if isOne(dovi.BLCompatibilityID) && isOne(dovi.BLPresentFlag) {
		return Remux
	}
	return FallbackConvert
}

// SourceDecision pairs a source with its classification.
type SourceDecision struct {
	Source         MediaSource
	Classification Classification
}

// ClassifyItem classifies every source of an item. Items whose container
// is not Matroska or that have no video are returned as all-skip.
func ClassifyItem(item MediaItem) []SourceDecision {
	decisions := make([]SourceDecision, 0, len(item.Sources))
	for _, src := range item.Sources {
		c := Skip
		if src.HasVideo() {
			c = Classify(src)
		}
		decisions = append(decisions, SourceDecision{Source: src, Classification: c})
	}
	return decisions
}

// Eligible reports whether the item should be handed to classification at all.
func Eligible(item MediaItem) bool {
	if item.Container != "" && item.Container != ContainerMatroska {
		return false
	}
	for _, src := range item.Sources {
		if src.Container == ContainerMatroska && src.HasVideo() {
			return true
		}
	}
	return false
}

func isOne(v *int) bool {
	return v != nil && *v == 1
}
