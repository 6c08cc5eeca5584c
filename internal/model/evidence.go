package model

// Confidence is the four-tier classification of a fact-check score
type Confidence int

const (
	ConfidenceUnverified Confidence = 0 // score < 0.25
	ConfidenceLow        Confidence = 1 // 0.25 <= score < 0.50
	ConfidenceModerate   Confidence = 2 // 0.50 <= score < 0.75
	ConfidenceHigh       Confidence = 3 // score >= 0.75
)

// Tier thresholds. Lower bounds are inclusive.
const (
	HighThreshold     = 0.75
	ModerateThreshold = 0.50
	LowThreshold      = 0.25
)

// ClassifyScore maps a score to its confidence tier after clamping to [0, 1]
func ClassifyScore(score float64) Confidence {
	s := ClampScore(score)
	switch {
	case s >= HighThreshold:
		return ConfidenceHigh
	case s >= ModerateThreshold:
		return ConfidenceModerate
	case s >= LowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceUnverified
	}
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceModerate:
		return "moderate"
	case ConfidenceLow:
		return "low"
	default:
		return "unverified"
	}
}

// Label is the user-facing text for the tier
func (c Confidence) Label() string {
	switch c {
	case ConfidenceHigh:
		return "High confidence"
	case ConfidenceModerate:
		return "Moderate confidence"
	case ConfidenceLow:
		return "Low confidence"
	default:
		return "Unverified"
	}
}

// Marker is the visual marker kind a client renders next to the tier
func (c Confidence) Marker() string {
	switch c {
	case ConfidenceHigh:
		return "check-green"
	case ConfidenceModerate:
		return "check-orange"
	case ConfidenceLow:
		return "alert-yellow"
	default:
		return "x-red"
	}
}

// MarshalText renders the tier by name in JSON
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
