package identification

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

const (
	HighThreshold   = 80
	MediumThreshold = 60
)

// Classify maps a confidence percentage to its tier.
func Classify(confidence int) Tier {
	switch {
	case confidence >= HighThreshold:
		return TierHigh
	case confidence >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

const (
	CaveatText     = "This identification may not be accurate. Compare the identifying features with the breed description before relying on it."
	RetakeText     = "Consider taking another photo with better lighting or a different angle for more accurate results."
	caveatTitleMed = "Medium confidence result"
	caveatTitleLow = "Low confidence result"
	accuracyHigh   = "High accuracy"
	accuracyMedium = "Medium accuracy"
	accuracyLow    = "Low accuracy"
)

// Presentation is how a tier is shown to the user.
type Presentation struct {
	Severity        Severity `json:"severity"`
	AccuracyLabel   string   `json:"accuracy_label"`
	CaveatTitle     string   `json:"caveat_title,omitempty"`
	Caveat          string   `json:"caveat,omitempty"`
	RetakeSuggested bool     `json:"retake_suggested"`
	Retake          string   `json:"retake,omitempty"`
}

func (t Tier) Presentation() Presentation {
	switch t {
	case TierHigh:
		return Presentation{
			Severity:      SeveritySuccess,
			AccuracyLabel: accuracyHigh,
		}
	case TierMedium:
		return Presentation{
			Severity:      SeverityWarning,
			AccuracyLabel: accuracyMedium,
			CaveatTitle:   caveatTitleMed,
			Caveat:        CaveatText,
		}
	default:
		return Presentation{
			Severity:        SeverityWarning,
			AccuracyLabel:   accuracyLow,
			CaveatTitle:     caveatTitleLow,
			Caveat:          CaveatText,
			RetakeSuggested: true,
			Retake:          RetakeText,
		}
	}
}
