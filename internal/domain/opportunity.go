package domain

import "time"

// OpportunityKind discriminates the opportunity variants.
type OpportunityKind string

const (
	KindImminentLaunch OpportunityKind = "IMMINENT_LAUNCH"
	KindTrendingToken  OpportunityKind = "TRENDING_TOKEN"
)

// Confidence is a coarse tier attached to every opportunity.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "VERY_HIGH"
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceMedium   Confidence = "MEDIUM"
)

// TimeInfo holds launch timing hints pulled out of free text. At most one of
// EstimatedHours and EstimatedMinutes is set.
type TimeInfo struct {
	EstimatedHours   *int   `json:"estimated_hours,omitempty"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`
	SpecificTime     string `json:"specific_time,omitempty"`
}

// IsEmpty reports whether no timing hint was found.
func (t TimeInfo) IsEmpty() bool {
	return t.EstimatedHours == nil && t.EstimatedMinutes == nil && t.SpecificTime == ""
}

// Opportunity is a decision-ready signal. Launch fields are populated for
// KindImminentLaunch, Token/Mentions for KindTrendingToken.
type Opportunity struct {
	Kind       OpportunityKind `json:"type"`
	Confidence Confidence      `json:"confidence"`

	Content      *AnnotatedContent `json:"content,omitempty"`
	UrgencyScore int               `json:"urgency_score,omitempty"`
	TimeInfo     TimeInfo          `json:"time_info"`

	Token    string `json:"token,omitempty"`
	Mentions int    `json:"mentions,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// ID is the stable deduplication key: kind + "_" + discriminant.
func (o Opportunity) ID() string {
	switch o.Kind {
	case KindTrendingToken:
		return string(o.Kind) + "_" + o.Token
	default:
		if o.Content == nil {
			return string(o.Kind) + "_"
		}
		return string(o.Kind) + "_" + o.Content.ID
	}
}

// SourceLabel names where the opportunity came from.
func (o Opportunity) SourceLabel() string {
	if o.Kind == KindTrendingToken || o.Content == nil {
		return "multiple"
	}
	return string(o.Content.Source)
}
