package scoring

import (
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
)

// Weights normalize engagement counters per source. Relevance adds
// Score/ScoreDivisor and Secondary/SecondaryDivisor, where Secondary is
// comments on Reddit and retweets on Twitter.
type Weights struct {
	ScoreDivisor     float64
	SecondaryDivisor float64
	secondary        func(domain.Engagement) int
}

// Stable per-source constants.
var (
	RedditWeights = Weights{
		ScoreDivisor:     50,
		SecondaryDivisor: 20,
		secondary:        func(e domain.Engagement) int { return e.Comments },
	}
	TwitterWeights = Weights{
		ScoreDivisor:     100,
		SecondaryDivisor: 50,
		secondary:        func(e domain.Engagement) int { return e.Shares },
	}
)

// Urgency increments.
const (
	ImminentBonus     = 50
	WithinOneHour     = 30
	WithinThreeHours  = 20
	WithinSixHours    = 10
	SpecificTimeBonus = 15
	FreshOneHour      = 25
	FreshThreeHours   = 15
)

// Detector is the slice of the signal extractor the scorer depends on.
type Detector interface {
	DetectImminentLaunch(text string) bool
	ExtractLaunchTime(text string) domain.TimeInfo
}

// Scorer computes relevance and urgency.
type Scorer struct {
	detector Detector
	now      func() time.Time
}

// NewScorer builds a scorer; a nil clock means time.Now.
func NewScorer(detector Detector, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{detector: detector, now: now}
}

// Relevance is keyword density plus normalized engagement.
func Relevance(content domain.Content, keywords []string) float64 {
	score := float64(len(keywords))
	w, ok := weightsFor(content.Source)
	if !ok {
		return score
	}
	score += float64(content.Engagement.Score) / w.ScoreDivisor
	score += float64(w.secondary(content.Engagement)) / w.SecondaryDivisor
	return score
}

func weightsFor(source domain.SourceKind) (Weights, bool) {
	switch source {
	case domain.SourceReddit:
		return RedditWeights, true
	case domain.SourceTwitter:
		return TwitterWeights, true
	default:
		return Weights{}, false
	}
}

// Urgency scores launch-timing proximity plus post freshness. The result is
// never negative and has no upper bound.
func (s *Scorer) Urgency(content domain.Content, text string) int {
	score := 0

	if s.detector.DetectImminentLaunch(text) {
		score += ImminentBonus

		info := s.detector.ExtractLaunchTime(text)
		if info.EstimatedHours != nil {
			switch h := *info.EstimatedHours; {
			case h <= 1:
				score += WithinOneHour
			case h <= 3:
				score += WithinThreeHours
			case h <= 6:
				score += WithinSixHours
			}
		}
		if info.SpecificTime != "" {
			score += SpecificTimeBonus
		}
	}

	switch age := s.age(content); {
	case age <= time.Hour:
		score += FreshOneHour
	case age <= 3*time.Hour:
		score += FreshThreeHours
	}

	return score
}

// age treats an unknown creation time as brand new.
func (s *Scorer) age(content domain.Content) time.Duration {
	if content.CreatedAt.IsZero() {
		return 0
	}
	return s.now().Sub(content.CreatedAt)
}
