package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
)

const (
	DefaultTopN      = 25
	DefaultThreshold = 40

	veryHighUrgency = 60
	trendingMin     = 2
	trendingHigh    = 5
)

// Signals is the part of the extractor the aggregator needs.
type Signals interface {
	DetectImminentLaunch(text string) bool
	ExtractLaunchTime(text string) domain.TimeInfo
	ExtractTokens(text string) []string
}

// Result holds the ordered opportunities of one pass plus the raw per-symbol
// mention counts they were derived from.
type Result struct {
	Opportunities []domain.Opportunity
	TokenMentions map[string]int
}

// Aggregator turns ranked content into opportunities.
type Aggregator struct {
	signals   Signals
	threshold int
	now       func() time.Time
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithThreshold sets the minimum urgency for launch alerts.
func WithThreshold(threshold int) Option {
	return func(a *Aggregator) { a.threshold = threshold }
}

// WithClock overrides the detection timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func New(signals Signals, opts ...Option) *Aggregator {
	a := &Aggregator{signals: signals, threshold: DefaultThreshold, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rank sorts by relevance descending, keeping input order for ties, and
// truncates to topN. A non-positive topN keeps everything.
func Rank(items []domain.AnnotatedContent, topN int) []domain.AnnotatedContent {
	ranked := make([]domain.AnnotatedContent, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// Aggregate emits launch opportunities for urgent imminent items and trend
// opportunities for symbols seen in at least two items. Token mentions are
// counted over every item, whatever its urgency.
func (a *Aggregator) Aggregate(items []domain.AnnotatedContent) Result {
	detectedAt := a.now().UTC()
	mentions := make(map[string]int)
	var launches []domain.Opportunity

	for i := range items {
		item := items[i]
		text := strings.ToLower(item.Text)

		for _, token := range a.signals.ExtractTokens(item.Text) {
			mentions[token]++
		}

		if item.UrgencyScore < a.threshold {
			continue
		}
		if !a.signals.DetectImminentLaunch(text) {
			continue
		}

		confidence := domain.ConfidenceHigh
		if item.UrgencyScore > veryHighUrgency {
			confidence = domain.ConfidenceVeryHigh
		}
		launches = append(launches, domain.Opportunity{
			Kind:         domain.KindImminentLaunch,
			Confidence:   confidence,
			Content:      &item,
			UrgencyScore: item.UrgencyScore,
			TimeInfo:     a.signals.ExtractLaunchTime(text),
			DetectedAt:   detectedAt,
		})
	}

	sort.SliceStable(launches, func(i, j int) bool {
		return launches[i].UrgencyScore > launches[j].UrgencyScore
	})

	trends := trending(mentions, detectedAt)

	return Result{
		Opportunities: append(launches, trends...),
		TokenMentions: mentions,
	}
}

func trending(mentions map[string]int, detectedAt time.Time) []domain.Opportunity {
	var trends []domain.Opportunity
	for token, count := range mentions {
		if count < trendingMin {
			continue
		}
		confidence := domain.ConfidenceMedium
		if count >= trendingHigh {
			confidence = domain.ConfidenceHigh
		}
		trends = append(trends, domain.Opportunity{
			Kind:       domain.KindTrendingToken,
			Confidence: confidence,
			Token:      token,
			Mentions:   count,
			DetectedAt: detectedAt,
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Mentions != trends[j].Mentions {
			return trends[i].Mentions > trends[j].Mentions
		}
		return trends[i].Token < trends[j].Token
	})
	return trends
}
