package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/alpha-hunter/internal/aggregator"
	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/internal/logger"
	"github.com/samvad-hq/alpha-hunter/internal/metrics"
	"github.com/samvad-hq/alpha-hunter/internal/scoring"
	"github.com/samvad-hq/alpha-hunter/internal/signals"
	"github.com/samvad-hq/alpha-hunter/internal/storage"
	"github.com/samvad-hq/alpha-hunter/pkg/sources"
)

// Report describes one completed cycle.
type Report struct {
	CycleID   string
	Cycle     int
	Fetched   int
	Fresh     int
	Annotated int
	Ranked    []domain.AnnotatedContent
	Result    aggregator.Result
	Failures  map[string]error
	Elapsed   time.Duration
}

// Service runs the fetch, merge, annotate, rank and aggregate steps of one
// polling cycle.
type Service struct {
	sources    []sources.Source
	store      storage.Store
	extractor  *signals.Extractor
	scorer     *scoring.Scorer
	aggregator *aggregator.Aggregator
	topN       int
	log        logger.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithTopN bounds how many ranked items reach the aggregator.
func WithTopN(n int) Option {
	return func(s *Service) { s.topN = n }
}

// WithMetrics records per-source counters.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the cycle steps. The store is the only shared mutable
// state and is written solely by the merge step.
func NewService(srcs []sources.Source, store storage.Store, extractor *signals.Extractor, scorer *scoring.Scorer, agg *aggregator.Aggregator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		sources:    srcs,
		store:      store,
		extractor:  extractor,
		scorer:     scorer,
		aggregator: agg,
		topN:       aggregator.DefaultTopN,
		log:        logger.Ensure(log),
		metrics:    (*metrics.Collector)(nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the configured source ids.
func (s *Service) Sources() []string {
	ids := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		ids = append(ids, src.ID())
	}
	return ids
}

type batch struct {
	source   sources.Source
	contents []domain.Content
	err      error
}

// RunCycle collects from every source concurrently, then processes the
// joined results on the calling goroutine. Source failures never fail the
// cycle; only cancellation does.
func (s *Service) RunCycle(ctx context.Context, cycle int) (Report, error) {
	if s == nil || s.store == nil || s.extractor == nil || s.scorer == nil || s.aggregator == nil {
		return Report{}, fmt.Errorf("pipeline service is not initialized")
	}

	start := s.now()
	report := Report{
		CycleID:  uuid.NewString(),
		Cycle:    cycle,
		Failures: make(map[string]error),
	}

	batches := s.collect(ctx, cycle)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var annotated []domain.AnnotatedContent
	for _, b := range batches {
		id := b.source.ID()
		if b.err != nil {
			report.Failures[id] = b.err
			s.metrics.SourceFailed(id, sources.ErrorKind(b.err))
			s.log.WarnObj("source collection failed", "source_error", map[string]any{
				"cycle_id":  report.CycleID,
				"source_id": id,
				"kind":      sources.ErrorKind(b.err),
				"error":     b.err.Error(),
			})
		}
		report.Fetched += len(b.contents)
		s.metrics.ContentCollected(id, len(b.contents))

		fresh := s.merge(b.contents)
		report.Fresh += len(fresh)

		minEngagement := 0
		if gate, ok := b.source.(sources.EngagementGate); ok {
			minEngagement = gate.MinEngagement()
		}
		for _, c := range fresh {
			if item, ok := s.annotate(c, minEngagement); ok {
				annotated = append(annotated, item)
			}
		}
	}
	s.metrics.SeenSize(s.store.Len())

	report.Annotated = len(annotated)
	report.Ranked = aggregator.Rank(annotated, s.topN)
	report.Result = s.aggregator.Aggregate(report.Ranked)
	report.Elapsed = s.now().Sub(start)

	for _, opp := range report.Result.Opportunities {
		s.metrics.OpportunityFound(string(opp.Kind))
	}

	s.log.InfoObj("cycle processed", "cycle_meta", map[string]any{
		"cycle_id":      report.CycleID,
		"cycle":         cycle,
		"fetched":       report.Fetched,
		"fresh":         report.Fresh,
		"annotated":     report.Annotated,
		"opportunities": len(report.Result.Opportunities),
		"failed":        len(report.Failures),
		"elapsed_ms":    report.Elapsed.Milliseconds(),
	})
	return report, nil
}

// collect runs every source in its own goroutine. Each task recovers its
// own panic and reports failures in its slot, so one source never cancels
// another.
func (s *Service) collect(ctx context.Context, cycle int) []batch {
	batches := make([]batch, len(s.sources))
	var g errgroup.Group

	for i, src := range s.sources {
		i, src := i, src
		batches[i].source = src
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					batches[i].contents = nil
					batches[i].err = fmt.Errorf("source %s panicked: %v", src.ID(), r)
				}
			}()
			contents, err := src.Collect(ctx, cycle)
			batches[i].contents = contents
			batches[i].err = err
			return nil
		})
	}
	_ = g.Wait()
	return batches
}

// merge drops already-seen ids, including duplicates within the batch, and
// marks the rest seen.
func (s *Service) merge(contents []domain.Content) []domain.Content {
	fresh := make([]domain.Content, 0, len(contents))
	for _, c := range contents {
		if c.ID == "" || s.store.HasSeen(c.ID) {
			continue
		}
		s.store.MarkSeen(c.ID)
		fresh = append(fresh, c)
	}
	return fresh
}

// annotate keeps items with at least one keyword and enough engagement,
// then scores them.
func (s *Service) annotate(c domain.Content, minEngagement int) (domain.AnnotatedContent, bool) {
	keywords := s.extractor.MatchKeywords(c.Text)
	if len(keywords) == 0 {
		return domain.AnnotatedContent{}, false
	}
	if c.Engagement.Score < minEngagement {
		return domain.AnnotatedContent{}, false
	}

	lower := strings.ToLower(c.Text)
	relevance := scoring.Relevance(c, keywords)
	if s.extractor.DetectPresale(lower) {
		relevance++
	}

	return domain.AnnotatedContent{
		Content:        c,
		Keywords:       keywords,
		RelevanceScore: relevance,
		UrgencyScore:   s.scorer.Urgency(c, lower),
	}, true
}

// FailureError joins per-source failures, or returns nil when every source
// succeeded.
func (r Report) FailureError() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for id, err := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", id, err))
	}
	return errors.Join(errs...)
}
