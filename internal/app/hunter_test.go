package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/alpha-hunter/internal/aggregator"
	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/internal/health"
	"github.com/samvad-hq/alpha-hunter/internal/pipeline"
	"github.com/samvad-hq/alpha-hunter/internal/storage"
	"github.com/samvad-hq/alpha-hunter/pkg/publishers"
)

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type step struct {
	opps     []domain.Opportunity
	err      error
	panicMsg string
}

type scriptedCycler struct {
	steps  []step
	cycles []int
}

func (s *scriptedCycler) Sources() []string { return []string{"reddit", "twitter"} }

func (s *scriptedCycler) RunCycle(_ context.Context, cycle int) (pipeline.Report, error) {
	s.cycles = append(s.cycles, cycle)
	if cycle > len(s.steps) {
		return pipeline.Report{Cycle: cycle}, nil
	}
	st := s.steps[cycle-1]
	if st.panicMsg != "" {
		panic(st.panicMsg)
	}
	if st.err != nil {
		return pipeline.Report{}, st.err
	}
	return pipeline.Report{Cycle: cycle, Result: aggregator.Result{Opportunities: st.opps}}, nil
}

type fakeNotifier struct {
	events []publishers.Event
	failOn map[string]bool
	closed bool
}

func (f *fakeNotifier) Send(_ context.Context, evt publishers.Event) (bool, error) {
	f.events = append(f.events, evt)
	if f.failOn[evt.OpportunityID] {
		return false, errors.New("telegram down")
	}
	return true, nil
}

func (f *fakeNotifier) Size() int    { return 1 }
func (f *fakeNotifier) Close() error { f.closed = true; return nil }

type sleepRecorder struct {
	slept       []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	if len(r.slept) >= r.cancelAfter {
		r.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

func launch(id string) domain.Opportunity {
	return domain.Opportunity{
		Kind:         domain.KindImminentLaunch,
		Confidence:   domain.ConfidenceHigh,
		UrgencyScore: 55,
		Content: &domain.AnnotatedContent{Content: domain.Content{
			ID:     id,
			Source: domain.SourceReddit,
			Title:  "presale tonight",
			Text:   "presale tonight",
		}},
	}
}

func trend(token string, mentions int) domain.Opportunity {
	return domain.Opportunity{
		Kind:       domain.KindTrendingToken,
		Confidence: domain.ConfidenceMedium,
		Token:      token,
		Mentions:   mentions,
	}
}

func testSettings() Settings {
	return Settings{
		CheckInterval: 300 * time.Second,
		FoundInterval: 120 * time.Second,
		ErrorCooldown: 7 * time.Minute,
		StartupDelay:  10 * time.Second,
		DispatchPause: time.Second,
		StartupNotice: true,
	}
}

func TestHunterNotifiesOnceAndAdaptsInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycler := &scriptedCycler{steps: []step{
		{opps: []domain.Opportunity{launch("reddit_a"), trend("PEPE", 2)}},
		{opps: []domain.Opportunity{launch("reddit_a"), trend("PEPE", 3), trend("WOOF", 2)}},
		{},
	}}
	notifier := &fakeNotifier{failOn: map[string]bool{"IMMINENT_LAUNCH_reddit_a": true}}
	store := storage.NewMemoryStore()
	rec := &sleepRecorder{cancelAfter: 5, cancel: cancel}

	h := New(cycler, notifier, store, nil, testSettings(),
		WithSleep(rec.sleep),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, h.Run(ctx))

	assert.Equal(t, []time.Duration{
		10 * time.Second,
		time.Second,
		120 * time.Second,
		120 * time.Second,
		300 * time.Second,
	}, rec.slept)
	assert.Equal(t, []int{1, 2, 3}, cycler.cycles)

	require.Len(t, notifier.events, 4)
	assert.Equal(t, "NOTICE", notifier.events[0].Kind)
	assert.Contains(t, notifier.events[0].Text, "reddit, twitter")
	assert.Equal(t, "IMMINENT_LAUNCH_reddit_a", notifier.events[1].OpportunityID)
	assert.Equal(t, "TRENDING_TOKEN_PEPE", notifier.events[2].OpportunityID)
	assert.Equal(t, "TRENDING_TOKEN_WOOF", notifier.events[3].OpportunityID)

	assert.True(t, store.HasSeen("IMMINENT_LAUNCH_reddit_a"), "failed deliveries are still marked seen")
	assert.True(t, notifier.closed)
}

func TestHunterCoolsDownAfterErrorsAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycler := &scriptedCycler{steps: []step{
		{err: errors.New("pipeline exploded")},
		{panicMsg: "nil map"},
		{},
	}}
	settings := testSettings()
	settings.StartupNotice = false
	settings.StartupDelay = 0

	state := health.NewState(fixedNow)
	rec := &sleepRecorder{cancelAfter: 4, cancel: cancel}
	notifier := &fakeNotifier{}

	h := New(cycler, notifier, storage.NewMemoryStore(), nil, settings,
		WithSleep(rec.sleep),
		WithHealth(state),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, h.Run(ctx))

	assert.Equal(t, []time.Duration{0, 7 * time.Minute, 7 * time.Minute, 300 * time.Second}, rec.slept)
	assert.Empty(t, notifier.events)

	snap := state.Snapshot()
	assert.Equal(t, 3, snap.Cycles)
	assert.Equal(t, 2, snap.Failures)
}

func TestHunterExitsDuringStartupDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycler := &scriptedCycler{}
	rec := &sleepRecorder{cancelAfter: 1, cancel: cancel}
	notifier := &fakeNotifier{}

	h := New(cycler, notifier, storage.NewMemoryStore(), nil, testSettings(), WithSleep(rec.sleep))
	require.NoError(t, h.Run(ctx))
	assert.Empty(t, cycler.cycles)
	assert.Len(t, notifier.events, 1)
}

func TestNextIntervalJitterBounds(t *testing.T) {
	settings := testSettings()
	settings.Jitter = 120 * time.Second
	h := New(&scriptedCycler{}, &fakeNotifier{}, storage.NewMemoryStore(), nil, settings,
		WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 200; i++ {
		found := h.nextInterval(true)
		assert.GreaterOrEqual(t, found, 120*time.Second)
		assert.LessOrEqual(t, found, 240*time.Second)

		idle := h.nextInterval(false)
		assert.GreaterOrEqual(t, idle, 300*time.Second)
		assert.LessOrEqual(t, idle, 420*time.Second)
	}
}

func TestRunRejectsUninitialized(t *testing.T) {
	var h *Hunter
	assert.Error(t, h.Run(context.Background()))
}
