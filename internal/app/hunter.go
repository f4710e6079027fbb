package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/alerts"
	"github.com/samvad-hq/alpha-hunter/internal/config"
	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/internal/health"
	"github.com/samvad-hq/alpha-hunter/internal/logger"
	"github.com/samvad-hq/alpha-hunter/internal/metrics"
	"github.com/samvad-hq/alpha-hunter/internal/pipeline"
	"github.com/samvad-hq/alpha-hunter/internal/storage"
	"github.com/samvad-hq/alpha-hunter/pkg/publishers"
)

// Cycler runs one polling cycle.
type Cycler interface {
	RunCycle(ctx context.Context, cycle int) (pipeline.Report, error)
	Sources() []string
}

// Notifier delivers alert events. Send reports whether any sink accepted.
type Notifier interface {
	Send(ctx context.Context, evt publishers.Event) (bool, error)
	Size() int
	Close() error
}

// Settings are the loop timings.
type Settings struct {
	CheckInterval time.Duration
	FoundInterval time.Duration
	Jitter        time.Duration
	ErrorCooldown time.Duration
	StartupDelay  time.Duration
	DispatchPause time.Duration
	StartupNotice bool
}

// SettingsFromConfig copies the loop timings out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		CheckInterval: cfg.CheckInterval,
		FoundInterval: cfg.FoundInterval,
		Jitter:        cfg.Jitter,
		ErrorCooldown: cfg.ErrorCooldown,
		StartupDelay:  cfg.StartupDelay,
		DispatchPause: cfg.DispatchPause,
		StartupNotice: cfg.StartupNotice,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Hunter is the long-running poll loop. It owns the seen store for
// opportunity ids and every notification decision.
type Hunter struct {
	cycler    Cycler
	notifier  Notifier
	store     storage.Store
	formatter *alerts.Formatter
	settings  Settings
	log       logger.Logger
	metrics   metrics.Recorder
	state     *health.State
	sleep     SleepFunc
	now       func() time.Time
	rand      *rand.Rand
}

// Option customises a Hunter.
type Option func(*Hunter)

func WithMetrics(m metrics.Recorder) Option {
	return func(h *Hunter) {
		if m != nil {
			h.metrics = m
		}
	}
}

func WithHealth(state *health.State) Option {
	return func(h *Hunter) { h.state = state }
}

func WithSleep(sleep SleepFunc) Option {
	return func(h *Hunter) {
		if sleep != nil {
			h.sleep = sleep
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hunter) {
		if now != nil {
			h.now = now
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(h *Hunter) {
		if r != nil {
			h.rand = r
		}
	}
}

// New assembles a Hunter from its collaborators.
func New(cycler Cycler, notifier Notifier, store storage.Store, log logger.Logger, settings Settings, opts ...Option) *Hunter {
	h := &Hunter{
		cycler:   cycler,
		notifier: notifier,
		store:    store,
		settings: settings,
		log:      logger.Ensure(log),
		metrics:  (*metrics.Collector)(nil),
		sleep:    sleepCtx,
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter only
	}
	for _, opt := range opts {
		opt(h)
	}
	h.formatter = alerts.NewFormatter(h.now)
	return h
}

// NewHunter builds the runtime from config files. rec and state may be nil.
func NewHunter(ctx context.Context, cfg *config.Config, log logger.Logger, rec metrics.Recorder, state *health.State) (*Hunter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log = logger.Ensure(log)

	svc, store, err := buildPipeline(cfg, log, rec)
	if err != nil {
		return nil, err
	}

	fanout, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return New(svc, fanout, store, log, SettingsFromConfig(cfg), WithMetrics(rec), WithHealth(state)), nil
}

// Run loops until ctx is cancelled. Cycle failures and panics never stop
// the loop; they trigger the error cooldown instead.
func (h *Hunter) Run(ctx context.Context) error {
	if h == nil || h.cycler == nil || h.notifier == nil || h.store == nil {
		return fmt.Errorf("hunter is not initialized")
	}
	defer h.shutdown()

	h.log.InfoObj("hunter loop starting", "hunter_state", map[string]any{
		"sources":          h.cycler.Sources(),
		"publishers_count": h.notifier.Size(),
		"check_interval":   h.settings.CheckInterval.String(),
		"found_interval":   h.settings.FoundInterval.String(),
	})

	if h.settings.StartupNotice {
		h.announce(ctx)
	}
	if err := h.sleep(ctx, h.settings.StartupDelay); err != nil {
		h.log.InfoObj("hunter loop exiting", "reason", err)
		return nil
	}

	for cycle := 1; ; cycle++ {
		wait := h.tick(ctx, cycle)
		if err := h.sleep(ctx, wait); err != nil {
			h.log.InfoObj("hunter loop exiting", "reason", err)
			return nil
		}
	}
}

// tick runs one cycle and returns how long to wait before the next.
func (h *Hunter) tick(ctx context.Context, cycle int) time.Duration {
	start := h.now()
	report, err := h.runCycle(ctx, cycle)
	elapsed := h.now().Sub(start)

	if ctx.Err() != nil {
		return 0
	}
	if err != nil {
		h.metrics.CycleFinished("error", elapsed)
		h.recordHealth(err)
		h.log.ErrorObj("cycle failed; cooling down", "cycle_error", map[string]any{
			"cycle":    cycle,
			"error":    err.Error(),
			"cooldown": h.settings.ErrorCooldown.String(),
		})
		return h.settings.ErrorCooldown
	}

	h.metrics.CycleFinished("ok", elapsed)
	h.recordHealth(report.FailureError())

	found := len(report.Result.Opportunities) > 0
	wait := h.nextInterval(found)
	h.log.InfoObj("cycle completed", "cycle_meta", map[string]any{
		"cycle":         cycle,
		"cycle_id":      report.CycleID,
		"opportunities": len(report.Result.Opportunities),
		"elapsed_ms":    elapsed.Milliseconds(),
		"next_in":       wait.String(),
	})
	return wait
}

func (h *Hunter) runCycle(ctx context.Context, cycle int) (report pipeline.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %d panicked: %v", cycle, r)
		}
	}()

	report, err = h.cycler.RunCycle(ctx, cycle)
	if err != nil {
		return report, err
	}
	h.notify(ctx, report.Result.Opportunities)
	return report, nil
}

// notify sends every opportunity not alerted before. An opportunity is
// marked seen whether or not delivery succeeded.
func (h *Hunter) notify(ctx context.Context, opps []domain.Opportunity) {
	dispatched := 0
	for _, opp := range opps {
		id := opp.ID()
		if h.store.HasSeen(id) {
			continue
		}
		if dispatched > 0 {
			if err := h.sleep(ctx, h.settings.DispatchPause); err != nil {
				return
			}
		}

		evt := publishers.NewEvent(opp, h.formatter.Format(opp))
		ok, err := h.notifier.Send(ctx, evt)
		h.store.MarkSeen(id)
		dispatched++

		if !ok {
			h.metrics.NotificationSent("failed")
			fields := map[string]any{"opportunity_id": id, "event_id": evt.ID}
			if err != nil {
				fields["error"] = err.Error()
			}
			h.log.WarnObj("opportunity alert not delivered", "alert_error", fields)
			continue
		}

		h.metrics.NotificationSent("sent")
		h.log.InfoObj("opportunity alerted", "alert_meta", map[string]any{
			"opportunity_id": id,
			"confidence":     opp.Confidence,
			"event_id":       evt.ID,
		})
		if err != nil {
			h.log.WarnObj("some publishers failed", "alert_error", map[string]any{
				"opportunity_id": id,
				"error":          err.Error(),
			})
		}
	}
	h.metrics.SeenSize(h.store.Len())
}

func (h *Hunter) announce(ctx context.Context) {
	text := h.formatter.StartupNotice(h.cycler.Sources())
	ok, err := h.notifier.Send(ctx, publishers.NewNotice(text))
	if !ok {
		h.log.WarnObj("startup notice not delivered", "error", err)
	}
}

// nextInterval picks the base wait for the outcome and adds uniform jitter
// in [0, Jitter].
func (h *Hunter) nextInterval(found bool) time.Duration {
	wait := h.settings.CheckInterval
	if found {
		wait = h.settings.FoundInterval
	}
	if h.settings.Jitter > 0 {
		wait += time.Duration(h.rand.Int63n(int64(h.settings.Jitter) + 1))
	}
	return wait
}

func (h *Hunter) recordHealth(err error) {
	if h.state != nil {
		h.state.RecordCycle(h.now(), err)
	}
}

func (h *Hunter) shutdown() {
	if err := h.notifier.Close(); err != nil {
		h.log.ErrorObj("publishers close failed", "error", err)
	}
	if err := h.store.Close(); err != nil {
		h.log.ErrorObj("storage close failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
