package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/samvad-hq/alpha-hunter/internal/aggregator"
	"github.com/samvad-hq/alpha-hunter/internal/config"
	"github.com/samvad-hq/alpha-hunter/internal/logger"
	"github.com/samvad-hq/alpha-hunter/internal/metrics"
	"github.com/samvad-hq/alpha-hunter/internal/pipeline"
	"github.com/samvad-hq/alpha-hunter/internal/scoring"
	"github.com/samvad-hq/alpha-hunter/internal/signals"
	"github.com/samvad-hq/alpha-hunter/internal/storage"
	"github.com/samvad-hq/alpha-hunter/pkg/publishers"
	"github.com/samvad-hq/alpha-hunter/pkg/sources"
)

// Scanner runs a single cycle without notifying anyone.
type Scanner struct {
	pipeline *pipeline.Service
	store    storage.Store
	log      logger.Logger
}

// NewScanner builds the cycle pipeline from config files.
func NewScanner(cfg *config.Config, log logger.Logger) (*Scanner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	svc, store, err := buildPipeline(cfg, log, nil)
	if err != nil {
		return nil, err
	}
	return &Scanner{pipeline: svc, store: store, log: log}, nil
}

// Scan runs one cycle and releases the store.
func (s *Scanner) Scan(ctx context.Context) (pipeline.Report, error) {
	if s == nil || s.pipeline == nil {
		return pipeline.Report{}, fmt.Errorf("scanner is not initialized")
	}
	defer func() {
		if err := s.store.Close(); err != nil {
			s.log.ErrorObj("storage close failed", "error", err)
		}
	}()
	return s.pipeline.RunCycle(ctx, 1)
}

// buildPipeline loads the sources registry and wires the cycle steps around
// a fresh seen store.
func buildPipeline(cfg *config.Config, log logger.Logger, rec metrics.Recorder) (*pipeline.Service, storage.Store, error) {
	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load sources registry: %w", err)
	}

	enabled := sourceReg.Enabled()
	summaries := make([]map[string]any, 0, len(enabled))
	for _, src := range enabled {
		summaries = append(summaries, map[string]any{
			"id":     src.ID,
			"type":   src.Type,
			"scopes": len(src.Scopes),
		})
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count":    len(summaries),
		"sources":  summaries,
		"keywords": len(sourceReg.Keywords),
	})

	srcs, err := sources.BuildAll(sources.DefaultFactory(), sourceReg, sources.Deps{
		Log:         log,
		Keywords:    sourceReg.Keywords,
		Credentials: credentialsFrom(cfg),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build sources: %w", err)
	}
	if len(srcs) == 0 {
		return nil, nil, fmt.Errorf("no sources enabled in %s", cfg.SourcesFile)
	}

	store, err := storage.NewStore(cfg.StorageType, storage.Options{
		Capacity: cfg.SeenCapacity,
		TTL:      cfg.SeenTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":        cfg.StorageType,
		"capacity":    cfg.SeenCapacity,
		"ttl_seconds": int(cfg.SeenTTL.Seconds()),
	})

	extractor := signals.NewExtractor(sourceReg.Keywords)
	svc := pipeline.NewService(
		srcs,
		store,
		extractor,
		scoring.NewScorer(extractor, nil),
		aggregator.New(extractor, aggregator.WithThreshold(cfg.UrgencyThreshold)),
		log,
		pipeline.WithTopN(cfg.TopN),
		pipeline.WithMetrics(rec),
	)
	return svc, store, nil
}

// buildNotifier loads the publishers registry. Without enabled entries it
// falls back to a telegram sink from the environment, or to the log.
func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	log = logger.Ensure(log)
	var enabled []publishers.PublisherConfig

	reg, err := publishers.LoadRegistry(cfg.PublishersFile)
	switch {
	case err == nil:
		enabled = reg.Enabled()
	case errors.Is(err, fs.ErrNotExist):
		log.WarnObj("publishers file not found", "publishers_file", cfg.PublishersFile)
	default:
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	if len(enabled) == 0 {
		if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
			enabled = append(enabled, publishers.NewTelegramConfig("telegram-env", cfg.TelegramToken, cfg.TelegramChatID))
		} else {
			log.WarnObj("no publishers configured; alerts go to the log", "publishers_file", cfg.PublishersFile)
			enabled = append(enabled, publishers.PublisherConfig{ID: "log", Type: publishers.TypeLog})
		}
	}

	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

func credentialsFrom(cfg *config.Config) sources.Credentials {
	return sources.Credentials{
		RedditClientID:     cfg.RedditClientID,
		RedditClientSecret: cfg.RedditClientSecret,
		RedditUsername:     cfg.RedditUsername,
		RedditPassword:     cfg.RedditPassword,
		RedditUserAgent:    cfg.RedditUserAgent,
		TwitterBearerToken: cfg.TwitterBearerToken,
		TwitterAPIKey:      cfg.TwitterAPIKey,
		TwitterAPISecret:   cfg.TwitterAPISecret,
	}
}
