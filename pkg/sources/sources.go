package sources

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/pkg/httpclient"
)

// Source collects normalized content for one poll cycle. cycle counts from 1.
// Implementations never panic on upstream failures; a returned error means
// the whole collection produced nothing usable.
type Source interface {
	ID() string
	Kind() domain.SourceKind
	Collect(ctx context.Context, cycle int) ([]domain.Content, error)
}

// EngagementGate is implemented by sources that require a minimum primary
// engagement counter before an item is considered.
type EngagementGate interface {
	MinEngagement() int
}

// Credentials carries upstream secrets resolved from the environment.
type Credentials struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string

	TwitterBearerToken string
	TwitterAPIKey      string
	TwitterAPISecret   string
}

// Deps are the shared collaborators handed to every builder.
type Deps struct {
	Client      httpclient.Client
	Log         Logger
	Keywords    []string
	Credentials Credentials
	Now         func() time.Time
	Sleep       SleepFunc
	Rand        *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = DefaultHTTPClient()
	}
	d.Log = ensureLogger(d.Log)
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = sleepCtx
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // keyword sampling only
	}
	return d
}

// DefaultHTTPClient returns the resty-backed transport used by source clients.
func DefaultHTTPClient() httpclient.Client { return httpclient.NewRestyClient(15 * time.Second) }

// Builder creates a Source from a config entry.
type Builder func(cfg Config, deps Deps) (Source, error)

// Factory maps source types to builders.
type Factory interface {
	Register(typ string, builder Builder)
	SourceFor(cfg Config, deps Deps) (Source, error)
}

type factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory returns a factory with optional pre-registered builders.
func NewFactory(builders map[string]Builder) Factory {
	f := &factory{builders: make(map[string]Builder)}
	for typ, b := range builders {
		f.Register(typ, b)
	}
	return f
}

func (f *factory) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}
	f.mu.Lock()
	f.builders[typ] = builder
	f.mu.Unlock()
}

func (f *factory) SourceFor(cfg Config, deps Deps) (Source, error) {
	f.mu.RLock()
	builder := f.builders[strings.ToLower(cfg.Type)]
	f.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no source registered for type %q", cfg.Type)
	}
	return builder(cfg, deps.withDefaults())
}

// DefaultFactory wires the known source types.
func DefaultFactory() Factory {
	return NewFactory(map[string]Builder{
		TypeReddit:    newRedditSource,
		TypeTwitter:   newTwitterSource,
		TypeLaunchpad: newLaunchpadSource,
	})
}

// BuildAll instantiates every enabled source in reg.
func BuildAll(f Factory, reg Registry, deps Deps) ([]Source, error) {
	if f == nil {
		f = DefaultFactory()
	}
	if len(reg.Keywords) > 0 && len(deps.Keywords) == 0 {
		deps.Keywords = reg.Keywords
	}

	var out []Source
	for _, cfg := range reg.Enabled() {
		src, err := f.SourceFor(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("build source %s: %w", cfg.ID, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sample picks up to n distinct items from items.
func sample(r *rand.Rand, items []string, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n >= len(items) {
		out := make([]string, len(items))
		copy(out, items)
		return out
	}
	idx := r.Perm(len(items))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}
