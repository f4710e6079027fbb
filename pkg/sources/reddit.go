package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/pkg/httpclient"
)

const (
	redditAPIBase          = "https://oauth.reddit.com"
	redditAuthBase         = "https://www.reddit.com"
	redditWebBase          = "https://reddit.com"
	redditMaxLimit         = 15
	redditDefaultNewLimit  = 10
	redditDefaultSearchLim = 5
	redditDefaultSample    = 5
	redditDefaultFloor     = 2 * time.Second
	redditDefaultSearchGap = time.Second
	redditDefaultScopeGap  = 2 * time.Second
	redditDefaultMinScore  = 2
)

// RedditOptions configures a Reddit client. Zero values take defaults.
type RedditOptions struct {
	ID           string
	APIBase      string
	AuthBase     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string

	Subreddits   []string
	Keywords     []string
	NewLimit     int
	SearchLimit  int
	SearchSample int
	RequestFloor time.Duration
	SearchDelay  time.Duration
	ScopeDelay   time.Duration
	MinScore     int
}

// Reddit polls subreddits through the OAuth API.
type Reddit struct {
	opts   RedditOptions
	client httpclient.Client
	log    Logger
	limits *RateLimitState
	token  tokenCache
	bans   *banList
	now    func() time.Time
	sleep  SleepFunc
	rand   *rand.Rand
}

// NewReddit builds a Reddit client.
func NewReddit(opts RedditOptions, deps Deps) *Reddit {
	deps = deps.withDefaults()

	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		opts.ID = TypeReddit
	}
	opts.APIBase = strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if opts.APIBase == "" {
		opts.APIBase = redditAPIBase
	}
	opts.AuthBase = strings.TrimRight(strings.TrimSpace(opts.AuthBase), "/")
	if opts.AuthBase == "" {
		opts.AuthBase = redditAuthBase
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "AlphaHunterBot/1.0"
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = deps.Keywords
	}
	opts.NewLimit = intOr(opts.NewLimit, redditDefaultNewLimit)
	opts.SearchLimit = intOr(opts.SearchLimit, redditDefaultSearchLim)
	opts.SearchSample = intOr(opts.SearchSample, redditDefaultSample)
	opts.RequestFloor = durationOr(opts.RequestFloor, redditDefaultFloor)
	opts.SearchDelay = durationOr(opts.SearchDelay, redditDefaultSearchGap)
	opts.ScopeDelay = durationOr(opts.ScopeDelay, redditDefaultScopeGap)
	opts.MinScore = intOr(opts.MinScore, redditDefaultMinScore)

	return &Reddit{
		opts:   opts,
		client: deps.Client,
		log:    deps.Log,
		limits: NewRateLimitState(opts.RequestFloor, deps.Now, deps.Sleep),
		bans:   newBanList(),
		now:    deps.Now,
		sleep:  deps.Sleep,
		rand:   deps.Rand,
	}
}

func newRedditSource(cfg Config, deps Deps) (Source, error) {
	creds := deps.Credentials
	if creds.RedditClientID == "" || creds.RedditClientSecret == "" {
		return nil, errors.New("reddit client id and secret are required")
	}
	return NewReddit(RedditOptions{
		ID:           cfg.ID,
		APIBase:      ConfigString(cfg, "api_base", ""),
		AuthBase:     ConfigString(cfg, "auth_base", ""),
		ClientID:     creds.RedditClientID,
		ClientSecret: creds.RedditClientSecret,
		Username:     creds.RedditUsername,
		Password:     creds.RedditPassword,
		UserAgent:    ConfigString(cfg, "user_agent", creds.RedditUserAgent),
		Subreddits:   cfg.Scopes,
		NewLimit:     cfg.NewLimit,
		SearchLimit:  cfg.SearchLimit,
		SearchSample: cfg.SearchSample,
		RequestFloor: cfg.RequestDelay(),
		SearchDelay:  cfg.SearchDelay(),
		ScopeDelay:   cfg.ScopeDelay(),
		MinScore:     cfg.MinEngagement,
	}, deps), nil
}

func (r *Reddit) ID() string              { return r.opts.ID }
func (r *Reddit) Kind() domain.SourceKind { return domain.SourceReddit }
func (r *Reddit) MinEngagement() int      { return r.opts.MinScore }

// RateLimit exposes the client's quota state.
func (r *Reddit) RateLimit() *RateLimitState { return r.limits }

// Banned reports whether subreddit was found inaccessible.
func (r *Reddit) Banned(subreddit string) bool { return r.bans.banned(subreddit) }

type redditToken struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
	Error       string  `json:"error"`
}

// Authenticate returns a cached bearer token, refreshing it through the
// password grant when absent or within a minute of expiry.
func (r *Reddit) Authenticate(ctx context.Context) (string, error) {
	if tok, ok := r.token.get(r.now()); ok {
		return tok, nil
	}

	resp, err := r.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     r.opts.AuthBase + "/api/v1/access_token",
		Headers: map[string]string{"User-Agent": r.opts.UserAgent},
		Form: url.Values{
			"grant_type": {"password"},
			"username":   {r.opts.Username},
			"password":   {r.opts.Password},
		},
		BasicAuth: &httpclient.BasicAuth{Username: r.opts.ClientID, Password: r.opts.ClientSecret},
	})
	if err != nil {
		return "", fmt.Errorf("%w: reddit token request: %v", ErrAuth, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: reddit token status %d body: %s", ErrAuth, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var tok redditToken
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", fmt.Errorf("%w: decode reddit token: %v", ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: reddit token missing (%s)", ErrAuth, tok.Error)
	}

	r.token.set(tok.AccessToken, r.now(), time.Duration(tok.ExpiresIn*float64(time.Second)))
	r.log.InfoObj("reddit authenticated", "reddit_auth", map[string]any{
		"source_id":  r.opts.ID,
		"expires_in": tok.ExpiresIn,
	})
	return tok.AccessToken, nil
}

// FetchNew lists the newest posts of subreddit.
func (r *Reddit) FetchNew(ctx context.Context, subreddit string, limit int) ([]domain.Content, error) {
	q := url.Values{"limit": {fmt.Sprint(clamp(limit, 1, redditMaxLimit))}}
	return r.listing(ctx, subreddit, fmt.Sprintf("%s/r/%s/new", r.opts.APIBase, url.PathEscape(subreddit)), q)
}

// Search runs a day-scoped newest-first search restricted to subreddit.
func (r *Reddit) Search(ctx context.Context, subreddit, query string, limit int) ([]domain.Content, error) {
	q := url.Values{
		"q":     {fmt.Sprintf("subreddit:%s %s", subreddit, query)},
		"sort":  {"new"},
		"t":     {"day"},
		"type":  {"link"},
		"limit": {fmt.Sprint(clamp(limit, 1, redditMaxLimit))},
	}
	return r.listing(ctx, subreddit, r.opts.APIBase+"/search", q)
}

// Collect walks every subreddit: newest posts, then a random keyword sample.
func (r *Reddit) Collect(ctx context.Context, _ int) ([]domain.Content, error) {
	if _, err := r.Authenticate(ctx); err != nil {
		return nil, err
	}

	var out []domain.Content
	for i, sub := range r.opts.Subreddits {
		if ctx.Err() != nil {
			return out, nil
		}
		if r.bans.banned(sub) {
			continue
		}

		posts, err := r.FetchNew(ctx, sub, r.opts.NewLimit)
		r.logCallError(sub, "", err)
		out = append(out, posts...)

		for _, kw := range sample(r.rand, r.opts.Keywords, r.opts.SearchSample) {
			if r.bans.banned(sub) || ctx.Err() != nil {
				break
			}
			found, err := r.Search(ctx, sub, kw, r.opts.SearchLimit)
			r.logCallError(sub, kw, err)
			out = append(out, found...)
			if err := r.sleep(ctx, r.opts.SearchDelay); err != nil {
				return out, nil
			}
		}

		if i < len(r.opts.Subreddits)-1 {
			if err := r.sleep(ctx, r.opts.ScopeDelay); err != nil {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *Reddit) logCallError(subreddit, query string, err error) {
	if err == nil {
		return
	}
	r.log.WarnObj("reddit request failed", "reddit_error", map[string]any{
		"source_id": r.opts.ID,
		"subreddit": subreddit,
		"query":     query,
		"kind":      ErrorKind(err),
		"error":     err.Error(),
	})
}

func (r *Reddit) listing(ctx context.Context, subreddit, endpoint string, query url.Values) ([]domain.Content, error) {
	if r.bans.banned(subreddit) {
		return nil, fmt.Errorf("%w: r/%s is banned", ErrScopeUnavailable, subreddit)
	}

	token, err := r.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.limits.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	resp, err := r.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Query:  query,
		Headers: map[string]string{
			"Authorization": "bearer " + token,
			"User-Agent":    r.opts.UserAgent,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reddit r/%s: %v", ErrTransient, subreddit, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		reset, ok := parseResetAfter(resp.Header().Get("x-ratelimit-reset"), r.now())
		if !ok {
			reset = r.now().Add(minRateLimitWait)
		}
		until := r.limits.Exhausted(reset)
		return nil, fmt.Errorf("%w: reddit until %s", ErrRateLimited, until.UTC().Format(time.RFC3339))
	case status == http.StatusUnauthorized:
		r.token.clear()
		return nil, fmt.Errorf("%w: reddit token rejected", ErrAuth)
	case unavailable(status):
		r.bans.ban(subreddit)
		r.log.WarnObj("subreddit banned for process lifetime", "reddit_ban", map[string]any{
			"source_id": r.opts.ID,
			"subreddit": subreddit,
			"status":    status,
		})
		return nil, fmt.Errorf("%w: r/%s status %d", ErrScopeUnavailable, subreddit, status)
	case status != http.StatusOK:
		return nil, statusError("reddit", subreddit, status, resp.Body())
	}

	remaining := parseRemaining(resp.Header().Get("x-ratelimit-remaining"))
	r.limits.Observe(remaining)
	if remaining == 0 {
		reset, ok := parseResetAfter(resp.Header().Get("x-ratelimit-reset"), r.now())
		if !ok {
			reset = r.now().Add(minRateLimitWait)
		}
		r.limits.Exhausted(reset)
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("%w: decode reddit listing: %v", ErrTransient, err)
	}
	return listing.contents(subreddit), nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
}

func (l redditListing) contents(scope string) []domain.Content {
	out := make([]domain.Content, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		p := child.Data
		if p.ID == "" || p.Stickied || p.Over18 {
			continue
		}

		link := p.URL
		if p.Permalink != "" {
			link = redditWebBase + p.Permalink
		}
		sub := p.Subreddit
		if sub == "" {
			sub = scope
		}
		var created time.Time
		if p.CreatedUTC > 0 {
			created = time.Unix(int64(p.CreatedUTC), 0).UTC()
		}

		out = append(out, domain.Content{
			ID:        domain.QualifiedID(domain.SourceReddit, p.ID),
			Source:    domain.SourceReddit,
			Scope:     sub,
			Title:     p.Title,
			Body:      p.Selftext,
			Text:      domain.JoinText(p.Title, p.Selftext),
			URL:       link,
			Author:    p.Author,
			CreatedAt: created,
			Engagement: domain.Engagement{
				Score:       p.Score,
				Comments:    p.NumComments,
				UpvoteRatio: p.UpvoteRatio,
			},
		})
	}
	return out
}
