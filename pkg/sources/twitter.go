package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/pkg/httpclient"
)

const (
	twitterAPIBase         = "https://api.twitter.com"
	twitterWebBase         = "https://twitter.com"
	twitterMinLimit        = 10
	twitterMaxLimit        = 20
	twitterDefaultFloor    = 3 * time.Second
	twitterDefaultQueryGap = 5 * time.Second
	twitterDefaultEveryN   = 2
	twitterDefaultMinLikes = 3
	twitterDefaultReset    = 15 * time.Minute
	twitterMinInteractions = 2

	// TwitterContextSuffix narrows every query to original English crypto chatter.
	TwitterContextSuffix = "(crypto OR cryptocurrency OR blockchain OR defi OR nft) -is:retweet lang:en"
)

// DefaultTwitterQueries are the keyword groups searched when none are configured.
var DefaultTwitterQueries = []string{
	"presale OR launch OR token OR airdrop",
	"whitelist OR ido OR gem OR moonshot",
	"memecoin OR dogcoin OR catcoin",
	"stealth launch OR fair launch",
}

// TwitterOptions configures a Twitter client. Zero values take defaults.
type TwitterOptions struct {
	ID          string
	APIBase     string
	BearerToken string
	APIKey      string
	APISecret   string

	Queries      []string
	Limit        int
	RequestFloor time.Duration
	QueryDelay   time.Duration
	EveryN       int
	MinLikes     int
}

// Twitter searches recent tweets for keyword groups.
type Twitter struct {
	opts   TwitterOptions
	client httpclient.Client
	log    Logger
	limits *RateLimitState
	token  tokenCache
	bans   *banList
	now    func() time.Time
	sleep  SleepFunc
}

// NewTwitter builds a Twitter client.
func NewTwitter(opts TwitterOptions, deps Deps) *Twitter {
	deps = deps.withDefaults()

	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		opts.ID = TypeTwitter
	}
	opts.APIBase = strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if opts.APIBase == "" {
		opts.APIBase = twitterAPIBase
	}
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultTwitterQueries
	}
	opts.Limit = clamp(opts.Limit, twitterMinLimit, twitterMaxLimit)
	opts.RequestFloor = durationOr(opts.RequestFloor, twitterDefaultFloor)
	opts.QueryDelay = durationOr(opts.QueryDelay, twitterDefaultQueryGap)
	opts.EveryN = intOr(opts.EveryN, twitterDefaultEveryN)
	opts.MinLikes = intOr(opts.MinLikes, twitterDefaultMinLikes)

	return &Twitter{
		opts:   opts,
		client: deps.Client,
		log:    deps.Log,
		limits: NewRateLimitState(opts.RequestFloor, deps.Now, deps.Sleep),
		bans:   newBanList(),
		now:    deps.Now,
		sleep:  deps.Sleep,
	}
}

func newTwitterSource(cfg Config, deps Deps) (Source, error) {
	creds := deps.Credentials
	if creds.TwitterBearerToken == "" && (creds.TwitterAPIKey == "" || creds.TwitterAPISecret == "") {
		return nil, fmt.Errorf("twitter bearer token or api key/secret are required")
	}
	return NewTwitter(TwitterOptions{
		ID:           cfg.ID,
		APIBase:      ConfigString(cfg, "api_base", ""),
		BearerToken:  creds.TwitterBearerToken,
		APIKey:       creds.TwitterAPIKey,
		APISecret:    creds.TwitterAPISecret,
		Queries:      cfg.Scopes,
		Limit:        cfg.SearchLimit,
		RequestFloor: cfg.RequestDelay(),
		QueryDelay:   cfg.SearchDelay(),
		EveryN:       cfg.EveryNCycles,
		MinLikes:     cfg.MinEngagement,
	}, deps), nil
}

func (t *Twitter) ID() string              { return t.opts.ID }
func (t *Twitter) Kind() domain.SourceKind { return domain.SourceTwitter }
func (t *Twitter) MinEngagement() int      { return t.opts.MinLikes }

// RateLimit exposes the client's quota state.
func (t *Twitter) RateLimit() *RateLimitState { return t.limits }

// Banned reports whether query was rejected as inaccessible.
func (t *Twitter) Banned(query string) bool { return t.bans.banned(query) }

type twitterToken struct {
	TokenType   string  `json:"token_type"`
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// Authenticate returns the static bearer token when configured, otherwise an
// app-only token from the client-credentials exchange.
func (t *Twitter) Authenticate(ctx context.Context) (string, error) {
	if t.opts.BearerToken != "" {
		return t.opts.BearerToken, nil
	}
	if tok, ok := t.token.get(t.now()); ok {
		return tok, nil
	}

	resp, err := t.client.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		URL:       t.opts.APIBase + "/oauth2/token",
		Form:      url.Values{"grant_type": {"client_credentials"}},
		BasicAuth: &httpclient.BasicAuth{Username: t.opts.APIKey, Password: t.opts.APISecret},
	})
	if err != nil {
		return "", fmt.Errorf("%w: twitter token request: %v", ErrAuth, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: twitter token status %d body: %s", ErrAuth, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var tok twitterToken
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", fmt.Errorf("%w: decode twitter token: %v", ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: twitter token missing", ErrAuth)
	}

	t.token.set(tok.AccessToken, t.now(), time.Duration(tok.ExpiresIn*float64(time.Second)))
	return tok.AccessToken, nil
}

// Search queries recent tweets. limit is clamped to the API's accepted range.
func (t *Twitter) Search(ctx context.Context, scope, query string, limit int) ([]domain.Content, error) {
	if t.bans.banned(scope) {
		return nil, fmt.Errorf("%w: twitter query %q is banned", ErrScopeUnavailable, scope)
	}

	token, err := t.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.limits.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	resp, err := t.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    t.opts.APIBase + "/2/tweets/search/recent",
		Query: url.Values{
			"query":        {fmt.Sprintf("(%s) %s", query, TwitterContextSuffix)},
			"max_results":  {fmt.Sprint(clamp(limit, twitterMinLimit, twitterMaxLimit))},
			"tweet.fields": {"created_at,public_metrics,author_id"},
			"expansions":   {"author_id"},
			"user.fields":  {"username"},
		},
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: twitter %q: %v", ErrTransient, scope, err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		reset, ok := parseResetEpoch(resp.Header().Get("x-rate-limit-reset"))
		if !ok {
			reset = t.now().Add(twitterDefaultReset)
		}
		until := t.limits.Exhausted(reset)
		t.log.WarnObj("twitter rate limited", "twitter_rate_limit", map[string]any{
			"source_id": t.opts.ID,
			"until":     until.UTC().Format(time.RFC3339),
		})
		return nil, fmt.Errorf("%w: twitter until %s", ErrRateLimited, until.UTC().Format(time.RFC3339))
	case status == http.StatusUnauthorized:
		t.token.clear()
		return nil, fmt.Errorf("%w: twitter token rejected", ErrAuth)
	case unavailable(status):
		t.bans.ban(scope)
		return nil, fmt.Errorf("%w: twitter query %q status %d", ErrScopeUnavailable, scope, status)
	case status != http.StatusOK:
		return nil, statusError("twitter", scope, status, resp.Body())
	}

	remaining := parseRemaining(resp.Header().Get("x-rate-limit-remaining"))
	t.limits.Observe(remaining)
	if remaining == 0 {
		reset, ok := parseResetEpoch(resp.Header().Get("x-rate-limit-reset"))
		if !ok {
			reset = t.now().Add(twitterDefaultReset)
		}
		t.limits.Exhausted(reset)
	}

	var result twitterSearch
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decode twitter search: %v", ErrTransient, err)
	}
	return result.contents(scope), nil
}

// FetchNew searches with the scope itself as the query.
func (t *Twitter) FetchNew(ctx context.Context, scope string, limit int) ([]domain.Content, error) {
	return t.Search(ctx, scope, scope, limit)
}

// Collect searches every query group, but only on every EveryN-th cycle
// starting with the first.
func (t *Twitter) Collect(ctx context.Context, cycle int) ([]domain.Content, error) {
	if !t.due(cycle) {
		t.log.DebugObj("twitter collection skipped this cycle", "twitter_skip", map[string]any{
			"source_id": t.opts.ID,
			"cycle":     cycle,
			"every_n":   t.opts.EveryN,
		})
		return nil, nil
	}
	if _, err := t.Authenticate(ctx); err != nil {
		return nil, err
	}

	var out []domain.Content
	for i, q := range t.opts.Queries {
		if ctx.Err() != nil {
			break
		}
		if t.bans.banned(q) {
			continue
		}
		tweets, err := t.FetchNew(ctx, q, t.opts.Limit)
		if err != nil {
			t.log.WarnObj("twitter request failed", "twitter_error", map[string]any{
				"source_id": t.opts.ID,
				"query":     q,
				"kind":      ErrorKind(err),
				"error":     err.Error(),
			})
		}
		out = append(out, tweets...)

		if i < len(t.opts.Queries)-1 {
			if err := t.sleep(ctx, t.opts.QueryDelay); err != nil {
				break
			}
		}
	}
	return out, nil
}

func (t *Twitter) due(cycle int) bool {
	if t.opts.EveryN <= 1 || cycle <= 0 {
		return true
	}
	return (cycle-1)%t.opts.EveryN == 0
}

type twitterSearch struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			LikeCount    int `json:"like_count"`
			QuoteCount   int `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

func (s twitterSearch) contents(scope string) []domain.Content {
	users := make(map[string]string, len(s.Includes.Users))
	for _, u := range s.Includes.Users {
		users[u.ID] = u.Username
	}

	out := make([]domain.Content, 0, len(s.Data))
	for _, tw := range s.Data {
		m := tw.PublicMetrics
		if tw.ID == "" || m.LikeCount+m.RetweetCount < twitterMinInteractions {
			continue
		}

		username := users[tw.AuthorID]
		link := fmt.Sprintf("%s/i/web/status/%s", twitterWebBase, tw.ID)
		if username != "" {
			link = fmt.Sprintf("%s/%s/status/%s", twitterWebBase, username, tw.ID)
		}

		out = append(out, domain.Content{
			ID:        domain.QualifiedID(domain.SourceTwitter, tw.ID),
			Source:    domain.SourceTwitter,
			Scope:     scope,
			Text:      tw.Text,
			URL:       link,
			Author:    username,
			CreatedAt: parseTweetTime(tw.CreatedAt),
			Engagement: domain.Engagement{
				Score:    m.LikeCount,
				Comments: m.ReplyCount,
				Shares:   m.RetweetCount,
			},
		})
	}
	return out
}

// parseTweetTime leaves the zero time for unparsable timestamps.
func parseTweetTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
