package sources

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/pkg/httpclient"
)

// Launchpad page formats.
const (
	FormatFeed = "feed"
	FormatHTML = "html"

	maxPageBytes     = 1 << 20 // 1 MiB
	maxPageTextRunes = 2000
	launchpadFloor   = time.Second
)

// LaunchpadOptions configures the launchpad watcher.
type LaunchpadOptions struct {
	ID           string
	Pages        []string
	Format       string
	Selector     string
	Headers      map[string]string
	RequestFloor time.Duration
}

// Launchpad scans launchpad listing pages or their feeds.
type Launchpad struct {
	opts   LaunchpadOptions
	client httpclient.Client
	log    Logger
	limits *RateLimitState
	bans   *banList
	strip  *bluemonday.Policy
	feeds  *gofeed.Parser
}

// NewLaunchpad builds a launchpad watcher.
func NewLaunchpad(opts LaunchpadOptions, deps Deps) *Launchpad {
	deps = deps.withDefaults()

	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		opts.ID = TypeLaunchpad
	}
	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	if opts.Format == "" {
		opts.Format = FormatHTML
	}
	opts.Selector = strings.TrimSpace(opts.Selector)
	opts.RequestFloor = durationOr(opts.RequestFloor, launchpadFloor)

	return &Launchpad{
		opts:   opts,
		client: deps.Client,
		log:    deps.Log,
		limits: NewRateLimitState(opts.RequestFloor, deps.Now, deps.Sleep),
		bans:   newBanList(),
		strip:  bluemonday.StrictPolicy(),
		feeds:  gofeed.NewParser(),
	}
}

func newLaunchpadSource(cfg Config, deps Deps) (Source, error) {
	format := ConfigString(cfg, "format", FormatHTML)
	if format != FormatHTML && format != FormatFeed {
		return nil, fmt.Errorf("launchpad format %q is not supported", format)
	}
	headers := map[string]string{}
	if ua := ConfigString(cfg, "user_agent", ""); ua != "" {
		headers["User-Agent"] = ua
	}
	if accept := ConfigString(cfg, "accept", ""); accept != "" {
		headers["Accept"] = accept
	}
	return NewLaunchpad(LaunchpadOptions{
		ID:           cfg.ID,
		Pages:        cfg.Scopes,
		Format:       format,
		Selector:     ConfigString(cfg, "selector", ""),
		Headers:      headers,
		RequestFloor: cfg.RequestDelay(),
	}, deps), nil
}

func (l *Launchpad) ID() string              { return l.opts.ID }
func (l *Launchpad) Kind() domain.SourceKind { return domain.SourceLaunchpad }

// Collect fetches every configured page once.
func (l *Launchpad) Collect(ctx context.Context, _ int) ([]domain.Content, error) {
	var out []domain.Content
	for _, page := range l.opts.Pages {
		if ctx.Err() != nil {
			break
		}
		if l.bans.banned(page) {
			continue
		}
		items, err := l.FetchPage(ctx, page)
		if err != nil {
			l.log.WarnObj("launchpad fetch failed", "launchpad_error", map[string]any{
				"source_id": l.opts.ID,
				"page":      page,
				"kind":      ErrorKind(err),
				"error":     err.Error(),
			})
			continue
		}
		out = append(out, items...)
	}
	return out, nil
}

// FetchPage downloads page and parses it according to the configured format.
func (l *Launchpad) FetchPage(ctx context.Context, page string) ([]domain.Content, error) {
	if err := l.limits.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	resp, err := l.client.Get(ctx, page, l.opts.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: launchpad %s: %v", ErrTransient, page, err)
	}

	status := resp.StatusCode()
	switch {
	case unavailable(status):
		l.bans.ban(page)
		return nil, fmt.Errorf("%w: launchpad %s status %d", ErrScopeUnavailable, page, status)
	case status != http.StatusOK:
		return nil, statusError("launchpad", page, status, resp.Body())
	}

	body := resp.Body()
	if len(body) > maxPageBytes {
		body = body[:maxPageBytes]
	}

	if l.opts.Format == FormatFeed {
		return l.parseFeed(page, body)
	}
	return l.parseHTML(page, body)
}

func (l *Launchpad) parseFeed(page string, body []byte) ([]domain.Content, error) {
	feed, err := l.feeds.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed %s: %v", ErrTransient, page, err)
	}

	scope := hostOf(page)
	out := make([]domain.Content, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := l.plain(item.Title)
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		desc = l.plain(desc)
		if title == "" && desc == "" {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = page
		}
		var created time.Time
		switch {
		case item.PublishedParsed != nil:
			created = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			created = item.UpdatedParsed.UTC()
		}
		var author string
		if item.Author != nil {
			author = item.Author.Name
		}

		key := item.GUID
		if key == "" {
			key = link + "|" + title
		}

		out = append(out, domain.Content{
			ID:        domain.QualifiedID(domain.SourceLaunchpad, hashKey(key)),
			Source:    domain.SourceLaunchpad,
			Scope:     scope,
			Title:     title,
			Body:      desc,
			Text:      domain.JoinText(title, desc),
			URL:       link,
			Author:    author,
			CreatedAt: created,
		})
	}
	return out, nil
}

func (l *Launchpad) parseHTML(page string, body []byte) ([]domain.Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html %s: %v", ErrTransient, page, err)
	}
	doc.Find("script, style, noscript").Remove()

	scope := hostOf(page)

	if l.opts.Selector == "" {
		title := collapse(doc.Find("title").First().Text())
		text := truncateRunes(collapse(doc.Find("body").Text()), maxPageTextRunes)
		if title == "" && text == "" {
			return nil, nil
		}
		return []domain.Content{{
			ID:     domain.QualifiedID(domain.SourceLaunchpad, hashKey(page+"|"+text)),
			Source: domain.SourceLaunchpad,
			Scope:  scope,
			Title:  title,
			Body:   text,
			Text:   domain.JoinText(title, text),
			URL:    page,
		}}, nil
	}

	var out []domain.Content
	doc.Find(l.opts.Selector).Each(func(_ int, sel *goquery.Selection) {
		text := truncateRunes(collapse(sel.Text()), maxPageTextRunes)
		if text == "" {
			return
		}
		link := page
		if href, ok := sel.Attr("href"); ok {
			link = resolve(page, href)
		} else if a := sel.Find("a[href]").First(); a.Length() > 0 {
			href, _ := a.Attr("href")
			link = resolve(page, href)
		}
		out = append(out, domain.Content{
			ID:     domain.QualifiedID(domain.SourceLaunchpad, hashKey(link+"|"+text)),
			Source: domain.SourceLaunchpad,
			Scope:  scope,
			Text:   text,
			URL:    link,
		})
	})
	return out, nil
}

// plain strips markup from feed fields and decodes the entities it leaves.
func (l *Launchpad) plain(s string) string {
	return collapse(html.UnescapeString(l.strip.Sanitize(s)))
}

func hashKey(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
