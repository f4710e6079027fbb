package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Launchpad</title>
    <item>
      <title>FROG presale starts in 2 hours</title>
      <link>https://pad.example/frog</link>
      <guid>frog-1</guid>
      <description><![CDATA[<p>Fair launch &amp; <b>no dev tax</b></p>]]></description>
      <pubDate>Sat, 01 Mar 2025 11:45:00 GMT</pubDate>
    </item>
    <item>
      <title></title>
      <description></description>
    </item>
  </channel>
</rss>`

const samplePage = `<html><head><title>Upcoming</title><script>var x = "launch";</script></head>
<body>
  <div class="card"><a href="/p/cat">CAT token</a> presale today</div>
  <div class="card"><a href="https://other.example/dog">DOG coin</a> launch in 3 hours</div>
  <div class="card">   </div>
</body></html>`

func newLaunchpadServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(sampleFeed))
		case "/page":
			_, _ = w.Write([]byte(samplePage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLaunchpadParsesFeedItems(t *testing.T) {
	srv := newLaunchpadServer(t)
	lp := NewLaunchpad(LaunchpadOptions{
		Pages:        []string{srv.URL + "/feed"},
		Format:       FormatFeed,
		RequestFloor: time.Millisecond,
	}, testDeps(newFakeClock()))

	items, err := lp.Collect(context.Background(), 1)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 feed item, got %d", len(items))
	}

	item := items[0]
	if !strings.HasPrefix(item.ID, "launchpad_") {
		t.Fatalf("unexpected id %q", item.ID)
	}
	if item.Body != "Fair launch & no dev tax" {
		t.Fatalf("expected markup stripped, got %q", item.Body)
	}
	if item.URL != "https://pad.example/frog" {
		t.Fatalf("unexpected url %q", item.URL)
	}
	if item.CreatedAt.IsZero() {
		t.Fatalf("expected published time to be parsed")
	}
}

func TestLaunchpadSelectorYieldsOneItemPerElement(t *testing.T) {
	srv := newLaunchpadServer(t)
	lp := NewLaunchpad(LaunchpadOptions{
		Pages:        []string{srv.URL + "/page"},
		Format:       FormatHTML,
		Selector:     "div.card",
		RequestFloor: time.Millisecond,
	}, testDeps(newFakeClock()))

	items, err := lp.FetchPage(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("FetchPage returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(items))
	}
	if items[0].Text != "CAT token presale today" {
		t.Fatalf("unexpected text %q", items[0].Text)
	}
	if items[0].URL != srv.URL+"/p/cat" {
		t.Fatalf("expected relative link resolved, got %q", items[0].URL)
	}
	if items[1].URL != "https://other.example/dog" {
		t.Fatalf("unexpected link %q", items[1].URL)
	}
	if items[0].ID == items[1].ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestLaunchpadWholePageWithoutSelector(t *testing.T) {
	srv := newLaunchpadServer(t)
	lp := NewLaunchpad(LaunchpadOptions{RequestFloor: time.Millisecond}, testDeps(newFakeClock()))

	items, err := lp.FetchPage(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("FetchPage returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one page item, got %d", len(items))
	}
	if items[0].Title != "Upcoming" {
		t.Fatalf("unexpected title %q", items[0].Title)
	}
	if strings.Contains(items[0].Text, "var x") {
		t.Fatalf("expected script content removed, got %q", items[0].Text)
	}
}

func TestLaunchpadMissingPageIsBanned(t *testing.T) {
	srv := newLaunchpadServer(t)
	lp := NewLaunchpad(LaunchpadOptions{RequestFloor: time.Millisecond}, testDeps(newFakeClock()))

	if _, err := lp.FetchPage(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrScopeUnavailable) {
		t.Fatalf("expected ErrScopeUnavailable, got %v", err)
	}
	if !lp.bans.banned(srv.URL + "/missing") {
		t.Fatalf("expected page to be banned")
	}
}
