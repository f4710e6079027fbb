package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const sampleTweets = `{
  "data": [
    {"id":"1","text":"$MOON presale tonight","author_id":"u1","created_at":"2025-03-01T11:30:00.000Z","public_metrics":{"like_count":5,"retweet_count":2,"reply_count":1}},
    {"id":"2","text":"quiet tweet","author_id":"u2","created_at":"2025-03-01T11:00:00.000Z","public_metrics":{"like_count":1,"retweet_count":0}},
    {"id":"3","text":"launch soon","author_id":"ghost","created_at":"not-a-time","public_metrics":{"like_count":3,"retweet_count":0}}
  ],
  "includes": {"users": [{"id":"u1","username":"alpha"}]}
}`

func newTwitterServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newTestTwitter(base string, clock *fakeClock, everyN int) *Twitter {
	return NewTwitter(TwitterOptions{
		APIBase:      base,
		BearerToken:  "static",
		Queries:      []string{"presale OR launch", "gem OR moonshot"},
		RequestFloor: time.Millisecond,
		QueryDelay:   time.Millisecond,
		EveryN:       everyN,
	}, testDeps(clock))
}

func TestTwitterSearchBuildsQueryAndNormalizes(t *testing.T) {
	queries := make(chan string, 1)
	srv := newTwitterServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer static" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		queries <- fmt.Sprintf("%s|%s|%s", q.Get("query"), q.Get("max_results"), q.Get("expansions"))
		_, _ = w.Write([]byte(sampleTweets))
	})
	tw := newTestTwitter(srv.URL, newFakeClock(), 1)

	items, err := tw.Search(context.Background(), "presale OR launch", "presale OR launch", 50)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	want := "(presale OR launch) " + TwitterContextSuffix + "|20|author_id"
	if got := <-queries; got != want {
		t.Fatalf("unexpected request %q, want %q", got, want)
	}
	if len(items) != 2 {
		t.Fatalf("expected low-interaction tweet dropped, got %d items", len(items))
	}

	first := items[0]
	if first.ID != "twitter_1" || first.URL != "https://twitter.com/alpha/status/1" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if first.Engagement.Score != 5 || first.Engagement.Shares != 2 || first.Engagement.Comments != 1 {
		t.Fatalf("unexpected engagement %+v", first.Engagement)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected parsed created_at")
	}

	second := items[1]
	if !second.CreatedAt.IsZero() {
		t.Fatalf("expected zero created_at for unparsable timestamp, got %v", second.CreatedAt)
	}
	if !strings.HasSuffix(second.URL, "/i/web/status/3") {
		t.Fatalf("unexpected fallback url %q", second.URL)
	}
}

func TestTwitterLimitClampedToAcceptedRange(t *testing.T) {
	limits := make(chan string, 1)
	srv := newTwitterServer(t, func(w http.ResponseWriter, r *http.Request) {
		limits <- r.URL.Query().Get("max_results")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	tw := newTestTwitter(srv.URL, newFakeClock(), 1)

	if _, err := tw.Search(context.Background(), "q", "q", 3); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if got := <-limits; got != "10" {
		t.Fatalf("expected max_results 10, got %q", got)
	}
}

func TestTwitter429BlocksUntilEpochReset(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	reset := start.Add(5 * time.Minute)

	var calls atomic.Int32
	seenAt := make(chan time.Time, 1)
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("x-rate-limit-reset", fmt.Sprint(reset.Unix()))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		seenAt <- clock.Now()
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	tw := newTestTwitter(srv.URL, clock, 1)

	if _, err := tw.Search(context.Background(), "q", "q", 10); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := tw.Search(context.Background(), "q", "q", 10); err != nil {
		t.Fatalf("Search after reset returned error: %v", err)
	}
	if at := <-seenAt; at.Before(reset) {
		t.Fatalf("request issued at %v before reset %v", at, reset)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestTwitter429WithoutHeaderUsesDefaultWindow(t *testing.T) {
	clock := newFakeClock()
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	tw := newTestTwitter(srv.URL, clock, 1)

	_, _ = tw.Search(context.Background(), "q", "q", 10)
	_, resetAt, _ := tw.RateLimit().Snapshot()
	if want := clock.Now().Add(twitterDefaultReset); !resetAt.Equal(want) {
		t.Fatalf("expected reset %v, got %v", want, resetAt)
	}
}

func TestTwitterLowQuotaPausesBeforeNextRequest(t *testing.T) {
	clock := newFakeClock()
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "4")
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	tw := newTestTwitter(srv.URL, clock, 1)

	for i := 0; i < 2; i++ {
		if _, err := tw.Search(context.Background(), "q", "q", 10); err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
	}

	found := false
	for _, d := range clock.Slept() {
		if d == lowQuotaPause {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a %v pause, slept %v", lowQuotaPause, clock.Slept())
	}
}

func TestTwitterCollectRunsEveryNthCycle(t *testing.T) {
	var calls atomic.Int32
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(sampleTweets))
	})
	tw := newTestTwitter(srv.URL, newFakeClock(), 2)

	expect := []int32{2, 2, 4, 4}
	for i, want := range expect {
		if _, err := tw.Collect(context.Background(), i+1); err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}
		if got := calls.Load(); got != want {
			t.Fatalf("after cycle %d expected %d requests, got %d", i+1, want, got)
		}
	}
}

func TestTwitterClientCredentialsExchange(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := newTwitterServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{"token_type":"bearer","access_token":"app-token"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer app-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	tw := NewTwitter(TwitterOptions{
		APIBase:      srv.URL,
		APIKey:       "key",
		APISecret:    "secret",
		RequestFloor: time.Millisecond,
	}, testDeps(newFakeClock()))

	for i := 0; i < 2; i++ {
		if _, err := tw.Search(context.Background(), "q", "q", 10); err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Fatalf("expected cached app token, got %d exchanges", got)
	}
}

func TestTwitterForbiddenQueryIsBanned(t *testing.T) {
	var calls atomic.Int32
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	tw := newTestTwitter(srv.URL, newFakeClock(), 1)

	if _, err := tw.Search(context.Background(), "bad", "bad", 10); !errors.Is(err, ErrScopeUnavailable) {
		t.Fatalf("expected ErrScopeUnavailable, got %v", err)
	}
	if _, err := tw.Search(context.Background(), "bad", "bad", 10); !errors.Is(err, ErrScopeUnavailable) {
		t.Fatalf("expected ErrScopeUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected banned query not to be requested again, got %d requests", got)
	}
}

func TestTwitterExhaustedQuotaHeaderBlocksUntilEpochReset(t *testing.T) {
	clock := newFakeClock()
	reset := clock.Now().Add(10 * time.Minute)

	var calls atomic.Int32
	seenAt := make(chan time.Time, 1)
	srv := newTwitterServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("x-rate-limit-remaining", "0")
			w.Header().Set("x-rate-limit-reset", fmt.Sprint(reset.Unix()))
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		seenAt <- clock.Now()
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	tw := newTestTwitter(srv.URL, clock, 1)

	if _, err := tw.Search(context.Background(), "q", "q", 10); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if _, resetAt, _ := tw.RateLimit().Snapshot(); !resetAt.Equal(reset) {
		t.Fatalf("expected reset %v, got %v", reset, resetAt)
	}

	if _, err := tw.Search(context.Background(), "q", "q", 10); err != nil {
		t.Fatalf("Search after reset returned error: %v", err)
	}
	if at := <-seenAt; at.Before(reset) {
		t.Fatalf("request issued at %v before advertised reset %v", at, reset)
	}
}
