package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestCollectorRecords(t *testing.T) {
	c := New("alpha-hunter")

	c.CycleFinished("ok", 2*time.Second)
	c.CycleFinished("ok", time.Second)
	c.CycleFinished("error", time.Second)
	c.ContentCollected("reddit-main", 7)
	c.ContentCollected("reddit-main", 0)
	c.SourceFailed("twitter", "rate_limited")
	c.OpportunityFound("IMMINENT_LAUNCH")
	c.NotificationSent("sent")
	c.SeenSize(42)

	body := scrape(t, c)
	assert.Contains(t, body, `alpha_hunter_cycles_total{status="ok"} 2`)
	assert.Contains(t, body, `alpha_hunter_cycles_total{status="error"} 1`)
	assert.Contains(t, body, `alpha_hunter_cycle_duration_seconds_count 3`)
	assert.Contains(t, body, `alpha_hunter_contents_collected_total{source="reddit-main"} 7`)
	assert.Contains(t, body, `alpha_hunter_source_errors_total{kind="rate_limited",source="twitter"} 1`)
	assert.Contains(t, body, `alpha_hunter_opportunities_total{kind="IMMINENT_LAUNCH"} 1`)
	assert.Contains(t, body, `alpha_hunter_notifications_total{status="sent"} 1`)
	assert.Contains(t, body, "alpha_hunter_seen_ids 42")
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := New("svc")
	b := New("svc")
	a.SeenSize(5)

	assert.Contains(t, scrape(t, a), "svc_seen_ids 5")
	assert.Contains(t, scrape(t, b), "svc_seen_ids 0")
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.CycleFinished("ok", time.Second)
	c.SourceFailed("x", "auth")
	c.SeenSize(1)
	assert.Nil(t, c.Registry())
}
